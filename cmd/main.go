package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"incident-review/internal/assistant"
	"incident-review/internal/chart"
	"incident-review/internal/config"
	"incident-review/internal/dataset"
	"incident-review/internal/db"
	"incident-review/internal/models"
	"incident-review/internal/parser"
	"incident-review/internal/timeline"
)

var (
	cfg      *config.Config
	dbPath   string
	database *db.Database
)

func main() {
	cfg = config.Load()
	setupLogging(cfg.LogLevel)

	rootCmd := &cobra.Command{
		Use:   "incident-review",
		Short: "Incident Review - synchronized dashcam and telemetry analysis",
		Long: `A tool for reviewing a recorded vehicle incident: dashcam playback kept in
sync with telemetry samples, witness and police reports, charts and a
question-answering assistant, served over HTTP, WebSocket and Telegram.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DatabasePath, "Path to SQLite database")

	// Add commands
	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(incidentCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel(level)})
	slog.SetDefault(slog.New(handler))
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(dbPath)
	return err
}

// seedReference stores the built-in reference incident.
func seedReference(ctx context.Context, videoURL string) (int64, int64, error) {
	inc := dataset.Incident(videoURL)
	if err := database.UpsertIncident(ctx, &inc); err != nil {
		return 0, 0, err
	}
	samples, reports := dataset.Generate()
	ns, err := database.ReplaceSamples(ctx, inc.ID, samples)
	if err != nil {
		return 0, 0, err
	}
	nr, err := database.InsertReports(ctx, inc.ID, reports)
	if err != nil {
		return 0, 0, err
	}
	return ns, nr, nil
}

// loadIncident loads an incident, seeding the reference incident on first use.
func loadIncident(ctx context.Context, id string) (*models.Incident, []models.TelemetrySample, []models.Report, error) {
	inc, samples, reports, err := database.LoadIncidentData(ctx, id)
	if errors.Is(err, db.ErrNotFound) && id == dataset.IncidentID {
		slog.Info("seeding reference incident", "incident", id)
		if _, _, err := seedReference(ctx, cfg.VideoURL); err != nil {
			return nil, nil, nil, fmt.Errorf("seed reference incident: %w", err)
		}
		return database.LoadIncidentData(ctx, id)
	}
	return inc, samples, reports, err
}

// generateCmd stores the reference incident
func generateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the reference incident",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			start := time.Now()
			ns, nr, err := seedReference(cmd.Context(), cfg.VideoURL)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			fmt.Printf("✓ Incident %s: %d samples, %d new reports (%v)\n", dataset.IncidentID, ns, nr, time.Since(start))

			if output != "" {
				samples, _ := dataset.Generate()
				if err := writeJSON(output, samples); err != nil {
					return err
				}
				fmt.Printf("Samples exported to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Export generated samples to JSON file")
	return cmd
}

// ingestCmd loads samples and reports from files
func ingestCmd() *cobra.Command {
	var samplesFile, reportsFile, incidentID, format, title string
	var validate bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest telemetry samples and reports from files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if samplesFile == "" && reportsFile == "" {
				return errors.New("at least one of --samples or --reports is required")
			}
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			ctx := cmd.Context()
			if _, err := database.GetIncident(ctx, incidentID); errors.Is(err, db.ErrNotFound) {
				inc := models.Incident{ID: incidentID, CaseNumber: "#" + incidentID, Title: title, VideoURL: cfg.VideoURL}
				if err := database.UpsertIncident(ctx, &inc); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			p := parser.NewParser(format)

			if samplesFile != "" {
				start := time.Now()
				samples, err := p.ParseSamplesFile(samplesFile)
				if err != nil {
					return fmt.Errorf("parse samples: %w", err)
				}
				rejected := 0
				if validate {
					valid := samples[:0]
					for i := range samples {
						if errs := parser.ValidateSample(&samples[i]); len(errs) > 0 {
							slog.Warn("rejecting sample", "timestamp", samples[i].Timestamp, "reason", strings.Join(errs, "; "))
							rejected++
							continue
						}
						valid = append(valid, samples[i])
					}
					samples = valid
				}
				n, err := database.ReplaceSamples(ctx, incidentID, samples)
				if err != nil {
					return fmt.Errorf("store samples: %w", err)
				}
				fmt.Printf("✓ Stored %d samples in %v", n, time.Since(start))
				if rejected > 0 {
					fmt.Printf(", %d rejected", rejected)
				}
				fmt.Println()
			}

			if reportsFile != "" {
				reports, err := p.ParseReportsFile(reportsFile)
				if err != nil {
					return fmt.Errorf("parse reports: %w", err)
				}
				rejected := 0
				if validate {
					valid := reports[:0]
					for i := range reports {
						if errs := parser.ValidateReport(&reports[i]); len(errs) > 0 {
							slog.Warn("rejecting report", "source", reports[i].Source, "reason", strings.Join(errs, "; "))
							rejected++
							continue
						}
						valid = append(valid, reports[i])
					}
					reports = valid
				}
				n, err := database.InsertReports(ctx, incidentID, reports)
				if err != nil {
					return fmt.Errorf("store reports: %w", err)
				}
				fmt.Printf("✓ Stored %d new reports (%d duplicates skipped, %d rejected)\n", n, int64(len(reports))-n, rejected)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&samplesFile, "samples", "", "Samples file (csv, json, jsonl)")
	cmd.Flags().StringVar(&reportsFile, "reports", "", "Reports file (csv, json, jsonl)")
	cmd.Flags().StringVarP(&incidentID, "incident", "i", cfg.IncidentID, "Incident ID")
	cmd.Flags().StringVar(&title, "title", "Incident Analysis", "Title for a new incident")
	cmd.Flags().StringVarP(&format, "format", "f", "", "File format, inferred from the extension when empty")
	cmd.Flags().BoolVarP(&validate, "validate", "v", true, "Validate records before storing")
	return cmd
}

// queryCmd prints every panel for one playback time
func queryCmd() *cobra.Command {
	var at float64
	var incidentID, outputFormat string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Show the dashboard state at a playback time",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			_, samples, _, err := loadIncident(cmd.Context(), incidentID)
			if err != nil {
				return fmt.Errorf("load incident: %w", err)
			}
			frame := timeline.Snapshot(samples, at)

			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(frame)
			}

			fmt.Printf("⏱  %.1fs\n\n", at)
			if frame.Found {
				for _, c := range frame.Cards {
					fmt.Printf("  %-16s %s\n", c.Label, c.Value)
				}
				s := frame.Sample
				fmt.Printf("  %-16s %.1f mph\n", "Speed", s.Speed)
				fmt.Printf("  %-16s %s\n", "Brake Force", timeline.Percent(s.BrakeForce))
				fmt.Printf("  %-16s %v\n", "Autopilot", s.AutopilotActive)
				fmt.Printf("  %-16s %v\n", "Airbag", s.AirbagDeployed)
			} else {
				fmt.Printf("  %s\n", frame.Notice)
			}

			fmt.Printf("\nTable rows %d-%d of %d\n", frame.Table.Start, frame.Table.End, len(samples))

			fmt.Println("\nReports")
			if len(frame.Reports) == 0 {
				fmt.Printf("  %s\n", frame.ReportsNote)
			}
			for _, r := range frame.Reports {
				marker := " "
				if r.Current {
					marker = "▶"
				}
				fmt.Printf("  %s [%.1fs] %s: %s", marker, r.Timestamp, r.Name, r.Statement)
				if c := r.Credibility(); c != "" {
					fmt.Printf(" (credibility %s)", c)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().Float64VarP(&at, "time", "t", 0, "Playback time in seconds")
	cmd.Flags().StringVarP(&incidentID, "incident", "i", cfg.IncidentID, "Incident ID")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

// askCmd answers one question without recording it
func askCmd() *cobra.Command {
	var at float64
	var incidentID string

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask the assistant about a playback time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			_, samples, _, err := loadIncident(cmd.Context(), incidentID)
			if err != nil {
				return fmt.Errorf("load incident: %w", err)
			}
			svc := assistant.NewService(database, incidentID, samples, nil)
			reply := svc.Reply(at, strings.Join(args, " "))
			if reply == "" {
				reply = timeline.NoSampleMessage
			}
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&at, "time", "t", 0, "Playback time in seconds")
	cmd.Flags().StringVarP(&incidentID, "incident", "i", cfg.IncidentID, "Incident ID")
	return cmd
}

// chartCmd renders the telemetry chart to a file
func chartCmd() *cobra.Command {
	var output, incidentID string
	var at float64
	var width, height int

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the speed, impact and brake chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			_, samples, _, err := loadIncident(cmd.Context(), incidentID)
			if err != nil {
				return fmt.Errorf("load incident: %w", err)
			}

			opts := chart.Options{Width: width, Height: height, Format: chart.PNG}
			if strings.EqualFold(filepath.Ext(output), ".svg") {
				opts.Format = chart.SVG
			}
			if cmd.Flags().Changed("time") {
				opts.Marker = &at
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("error creating output file: %w", err)
			}
			defer f.Close()

			if err := chart.Render(f, samples, opts); err != nil {
				return fmt.Errorf("render chart: %w", err)
			}
			fmt.Printf("Chart written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "chart.png", "Output file (.png or .svg)")
	cmd.Flags().StringVarP(&incidentID, "incident", "i", cfg.IncidentID, "Incident ID")
	cmd.Flags().Float64VarP(&at, "time", "t", 0, "Draw a marker at this playback time")
	cmd.Flags().IntVar(&width, "width", 0, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Image height in pixels")
	return cmd
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			stats, err := database.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("📊 Incident Review Statistics")
			fmt.Println("=============================")
			fmt.Printf("  Incidents:      %v\n", stats["total_incidents"])
			fmt.Printf("  Samples:        %v\n", stats["total_samples"])
			fmt.Printf("  Reports:        %v\n", stats["total_reports"])
			fmt.Printf("  Chat Sessions:  %v\n", stats["chat_sessions"])
			fmt.Printf("  Chat Messages:  %v\n", stats["chat_messages"])
			fmt.Printf("  Database:       %s\n", dbPath)
			return nil
		},
	}
}

// incidentCmd manages incidents
func incidentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incident",
		Short: "Incident management commands",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			incidents, err := database.ListIncidents(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing incidents: %w", err)
			}
			if len(incidents) == 0 {
				fmt.Println("No incidents found. Use 'incident-review generate' to create the reference incident.")
				return nil
			}

			fmt.Printf("%-16s %-18s %-30s\n", "ID", "Case", "Title")
			fmt.Println(strings.Repeat("-", 66))
			for _, inc := range incidents {
				fmt.Printf("%-16s %-18s %-30s\n", inc.ID, inc.CaseNumber, inc.Title)
			}
			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary [incident_id]",
		Short: "Show incident summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			start := time.Now()
			summary, err := database.GetIncidentSummary(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error getting summary: %w", err)
			}

			fmt.Printf("📈 Incident Summary for %s (query: %v)\n", args[0], time.Since(start))
			fmt.Println("==========================================")
			fmt.Printf("  Samples:          %d\n", summary.SampleCount)
			fmt.Printf("  Reports:          %d\n", summary.ReportCount)
			fmt.Printf("  Duration:         %.1fs\n", summary.Duration)
			fmt.Printf("  Maximum Speed:    %.1f mph\n", summary.MaxSpeed)
			fmt.Printf("  Maximum Impact:   %.1fG at %.1fs\n", summary.MaxImpact, summary.ImpactAt)
			if summary.AirbagFirstAt >= 0 {
				fmt.Printf("  Airbag Deployed:  %.1fs\n", summary.AirbagFirstAt)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, summaryCmd)
	return cmd
}

func writeJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
