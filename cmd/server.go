package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"incident-review/internal/api"
	"incident-review/internal/assistant"
	"incident-review/internal/cache"
	"incident-review/internal/chart"
	"incident-review/internal/discovery"
	"incident-review/internal/playback"
	"incident-review/internal/telegram"
	"incident-review/internal/timeline"
	"incident-review/internal/websocket"
)

// serverCmd starts the dashboard, REST API and live channels
func serverCmd() *cobra.Command {
	var port int
	var incidentID string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the review server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			inc, samples, reports, err := loadIncident(ctx, incidentID)
			if err != nil {
				return fmt.Errorf("load incident: %w", err)
			}
			if cfg.VideoURL != "" {
				inc.VideoURL = cfg.VideoURL
			}

			session := playback.NewSession(timeline.Duration(samples))
			hub := websocket.NewHub(session, samples)
			chat := assistant.NewService(database, inc.ID, samples, nil)
			chartCache := cache.New(ctx, cfg.Redis)
			defer chartCache.Close()

			server := api.NewServer(api.Deps{
				DB:       database,
				Incident: *inc,
				Samples:  samples,
				Reports:  reports,
				Session:  session,
				Chat:     chat,
				Charts:   chart.NewRenderer(2),
				Cache:    chartCache,
				Hub:      hub,
			})

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			tick := cfg.PlaybackTick
			if tick <= 0 {
				tick = 250 * time.Millisecond
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return hub.Run(ctx) })
			g.Go(func() error { return session.Run(ctx, tick) })
			g.Go(func() error {
				slog.Info("http server listening", "addr", httpServer.Addr, "incident", inc.ID, "samples", len(samples), "reports", len(reports))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			if cfg.TelegramBotToken != "" {
				bridge, err := telegram.New(cfg.TelegramBotToken, chat, timeline.Duration(samples))
				if err != nil {
					slog.Error("telegram bridge disabled", "error", err)
				} else {
					g.Go(func() error { return bridge.Start(ctx) })
				}
			}

			if cfg.Discovery.Enabled {
				svc := discovery.New(cfg.Discovery.Instance, port, inc.ID)
				if err := svc.Start(); err != nil {
					slog.Warn("mdns advertisement failed", "error", err)
				} else {
					defer svc.Stop()
				}
			}

			err = g.Wait()
			slog.Info("server stopped")
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", cfg.HTTPPort, "Server port")
	cmd.Flags().StringVarP(&incidentID, "incident", "i", cfg.IncidentID, "Incident ID")
	return cmd
}
