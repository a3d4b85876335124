// Package discovery advertises the review dashboard on the local network.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
)

const (
	ServiceType   = "_incidentreview._tcp"
	ServiceDomain = "local."
)

// Service registers an mDNS record for the HTTP server.
type Service struct {
	mu       sync.Mutex
	server   *zeroconf.Server
	instance string
	port     int
	txt      []string
}

// New creates an advertiser for incidentID served on port. An empty instance
// name is derived from the hostname.
func New(instance string, port int, incidentID string) *Service {
	if instance == "" {
		hostname, _ := os.Hostname()
		instance = fmt.Sprintf("%s-incident-review", hostname)
	}
	return &Service{
		instance: instance,
		port:     port,
		txt: []string{
			"version=1.0",
			"case=" + incidentID,
			"path=/",
		},
	}
}

// Start registers the service. Calling it twice is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	server, err := zeroconf.Register(s.instance, ServiceType, ServiceDomain, s.port, s.txt, nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	s.server = server

	slog.Info("mdns service registered", "instance", s.instance, "type", ServiceType, "port", s.port)
	return nil
}

// Stop withdraws the record.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return
	}
	s.server.Shutdown()
	s.server = nil
	slog.Info("mdns service stopped", "instance", s.instance)
}

// Running reports whether the record is registered.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// TXT returns the advertised TXT records.
func (s *Service) TXT() []string {
	return append([]string(nil), s.txt...)
}
