// Package wsfront assembles the directory, allocator, metrics, identity,
// and event bus components into the HTTP server clients actually dial:
// the WebSocket upgrade endpoint plus a handful of operational routes,
// adapted from the teacher's internal/server package.
package wsfront

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serialkeel/internal/allocator"
	"serialkeel/internal/config"
	"serialkeel/internal/directory"
	"serialkeel/internal/endpoint"
	"serialkeel/internal/eventbus"
	"serialkeel/internal/groupregistry"
	"serialkeel/internal/identity"
	"serialkeel/internal/linepipe"
	"serialkeel/internal/metrics"
	"serialkeel/internal/mockendpoint"
	"serialkeel/internal/serialio"
	"serialkeel/internal/session"
	"serialkeel/internal/transport"
)

// Version is stamped at build time via -ldflags; it defaults to "dev" for
// local builds.
var Version = "dev"

// Server wires every component together behind one HTTP listener.
type Server struct {
	cfg        *config.Config
	dir        *directory.Directory
	alloc      *allocator.Allocator
	collector  *metrics.Collector
	identity   *identity.Manager
	events     *eventbus.Publisher
	logger     *log.Logger
	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	nextSessionID uint64
}

// New builds a Server from configuration, opening real TTY devices and
// constructing the static group registry. It does not start listening;
// call Start for that.
func New(cfg *config.Config, logger *log.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	regEndpoints := make([]groupregistry.EndpointConfig, 0, len(cfg.Endpoints))
	real := make(map[endpoint.ID]*directory.Endpoint)

	for _, ec := range cfg.Endpoints {
		var id endpoint.ID
		switch ec.Kind {
		case "tty":
			id = endpoint.Tty(ec.Name)
			port, err := serialio.Open(serialio.Config{Device: ec.Device, BaudRate: ec.BaudRate})
			if err != nil {
				cancel()
				return nil, fmt.Errorf("wsfront: open endpoint %s: %w", ec.Name, err)
			}
			pipe := linepipe.New()
			go func(id endpoint.ID) {
				if err := linepipe.Pump(pipe, port); err != nil {
					logger.Printf("endpoint %s: pump stopped: %v", id, err)
				}
			}(id)
			real[id] = &directory.Endpoint{ID: id, Pipe: pipe, Sink: port}
		case "mock":
			id = endpoint.Mock(ec.Name)
		default:
			cancel()
			return nil, fmt.Errorf("wsfront: endpoint %s has unknown kind %q", ec.Name, ec.Kind)
		}
		regEndpoints = append(regEndpoints, groupregistry.EndpointConfig{ID: id, Labels: ec.Labels})
	}

	nameToID := make(map[string]endpoint.ID, len(regEndpoints))
	for _, ec := range regEndpoints {
		nameToID[ec.ID.Name] = ec.ID
	}

	regGroups := make([]groupregistry.GroupConfig, 0, len(cfg.Groups))
	for _, gc := range cfg.Groups {
		members := make([]endpoint.ID, 0, len(gc.Members))
		for _, name := range gc.Members {
			id, ok := nameToID[name]
			if !ok {
				cancel()
				return nil, fmt.Errorf("wsfront: group %s names unknown endpoint %s", gc.ID, name)
			}
			members = append(members, id)
		}
		regGroups = append(regGroups, groupregistry.GroupConfig{ID: gc.ID, Members: members, Labels: gc.Labels})
	}

	registry, err := groupregistry.Build(regEndpoints, regGroups)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("wsfront: build registry: %w", err)
	}

	visibility := mockendpoint.Shared
	if cfg.Mocks.Visibility == "per_session" {
		visibility = mockendpoint.PerSession
	}
	mocks := mockendpoint.NewEngine(visibility)
	dir := directory.New(registry, mocks, real)

	alloc := allocator.New()
	for _, u := range registry.Units() {
		alloc.Register(allocator.UnitID(u.ID))
	}

	m := metrics.NewMetrics()
	collector := metrics.NewCollector(m)

	idMgr := identity.NewManager(cfg.Identity.JWTSecret, time.Duration(cfg.Identity.TokenExpiration)*time.Second)

	var events *eventbus.Publisher
	if cfg.EventBus.Enabled {
		events = eventbus.NewOrNil(eventbus.Config{
			URL:             cfg.EventBus.URL,
			MaxReconnects:   cfg.EventBus.MaxReconnects,
			ReconnectWait:   time.Duration(cfg.EventBus.ReconnectWaitMs) * time.Millisecond,
			ReconnectJitter: time.Duration(cfg.EventBus.ReconnectJitterMs) * time.Millisecond,
		}, cfg.EventBus.SubjectPrefix, logger, m)
	}

	s := &Server{
		cfg:       cfg,
		dir:       dir,
		alloc:     alloc,
		collector: collector,
		identity:  idMgr,
		events:    events,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.setupHTTPServer()
	return s, nil
}

func (s *Server) setupHTTPServer() {
	mux := http.NewServeMux()

	mux.HandleFunc(s.cfg.WebSocket.Path, s.handleClient)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/version", s.handleVersion)
	if s.cfg.Metrics.EnablePrometheus {
		mux.Handle(s.cfg.Metrics.MetricsPath, promhttp.Handler())
	}
	mux.HandleFunc(s.cfg.Metrics.SystemPath, s.handleSystemMetrics)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
	}
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddUint64(&s.nextSessionID, 1)
	id := fmt.Sprintf("sess-%d", n)
	label := s.identity.LabelFor(r, fmt.Sprintf("%s-%d", s.cfg.Identity.AnonymousLabel, n))

	stats := &metrics.SessionScoped{Metrics: s.collector.Metrics, Sessions: s.collector.Sessions, ID: id}
	sess := session.New(id, s.dir, s.alloc, s.cfg.WebSocket.OutboundQueueSize, s.events, stats)

	connectedAt := time.Now()
	conn, err := transport.Upgrade(w, r, sess, s.logger, label, func() {
		s.collector.Sessions.Remove(id)
		s.collector.Metrics.SessionClosed(time.Since(connectedAt))
	})
	if err != nil {
		s.logger.Printf("upgrade failed: %v", err)
		s.collector.Metrics.RecordSessionError()
		return
	}

	s.collector.Sessions.Add(id, r.RemoteAddr, label)
	s.collector.Metrics.SessionOpened()
	conn.Serve()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":                  "healthy",
		"timestamp":               time.Now().Unix(),
		"uptime":                  s.collector.Metrics.GetUptime().Seconds(),
		"sessions":                s.collector.Sessions.Summary(),
		"sessions_detail":         s.collector.Sessions.Snapshot(),
		"sessions_active_metric":  s.collector.Metrics.GetActiveSessions(),
		"eventbus": map[string]interface{}{
			"enabled": s.cfg.EventBus.Enabled,
		},
	}
	writeJSON(w, health)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": Version})
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.collector.Snapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins metrics collection and the HTTP listener, then blocks
// until a shutdown signal arrives.
func (s *Server) Start() error {
	s.logger.Printf("starting serialkeel server")
	s.collector.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("HTTP server error: %v", err)
		}
	}()

	<-s.ctx.Done()
	return nil
}

// Shutdown stops the HTTP listener, the metrics collector, and the event
// bus connection, waiting up to 10 seconds for in-flight work to drain.
func (s *Server) Shutdown() {
	s.logger.Printf("shutting down")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Printf("HTTP shutdown error: %v", err)
	}
	s.collector.Stop()
	s.events.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Printf("shutdown complete")
	case <-ctx.Done():
		s.logger.Printf("shutdown timed out")
	}
}

// NewLogger builds the stdout logger every entry point uses, matching
// the teacher's flags.
func NewLogger(prefix string) *log.Logger {
	return log.New(os.Stdout, prefix, log.LstdFlags|log.Lshortfile)
}
