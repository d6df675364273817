// Package control serves the consumer-facing query surface over HTTP: JSON
// sample and statistics queries, a websocket feed of live samples, and the
// Prometheus registry. It only reads engine state; all mutation stays inside
// the recorder.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NodePath81/linewatch/internal/config"
	"github.com/NodePath81/linewatch/internal/history"
	"github.com/NodePath81/linewatch/internal/monitor"
	"github.com/NodePath81/linewatch/internal/sample"
	"github.com/NodePath81/linewatch/internal/util"
	"github.com/NodePath81/linewatch/internal/version"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 32
)

type Server struct {
	cfg      config.ControlConfig
	recorder *history.Recorder
	monitor  *monitor.Monitor
	logger   util.Logger
	server   *http.Server
	started  time.Time
}

func NewServer(cfg config.ControlConfig, recorder *history.Recorder, mon *monitor.Monitor, logger util.Logger) *Server {
	return &Server{
		cfg:      cfg,
		recorder: recorder,
		monitor:  mon,
		logger:   logger,
		started:  time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/samples", s.handleSamples)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/ws/live", s.handleLive)
	if s.cfg.MetricsEnabled() {
		mux.Handle("/metrics", promhttp.Handler())
	}

	addr := util.NetJoin(s.cfg.BindAddr, s.cfg.BindPort)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()
	s.logger.Info("control server started", "addr", addr)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type statusResponse struct {
	Version    string         `json:"version"`
	UptimeSecs int64          `json:"uptime_secs"`
	Monitor    monitor.Status `json:"monitor"`
	Latency    history.Stats  `json:"latency"`
	Throughput history.Stats  `json:"throughput"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latency, err := s.recorder.Stats(sample.KindLatency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	throughput, err := s.recorder.Stats(sample.KindThroughput)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusResponse{
		Version:    version.Version,
		UptimeSecs: int64(time.Since(s.started).Seconds()),
		Monitor:    s.monitor.Status(),
		Latency:    latency,
		Throughput: throughput,
	})
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r)
	if !ok {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = parsed
	}
	samples, err := s.recorder.Query(kind, window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, samples)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r)
	if !ok {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	stats, err := s.recorder.Stats(kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// handleLive upgrades to a websocket and forwards every new sample as one
// JSON message until the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	samples, cancel := s.recorder.Subscribe(wsSendBuffer)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()
	for {
		select {
		case <-done:
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case sm, ok := <-samples:
			if !ok {
				return
			}
			data, err := json.Marshal(sm)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func parseKind(r *http.Request) (sample.Kind, bool) {
	kind := sample.Kind(r.URL.Query().Get("kind"))
	return kind, kind.Valid()
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
