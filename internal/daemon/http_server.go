package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/eventstore"
	"git.home.luguber.info/inful/themekit/internal/manifest"
)

// AssetSource serves bundled assets from memory during a dev session.
type AssetSource interface {
	AssetByPath(public string) ([]byte, bool)
	Manifest() *manifest.AssetManifest
	Errors() map[string]string
}

// BuildHistory exposes recent build records for the /api/builds endpoint.
type BuildHistory interface {
	Recent(ctx context.Context, limit int) ([]eventstore.BuildRecord, error)
}

// Server is the dev-mode HTTP server. Assets come straight from the bundler's
// in-memory outputs so a page never races a half-written file on disk; pages
// are served from the output directory with the live-update script injected.
type Server struct {
	cfg      *config.Config
	assets   AssetSource
	hub      *LiveUpdateHub
	history  BuildHistory
	registry *prometheus.Registry
	logger   *slog.Logger

	startTime  time.Time
	httpServer *http.Server
}

func NewServer(cfg *config.Config, assets AssetSource, hub *LiveUpdateHub, history BuildHistory, registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		assets:    assets,
		hub:       hub,
		history:   history,
		registry:  registry,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Start binds the listener and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(LiveUpdateScript))
	})
	mux.HandleFunc("/manifest.json", s.handleManifest)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/builds", s.handleBuilds)
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	mux.HandleFunc(s.cfg.Output.PublicBase, s.handleAsset)
	mux.HandleFunc("/", s.handlePage)

	addr := fmt.Sprintf(":%d", s.cfg.Dev.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// SSE connections stay open; no write timeout.
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("dev server listening",
		slog.String("addr", fmt.Sprintf("http://localhost:%d", s.cfg.Dev.Port)))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", slog.Any("error", err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleAsset serves fingerprinted bundles from the dev session's memory.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	data, ok := s.assets.AssetByPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctype := mime.TypeByExtension(filepath.Ext(r.URL.Path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	// Fingerprinted names make the content immutable.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

// handlePage serves rendered pages from the output directory with the
// live-update script injected before </body>.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if errs := s.assets.Errors(); len(errs) > 0 {
		s.renderBuildErrorPage(w, errs)
		return
	}

	path := filepath.Clean(r.URL.Path)
	if strings.Contains(path, "..") {
		http.NotFound(w, r)
		return
	}
	full := filepath.Join(s.cfg.Output.Dir, path)
	if st, err := os.Stat(full); err == nil && st.IsDir() {
		full = filepath.Join(full, "index.html")
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}

	if strings.HasSuffix(full, ".html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		_, _ = w.Write(injectScript(data))
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(full))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write(data)
}

func (s *Server) renderBuildErrorPage(w http.ResponseWriter, errs map[string]string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)

	var details strings.Builder
	for id, msg := range errs {
		fmt.Fprintf(&details, "%s: %s\n", id, msg)
	}

	_, _ = fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>Build Failed</title><style>body{font-family:sans-serif;max-width:800px;margin:50px auto;padding:20px}h1{color:#d32f2f}pre{background:#f5f5f5;padding:15px;border-radius:4px;overflow-x:auto}</style></head><body><h1>Build Failed</h1><p>Fix the error below and save to rebuild automatically.</p><pre>%s</pre><script src="/livereload.js"></script></body></html>`, details.String())
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	man := s.assets.Manifest()
	if man == nil {
		http.Error(w, "no manifest", http.StatusServiceUnavailable)
		return
	}
	data, err := man.ToJSON()
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).String(),
		"clients": s.hub.ClientCount(),
	}
	if errs := s.assets.Errors(); len(errs) > 0 {
		status["status"] = "degraded"
		status["errors"] = errs
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "build history disabled", http.StatusNotFound)
		return
	}
	records, err := s.history.Recent(r.Context(), 50)
	if err != nil {
		s.logger.Error("failed to read build history", slog.Any("error", err))
		http.Error(w, "history error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

var bodyClose = []byte("</body>")

// injectScript inserts the live-update script tag before </body>, or appends
// it when the page has no closing body tag.
func injectScript(page []byte) []byte {
	tag := []byte(`<script src="/livereload.js"></script>`)
	if idx := bytes.LastIndex(page, bodyClose); idx >= 0 {
		out := make([]byte, 0, len(page)+len(tag))
		out = append(out, page[:idx]...)
		out = append(out, tag...)
		out = append(out, page[idx:]...)
		return out
	}
	return append(page, tag...)
}
