package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"promptpipe/internal/config"
	"promptpipe/internal/engine"
	"promptpipe/internal/llm"
	"promptpipe/internal/registry"
	"promptpipe/internal/store"
	"promptpipe/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	st := openStore(cfg)
	defer st.Close()

	backends, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		log.Fatal(err)
	}
	if n := len(backends.All()); n > 0 {
		log.Printf("backend registry: %d backends from %s", n, cfg.RegistryPath)
	}

	gateway := llm.New(llm.Options{
		Retries:         cfg.Gateway.Retries,
		RetryDelay:      cfg.Gateway.RetryDelay,
		GenerateTimeout: cfg.Gateway.GenerateTimeout,
		ProbeTimeout:    cfg.Gateway.ProbeTimeout,
	})

	hub := ws.NewHub()
	broadcast := func(e engine.Event) {
		terminal := e.Type == engine.EventWorkflowCompleted || e.Type == engine.EventWorkflowFailed
		hub.Broadcast(e.RunID, e, terminal)
	}
	coordinator := engine.New(st, gateway, backends, broadcast)

	s := &apiServer{
		store:       st,
		coordinator: coordinator,
		gateway:     gateway,
		backends:    backends,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	mux.HandleFunc("/ws/runs", hub.HandleRunFeed)
	mux.Handle("GET /metrics", promhttp.Handler())

	h := withCORS(mux)

	log.Printf("Starting API server on %s", cfg.Port)
	log.Fatal(http.ListenAndServe(cfg.Port, h2c.NewHandler(h, &http2.Server{})))
}

// openStore prefers Postgres when a DSN is configured and falls back to
// the in-memory store otherwise.
func openStore(cfg *config.Config) store.Store {
	if cfg.DatabaseDSN == "" {
		log.Printf("store: no DSN configured, using in-memory store")
		return store.NewMemory()
	}
	s, err := store.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Printf("store: postgres unavailable (%v), using in-memory store", err)
		return store.NewMemory()
	}
	log.Printf("store: postgres connected")
	return s
}

// Simple CORS middleware
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
