package doodlestore

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the long-running storage service: the manager with background
// health/sync tickers, plus a small administration API.
//
// Endpoints:
//
//	GET  /api/health         - health of the current adapter
//	GET  /api/status         - full router snapshot (adapters, health, sync)
//	POST /api/switch/{name}  - make the named adapter current
//	POST /api/switch/local   - switch to the best local adapter
//	POST /api/switch/remote  - switch to the best remote adapter
//	POST /api/sync           - run a local-to-remote sync now
//
// The method blocks until ctx is cancelled, then gives in-flight requests
// five seconds to complete before shutting down.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	if err := a.initManager(ctx, true); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    a.config.ListenAddr,
		Handler: a.routes(),
	}

	a.log.Info().Str("addr", a.config.ListenAddr).Msg("starting doodlestore server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (a *App) routes() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods("GET")
	api.HandleFunc("/status", a.handleStatus).Methods("GET")
	api.HandleFunc("/switch/local", a.handleSwitchLocal).Methods("POST")
	api.HandleFunc("/switch/remote", a.handleSwitchRemote).Methods("POST")
	api.HandleFunc("/switch/{name}", a.handleSwitch).Methods("POST")
	api.HandleFunc("/sync", a.handleSync).Methods("POST")
	return router
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn().Err(err).Msg("encode response")
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := a.mgr.CheckHealth(r.Context())
	if err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, status, health)
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.mgr.Status(r.Context())
	if err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(w, http.StatusOK, status)
}

func (a *App) handleSwitch(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := a.mgr.SwitchTo(r.Context(), name); err != nil {
		a.writeError(w, http.StatusConflict, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"current": name})
}

func (a *App) handleSwitchLocal(w http.ResponseWriter, r *http.Request) {
	if err := a.mgr.SwitchToLocal(r.Context()); err != nil {
		a.writeError(w, http.StatusConflict, err)
		return
	}
	a.writeCurrent(w)
}

func (a *App) handleSwitchRemote(w http.ResponseWriter, r *http.Request) {
	if err := a.mgr.SwitchToRemote(r.Context()); err != nil {
		a.writeError(w, http.StatusConflict, err)
		return
	}
	a.writeCurrent(w)
}

func (a *App) writeCurrent(w http.ResponseWriter) {
	name, _, err := a.mgr.Current()
	if err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"current": name})
}

func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := a.mgr.Sync(r.Context())
	if err != nil {
		a.writeError(w, http.StatusConflict, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}
