package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatrelay/pkg/projector"
	"chatrelay/pkg/store"
	"chatrelay/pkg/utils"
)

// buildRouter sets up the socket endpoint, the read-only REST surface,
// and the operational probes.
func (a *App) buildRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", a.gw.HandleWS)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(a.requireToken)
	v1.HandleFunc("/users/{id}/chats", a.userChatsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id}/unread", a.userUnreadHandler).Methods(http.MethodGet)
	v1.HandleFunc("/presence/online", a.onlineHandler).Methods(http.MethodGet)

	return r
}

// requireToken gates the REST surface behind the same bearer tokens the
// socket handshake uses.
func (a *App) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if _, err := a.authn.Verify(r.Context(), token); err != nil {
			utils.JSONError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userChatsHandler serves the same chat summaries the socket pushes, for
// backend consumers and debugging.
func (a *App) userChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	summaries, err := projector.ForUser(userID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to build summaries")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user_id": userID, "summaries": summaries})
}

func (a *App) userUnreadHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	snap, err := a.reconciler.Snapshot(userID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to build snapshot")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, snap)
}

func (a *App) onlineHandler(w http.ResponseWriter, _ *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user_ids": a.reg.OnlineUserIDs()})
}

// readyzHandler reports readiness: the store must be open.
func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	if !store.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startHTTP builds the handler, starts the HTTP server in a goroutine
// and returns a channel that will carry any fatal server error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{Addr: a.eff.Addr, Handler: a.buildRouter()}

	errCh := make(chan error, 1)
	go func() {
		cert := a.eff.Config.Server.TLS.CertFile
		key := a.eff.Config.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}
