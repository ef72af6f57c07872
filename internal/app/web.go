package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/bridge"
	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/store"
)

const defaultDataLogRecords = 60

// webServer serves the configuration page and the live status API.
type webServer struct {
	hub   *Hub
	store store.Store
	// relay forwards the configuration page result to the companion.
	relay    func(response string) error
	upgrader websocket.Upgrader
}

func (s *webServer) routes(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/datalog", s.handleDataLog)
	mux.HandleFunc("/close", s.handleClose)
	mux.HandleFunc("/ws/status", s.handleStatusSocket)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

func (s *webServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.Snapshot()
	if !snap.HaveCompanion && !snap.HaveWorker {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (s *webServer) handleDataLog(w http.ResponseWriter, r *http.Request) {
	n := defaultDataLogRecords
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	records, err := s.store.Records(r.Context(), n)
	if err != nil {
		log.WithError(err).Error("web: read data log")
		http.Error(w, "data log unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

// handleClose receives the configuration page result the same way the
// phone host does when its web view closes.
func (s *webServer) handleClose(w http.ResponseWriter, r *http.Request) {
	// Query().Get has already decoded the value once; the companion
	// expects it still encoded, as the page hands it to the host.
	response := url.PathEscape(r.URL.Query().Get("response"))
	// reject what the companion would reject anyway
	if _, err := bridge.DecodeConfigResponse(response); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.relay(response); err != nil {
		log.WithError(err).Error("web: relay configuration")
		http.Error(w, "companion unreachable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "settings sent")
}

func (s *webServer) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("web: websocket upgrade")
		return
	}
	defer conn.Close()

	updates, cancel := s.hub.Subscribe()
	defer cancel()

	// the reader only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.hub.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case snap := <-updates:
			if err := conn.WriteJSON(snap); err != nil {
				log.WithError(err).Debug("web: websocket write")
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// ownsDataLog reports whether the web process keeps its own copy of the data
// log. A redis store is shared with the companion, which already fills it.
func ownsDataLog(cfg *config.Config) bool {
	return cfg.Store != "redis"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("web: json encode")
	}
}

// RunWeb serves the configuration page and status API until ctx ends.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := NewHub()
	if err := feedHub(client, hub, cfg.TopicCompanionState, cfg.TopicWorkerStatus); err != nil {
		return err
	}
	if ownsDataLog(cfg) {
		if err := subscribe(client, cfg.TopicDataLog, storeDataLog(ctx, st)); err != nil {
			return err
		}
	}

	s := &webServer{
		hub:   hub,
		store: st,
		relay: func(response string) error {
			return publishJSON(client, cfg.TopicHostEvents, false, bridge.Event{
				Type:     bridge.EventWebviewClosed,
				Response: response,
			})
		},
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           s.routes(cfg.WebStaticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("web server stopped")
	return nil
}
