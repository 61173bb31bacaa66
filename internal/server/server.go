package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franckalain/halalscan/internal/database"
	"github.com/franckalain/halalscan/internal/ecodes"
	"github.com/franckalain/halalscan/internal/ml"
	"github.com/gorilla/mux"
)

const (
	predictTimeout = 60 * time.Second
	maxImageBytes  = 10 << 20
	maxBodyBytes   = 1 << 20
)

type Server struct {
	db    database.DB
	model ml.Model
	table *ecodes.Table
	debug bool
}

func New(db database.DB, model ml.Model, table *ecodes.Table, debug bool) *Server {
	if debug {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Debug logging enabled")
	}
	if table == nil {
		table = ecodes.Default()
	}
	return &Server{
		db:    db,
		model: model,
		table: table,
		debug: debug,
	}
}

// Router wires the websocket, REST and static file handlers. An empty staticDir
// serves no static files.
func (s *Server) Router(staticDir string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/annotate", s.handleAnnotate).Methods(http.MethodPost)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodPost)
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/scans", s.handleListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans", s.handleSaveScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/{id}", s.handleGetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", s.handleDeleteScan).Methods(http.MethodDelete)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func (s *Server) Start(port, staticDir string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s\n", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"ecode_count": s.table.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
