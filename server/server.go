package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"tdgrid/reinforcement"
	"tdgrid/server/cell_views"
	"tdgrid/server/fastview"
	"tdgrid/server/root_view"

	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownGracePeriod = 5 * time.Second

// Checkpoint is a point of the convergence history plotted on the heatmap page.
type Checkpoint struct {
	Pass      int
	Iteration int
	MaxError  float64
}

// Server serves the live views of a single evaluation run. All websocket clients share
// the root view's update channel, so each update reaches only one of them; this serves
// a single developer's browser tab.
type Server struct {
	addr     string
	rootView *root_view.RootView
	router   *mux.Router

	mu      sync.RWMutex
	latest  reinforcement.Snapshot
	history []Checkpoint
}

// NewServer builds the views and routes, and starts recording snapshots. Snapshots are
// forwarded to the views only when they are ready for them; the rest are dropped, as
// every snapshot supersedes its predecessors.
func NewServer(
	ctx context.Context,
	addr string,
	initial reinforcement.Snapshot,
	snapshots <-chan reinforcement.Snapshot,
) (*Server, error) {
	viewSnapshots := make(chan reinforcement.Snapshot)
	rootView, err := root_view.NewRootView(ctx, viewSnapshots)
	if err != nil {
		return nil, err
	}

	server := &Server{
		addr:     addr,
		rootView: rootView,
		latest:   initial,
	}
	server.router = server.routes()

	go func() {
		defer close(viewSnapshots)
		for snap := range channerics.OrDone(ctx.Done(), snapshots) {
			server.record(snap)
			select {
			case viewSnapshots <- snap:
			default:
			}
		}
	}()

	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/heatmap", server.serveHeatmap).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

func (server *Server) record(snap reinforcement.Snapshot) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.latest = snap
	server.history = append(server.history, Checkpoint{
		Pass:      snap.Pass,
		Iteration: snap.Iteration,
		MaxError:  snap.MaxError,
	})
}

// Latest returns the most recently recorded snapshot and the convergence history.
func (server *Server) Latest() (reinforcement.Snapshot, []Checkpoint) {
	server.mu.RLock()
	defer server.mu.RUnlock()
	return server.latest, append([]Checkpoint(nil), server.history...)
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Println("shutdown:", err)
		}
	}()

	log.Printf("serving on http://%s", server.addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	client, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		log.Println(err)
		return
	}

	if err := client.Sync(); err != nil {
		log.Println("websocket:", err)
	}
}

// serveIndex serves the main page, rendered from the latest snapshot.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	snap, _ := server.Latest()
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, cell_views.Convert(snap)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (server *Server) serveHeatmap(w http.ResponseWriter, r *http.Request) {
	snap, history := server.Latest()
	w.Header().Set("Content-Type", "text/html")
	if err := renderHeatmap(w, snap, history); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
