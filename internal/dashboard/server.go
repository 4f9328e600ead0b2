package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"PairScanner/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configures a Server.
type Options struct {
	SnapshotPath string
	StaleAfter   time.Duration
	Log          logrus.FieldLogger
	Metrics      *metrics.Metrics
}

// Server exposes the snapshot document over HTTP and websocket.
type Server struct {
	opts Options
	hub  *Hub
	now  func() time.Time

	mu      sync.RWMutex
	doc     Document
	modTime time.Time
	size    int64
}

// NewServer creates a Server and loads the current snapshot.
func NewServer(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	s := &Server{
		opts: opts,
		hub:  NewHub(opts.Log, opts.Metrics),
		now:  time.Now,
	}
	s.Reload()
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Document returns the currently loaded document.
func (s *Server) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Reload re-reads the snapshot file when its size or modification time
// changed, and reports whether the document was replaced.
func (s *Server) Reload() bool {
	var mod time.Time
	var size int64 = -1
	if info, err := os.Stat(s.opts.SnapshotPath); err == nil {
		mod, size = info.ModTime(), info.Size()
	}

	s.mu.RLock()
	unchanged := mod.Equal(s.modTime) && size == s.size && (s.doc.Available || s.doc.Error != "")
	s.mu.RUnlock()
	if unchanged {
		return false
	}

	doc := LoadDocument(s.opts.SnapshotPath)
	s.mu.Lock()
	s.doc, s.modTime, s.size = doc, mod, size
	s.mu.Unlock()

	s.opts.Metrics.SnapshotReloads.Inc()
	log := s.opts.Log.WithFields(logrus.Fields{"available": doc.Available, "rows": len(doc.Records)})
	if doc.Error != "" {
		log = log.WithField("reason", doc.Error)
	}
	log.Info("snapshot loaded")
	return true
}

// Watch polls the snapshot file every interval and pushes changes to
// websocket clients. Blocks until ctx is cancelled.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.hub.Close()
			return
		case <-ticker.C:
			if !s.Reload() {
				continue
			}
			msg, err := json.Marshal(s.documentResponse(s.Document()))
			if err != nil {
				s.opts.Log.WithError(err).Error("encode snapshot push")
				continue
			}
			s.hub.Broadcast(msg)
		}
	}
}

// Router configures all HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.HealthCheck).Methods("GET")
	r.Handle("/metrics", s.opts.Metrics.Handler()).Methods("GET")
	r.HandleFunc("/ws", s.ServeWS).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/snapshot", s.GetSnapshot).Methods("GET")
	api.HandleFunc("/pairs", s.GetPairs).Methods("GET")
	api.HandleFunc("/failed", s.GetFailed).Methods("GET")
	api.HandleFunc("/columns", s.GetColumns).Methods("GET")
	return r
}

type documentView struct {
	Available    bool      `json:"available"`
	Stale        bool      `json:"stale"`
	Error        string    `json:"error,omitempty"`
	LastUpdate   time.Time `json:"last_update"`
	TotalPairs   int       `json:"total_pairs"`
	ScannedPairs int       `json:"scanned_pairs"`
	Failed       []string  `json:"failed"`
	Columns      []string  `json:"columns"`
	Rows         []Record  `json:"rows"`
}

func (s *Server) documentResponse(doc Document) documentView {
	v := documentView{
		Available:    doc.Available,
		Stale:        doc.Stale(s.now(), s.opts.StaleAfter),
		Error:        doc.Error,
		LastUpdate:   doc.LastUpdate,
		TotalPairs:   doc.TotalPairs,
		ScannedPairs: doc.ScannedPairs,
		Failed:       doc.Failed,
		Columns:      doc.Columns,
		Rows:         doc.Records,
	}
	if v.Failed == nil {
		v.Failed = []string{}
	}
	if v.Columns == nil {
		v.Columns = []string{}
	}
	if v.Rows == nil {
		v.Rows = []Record{}
	}
	return v
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	doc := s.Document()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"snapshot_available": doc.Available,
		"stale":              doc.Stale(s.now(), s.opts.StaleAfter),
		"ws_clients":         s.hub.ClientCount(),
	})
}

// GetSnapshot handles GET /api/v1/snapshot
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.documentResponse(s.Document()))
}

// GetPairs handles GET /api/v1/pairs?filter=col:mode:v[:v]&sort=col&desc=true&limit=N
func (s *Server) GetPairs(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc := s.Document()
	res := Evaluate(doc, q)
	respondJSON(w, http.StatusOK, map[string]any{
		"available":       doc.Available,
		"stale":           doc.Stale(s.now(), s.opts.StaleAfter),
		"last_update":     doc.LastUpdate,
		"rows":            res.Rows,
		"matched":         res.Matched,
		"missing_columns": res.MissingColumns,
	})
}

// GetFailed handles GET /api/v1/failed
func (s *Server) GetFailed(w http.ResponseWriter, r *http.Request) {
	doc := s.Document()
	failed := doc.Failed
	if failed == nil {
		failed = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"failed": failed, "count": len(failed)})
}

// GetColumns handles GET /api/v1/columns
func (s *Server) GetColumns(w http.ResponseWriter, r *http.Request) {
	cols := s.Document().Columns
	if cols == nil {
		cols = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"columns": cols})
}

// ServeWS handles GET /ws. The current document is sent on connect and
// again whenever the snapshot file changes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Log.WithError(err).Warn("ws upgrade")
		return
	}
	initial, err := json.Marshal(s.documentResponse(s.Document()))
	if err != nil {
		initial = nil
	}
	s.hub.Register(conn, initial)
}

func parseQuery(r *http.Request) (Query, error) {
	values := r.URL.Query()
	q := Query{SortBy: values.Get("sort")}
	for _, raw := range values["filter"] {
		f, err := ParseFilter(raw)
		if err != nil {
			return Query{}, err
		}
		q.Filters = append(q.Filters, f)
	}
	if v := values.Get("desc"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Query{}, err
		}
		q.Descending = b
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = n
	}
	return q, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
