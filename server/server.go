// Package server exposes the latest processed frame and relay statistics
// over HTTP: a JPEG snapshot, an MJPEG stream and a stats websocket.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soocke/framerelay/domain/display"
	"github.com/soocke/framerelay/domain/pipeline"
	"github.com/soocke/framerelay/domain/relay"
)

// ErrNoFrame is returned when nothing has been published yet.
var ErrNoFrame = errors.New("server: no frame published")

// Status is the read side of a pipeline.
type Status interface {
	Stats() relay.Stats
	State() pipeline.State
	RunID() string
}

// Options tune the server. Zero values select defaults.
type Options struct {
	JPEGQuality   int
	CacheSize     int
	StatsInterval time.Duration
}

// Server serves the display buffer. It is also a display.Sink: every
// invalidation wakes the MJPEG streams.
type Server struct {
	buf    *display.Buffer
	status Status
	logger *slog.Logger
	opts   Options

	cache *lru.Cache[display.Version, []byte]

	encMu   sync.Mutex
	scratch *image.RGBA

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}

	upgrader websocket.Upgrader
	router   *mux.Router
	started  time.Time

	httpMu sync.Mutex
	http   *http.Server
	closed bool
	quit   chan struct{}
}

// New builds a server over buf. status may be nil.
func New(buf *display.Buffer, status Status, logger *slog.Logger, opts Options) *Server {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 8
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = time.Second
	}
	cache, err := lru.New[display.Version, []byte](opts.CacheSize)
	if err != nil {
		// Only possible for a non-positive size, excluded above.
		panic(err)
	}
	s := &Server{
		buf:     buf,
		status:  status,
		logger:  logger,
		opts:    opts,
		cache:   cache,
		subs:    map[chan struct{}]struct{}{},
		quit:    make(chan struct{}),
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/frame.jpg", s.handleFrame).Methods("GET")
	r.HandleFunc("/stream.mjpg", s.handleStream).Methods("GET")
	r.HandleFunc("/ws", s.handleWS).Methods("GET")
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Invalidate wakes every connected stream. It never blocks.
func (s *Server) Invalidate() {
	s.subMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.subMu.Unlock()
}

func (s *Server) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan struct{}) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

// Subscribers reports the number of open streams.
func (s *Server) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// latestJPEG returns the encoded front image and its version. Encodings
// are cached per version so concurrent viewers share one encode and a
// restarted run never reuses an earlier run's image.
func (s *Server) latestJPEG() ([]byte, display.Version, error) {
	v := s.buf.Version()
	if v.Seq == 0 {
		return nil, v, ErrNoFrame
	}
	if b, ok := s.cache.Get(v); ok {
		return b, v, nil
	}
	s.encMu.Lock()
	defer s.encMu.Unlock()
	img, snap := s.buf.SnapshotVersion(s.scratch)
	if img == nil {
		return nil, snap, ErrNoFrame
	}
	s.scratch = img
	if b, ok := s.cache.Get(snap); ok {
		return b, snap, nil
	}
	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(s.opts.JPEGQuality)); err != nil {
		return nil, snap, fmt.Errorf("server: encode: %w", err)
	}
	b := out.Bytes()
	s.cache.Add(snap, b)
	return b, snap, nil
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpMu.Lock()
	if s.closed {
		s.httpMu.Unlock()
		return nil
	}
	s.http = srv
	s.httpMu.Unlock()
	if s.logger != nil {
		s.logger.Info("http preview listening", "addr", addr)
	}
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops a server started by ListenAndServe. A later
// ListenAndServe returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpMu.Lock()
	if !s.closed {
		s.closed = true
		// Streams and websockets exit on quit.
		close(s.quit)
	}
	srv := s.http
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
