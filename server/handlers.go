package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/soocke/framerelay/domain/display"
	"github.com/soocke/framerelay/domain/relay"
)

// StatusPayload is the body of /stats and of each websocket message.
type StatusPayload struct {
	State      string      `json:"state"`
	RunID      string      `json:"run_id,omitempty"`
	DisplaySeq uint64      `json:"display_seq"`
	DropRate   float64     `json:"drop_rate"`
	Uptime     string      `json:"uptime"`
	Since      string      `json:"since"`
	Relay      relay.Stats `json:"relay"`
}

func (s *Server) payload() StatusPayload {
	p := StatusPayload{
		State:      "detached",
		DisplaySeq: s.buf.Seq(),
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
		Since:      humanize.Time(s.started),
	}
	if s.status != nil {
		p.State = s.status.State().String()
		p.RunID = s.status.RunID()
		p.Relay = s.status.Stats()
		p.DropRate = p.Relay.DropRate()
	}
	return p
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(s.payload()); err != nil && s.logger != nil {
		s.logger.Warn("stats encode", "error", err)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	b, v, err := s.latestJPEG()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNoFrame) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(v.Seq, 10))
	w.Write(b)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	wake := s.subscribe()
	defer s.unsubscribe(wake)
	if s.logger != nil {
		s.logger.Debug("mjpeg client connected", "remote", r.RemoteAddr)
	}

	var last display.Version
	send := func() bool {
		b, v, err := s.latestJPEG()
		if err != nil || v == last {
			return true
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(b))},
		})
		if err != nil {
			return false
		}
		if _, err := part.Write(b); err != nil {
			return false
		}
		flusher.Flush()
		last = v
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.quit:
			return
		case <-wake:
			if !send() {
				return
			}
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade", "error", err)
		}
		return
	}
	defer conn.Close()

	// Drain client messages so close frames are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()
	for {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(s.payload()); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && s.logger != nil {
				s.logger.Debug("websocket write", "error", err)
			}
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
		}
	}
}

const indexHTML = `<!doctype html>
<html><head><title>framerelay</title>
<style>body{background:#111;color:#ddd;font-family:monospace}img{max-width:100%}</style>
</head><body>
<img src="/stream.mjpg" alt="preview">
<pre id="stats"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => { document.getElementById("stats").textContent = JSON.stringify(JSON.parse(e.data), null, 2); };
</script>
</body></html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}
