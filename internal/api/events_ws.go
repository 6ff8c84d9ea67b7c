package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/progression-engine/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is a frame sent to progress stream subscribers
type StreamMessage struct {
	Type  string                `json:"type"`
	Event *models.ProgressEvent `json:"event,omitempty"`
	Data  string                `json:"data,omitempty"`
}

// handleEventsWS streams a candidate's progress events over a websocket
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	if s.events == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "event stream not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := s.events.Subscribe(ctx, candidateID)
	if err != nil {
		s.logger.Error("failed to subscribe to progress events", "candidate_id", candidateID, "error", err)
		ws := &wsWriter{conn: conn}
		ws.send(StreamMessage{Type: "error", Data: "failed to subscribe"})
		return
	}

	s.logger.Info("progress stream connected", "candidate_id", candidateID)
	ws := &wsWriter{conn: conn}
	if err := ws.send(StreamMessage{Type: "connected", Data: candidateID}); err != nil {
		return
	}

	var wg sync.WaitGroup

	// Read side only handles control frames and detects disconnects
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	// Events and keepalive pings -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-stream:
				if !ok {
					return
				}
				if err := ws.send(StreamMessage{Type: "event", Event: &ev}); err != nil {
					return
				}
			case <-ticker.C:
				if err := ws.ping(); err != nil {
					return
				}
			}
		}
	}()

	wg.Wait()
	s.logger.Info("progress stream disconnected", "candidate_id", candidateID)
}

// wsWriter serializes writes; gorilla allows one concurrent writer
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}
