package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Message types sent to bridge clients.
const (
	MessageResult = "result"
	MessageError  = "error"
	MessageMode   = "mode"
)

// ScanMessage is one message sent over the /scan websocket.
type ScanMessage struct {
	Type    string            `json:"type"`
	ScanID  string            `json:"scan_id,omitempty"`
	Outcome *pipeline.Outcome `json:"outcome,omitempty"`
	Mode    string            `json:"mode,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ScanControl is a text message from the client. Only "stop" is understood.
type ScanControl struct {
	Type string `json:"type"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// messageWriter serializes writes from the scan goroutine and the read loop.
type messageWriter struct {
	mu     sync.Mutex
	conn   WebSocketConnWriter
	scanID string
}

func (w *messageWriter) setScanID(id string) {
	w.mu.Lock()
	w.scanID = id
	w.mu.Unlock()
}

func (w *messageWriter) send(msg ScanMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg.ScanID == "" {
		msg.ScanID = w.scanID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	metrics.WebsocketMessage("sent")
	return nil
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.config.CORSOrigin == "*" || origin == s.config.CORSOrigin
		},
	}
}

// scanWebSocketHandler runs a camera bridge: binary messages are encoded
// camera frames, and results flow back as JSON while the scan runs.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case s.scanSlots <- struct{}{}:
		defer func() { <-s.scanSlots }()
	default:
		s.writeErrorResponse(w, "too many scan connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	metrics.WebsocketConnected()
	defer metrics.WebsocketDisconnected()

	logger := s.logger.With("remote_addr", r.RemoteAddr)
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	s.runScanSession(ctx, conn, logger)
}

// runScanSession owns one connection's decoder, feed and scan.
func (s *Server) runScanSession(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) {
	dec, err := pipeline.NewBuilder().WithConfig(s.config.Decoder).WithLogger(logger).Build()
	if err != nil {
		logger.Error("Failed to build decoder", "error", err)
		return
	}
	defer dec.Dispose()

	feed := source.NewFeed()
	defer feed.Close()

	out := &messageWriter{conn: conn}
	opts := s.config.Scan
	opts.OnResult = func(res pipeline.Result) {
		if err := out.send(ScanMessage{Type: MessageResult, Outcome: &pipeline.Outcome{Result: &res}}); err != nil {
			logger.Debug("Failed to send result", "error", err)
		}
	}
	opts.OnError = func(err error) {
		_ = out.send(ScanMessage{Type: MessageError, Error: err.Error()})
	}
	opts.OnModeChange = func(tr pipeline.Transition) {
		_ = out.send(ScanMessage{Type: MessageMode, Mode: tr.To.String()})
	}

	handle, err := dec.StartVideoScan(ctx, feed, opts)
	if err != nil {
		logger.Error("Failed to start scan", "error", err)
		_ = out.send(ScanMessage{Type: MessageError, Error: err.Error()})
		return
	}
	out.setScanID(handle.ID())
	logger = logger.With("scan_id", handle.ID())
	defer func() {
		feed.Close()
		handle.Stop()
		<-handle.Done()
		pushed, coalesced := feed.Stats()
		logger.Info("WebSocket scan ended", "frames", pushed, "coalesced", coalesced)
	}()

	go s.keepAlive(ctx, conn)
	s.readFrames(conn, feed, out, logger)
}

// readFrames pushes binary frames into feed until the client disconnects
// or sends a stop control message.
func (s *Server) readFrames(conn *websocket.Conn, feed *source.Feed, out *messageWriter, logger *slog.Logger) {
	conn.SetReadLimit(s.config.MaxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		metrics.WebsocketMessage("received")

		switch messageType {
		case websocket.BinaryMessage:
			metrics.UploadSize(int64(len(data)))
			if err := feed.PushEncoded(data); err != nil {
				_ = out.send(ScanMessage{Type: MessageError, Error: err.Error()})
			}
		case websocket.TextMessage:
			var ctl ScanControl
			if err := json.Unmarshal(data, &ctl); err != nil {
				_ = out.send(ScanMessage{Type: MessageError, Error: "invalid control message"})
				continue
			}
			if ctl.Type == "stop" {
				return
			}
		}
	}
}

// keepAlive pings the client until ctx ends.
func (s *Server) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
