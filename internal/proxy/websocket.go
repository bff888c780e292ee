// Package proxy exposes the live browser's DevTools websocket to operators.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Target reports where the browser's DevTools endpoint is. An empty URL
// means no browser is running.
type Target interface {
	ControlURL() string
}

type Server struct {
	target      Target
	dialTimeout time.Duration
	logger      *zap.Logger
}

func NewServer(target Target, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		target:      target,
		dialTimeout: 10 * time.Second,
		logger:      logging.Component(logger, "devtools-proxy"),
	}
}

// HandleDebugConnection relays websocket frames between the client and the
// browser until either side closes.
func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request) {
	chromeURL := s.target.ControlURL()
	if chromeURL == "" {
		http.Error(w, "browser is not running", http.StatusServiceUnavailable)
		return
	}

	// Upgrade HTTP connection to WebSocket
	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer clientConn.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.dialTimeout)
	defer cancel()

	chromeConn, _, err := websocket.DefaultDialer.DialContext(ctx, chromeURL, nil)
	if err != nil {
		s.logger.Error("failed to connect to browser", zap.String("url", chromeURL), zap.Error(err))
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error connecting: %v", err)))
		return
	}
	defer chromeConn.Close()

	s.logger.Info("devtools client connected", zap.String("remote", r.RemoteAddr))

	// Bidirectional proxy
	errChan := make(chan error, 2)

	go func() {
		errChan <- s.proxyMessages(clientConn, chromeConn, "client→chrome")
	}()

	go func() {
		errChan <- s.proxyMessages(chromeConn, clientConn, "chrome→client")
	}()

	// Wait for either direction to close
	err = <-errChan
	if err != nil && !errors.Is(err, io.EOF) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Warn("devtools proxy error", zap.Error(err))
	}

	s.logger.Info("devtools client disconnected", zap.String("remote", r.RemoteAddr))
}

func (s *Server) proxyMessages(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read error", zap.String("direction", direction), zap.Error(err))
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			s.logger.Debug("websocket write error", zap.String("direction", direction), zap.Error(err))
			return err
		}
	}
}
