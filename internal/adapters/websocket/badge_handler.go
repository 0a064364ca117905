package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/contextkeys"
	"gitlab.com/timkado/api/site-freshness-service/pkg/safego"
)

// BadgeHandler pushes unread counters to admin consoles and receives their
// route changes. Each connection gets a "ready" frame with the current
// counters, then an "unread_counts" frame whenever they change.
type BadgeHandler struct {
	logger         domain.Logger
	configProvider config.Provider
	aggregator     *application.UnreadAggregator
}

// NewBadgeHandler creates a BadgeHandler.
func NewBadgeHandler(logger domain.Logger, cfgProvider config.Provider, aggregator *application.UnreadAggregator) *BadgeHandler {
	return &BadgeHandler{
		logger:         logger,
		configProvider: cfgProvider,
		aggregator:     aggregator,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeHTTP upgrades the request and serves the connection until either side closes it.
func (h *BadgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"json.v1"},
	})
	if err != nil {
		h.logger.Error(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}
	metrics.IncrementActiveBadgeConnections()
	defer metrics.DecrementActiveBadgeConnections()

	connCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, stopWatch := h.aggregator.Watch()
	defer stopWatch()

	appCfg := h.configProvider.Get().App
	writeTimeout := time.Duration(appCfg.WriteTimeoutSeconds) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	write := func(msg domain.BaseMessage) error {
		ctx, cancelWrite := context.WithTimeout(connCtx, writeTimeout)
		defer cancelWrite()
		return wsjson.Write(ctx, c, msg)
	}

	first, ok := <-updates
	if !ok {
		c.Close(domain.StatusGoingAway, "server shutting down")
		return
	}
	if err := write(domain.NewReadyMessage(first)); err != nil {
		h.logger.Error(connCtx, "Failed to send 'ready' message to client", "error", err.Error())
		c.Close(websocket.StatusInternalError, "write failed")
		return
	}
	h.logger.Info(connCtx, "Badge connection established", "remote_addr", r.RemoteAddr)

	safego.Execute(connCtx, h.logger, "BadgePusher", func() {
		defer cancel()
		h.push(connCtx, c, updates, write, time.Duration(appCfg.WSPingIntervalSeconds)*time.Second)
	})

	status, reason := h.readLoop(connCtx, c, write)
	c.Close(status, reason)
}

// push forwards counter updates and keeps the connection alive with pings.
func (h *BadgeHandler) push(ctx context.Context, c *websocket.Conn, updates <-chan domain.UnreadCounts, write func(domain.BaseMessage) error, pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case counts, ok := <-updates:
			if !ok {
				c.Close(domain.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(domain.NewUnreadCountsMessage(counts)); err != nil {
				h.logger.Warn(ctx, "Failed to push unread counts", "error", err.Error())
				return
			}
		case <-tick:
			pingCtx, cancel := context.WithTimeout(ctx, pingInterval)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.Warn(ctx, "Ping failed, closing badge connection", "error", err.Error())
				c.Close(websocket.StatusPolicyViolation, "ping timeout")
				return
			}
		}
	}
}

// readLoop handles client frames until the connection ends and returns the
// close status to send.
func (h *BadgeHandler) readLoop(ctx context.Context, c *websocket.Conn, write func(domain.BaseMessage) error) (websocket.StatusCode, string) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			switch status := websocket.CloseStatus(err); {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				h.logger.Info(ctx, "Badge connection closed by peer", "status_code", status)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				h.logger.Debug(ctx, "Badge connection context canceled")
			default:
				h.logger.Warn(ctx, "Error reading from badge connection", "error", err.Error())
			}
			return websocket.StatusNormalClosure, "connection ended"
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.replyError(ctx, write, domain.NewErrorResponse(domain.ErrBadRequest, "Invalid message format", err.Error()))
			continue
		}

		switch msg.Type {
		case domain.MessageTypeNavigate:
			var nav domain.NavigatePayload
			if err := json.Unmarshal(msg.Payload, &nav); err != nil || nav.Path == "" {
				h.replyError(ctx, write, domain.NewErrorResponse(domain.ErrBadRequest, "Invalid navigate payload", "payload.path is required"))
				continue
			}
			routeCtx := context.WithValue(ctx, contextkeys.RouteKey, nav.Path)
			h.logger.Debug(routeCtx, "Admin console navigated")
			h.aggregator.HandleRoute(routeCtx, nav.Path)
		default:
			h.replyError(ctx, write, domain.NewErrorResponse(domain.ErrBadRequest, "Unhandled message type", "Type: "+msg.Type))
		}
	}
}

func (h *BadgeHandler) replyError(ctx context.Context, write func(domain.BaseMessage) error, errResp domain.ErrorResponse) {
	h.logger.Warn(ctx, "Rejected badge client message", "code", string(errResp.Code), "message", errResp.Message)
	if err := write(domain.NewErrorMessage(errResp)); err != nil {
		h.logger.Error(ctx, "Failed to send error message to client", "error", err.Error())
	}
}
