package handlers

import (
	"net/http"
	"strconv"
	"time"

	"cooling_control/internal/logger"
	"cooling_control/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
)

// Message types on the stream.
const (
	wsTypeState = "state"
	wsTypeEvent = "event"
)

type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// The stream is read-only, so any origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamOptions are the per-connection query parameters of /ws.
type streamOptions struct {
	interval    time.Duration
	changesOnly bool // skip state frames whose tick has not advanced
	events      bool
}

// wsSession is one subscriber. Only run writes to conn.
type wsSession struct {
	h        *Handler
	conn     *websocket.Conn
	opts     streamOptions
	log  *logger.Logger
	last frameKey
	sent bool
}

// frameKey is what a changes-only stream compares between frames. A stop
// publishes without ticking, so running and output count as changes too.
type frameKey struct {
	tick    uint64
	running bool
	output  float64
}

func (h *Handler) wsConnect(c *gin.Context) {
	opts := h.parseStreamOptions(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	s := &wsSession{h: h, conn: conn, opts: opts, log: h.log}
	s.run(c)
}

func (s *wsSession) run(c *gin.Context) {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.drain(done)

	// nil channel never fires
	var events <-chan models.ControlEvent
	if s.opts.events && s.h.hub != nil {
		var unsubscribe func()
		events, unsubscribe = s.h.hub.Subscribe()
		defer unsubscribe()
	}

	states := time.NewTicker(s.opts.interval)
	defer states.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	ctx := c.Request.Context()
	if err := s.pushState(c); err != nil {
		s.debug("ws_write_failed_initial", err)
		return
	}

	for {
		var err error
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			err = s.ping()
		case <-states.C:
			err = s.pushState(c)
		case e := <-events:
			err = s.send(wsEnvelope{Type: wsTypeEvent, Data: e})
		}
		if err != nil {
			s.debug("ws_write_failed", err)
			return
		}
	}
}

// pushState sends the current snapshot unless changesOnly is set and nothing
// in its frameKey moved since the last frame.
func (s *wsSession) pushState(c *gin.Context) error {
	st, err := s.h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		if s.log != nil {
			s.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	key := frameKey{tick: st.Tick, running: st.Running, output: st.OutputPct}
	if s.opts.changesOnly && s.sent && key == s.last {
		return nil
	}
	s.last, s.sent = key, true
	return s.send(wsEnvelope{Type: wsTypeState, Data: st})
}

func (s *wsSession) send(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

func (s *wsSession) ping() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// drain consumes client frames so control frames are handled and closure is seen.
func (s *wsSession) drain(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.debug("ws_read_closed", err)
			return
		}
	}
}

func (s *wsSession) debug(event string, err error) {
	if s.log != nil {
		s.log.Debugw(event, "err", err)
	}
}

// parseStreamOptions reads ?interval=2s or ?interval_ms=2000 (bounded),
// ?changes=true and ?events=false.
func (h *Handler) parseStreamOptions(c *gin.Context) streamOptions {
	opts := streamOptions{interval: h.parseInterval(c), events: true}
	if v, err := strconv.ParseBool(c.Query("changes")); err == nil {
		opts.changesOnly = v
	}
	if v, err := strconv.ParseBool(c.Query("events")); err == nil {
		opts.events = v
	}
	return opts
}

func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}
