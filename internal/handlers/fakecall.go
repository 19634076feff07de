package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/adedejiosvaldo/safecall/backend/internal/auth"
	"github.com/adedejiosvaldo/safecall/backend/internal/fakecall"
)

const (
	writeWait      = 10 * time.Second
	maxActionBytes = 1024
)

// SessionSubscriber delivers sign-in and sign-out events.
type SessionSubscriber interface {
	Subscribe(l auth.Listener) func()
}

// Client actions on the fake-call socket.
const (
	actionAccept     = "accept"
	actionDecline    = "decline"
	actionEnd        = "end"
	actionReplay     = "replay"
	actionSpeechDone = "speech_done"
)

// FakeCallCommand is a server to client frame.
type FakeCallCommand struct {
	Type         string                    `json:"type"`
	Impact       fakecall.Intensity        `json:"impact,omitempty"`
	Notification fakecall.NotificationKind `json:"notification,omitempty"`
	Text         string                    `json:"text,omitempty"`
	Voice        *fakecall.VoiceOptions    `json:"voice,omitempty"`
	State        *fakecall.Snapshot        `json:"state,omitempty"`
	Message      string                    `json:"message,omitempty"`
}

// FakeCallAction is a client to server frame.
type FakeCallAction struct {
	Action string `json:"action"`
}

// FakeCallHandler runs one fake-call session per WebSocket. The phone renders
// the haptic and speech commands it receives and reports button presses back.
type FakeCallHandler struct {
	sessions SessionSubscriber
	clock    fakecall.Clock
	cfg      fakecall.Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewFakeCallHandler(sessions SessionSubscriber, clock fakecall.Clock, cfg fakecall.Config, logger *zap.Logger) *FakeCallHandler {
	return &FakeCallHandler{
		sessions: sessions,
		clock:    clock,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Native clients send no Origin; tokens guard the route.
				return true
			},
		},
		logger: named(logger, "fake_call"),
	}
}

// GET /v1/fake-call/ws
func (h *FakeCallHandler) Connect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	device := &remoteDevice{conn: conn, logger: h.logger}
	cfg := h.cfg
	cfg.OnChange = func(snap fakecall.Snapshot) {
		device.write(FakeCallCommand{Type: "state", State: &snap})
	}
	session := fakecall.NewSession(device, device, h.clock, cfg)
	snap := session.Snapshot()
	device.write(FakeCallCommand{Type: "state", State: &snap})

	unsubscribe := func() {}
	if h.sessions != nil {
		unsubscribe = h.sessions.Subscribe(func(event auth.SessionEvent) {
			if event.Type == auth.EventSignedOut && event.UserID == userID {
				session.Close()
				device.close()
			}
		})
	}

	h.logger.Info("fake call started", zap.String("user_id", userID.String()))
	h.readActions(conn, session, device, userID)

	unsubscribe()
	session.Close()
	device.close()
	h.logger.Info("fake call finished", zap.String("user_id", userID.String()))
}

func (h *FakeCallHandler) readActions(conn *websocket.Conn, session *fakecall.Session, device *remoteDevice, userID uuid.UUID) {
	conn.SetReadLimit(maxActionBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("fake call read failed", zap.String("user_id", userID.String()), zap.Error(err))
			}
			return
		}

		var action FakeCallAction
		if err := json.Unmarshal(data, &action); err != nil {
			device.write(FakeCallCommand{Type: "error", Message: "malformed action"})
			continue
		}

		if err := applyAction(session, device, action.Action); err != nil {
			device.write(FakeCallCommand{Type: "error", Message: err.Error()})
		}

		select {
		case <-session.Done():
			return
		default:
		}
	}
}

func applyAction(session *fakecall.Session, device *remoteDevice, action string) error {
	switch action {
	case actionAccept:
		return session.Accept()
	case actionDecline:
		return session.Decline()
	case actionEnd:
		return session.End()
	case actionReplay:
		return session.Replay()
	case actionSpeechDone:
		device.speechDone()
		return nil
	default:
		return errors.New("unknown action " + action)
	}
}

// remoteDevice implements fakecall.Haptics and fakecall.Speaker by sending
// commands to the connected phone. A failed write closes the socket, which
// ends the read loop and with it the call.
type remoteDevice struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	pending func()
}

func (d *remoteDevice) write(cmd FakeCallCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	err := d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err == nil {
		err = d.conn.WriteJSON(cmd)
	}
	if err != nil {
		d.logger.Debug("fake call write failed", zap.String("type", cmd.Type), zap.Error(err))
		d.closeLocked()
	}
}

func (d *remoteDevice) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *remoteDevice) closeLocked() {
	if d.closed {
		return
	}
	d.closed = true
	_ = d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := d.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"))
	if err != nil {
		d.logger.Debug("fake call close frame not sent", zap.Error(err))
	}
	if err := d.conn.Close(); err != nil {
		d.logger.Debug("fake call socket close failed", zap.Error(err))
	}
}

func (d *remoteDevice) Impact(intensity fakecall.Intensity) {
	d.write(FakeCallCommand{Type: "haptic", Impact: intensity})
}

func (d *remoteDevice) Notify(kind fakecall.NotificationKind) {
	d.write(FakeCallCommand{Type: "haptic", Notification: kind})
}

func (d *remoteDevice) Speak(text string, opts fakecall.VoiceOptions, done func()) {
	d.mu.Lock()
	prev := d.pending
	d.pending = done
	d.mu.Unlock()
	if prev != nil {
		prev()
	}
	d.write(FakeCallCommand{Type: "speak", Text: text, Voice: &opts})
}

func (d *remoteDevice) Stop() {
	d.write(FakeCallCommand{Type: "speech_stop"})
	d.speechDone()
}

// speechDone fires the completion callback of the current utterance once.
func (d *remoteDevice) speechDone() {
	d.mu.Lock()
	done := d.pending
	d.pending = nil
	d.mu.Unlock()
	if done != nil {
		done()
	}
}
