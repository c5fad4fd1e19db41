package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yoockh/yoospeak-interview/internal/events"
	"github.com/yoockh/yoospeak-interview/internal/interview"
	"github.com/yoockh/yoospeak-interview/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// WSHandler streams session events to the UI and accepts a few control messages.
type WSHandler struct {
	sessions SessionManager
	events   events.Subscriber
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions SessionManager, sub events.Subscriber) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		events:   sub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin once the UI host is fixed
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`

	// record_start/record_stop/repeat/snapshot -> no fields
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeEvent(interviewID, typ string, data any) error {
	b, err := json.Marshal(events.Event{Type: typ, InterviewID: interviewID, At: time.Now().UTC(), Data: data})
	if err != nil {
		return err
	}
	return w.writeText(b)
}

func (w *wsConn) writeErr(interviewID string, err error) error {
	return w.writeEvent(interviewID, events.TypeError, apiError(err))
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (h *WSHandler) InterviewWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	interviewID := c.Param("interview_id")
	if interviewID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.InterviewWS", "missing interview_id", nil))
		return
	}

	// authorize session ownership before upgrading
	ctl, err := h.sessions.Active(interviewID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	msgs, unsubscribe, err := h.events.Subscribe(ctx, interviewID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "WSHandler.InterviewWS", "event stream unavailable", err))
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	if err := wc.writeEvent(interviewID, events.TypeSnapshot, ctl.Snapshot()); err != nil {
		return
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeErr(interviewID, utils.E(utils.CodeInvalidArgument, "WSHandler.InterviewWS", "invalid json", err))
				continue
			}
			h.dispatch(ctx, wc, interviewID, userID, msg)
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case b, ok := <-msgs:
			if !ok {
				return
			}
			// forward as-is (payload is an encoded events.Event)
			if err := wc.writeText(b); err != nil {
				return
			}
		}
	}
}

// dispatch runs one client command against the live session. Results reach
// the client as published events; only failures are answered directly.
func (h *WSHandler) dispatch(ctx context.Context, wc *wsConn, interviewID, userID string, msg wsClientMsg) {
	ctl, err := h.sessions.Active(interviewID, userID)
	if err != nil {
		_ = wc.writeErr(interviewID, err)
		return
	}

	switch msg.Type {
	case "draft":
		err = ctl.SetDraft(msg.Text)
	case "record_start":
		err = ctl.StartRecording(ctx)
	case "record_stop":
		_, err = ctl.StopRecording(ctx)
	case "submit":
		var res *interview.SubmitResult
		res, err = ctl.SubmitAnswer(ctx, msg.Text)
		if err == nil && res.AnalysisError != nil {
			err = res.AnalysisError
		}
	case "repeat":
		err = ctl.Repeat(ctx)
	case "snapshot":
		err = wc.writeEvent(interviewID, events.TypeSnapshot, ctl.Snapshot())
	default:
		err = utils.E(utils.CodeInvalidArgument, "WSHandler.InterviewWS", "unknown message type", nil)
	}
	if err != nil {
		_ = wc.writeErr(interviewID, err)
	}
}
