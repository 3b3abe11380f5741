package web

import (
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"treno/internal/gesture"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// gestureMsg is one card interaction forwarded by the page script.
type gestureMsg struct {
	Type      string  `json:"type"`
	Index     int     `json:"index"`
	Source    string  `json:"source"`
	PointerID int     `json:"pointerId"`
	Device    string  `json:"device"`
	Button    int     `json:"button"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	HasPos    bool    `json:"hasPos"`
	// T is the event time in epoch milliseconds; 0 means "now".
	T float64 `json:"t"`
}

type gestureReply struct {
	Type     string  `json:"type"`
	Index    int     `json:"index"`
	Accepted bool    `json:"accepted,omitempty"`
	Capture  bool    `json:"capture,omitempty"`
	Release  bool    `json:"releaseCapture,omitempty"`
	Offset   float64 `json:"offset"`
	Outcome  string  `json:"outcome,omitempty"`
	Navigate string  `json:"navigate,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	},
}

func (s *Server) handleGestureWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	log := s.log.With("conn", id)
	log.Debug("gesture socket open")
	defer log.Debug("gesture socket closed")

	sess := s.session()
	// A page going away mid-drag must not leave a card stuck open or dragging.
	defer sess.ResetGestures()

	active := -1
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m gestureMsg
		if err := json.Unmarshal(data, &m); err != nil {
			log.Debug("bad gesture message", "err", err)
			continue
		}
		ev := m.event()

		var reply gestureReply
		switch m.Type {
		case "down":
			d := sess.PointerDown(m.Index, ev)
			if d.Accepted {
				active = m.Index
			}
			reply = gestureReply{Type: "down", Index: m.Index, Accepted: d.Accepted, Capture: d.Capture, Offset: sess.Offset(m.Index)}
		case "move":
			off, ok := sess.PointerMove(ev)
			if !ok {
				continue
			}
			reply = gestureReply{Type: "offset", Index: active, Offset: off}
		case "cancel":
			e := sess.PointerCancel(ev)
			if !e.Ended || active < 0 {
				continue
			}
			reply = gestureReply{Type: "offset", Index: active, Release: e.ReleaseCapture, Offset: sess.Offset(active)}
			active = -1
		case "up":
			out := sess.Release(m.Index, ev)
			reply = gestureReply{Type: "release", Index: m.Index, Outcome: out.String(), Offset: sess.Offset(m.Index)}
			if out == gesture.OutcomeEdit {
				reply.Navigate = "/"
			}
			active = -1
		default:
			log.Debug("unknown gesture message", "type", m.Type)
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (m gestureMsg) event() gesture.Event {
	ev := gesture.Event{
		PointerID: m.PointerID,
		Device:    gesture.Device(m.Device),
		Button:    m.Button,
		X:         m.X,
		Y:         m.Y,
		HasPos:    m.HasPos,
	}
	switch m.Source {
	case "touch":
		ev.Source = gesture.SourceTouch
	case "mouse":
		ev.Source = gesture.SourceMouse
	default:
		ev.Source = gesture.SourcePointer
	}
	if m.T > 0 {
		sec, frac := math.Modf(m.T / 1000)
		ev.Time = time.Unix(int64(sec), int64(frac*1e9))
	}
	return ev
}
