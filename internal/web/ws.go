package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/observe"
)

// writeTimeout bounds a single state push. A client that cannot take a
// snapshot within it is disconnected.
const writeTimeout = 10 * time.Second

// Client event types.
const (
	msgTranscriptUpdated = "transcript_updated"
	msgSpeakingStarted   = "speaking_started"
	msgSpeakingEnded     = "speaking_ended"
	msgBeginRecording    = "begin_recording"
	msgEndRecording      = "end_recording"
)

// stateMessage is the only message the server sends.
type stateMessage struct {
	Type  string          `json:"type"`
	State interview.State `json:"state"`
}

// clientMessage is a capture event sent by the browser.
type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// handleWS upgrades the connection, pushes the current snapshot, and then
// pushes a fresh snapshot after every committed change until either side
// goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	log := observe.Logger(r.Context())
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		// Accept has already written the HTTP error response.
		log.Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.metrics.WSConnections.Add(ctx, 1)
	defer s.metrics.WSConnections.Add(context.WithoutCancel(ctx), -1)
	log.Debug("websocket connected", "session_id", s.session.ID())

	states, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	go func() {
		defer cancel()
		s.readEvents(ctx, conn)
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case st, ok := <-states:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, stateMessage{Type: "state", State: st})
			wcancel()
			if err != nil {
				log.Debug("websocket push failed", "err", err)
				return
			}
		}
	}
}

// readEvents applies client events until the connection fails or ctx ends.
func (s *Server) readEvents(ctx context.Context, conn *websocket.Conn) {
	log := observe.Logger(ctx)
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("websocket closed by client")
			default:
				if !errors.Is(err, context.Canceled) {
					log.Debug("websocket read failed", "err", err)
				}
			}
			return
		}
		s.applyEvent(ctx, msg)
	}
}

func (s *Server) applyEvent(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case msgTranscriptUpdated:
		s.session.SetTranscript(msg.Text)
	case msgSpeakingStarted:
		s.session.SetAISpeaking(true)
	case msgSpeakingEnded:
		s.session.SetAISpeaking(false)
	case msgBeginRecording:
		s.session.SetRecording(ctx, true)
	case msgEndRecording:
		s.session.SetRecording(ctx, false)
	default:
		observe.Logger(ctx).Debug("ignoring unknown websocket message", "type", msg.Type)
	}
}
