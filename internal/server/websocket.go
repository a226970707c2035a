package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// How often the streaming loop polls the output channel.
const streamInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // auth is handled upstream of this service
	},
}

// wsAction is a message from the viewer.
type wsAction struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

// Messages to the viewer. Each carries exactly one key so clients can
// switch on shape.
type wsOutput struct {
	Output string `json:"output"`
}

type wsPrompt struct {
	Prompt string `json:"prompt"`
}

type wsError struct {
	Error string `json:"error"`
}

// viewer is the per-connection state: which session the connection is
// bound to and the cancel handle for its streaming loop.
type viewer struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex // serializes websocket writes

	sessionID    string
	cancelStream context.CancelFunc
	streamDone   chan struct{}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	v := &viewer{server: s, conn: conn}
	defer v.unbind()

	// Read loop
	for {
		var msg wsAction
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("websocket read error: %v", err)
			return
		}

		switch msg.Action {
		case "set_session":
			v.bind(msg.SessionID)
		case "user_input":
			v.storeInput(msg.Input)
		case "get_prompt":
			v.sendPrompt()
		default:
			v.send(wsError{Error: fmt.Sprintf("Unknown action %q", msg.Action)})
		}
	}
}

// bind associates the connection with a session: any previous stream
// loop is cancelled, the delivery cursor restarts at zero, and a stale
// prompt from an earlier run is cleared.
func (v *viewer) bind(sessionID string) {
	if sessionID == "" {
		v.send(wsError{Error: "session_id is required"})
		return
	}

	v.unbind()
	v.sessionID = sessionID

	if err := v.server.channel.ClearPrompt(context.Background(), sessionID); err != nil {
		log.Printf("websocket: clearing prompt for %s: %v", sessionID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	v.cancelStream = cancel
	v.streamDone = make(chan struct{})
	go v.stream(ctx, sessionID, v.streamDone)
}

// unbind cancels the streaming loop, if any, and waits for it to exit
// so a delta computed against the old cursor cannot land after a new
// loop has replayed from zero.
func (v *viewer) unbind() {
	if v.cancelStream != nil {
		v.cancelStream()
		<-v.streamDone
		v.cancelStream = nil
		v.streamDone = nil
	}
	v.sessionID = ""
}

// stream periodically polls the session's output and forwards the
// suffix past the delivery cursor. It never exits on idle output; run
// completion is not observable here, so only cancellation ends it.
func (v *viewer) stream(ctx context.Context, sessionID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var cursor int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			full, err := v.server.channel.ReadOutput(ctx, sessionID)
			if err != nil {
				log.Printf("websocket: reading output for %s: %v", sessionID, err)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if len(full) > cursor {
				v.send(wsOutput{Output: full[cursor:]})
				cursor = len(full)
			}
		}
	}
}

func (v *viewer) storeInput(input string) {
	if v.sessionID == "" {
		v.send(wsError{Error: "Session not set"})
		return
	}
	if err := v.server.channel.SetInput(context.Background(), v.sessionID, input); err != nil {
		v.send(wsError{Error: "storing input: " + err.Error()})
	}
}

func (v *viewer) sendPrompt() {
	if v.sessionID == "" {
		v.send(wsError{Error: "Session not set"})
		return
	}
	prompt, err := v.server.channel.GetPrompt(context.Background(), v.sessionID)
	if err != nil {
		v.send(wsError{Error: "reading prompt: " + err.Error()})
		return
	}
	v.send(wsPrompt{Prompt: prompt})
}

func (v *viewer) send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
