package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file.lua>",
	Short: "Submit a script and stream its output live",
	Long: `Submit a Lua script for execution and attach to its session: output
is printed as it is produced, and input() prompts are answered
interactively.

Examples:
  crucible run hello.lua
  crucible run guess.lua --server http://example.com:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

type submitResponse struct {
	Message   string `json:"message"`
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

type executionStatus struct {
	Status string `json:"status"`
}

// wsEvent is one server message, flattened for the event loop.
type wsEvent struct {
	kind  string // "output", "prompt", "error", "closed"
	value string
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	sub, err := submit(string(code))
	if err != nil {
		return err
	}
	fmt.Printf("Submitted %s (session %s)\n\n", sub.ID[:8], sub.SessionID[:8])

	wsURL := "ws" + strings.TrimPrefix(serverFlag, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to stream: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "set_session", "session_id": sub.SessionID}); err != nil {
		return fmt.Errorf("binding session: %w", err)
	}

	events := make(chan wsEvent, 16)
	go readStream(conn, events)

	rl, err := readline.New("")
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	return streamLoop(conn, rl, events, sub.ID)
}

func submit(code string) (*submitResponse, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(serverFlag+"/api/executions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("submitting code: %w", err)
	}
	defer resp.Body.Close()

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		if sub.Error != "" {
			return nil, fmt.Errorf("submission rejected: %s", sub.Error)
		}
		return nil, fmt.Errorf("submission failed with status %d", resp.StatusCode)
	}
	return &sub, nil
}

// readStream forwards server messages into the event loop.
func readStream(conn *websocket.Conn, events chan<- wsEvent) {
	defer close(events)
	for {
		var msg map[string]string
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if v, ok := msg["output"]; ok {
			events <- wsEvent{kind: "output", value: v}
		} else if v, ok := msg["prompt"]; ok {
			events <- wsEvent{kind: "prompt", value: v}
		} else if v, ok := msg["error"]; ok {
			events <- wsEvent{kind: "error", value: v}
		}
	}
}

// streamLoop prints output deltas, answers prompts, and exits once the
// record reaches a terminal status and the stream has drained.
func streamLoop(conn *websocket.Conn, rl *readline.Instance, events <-chan wsEvent, executionID string) error {
	promptTicker := time.NewTicker(time.Second)
	defer promptTicker.Stop()
	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	var gate promptGate

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("stream closed unexpectedly")
			}
			switch ev.kind {
			case "output":
				fmt.Print(ev.value)
				gate.noteOutput()
			case "prompt":
				if !gate.shouldAnswer(ev.value) {
					continue
				}
				// Output re-arms the gate, so a stale prompt can come
				// around again after the run's last print. Don't sit
				// in readline for an execution that already ended.
				if status, err := fetchStatus(executionID); err == nil && status != "pending" {
					continue
				}
				rl.SetPrompt(ev.value)
				line, err := rl.Readline()
				if err != nil { // interrupted; keep streaming
					continue
				}
				if err := conn.WriteJSON(map[string]string{"action": "user_input", "input": line}); err != nil {
					return fmt.Errorf("sending input: %w", err)
				}
				gate.noteAnswered(ev.value)
			case "error":
				fmt.Fprintf(os.Stderr, "server error: %s\n", ev.value)
			}

		case <-promptTicker.C:
			if err := conn.WriteJSON(map[string]string{"action": "get_prompt"}); err != nil {
				return fmt.Errorf("polling prompt: %w", err)
			}

		case <-statusTicker.C:
			status, err := fetchStatus(executionID)
			if err != nil {
				continue
			}
			if status != "pending" {
				// One last beat so the final delta arrives.
				drain(events, time.Second)
				fmt.Printf("\n--- execution %s\n", status)
				return nil
			}
		}
	}
}

// promptGate decides when a polled prompt needs answering. The prompt
// slot is never cleared server-side, so each prompt is answered once
// and re-armed by fresh output, the one signal that the code has moved
// past the previous input(). Identical back-to-back prompts with no
// output between them are indistinguishable from a stale slot and stay
// collapsed.
type promptGate struct {
	answered string
}

func (g *promptGate) shouldAnswer(prompt string) bool {
	return prompt != "" && prompt != g.answered
}

func (g *promptGate) noteAnswered(prompt string) {
	g.answered = prompt
}

func (g *promptGate) noteOutput() {
	g.answered = ""
}

func fetchStatus(executionID string) (string, error) {
	resp, err := http.Get(serverFlag + "/api/executions/" + executionID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var e executionStatus
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return "", err
	}
	return e.Status, nil
}

func drain(events <-chan wsEvent, window time.Duration) {
	deadline := time.After(window)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.kind == "output" {
				fmt.Print(ev.value)
			}
		case <-deadline:
			return
		}
	}
}
