// Command wsclient is a small WebSocket client for a running diffcore server.
// With a file argument it sends the file as a diff.parse request; without
// one it prints diff.updated broadcasts until interrupted.
//
// Usage: go run ./cmd/wsclient [-url ws://127.0.0.1:7171/ws] [diff-file]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	url := flag.String("url", "ws://127.0.0.1:7171/ws", "Server WebSocket URL")
	store := flag.Bool("store", false, "Ask the server to store the parsed diff")
	flag.Parse()

	fmt.Printf("Connecting to %s...\n", *url)

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read diff: %v\n", err)
			os.Exit(1)
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"diff":   string(data),
			"store":  *store,
			"source": flag.Arg(0),
		})
		req := message{Type: "diff.parse", ID: "wsclient-1", Payload: payload}
		if err := conn.WriteJSON(req); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to send: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("Connected! Waiting for diff.updated broadcasts...")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	messageCount := 0

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					fmt.Printf("Read error: %v\n", err)
				}
				return
			}

			messageCount++

			var msg message
			if err := json.Unmarshal(data, &msg); err != nil {
				fmt.Printf("[%d] Raw: %s\n", messageCount, string(data))
				continue
			}

			fmt.Printf("[%d] type=%s", messageCount, msg.Type)
			var payload map[string]interface{}
			if json.Unmarshal(msg.Payload, &payload) == nil {
				switch msg.Type {
				case "diff.parsed", "diff.updated":
					if changes, ok := payload["changes"].([]interface{}); ok {
						fmt.Printf(" changes=%d", len(changes))
					}
					if id, ok := payload["id"].(string); ok {
						fmt.Printf(" id=%s", id)
					}
				case "error":
					fmt.Printf(" code=%v message=%v", payload["code"], payload["message"])
				}
			}
			fmt.Println()

			if flag.NArg() > 0 && msg.ID == "wsclient-1" {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		fmt.Println("\nInterrupted, closing connection...")
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			fmt.Printf("Close error: %v\n", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	fmt.Printf("Received %d messages\n", messageCount)
}
