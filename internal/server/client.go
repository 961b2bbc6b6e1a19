package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/pseudocoder/diffcore/internal/errors"
)

// Client represents a single WebSocket connection.
// Each client has its own goroutine for writing messages,
// which prevents slow clients from blocking the broadcast.
type Client struct {
	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// send is a buffered channel for outgoing messages.
	send chan Message

	// done is closed to signal the client should shut down.
	done chan struct{}

	// doneOnce guards close(done); Stop and readPump both call closeSend.
	doneOnce sync.Once

	// server is the owning server, used to unregister on disconnect and
	// to reach the parser, store and limiter.
	server *Server

	// host keys the rate limiter shared with the HTTP API.
	host string
}

// closeSend signals the client to shut down exactly once.
// Only done is closed; senders check it before sending.
func (c *Client) closeSend() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// handleWebSocket upgrades the connection and starts the client pumps.
// The first message a client receives is server.status.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan Message, channelBufferSize),
		done:   make(chan struct{}),
		server: s,
		host:   remoteHost(r),
	}

	// Register under the lock; a client arriving during Stop is closed
	// instead of being added after the client map was cleared.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[client] = true
	watching := s.watching
	s.mu.Unlock()

	log.Printf("server: client connected (%d total)", s.ClientCount())

	// The send buffer is empty here, so this cannot block.
	client.send <- NewServerStatusMessage(watching, s.store != nil)

	go client.writePump()
	go client.readPump()
}

// writePump sends queued messages to the WebSocket and pings every 30s.
// It is the only goroutine that writes to conn, as gorilla/websocket
// allows one concurrent writer. It owns closing the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Tell the peer we are going away, then let the deferred Close
			// tear down the socket.
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("server: failed to marshal %s message: %v", msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("server: write error: %v", err)
				return
			}

		case <-ticker.C:
			// Send a ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client requests until the connection closes. Requests are
// handled inline, so one client's parses run one at a time and in order.
func (c *Client) readPump() {
	defer func() {
		// Unregister the client when this goroutine exits
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()

		// Stop() may have already closed done during shutdown.
		// This signals writePump to exit, which will close the connection.
		c.closeSend()

		log.Printf("server: client disconnected (%d remaining)", c.server.ClientCount())
	}()

	c.conn.SetReadLimit(c.server.opts.MaxBodyBytes + 4096) // room for the JSON envelope
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	// Set up pong handler to reset the read deadline.
	// A pong answers writePump's ping, so the client is alive.
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		// ReadMessage blocks until a message arrives or an error occurs.
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: read error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg struct {
			Type    MessageType     `json:"type"`
			ID      string          `json:"id,omitempty"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(NewErrorMessage("", apperrors.CodeServerInvalidMessage, "message is not valid JSON"))
			continue
		}

		switch msg.Type {
		case MessageTypeDiffParse:
			c.handleParse(msg.ID, msg.Payload)
		default:
			c.reply(NewErrorMessage(msg.ID, apperrors.CodeServerInvalidMessage, "unknown message type: "+string(msg.Type)))
		}
	}
}

// handleParse answers a diff.parse request with diff.parsed or error.
func (c *Client) handleParse(requestID string, raw json.RawMessage) {
	if !c.server.limiter.Allow(c.host) {
		c.reply(newErrorMessageFromError(requestID, apperrors.RateLimited()))
		return
	}

	var req ParseRequestPayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(NewErrorMessage(requestID, apperrors.CodeServerInvalidMessage, "invalid diff.parse payload"))
		return
	}
	if req.Source == "" {
		req.Source = "ws"
	}

	payload, err := c.server.parseAndStore(req.Source, req.Diff, req.Store)
	if err != nil {
		c.reply(newErrorMessageFromError(requestID, err))
		return
	}
	c.reply(NewParsedMessage(requestID, payload))
}

// reply queues a message for this client only, dropping it if the client
// is gone or its buffer is full.
func (c *Client) reply(msg Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.Printf("server: client send buffer full, dropping %s message", msg.Type)
	}
}
