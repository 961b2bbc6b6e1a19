package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	// gorilla/websocket provides the /ws endpoint: framing, ping/pong and
	// close handling.
	"github.com/gorilla/websocket"

	"github.com/pseudocoder/diffcore/internal/diff"
	"github.com/pseudocoder/diffcore/internal/storage"
)

// channelBufferSize is the buffer size for the broadcast channel and per-client
// send channels. If a buffer fills up, messages are dropped for that client.
const channelBufferSize = 256

// DefaultMaxBodyBytes caps POST /api/parse bodies and WebSocket frames when
// Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 16 * 1024 * 1024

// Store is the persistence the server needs. A nil Store disables
// ?store=1 and the /api/diffs endpoints.
type Store interface {
	storage.DiffStore
}

// Options configures a Server.
type Options struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:7171").
	Addr string

	// ParserOptions are applied to every parse.
	ParserOptions []diff.Option

	// RateLimit is the parse requests per second allowed per client host.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the limiter burst size. Defaults to 1.
	RateBurst int

	// MaxBodyBytes caps request bodies. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Debug logs every request.
	Debug bool
}

// Server serves the parse API over HTTP and WebSocket.
//
// HTTP requests are answered directly. Each WebSocket client gets a read
// goroutine that handles diff.parse requests and a write goroutine that
// drains its send channel. Broadcasts (diff.updated from a watcher) fan out
// through a single broadcaster goroutine so a slow client never blocks a
// publisher.
type Server struct {
	// opts is the configuration after New filled in defaults.
	opts Options

	// parser is shared by every request; Parser is safe for concurrent use.
	parser *diff.Parser

	// store persists diffs. Nil disables ?store=1 and /api/diffs.
	store Store

	// metrics is set when store also records parse outcomes.
	metrics storage.MetricsStore

	// limiter holds one token bucket per remote host.
	limiter *clientLimiter

	// upgrader converts HTTP connections to WebSocket connections.
	upgrader websocket.Upgrader

	// clients tracks all connected WebSocket clients.
	clients map[*Client]bool

	// mu protects clients, stopped and watching.
	mu sync.RWMutex

	// stopped prevents sending to a closed broadcast channel.
	stopped bool

	// watching is reported to clients in server.status.
	watching bool

	// broadcast receives messages to send to all clients.
	broadcast chan Message

	// broadcasterOnce keeps Handler and StartAsync from starting two
	// broadcaster goroutines.
	broadcasterOnce sync.Once

	// httpServer is the underlying HTTP server for graceful shutdown.
	httpServer *http.Server
}

// New creates a server. store may be nil. Nothing listens until StartAsync
// is called, or Handler is mounted on another server.
func New(opts Options, store Store) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}

	s := &Server{
		opts:      opts,
		parser:    diff.NewParser(opts.ParserOptions...),
		store:     store,
		limiter:   newClientLimiter(opts.RateLimit, opts.RateBurst),
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, channelBufferSize),
		upgrader: websocket.Upgrader{
			// The service binds to loopback by default; browsers on other
			// origins are allowed to use it.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	// SQLiteStore implements both interfaces; a store that only keeps diffs
	// simply gets no metrics.
	if m, ok := store.(storage.MetricsStore); ok {
		s.metrics = m
	}
	return s
}

// Handler returns the HTTP handler with all endpoints registered and starts
// the broadcaster if it is not running yet.
func (s *Server) Handler() http.Handler {
	s.startBroadcaster()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.HandleFunc("GET /api/diffs", s.handleListDiffs)
	mux.HandleFunc("GET /api/diffs/{id}", s.handleGetDiff)
	mux.HandleFunc("DELETE /api/diffs/{id}", s.handleDeleteDiff)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	if s.opts.Debug {
		return logRequests(mux)
	}
	return mux
}

// logRequests wraps next with one log line per request. Used when
// Options.Debug is set.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("server: %s %s from %s (%s)", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

func (s *Server) startBroadcaster() {
	s.broadcasterOnce.Do(func() {
		go s.runBroadcaster()
	})
}

// StartAsync starts the server in a goroutine and returns any startup errors.
// This is useful when the caller must know the port is bound before it
// starts a watcher or prints the address.
//
// The returned channel receives nil if startup succeeded, or an error if
// the listener could not be created (e.g., port already in use).
// After receiving from the channel, the server is either running or failed.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	// Create the listener first to detect port conflicts immediately.
	// net.Listen returns an error if the port is already in use.
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		errCh <- fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
		close(errCh)
		return errCh
	}

	// httpServer is read by Stop, possibly from another goroutine.
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	go func() {
		log.Printf("server: listening on %s", ln.Addr())
		// Signal successful startup
		errCh <- nil
		close(errCh)

		// Serve blocks until the server is stopped. ErrServerClosed is the
		// normal result of Stop.
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	return errCh
}

// Stop shuts the server down. It signals every client to send a close
// frame, closes the broadcast channel and closes the listener.
// Calling Stop more than once is safe; later calls return nil.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	// Set under the lock so Broadcast and handleWebSocket see it before
	// the channel closes or a new client registers.
	s.stopped = true

	// Each writePump sees done closed, writes a close frame and closes its
	// connection. The readPumps then fail their reads and exit.
	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)

	// Ends runBroadcaster's range loop.
	close(s.broadcast)
	httpServer := s.httpServer
	s.mu.Unlock()

	// Close rather than Shutdown: hijacked WebSocket connections are not
	// tracked by net/http, and the clients were told to go above.

	if httpServer != nil {
		return httpServer.Close()
	}
	return nil
}

// SetWatching records whether diff.updated broadcasts are being produced.
func (s *Server) SetWatching(watching bool) {
	s.mu.Lock()
	s.watching = watching
	s.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
// This method is non-blocking; messages are queued for delivery.
// If the server has been stopped, this method does nothing.
func (s *Server) Broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.broadcast <- msg:
	default:
		log.Printf("server: broadcast channel full, dropping %s message", msg.Type)
	}
}

// BroadcastChangeSet publishes the state of a watched diff file. Its signature
// matches watch.Config.OnChange.
func (s *Server) BroadcastChangeSet(cs *diff.ChangeSet, _ string) {
	s.Broadcast(NewDiffUpdatedMessage(cs))
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.opts.Addr
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// runBroadcaster reads from the broadcast channel and sends to all clients.
// It exits when Stop closes the channel.
func (s *Server) runBroadcaster() {
	for msg := range s.broadcast {
		// The read lock keeps clients stable while fanning out; sends never
		// block because of the default case.
		s.mu.RLock()
		for client := range s.clients {
			select {
			case <-client.done:
			case client.send <- msg:
			default:
				log.Printf("server: client send buffer full, dropping message")
			}
		}
		s.mu.RUnlock()
	}
}

// parse runs the parser and records the outcome when metrics are available.
func (s *Server) parse(source, raw string) (*diff.ChangeSet, error) {
	start := time.Now()
	cs, err := s.parser.Parse(raw)
	if s.metrics != nil {
		code := ""
		if err != nil {
			code = errorCode(err)
		}
		if merr := s.metrics.RecordParse(source, time.Since(start), code); merr != nil {
			log.Printf("server: record parse metrics: %v", merr)
		}
	}
	return cs, err
}

// parseAndStore parses raw and, if requested, persists the result.
func (s *Server) parseAndStore(source, raw string, store bool) (ParsedPayload, error) {
	if store && s.store == nil {
		return ParsedPayload{}, errStoreDisabled
	}

	cs, err := s.parse(source, raw)
	if err != nil {
		return ParsedPayload{}, err
	}

	id := ""
	if store {
		rec, err := s.store.SaveDiff(source, cs)
		if err != nil {
			return ParsedPayload{}, wrapStorageError(err)
		}
		id = rec.ID
	}
	return NewParsedPayload(id, cs), nil
}
