package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Agnish1611/Omniverse/internal/config"
	"github.com/Agnish1611/Omniverse/internal/space"
)

// Acceptor listens for WebSocket upgrade requests and runs one session per
// connection: the read pump feeds frames to the dispatcher, the write pump
// drains the session's outbound queue.
//
// Acceptor implements the server Service interface.
type Acceptor struct {
	cfg        config.WebSocketConfig
	settings   space.Settings
	dispatcher *space.Dispatcher
	registry   *space.Registry
	logger     *zap.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	running  bool
	wg       sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: dispatcher, registry, and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with Start.
func NewAcceptor(cfg config.WebSocketConfig, settings space.Settings, dispatcher *space.Dispatcher, registry *space.Registry, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:        cfg,
		settings:   settings,
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The protocol carries no credentials and rendering clients are
			// served from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*Conn]struct{}),
	}
}

// Start opens the TCP listener and serves upgrade requests until Stop is
// called. It blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Path, a.handleUpgrade)

	a.mu.Lock()
	a.listener = listener
	a.httpSrv = &http.Server{Handler: mux}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)

	if err := a.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving websocket endpoint: %w", err)
	}
	return nil
}

// Stop gracefully stops the acceptor: the listener closes, every live
// connection is torn down, and the per-connection close events flow through
// the dispatcher so departures are announced.
//
// Postcondition: No connections remain open.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	srv := a.httpSrv
	open := make([]*Conn, 0, len(a.conns))
	for c := range a.conns {
		open = append(open, c)
	}
	a.mu.Unlock()

	// Shutdown does not wait for hijacked connections, so close them here;
	// each read pump then reports closure through the dispatcher.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	for _, c := range open {
		c.Close()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped", zap.Int("connections_closed", len(open)))
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// ConnCount returns the number of live connections.
func (a *Acceptor) ConnCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

func (a *Acceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	wsConn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := newConn(wsConn, a.cfg)
	sess := space.NewSession(conn, a.registry, a.settings, a.logger)

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		conn.Close()
		return
	}
	a.conns[conn] = struct{}{}
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	a.logger.Info("client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("session_id", sess.ID),
	)

	go conn.writePump()
	a.readPump(conn, sess)
}

// readPump reads frames for the life of the connection. It runs on the
// upgrade handler's goroutine; exit means the transport reported closure.
func (a *Acceptor) readPump(conn *Conn, sess *space.Session) {
	start := time.Now()
	defer func() {
		conn.Close()
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
		// Destroy runs inside a dispatcher turn: user-left is broadcast and
		// membership released before any later frame is handled.
		a.dispatcher.DispatchClose(sess)
		a.logger.Info("client disconnected",
			zap.String("session_id", sess.ID),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	conn.ws.SetReadLimit(a.cfg.ReadLimit)
	if a.cfg.PongTimeout > 0 {
		_ = conn.ws.SetReadDeadline(time.Now().Add(a.cfg.PongTimeout))
		conn.ws.SetPongHandler(func(string) error {
			return conn.ws.SetReadDeadline(time.Now().Add(a.cfg.PongTimeout))
		})
	}

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		a.dispatcher.Dispatch(sess, data)
	}
}
