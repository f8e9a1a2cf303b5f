package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pixil98/go-log"
)

const (
	DefaultPath     = "/ws"
	shutdownTimeout = 5 * time.Second
)

type WebsocketListenerOpt func(*WebsocketListener)

// WithPath sets the websocket upgrade path.
func WithPath(path string) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		if path != "" {
			l.path = path
		}
	}
}

// WithStats serves /healthz from s.
func WithStats(s Stats) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.stats = s
	}
}

// WithVoice configures /api/voice-token.
func WithVoice(v VoiceConfig) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.voice = v
	}
}

// WithAllowedOrigins limits which browser origins may open a socket. An
// empty list accepts any origin.
func WithAllowedOrigins(origins ...string) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.origins = origins
	}
}

// WithReady delays listening until ready is closed.
func WithReady(ready <-chan struct{}) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.waitFor = ready
	}
}

type WebsocketListener struct {
	addr    string
	path    string
	origins []string
	stats   Stats
	voice   VoiceConfig
	cm      *ConnectionManager
	waitFor <-chan struct{}

	mu       sync.Mutex
	boundTo  net.Addr
	ready    chan struct{}
	upgrader websocket.Upgrader
}

func NewWebsocketListener(addr string, cm *ConnectionManager, opts ...WebsocketListenerOpt) *WebsocketListener {
	l := &WebsocketListener{
		addr:  addr,
		path:  DefaultPath,
		cm:    cm,
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     l.checkOrigin,
	}
	return l
}

// Addr returns the bound address once the listener is ready.
func (l *WebsocketListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.boundTo
}

// Ready is closed once the listener accepts connections.
func (l *WebsocketListener) Ready() <-chan struct{} {
	return l.ready
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	logger := log.GetLogger(ctx)

	if l.waitFor != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-l.waitFor:
		}
	}

	// Sessions share one context so shutdown ends them together.
	connCtx, cancelConns := context.WithCancel(log.SetLogger(context.Background(), logger))
	defer cancelConns()

	var wg sync.WaitGroup
	mux := l.Handler(connCtx, &wg)

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("address %s is already in use (another server running?)", l.addr)
		}
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}

	l.mu.Lock()
	l.boundTo = ln.Addr()
	l.mu.Unlock()
	close(l.ready)

	svr := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return connCtx },
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = svr.Shutdown(shutdownCtx)
			cancelConns()
		case <-done:
		}
	}()

	logger.WithField("addr", ln.Addr().String()).WithField("path", l.path).Info("websocket listener started")

	err = svr.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket on %s: %w", l.addr, err)
	}

	cancelConns()
	wg.Wait()
	return nil
}

// Handler builds the HTTP routes. Websocket sessions run under sessCtx and
// are tracked in wg.
func (l *WebsocketListener) Handler(sessCtx context.Context, wg *sync.WaitGroup) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, func(w http.ResponseWriter, r *http.Request) {
		l.serveWS(sessCtx, wg, w, r)
	})
	if l.stats != nil {
		mux.HandleFunc("/healthz", healthHandler(l.stats))
	}
	mux.HandleFunc("/api/voice-token", voiceTokenHandler(l.voice))
	return mux
}

func (l *WebsocketListener) serveWS(ctx context.Context, wg *sync.WaitGroup, w http.ResponseWriter, r *http.Request) {
	wg.Add(1)
	defer wg.Done()

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.GetLogger(ctx).WithError(err).Debug("websocket upgrade")
		return
	}

	conn := newWSConn(ws)
	defer func() {
		if err := conn.Close(); err != nil {
			log.GetLogger(ctx).WithError(err).Debug("closing websocket")
		}
	}()

	// Closing the socket unblocks the session's reader once ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.GetLogger(ctx).WithField("remote", r.RemoteAddr).Debug("websocket connected")
	l.cm.AcceptConnection(ctx, conn)
}

func (l *WebsocketListener) checkOrigin(r *http.Request) bool {
	if len(l.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range l.origins {
		if o == origin {
			return true
		}
	}
	return false
}
