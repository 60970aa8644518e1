// Package consoleweb exposes a single SP's serial console and a handful of
// JSON query/control endpoints over HTTP: an SSE stream for console output,
// a POST endpoint for console input, and JSON wrappers around the client
// package's inventory/power/update calls.
package consoleweb

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/spgw/client"
	"github.com/oxidecomputer/spgw/wire"
)

// catchupBufSize bounds how much recent console output a freshly connected
// SSE client is replayed on connect, so it sees the current screen instead
// of a blank terminal.
const catchupBufSize = 64 * 1024

// Server is the HTTP front end for one SP's gateway client.
type Server struct {
	addr      string
	client    *client.Client
	component wire.SpComponent
	log       *logrus.Entry

	router     *mux.Router
	httpServer *http.Server

	mu   sync.RWMutex
	send *client.AttachedSerialConsoleSend

	catchupMu  sync.RWMutex
	catchupBuf []byte

	subMu       sync.RWMutex
	subscribers []chan []byte
}

// New builds a Server that will relay component's console and serve bulk
// queries against c, listening on addr once Run is called.
func New(addr string, c *client.Client, component wire.SpComponent, log *logrus.Entry) *Server {
	s := &Server{
		addr:       addr,
		client:     c,
		component:  component,
		log:        log,
		router:     mux.NewRouter(),
		catchupBuf: make([]byte, 0, catchupBufSize),
	}
	s.setupRoutes()
	return s
}

// appendCatchup records data as the tail of the single SP's console output,
// trimming from the front once the buffer exceeds catchupBufSize.
func (s *Server) appendCatchup(data []byte) {
	s.catchupMu.Lock()
	defer s.catchupMu.Unlock()
	s.catchupBuf = append(s.catchupBuf, data...)
	if len(s.catchupBuf) > catchupBufSize {
		excess := len(s.catchupBuf) - catchupBufSize
		copy(s.catchupBuf, s.catchupBuf[excess:])
		s.catchupBuf = s.catchupBuf[:catchupBufSize]
	}
}

// catchupBytes returns a copy of the buffered console tail.
func (s *Server) catchupBytes() []byte {
	s.catchupMu.RLock()
	defer s.catchupMu.RUnlock()
	out := make([]byte, len(s.catchupBuf))
	copy(out, s.catchupBuf)
	return out
}

// resetCatchup clears the buffered console tail, used when a fresh console
// session attaches (the old screen state no longer applies).
func (s *Server) resetCatchup() {
	s.catchupMu.Lock()
	defer s.catchupMu.Unlock()
	s.catchupBuf = s.catchupBuf[:0]
}

// Handler returns the server's HTTP handler, useful for testing without
// binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/power", s.handleGetPower).Methods(http.MethodGet)
	api.HandleFunc("/power", s.handleSetPower).Methods(http.MethodPost)
	api.HandleFunc("/inventory", s.handleInventory).Methods(http.MethodGet)
	api.HandleFunc("/ignition/{target}", s.handleIgnitionState).Methods(http.MethodGet)
	api.HandleFunc("/update/{component}/status", s.handleUpdateStatus).Methods(http.MethodGet)
	api.HandleFunc("/update/{component}/abort", s.handleUpdateAbort).Methods(http.MethodPost)
	api.HandleFunc("/console/stream", s.handleConsoleStream).Methods(http.MethodGet)
	api.HandleFunc("/console/input", s.handleConsoleInput).Methods(http.MethodPost)
	api.HandleFunc("/console/break", s.handleConsoleBreak).Methods(http.MethodPost)
}

func loggingMiddleware(log *logrus.Entry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("http request")
			next.ServeHTTP(w, r)
		})
	}
}

// Run attaches the console, starts relaying it, and serves HTTP until ctx
// is canceled.
func (s *Server) Run(ctx context.Context) error {
	go s.consolePump(ctx)

	s.router.Use(loggingMiddleware(s.log))
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", s.addr).Info("starting console web server")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// consolePump keeps a console session attached to component, reconnecting
// with backoff if the attach fails or the session ends, and fans inbound
// bytes out to the screen buffer and any SSE subscribers.
func (s *Server) consolePump(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		send, recv, err := s.client.SerialConsoleAttach(ctx, s.component)
		if err != nil {
			s.log.WithError(err).Warn("console attach failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		s.mu.Lock()
		s.send = send
		s.mu.Unlock()
		s.resetCatchup()

		for {
			data, err := recv.Recv(ctx)
			if err != nil {
				s.log.WithError(err).Debug("console session ended")
				break
			}
			s.appendCatchup(data)
			s.broadcast(data)
		}

		s.mu.Lock()
		s.send = nil
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Server) currentSend() (*client.AttachedSerialConsoleSend, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.send, s.send != nil
}

func (s *Server) subscribe() chan []byte {
	ch := make(chan []byte, 64)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *Server) broadcast(data []byte) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- data:
		default:
			s.log.Warn("dropping console frame for slow SSE subscriber")
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, err.Error())
}
