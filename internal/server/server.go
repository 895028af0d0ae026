// Package server exposes the REST control surface and the websocket duplex
// channel that agents play through.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/pokerforagents/internal/hub"
	"github.com/lox/pokerforagents/internal/manager"
	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/internal/session"
	"github.com/lox/pokerforagents/internal/store"
)

// Server wires the HTTP surface to the table manager.
type Server struct {
	cfg      *Config
	store    store.Store
	sessions *session.Registry
	manager  *manager.Manager
	upgrader websocket.Upgrader
	logger   *log.Logger
}

func New(cfg *Config, st store.Store, sessions *session.Registry, mgr *manager.Manager, logger *log.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		manager:  mgr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("server"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/agents", s.handleRegisterAgent)
	mux.HandleFunc("GET /v1/tables", s.handleListTables)
	mux.HandleFunc("POST /v1/tables", s.handleCreateTable)
	mux.HandleFunc("POST /v1/tables/{id}/join", s.handleJoinTable)
	mux.HandleFunc("POST /v1/tables/{id}/leave", s.handleLeaveTable)
	mux.HandleFunc("POST /v1/tables/{id}/end", s.handleEndTable)
	mux.HandleFunc("GET /v1/tables/{id}/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/tables/{id}/ws", s.handleWebSocket)
	mux.HandleFunc("GET /skill.md", s.handleSkill)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

// Run serves until the context is cancelled, then drains with a short
// shutdown deadline.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleWebSocket upgrades the duplex channel. Seated agents authenticate
// with their session token; observers with their api_key and get the public
// view.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tableID := r.PathValue("id")

	var sess *session.Session
	if token := r.URL.Query().Get("session"); token != "" {
		found, perr := s.lookupSession(token, tableID)
		if perr != nil {
			writeError(w, perr)
			return
		}
		sess = found
	} else {
		if _, perr := s.authenticate(r); perr != nil {
			writeError(w, perr)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "err", err)
		return
	}

	conn := newConnection(ws, s, tableID, sess)
	policy := hub.PolicyObserver
	if sess != nil {
		policy = hub.PolicySeat
	}
	cancel, err := s.manager.Attach(tableID, conn.seat(), policy, conn)
	if err != nil {
		_ = ws.WriteJSON(protocol.NewError(asProtocolError(err)))
		_ = ws.Close()
		return
	}
	conn.start(cancel)
}

// lookupSession resolves a session token and checks it belongs to tableID.
func (s *Server) lookupSession(token, tableID string) (*session.Session, *protocol.Error) {
	sess, err := s.sessions.Lookup(token)
	if err != nil {
		code := protocol.CodeInvalidSession
		if errors.Is(err, session.ErrExpired) {
			code = protocol.CodeSessionExpired
		}
		return nil, protocol.Errorf(code, "%s", err.Error())
	}
	if sess.TableID != tableID {
		return nil, protocol.Errorf(protocol.CodeInvalidSession, "session is for another table")
	}
	return sess, nil
}
