package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/internal/store"
)

type registerAgentRequest struct {
	Name string `json:"name"`
}

type registerAgentResponse struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	APIKey  string `json:"api_key"`
}

type createTableRequest struct {
	SmallBlind      int    `json:"small_blind"`
	BigBlind        int    `json:"big_blind"`
	MaxSeats        int    `json:"max_seats"`
	InitialStack    int    `json:"initial_stack"`
	ActionTimeoutMS int    `json:"action_timeout_ms"`
	Seed            string `json:"seed,omitempty"`
}

type tableResponse struct {
	TableID         string `json:"table_id"`
	Status          string `json:"status"`
	SmallBlind      int    `json:"small_blind"`
	BigBlind        int    `json:"big_blind"`
	MaxSeats        int    `json:"max_seats"`
	Seated          int    `json:"seated"`
	InitialStack    int    `json:"initial_stack"`
	ActionTimeoutMS int    `json:"action_timeout_ms"`
}

type joinTableRequest struct {
	ClientProtocolVersion int `json:"client_protocol_version,omitempty"`
}

type joinTableResponse struct {
	TableID            string `json:"table_id"`
	Seat               int    `json:"seat"`
	SessionToken       string `json:"session_token"`
	WSURL              string `json:"ws_url"`
	SkillDocURL        string `json:"skill_doc_url"`
	ProtocolVersion    int    `json:"protocol_version"`
	MinProtocolVersion int    `json:"min_supported_protocol_version"`
	ActionTimeoutMS    int    `json:"action_timeout_ms"`
}

// authenticate resolves the Bearer api_key on a request.
func (s *Server) authenticate(r *http.Request) (*store.AgentRecord, *protocol.Error) {
	header := r.Header.Get("Authorization")
	key, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || key == "" {
		return nil, protocol.Errorf(protocol.CodeUnauthorized, "missing bearer api key")
	}
	agent, err := s.store.GetAgentByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, protocol.Errorf(protocol.CodeInvalidAPIKey, "unknown api key")
		}
		s.logger.Error("agent lookup", "err", err)
		return nil, protocol.Errorf(protocol.CodeInternalError, "internal error")
	}
	return agent, nil
}

// isAdmin reports whether the request's api key may administer tables. An
// empty allow-list opens administration to every registered agent.
func (s *Server) isAdmin(r *http.Request) bool {
	if len(s.cfg.Server.AdminKeys) == 0 {
		return true
	}
	header := r.Header.Get("Authorization")
	key, _ := strings.CutPrefix(header, "Bearer ")
	for _, allowed := range s.cfg.Server.AdminKeys {
		if key == allowed {
			return true
		}
	}
	return false
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, protocol.Errorf(protocol.CodeValidationError, "invalid json body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, protocol.Errorf(protocol.CodeValidationError, "name is required"))
		return
	}

	agent := &store.AgentRecord{
		ID:        "agt_" + randomHex(8),
		Name:      strings.TrimSpace(req.Name),
		APIKey:    "key_" + randomHex(24),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAgent(r.Context(), agent); err != nil {
		s.logger.Error("create agent", "err", err)
		writeError(w, protocol.Errorf(protocol.CodeInternalError, "internal error"))
		return
	}

	s.logger.Info("agent registered", "agent", agent.ID, "name", agent.Name)
	writeJSON(w, http.StatusCreated, registerAgentResponse{
		AgentID: agent.ID,
		Name:    agent.Name,
		APIKey:  agent.APIKey,
	})
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	if _, perr := s.authenticate(r); perr != nil {
		writeError(w, perr)
		return
	}
	if !s.isAdmin(r) {
		writeError(w, protocol.Errorf(protocol.CodeUnauthorized, "not an admin key"))
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, protocol.Errorf(protocol.CodeValidationError, "invalid json body"))
		return
	}

	rec, err := s.manager.CreateTable(r.Context(), &store.TableRecord{
		SmallBlind:      req.SmallBlind,
		BigBlind:        req.BigBlind,
		MaxSeats:        req.MaxSeats,
		InitialStack:    req.InitialStack,
		ActionTimeoutMS: req.ActionTimeoutMS,
		Seed:            req.Seed,
	})
	if err != nil {
		writeError(w, asProtocolError(err))
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(rec))
}

// handleListTables is public: agents browse for a table before they hold
// any credential for it.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.manager.ListTables(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, asProtocolError(err))
		return
	}
	out := make([]tableResponse, 0, len(summaries))
	for i := range summaries {
		resp := toTableResponse(&summaries[i].TableRecord)
		resp.Seated = summaries[i].SeatedCount
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

func (s *Server) handleJoinTable(w http.ResponseWriter, r *http.Request) {
	agent, perr := s.authenticate(r)
	if perr != nil {
		writeError(w, perr)
		return
	}
	tableID := r.PathValue("id")

	// The body is optional; clients announce their protocol version when
	// they have one.
	var req joinTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, protocol.Errorf(protocol.CodeValidationError, "invalid json body"))
		return
	}
	if req.ClientProtocolVersion != 0 && req.ClientProtocolVersion < protocol.MinSupportedVersion {
		writeError(w, protocol.Errorf(protocol.CodeOutdatedClient,
			"protocol version %d is below the minimum supported %d",
			req.ClientProtocolVersion, protocol.MinSupportedVersion))
		return
	}

	cfg, err := s.manager.TableConfig(tableID)
	if err != nil {
		writeError(w, asProtocolError(err))
		return
	}
	sess, seat, err := s.manager.Join(r.Context(), tableID, agent.ID)
	if err != nil {
		writeError(w, asProtocolError(err))
		return
	}

	scheme, wsScheme := "http", "ws"
	if r.TLS != nil {
		scheme, wsScheme = "https", "wss"
	}
	writeJSON(w, http.StatusOK, joinTableResponse{
		TableID:            tableID,
		Seat:               seat,
		SessionToken:       sess.Token,
		WSURL:              fmt.Sprintf("%s://%s/v1/tables/%s/ws", wsScheme, r.Host, tableID),
		SkillDocURL:        fmt.Sprintf("%s://%s/skill.md", scheme, r.Host),
		ProtocolVersion:    protocol.Version,
		MinProtocolVersion: protocol.MinSupportedVersion,
		ActionTimeoutMS:    cfg.ActionTimeoutMS,
	})
}

func (s *Server) handleLeaveTable(w http.ResponseWriter, r *http.Request) {
	agent, perr := s.authenticate(r)
	if perr != nil {
		writeError(w, perr)
		return
	}
	tableID := r.PathValue("id")

	if err := s.manager.Leave(r.Context(), tableID, agent.ID, "left"); err != nil {
		writeError(w, asProtocolError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table_id": tableID, "left": true})
}

func (s *Server) handleEndTable(w http.ResponseWriter, r *http.Request) {
	if _, perr := s.authenticate(r); perr != nil {
		writeError(w, perr)
		return
	}
	if !s.isAdmin(r) {
		writeError(w, protocol.Errorf(protocol.CodeUnauthorized, "not an admin key"))
		return
	}
	tableID := r.PathValue("id")

	if err := s.manager.EndTable(r.Context(), tableID); err != nil {
		writeError(w, asProtocolError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table_id": tableID, "status": "ended"})
}

// handleListEvents replays the persisted log for gap recovery. A seated
// agent may use its session token; anyone else needs an api key.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	tableID := r.PathValue("id")
	if token := r.URL.Query().Get("session"); token != "" {
		if _, perr := s.lookupSession(token, tableID); perr != nil {
			writeError(w, perr)
			return
		}
	} else if _, perr := s.authenticate(r); perr != nil {
		writeError(w, perr)
		return
	}

	fromSeq := uint64(1)
	if raw := r.URL.Query().Get("from_seq"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, protocol.Errorf(protocol.CodeValidationError, "invalid from_seq %q", raw))
			return
		}
		fromSeq = parsed
	}

	events, err := s.manager.Events(r.Context(), tableID, fromSeq)
	if err != nil {
		writeError(w, asProtocolError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table_id": tableID, "events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toTableResponse(rec *store.TableRecord) tableResponse {
	return tableResponse{
		TableID:         rec.ID,
		Status:          rec.Status,
		SmallBlind:      rec.SmallBlind,
		BigBlind:        rec.BigBlind,
		MaxSeats:        rec.MaxSeats,
		InitialStack:    rec.InitialStack,
		ActionTimeoutMS: rec.ActionTimeoutMS,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, perr *protocol.Error) {
	writeJSON(w, perr.Code.HTTPStatus(), map[string]any{"error": perr})
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
