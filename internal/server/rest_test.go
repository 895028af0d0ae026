package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerforagents/internal/hub"
	"github.com/lox/pokerforagents/internal/manager"
	"github.com/lox/pokerforagents/internal/session"
	"github.com/lox/pokerforagents/internal/store"
)

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := log.New(io.Discard)
	st := store.NewMemory()
	clock := quartz.NewReal()
	sessions := session.NewRegistry(clock, cfg.SessionWindow())
	h := hub.New(logger)
	mgr := manager.New(clock, st, h, sessions, manager.Options{
		NextHandDelay: cfg.NextHandDelay(),
		GraceTimeout:  cfg.GraceTimeout(),
	}, logger)

	ts := httptest.NewServer(New(cfg, st, sessions, mgr, logger).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, apiKey string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func registerAgent(t *testing.T, ts *httptest.Server, name string) (agentID, apiKey string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/agents", "", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["agent_id"].(string), body["api_key"].(string)
}

func createTable(t *testing.T, ts *httptest.Server, apiKey string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables", apiKey, map[string]int{
		"small_blind":   1,
		"big_blind":     2,
		"max_seats":     6,
		"initial_stack": 200,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["table_id"].(string)
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return errObj["code"].(string)
}

func TestRegisterAgent(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/agents", "", map[string]string{"name": "alice"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice", body["name"])
	assert.NotEmpty(t, body["agent_id"])
	assert.NotEmpty(t, body["api_key"])
}

func TestRegisterAgentRequiresName(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/agents", "", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestCreateTableRequiresAuth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables", "", map[string]int{"small_blind": 1, "big_blind": 2})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/tables", "key_bogus", map[string]int{"small_blind": 1, "big_blind": 2})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_API_KEY", errorCode(t, body))
}

func TestCreateTableNeverReturnsSeed(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables", key, map[string]any{
		"small_blind":   1,
		"big_blind":     2,
		"max_seats":     2,
		"initial_stack": 200,
		"seed":          "sekrit",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotContains(t, body, "seed")
	assert.Equal(t, "waiting", body["status"])
}

func TestCreateTableValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables", key, map[string]int{
		"small_blind":   5,
		"big_blind":     2,
		"max_seats":     6,
		"initial_stack": 200,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestAdminKeysRestrictTableLifecycle(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Server.AdminKeys = []string{"key_admin_only"}
	ts := newTestServer(t, cfg)
	_, key := registerAgent(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables", key, map[string]int{
		"small_blind":   1,
		"big_blind":     2,
		"max_seats":     6,
		"initial_stack": 200,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
}

func TestListTablesIsPublic(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")
	tableID := createTable(t, ts, key)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// No Authorization header: the listing is open to unregistered agents.
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/tables", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tables := body["tables"].([]any)
	require.Len(t, tables, 1)
	listed := tables[0].(map[string]any)
	assert.Equal(t, tableID, listed["table_id"])
	assert.Equal(t, float64(1), listed["seated"])
	assert.NotContains(t, listed, "seed")

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/tables?status=ended", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["tables"])
}

func TestJoinTable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")
	tableID := createTable(t, ts, key)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, tableID, body["table_id"])
	assert.Equal(t, float64(0), body["seat"])
	assert.NotEmpty(t, body["session_token"])
	assert.Contains(t, body["ws_url"], "/v1/tables/"+tableID+"/ws")
	assert.Contains(t, body["skill_doc_url"], "/skill.md")
	assert.Equal(t, float64(30_000), body["action_timeout_ms"])
	assert.Equal(t, float64(1), body["protocol_version"])
	assert.Equal(t, float64(1), body["min_supported_protocol_version"])

	// Joining twice is rejected.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", key, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_SEATED", errorCode(t, body))
}

func TestJoinRejectsOutdatedClient(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")
	tableID := createTable(t, ts, key)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", key,
		map[string]int{"client_protocol_version": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OUTDATED_CLIENT", errorCode(t, body))
}

func TestJoinUnknownTable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/tbl_missing/join", key, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "TABLE_NOT_FOUND", errorCode(t, body))
}

func TestLeaveTable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")
	tableID := createTable(t, ts, key)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/leave", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["left"])

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/leave", key, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "NOT_SEATED", errorCode(t, body))
}

func TestEndTable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")
	tableID := createTable(t, ts, key)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/end", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ended", body["status"])

	// Ending again is a no-op, not an error.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/end", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListEvents(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, aliceKey := registerAgent(t, ts, "alice")
	_, bobKey := registerAgent(t, ts, "bob")
	tableID := createTable(t, ts, aliceKey)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", aliceKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", bobKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/tables/"+tableID+"/events", aliceKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := body["events"].([]any)
	require.NotEmpty(t, events)
	for i, ev := range events {
		assert.Equal(t, float64(i+1), ev.(map[string]any)["seq"])
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/tables/"+tableID+"/events?from_seq=abc", aliceKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
}

func TestListEventsAcceptsSessionToken(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	_, key := registerAgent(t, ts, "alice")
	tableID := createTable(t, ts, key)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/tables/"+tableID+"/join", key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["session_token"].(string)

	// A seated agent recovers gaps with its session token alone.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/tables/"+tableID+"/events?session="+token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["events"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/tables/"+tableID+"/events?session=bogus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_SESSION", errorCode(t, body))
}

func TestSkillDoc(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/skill.md")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "/v1/agents")
	assert.Contains(t, string(doc), ts.URL)
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
