package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/entropy"
	"github.com/talgya/mini-economy/internal/metrics"
)

const testAdminKey = "secret"

func newTestServer(t *testing.T, oracle engine.Oracle) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	sim := engine.New(engine.Options{}, oracle, hub, entropy.NewSeeded(7))
	drv := engine.NewDriver(ctx, sim, time.Hour)
	s := &Server{Sim: sim, Driver: drv, Hub: hub, AdminKey: testAdminKey}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		drv.Stop()
		cancel()
		s.Shutdown(context.Background())
	})
	return s, ts
}

func doRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStatus(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status map[string]any
	decodeBody(t, resp, &status)
	if status["day"].(float64) != 1 {
		t.Errorf("expected day 1, got %v", status["day"])
	}
	if status["run_id"] != s.Sim.RunID() {
		t.Errorf("run id mismatch: %v", status["run_id"])
	}
	if status["agents"].(float64) != 10 {
		t.Errorf("expected 10 agents, got %v", status["agents"])
	}
	if status["price"].(float64) != 2 {
		t.Errorf("expected initial price 2, got %v", status["price"])
	}
}

func TestAdminAuth(t *testing.T) {
	s, ts := newTestServer(t, nil)

	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", resp.StatusCode)
	}

	s.AdminKey = ""
	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", "anything"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("no admin key: expected 403, got %d", resp.StatusCode)
	}
	if s.Sim.Snapshot().Day != 1 {
		t.Error("rejected requests must not advance the day")
	}
}

func TestStepAdvancesDay(t *testing.T) {
	s, ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", testAdminKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res engine.DayResult
	decodeBody(t, resp, &res)
	if len(res.Turns) != 10 {
		t.Errorf("expected 10 turns, got %d", len(res.Turns))
	}
	if res.Record == nil || res.Record.Stat.Day != 1 {
		t.Fatalf("expected record for day 1, got %+v", res.Record)
	}
	if got := s.Sim.Snapshot().Day; got != 2 {
		t.Errorf("expected day 2, got %d", got)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/history", "")
	var hist []map[string]any
	decodeBody(t, resp, &hist)
	if len(hist) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(hist))
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/logs?limit=5", "")
	var logs []engine.Event
	decodeBody(t, resp, &logs)
	if len(logs) == 0 || len(logs) > 5 {
		t.Errorf("expected 1..5 log events, got %d", len(logs))
	}
}

func TestBusyConflicts(t *testing.T) {
	release := make(chan struct{})
	oracle := engine.OracleFunc(func(ctx context.Context, req engine.DecisionRequest) (agents.Action, error) {
		<-release
		return agents.Action{}, errors.New("unavailable")
	})
	s, ts := newTestServer(t, oracle)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sim.RunDay(context.Background())
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Sim.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("day never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", testAdminKey); resp.StatusCode != http.StatusConflict {
		t.Errorf("step while busy: expected 409, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/reset", testAdminKey); resp.StatusCode != http.StatusConflict {
		t.Errorf("reset while busy: expected 409, got %d", resp.StatusCode)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if got := s.Sim.Snapshot().Day; got != 2 {
		t.Errorf("expected exactly one day advanced, got day %d", got)
	}
}

func TestResetStartsNewRun(t *testing.T) {
	s, ts := newTestServer(t, nil)
	doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", testAdminKey)
	before := s.Sim.RunID()

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/reset", testAdminKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	snap := s.Sim.Snapshot()
	if snap.RunID == before {
		t.Error("expected a new run id")
	}
	if snap.Day != 1 || len(snap.History) != 0 {
		t.Errorf("expected fresh state, got day %d with %d history entries", snap.Day, len(snap.History))
	}
}

func TestRunAndPause(t *testing.T) {
	s, ts := newTestServer(t, nil)

	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/run", testAdminKey); resp.StatusCode != http.StatusOK {
		t.Fatalf("run: expected 200, got %d", resp.StatusCode)
	}
	if !s.Driver.Running() {
		t.Error("expected driver running")
	}
	if resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/pause", testAdminKey); resp.StatusCode != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", resp.StatusCode)
	}
	if s.Driver.Running() {
		t.Error("expected driver paused")
	}
}

func TestAgentEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/agents", "")
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 10 {
		t.Fatalf("expected 10 agents, got %d", len(list))
	}
	if _, ok := list[0]["net_worth"]; !ok {
		t.Error("expected net_worth in agent view")
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/agents/0", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("agent 0: expected 200, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/agents/999", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent: expected 404, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/agents/abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/agents/0/days", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no store: expected 503, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	doRequest(t, http.MethodGet, ts.URL+"/health", "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "econsim_http_requests_total") {
		t.Error("expected http request counter in metrics output")
	}
}

func TestWebSocketReceivesDay(t *testing.T) {
	_, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(metrics.WSClients) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	doRequest(t, http.MethodPost, ts.URL+"/api/v1/step", testAdminKey)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "day" || msg.Record == nil || msg.Record.Stat.Day != 1 {
		t.Errorf("expected day 1 message, got %+v", msg)
	}
}

func TestShutdownTwice(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
