package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"toolroom/internal/config"
	"toolroom/internal/db"
	"toolroom/internal/domain"
	"toolroom/internal/engine"
	"toolroom/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("shop-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.CreateCategory(context.Background(), "cat-1", "Oscilloscopes"); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers == nil {
		req.Header.Set("X-Actor-Id", "tester")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestBorrowLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/items", map[string]any{
		"name":        "Rigol DS1054Z",
		"category_id": "cat-1",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create item: %d %s", res.StatusCode, string(data))
	}
	var item domain.Item
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests", map[string]any{
		"item_id": item.ID,
		"type":    "borrow",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit request: %d %s", res.StatusCode, string(data))
	}
	var rq domain.Request
	_ = json.Unmarshal(data, &rq)

	// The item is no longer eligible while the request is open.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/items/"+item.ID+"/eligibility", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("eligibility: %d %s", res.StatusCode, string(data))
	}
	var elig EligibilityResponse
	_ = json.Unmarshal(data, &elig)
	if elig.Eligible {
		t.Fatalf("expected ineligible item, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+rq.ID+"/decision", map[string]any{
		"outcome": "approve",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d %s", res.StatusCode, string(data))
	}

	// The second decision must conflict.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requests/"+rq.ID+"/decision", map[string]any{
		"outcome": "reject",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict on double decide, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "already_decided" {
		t.Fatalf("expected already_decided, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/rentals", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list rentals: %d %s", res.StatusCode, string(data))
	}
	var rentals []domain.Rental
	_ = json.Unmarshal(data, &rentals)
	if len(rentals) != 1 {
		t.Fatalf("expected one rental, got %d", len(rentals))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rentals/"+rentals[0].ID+"/return", map[string]any{}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("return: %d %s", res.StatusCode, string(data))
	}
	var returned domain.Rental
	_ = json.Unmarshal(data, &returned)
	if returned.Status != domain.RentalReturned {
		t.Fatalf("expected returned, got %s", returned.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/items/"+item.ID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get item: %d %s", res.StatusCode, string(data))
	}
	var after domain.Item
	_ = json.Unmarshal(data, &after)
	if after.Status != domain.ItemAvailable {
		t.Fatalf("expected available after return, got %s", after.Status)
	}
}

func TestUnauthorizedWithoutCredentials(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/items", nil, map[string]string{})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	// Health stays open.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, map[string]string{})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", res.StatusCode)
	}
}

func TestDevLoginAndBearerAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "alice",
	}, map[string]string{})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	_ = json.Unmarshal(data, &login)
	if login.Token == "" {
		t.Fatalf("expected token")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var me MeResponse
	_ = json.Unmarshal(data, &me)
	if me.ActorID != "alice" || me.Source != "jwt" {
		t.Fatalf("unexpected principal: %s", string(data))
	}
}

func TestUnknownStatusFilterRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/items?status=bogus", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "unknown_status" {
		t.Fatalf("expected unknown_status, got %s", string(data))
	}
}
