// internal/handlers/session_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/colehaney/parlor/internal/auth"
	"github.com/colehaney/parlor/internal/dialogue"
)

func newTestServer() *SessionServer {
	return NewSessionServer(dialogue.NewOrchestrator(nil))
}

// TestSessionCreate checks that /session/create builds an ephemeral session in memory.
func TestSessionCreate(t *testing.T) {
	auth.Init() // ephemeral keys, no DB needed
	s := newTestServer()

	owner := uuid.New()
	token, _ := auth.CreateJWT(owner.String(), "Host")
	body := `{"name":"game night","trigger_mode":"messages","message_threshold":3,"simulated_count":2,"public":true}`
	req := httptest.NewRequest("POST", "/session/create", bytes.NewBufferString(body))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	CreateSessionHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var out sessionSummary
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if out.ID == "" {
		t.Fatalf("session has no ID")
	}
	if out.Owner != owner.String() {
		t.Fatalf("session owner mismatch, expected %v got %v", owner, out.Owner)
	}
	if out.Participants != 2 {
		t.Fatalf("expected 2 simulated participants joined, got %d", out.Participants)
	}

	id, err := uuid.Parse(out.ID)
	if err != nil {
		t.Fatalf("bad session id: %v", err)
	}
	if _, ok := s.Repo.Get(id); !ok {
		t.Fatalf("session not registered in repository")
	}
}

// TestSessionCreateMintsIdentity checks that a cookieless caller receives a
// fresh auth_token cookie.
func TestSessionCreateMintsIdentity(t *testing.T) {
	auth.Init()
	s := newTestServer()

	req := httptest.NewRequest("POST", "/session/create?name=Dana", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	CreateSessionHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var foundCookie bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			foundCookie = true
			if _, name, err := auth.AuthenticateJWT(c.Value); err != nil || name != "Dana" {
				t.Fatalf("minted token invalid (name=%q, err=%v)", name, err)
			}
		}
	}
	if !foundCookie {
		t.Fatalf("expected an auth_token cookie to be set")
	}
}

// TestSessionCreateRejectsBadTriggerMode checks config validation.
func TestSessionCreateRejectsBadTriggerMode(t *testing.T) {
	auth.Init()
	s := newTestServer()

	token, _ := auth.CreateJWT(uuid.New().String(), "Host")
	req := httptest.NewRequest("POST", "/session/create", bytes.NewBufferString(`{"trigger_mode":"moon_phase"}`))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	CreateSessionHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// TestSessionListFiltersPrivate checks that only public sessions are listed.
func TestSessionListFiltersPrivate(t *testing.T) {
	auth.Init()
	s := newTestServer()

	token, _ := auth.CreateJWT(uuid.New().String(), "Host")

	create := func(body string) {
		req := httptest.NewRequest("POST", "/session/create", bytes.NewBufferString(body))
		req.Header.Set("Cookie", "auth_token="+token)
		w := httptest.NewRecorder()
		CreateSessionHandler(s).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
		}
	}
	create(`{"name":"open table","public":true}`)
	create(`{"name":"secret table","public":false}`)

	req := httptest.NewRequest("GET", "/session/list", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()
	ListSessionsHandler(s).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var out []sessionSummary
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 public session, got %d", len(out))
	}
	if out[0].Name != "open table" {
		t.Fatalf("wrong session listed: %s", out[0].Name)
	}
}
