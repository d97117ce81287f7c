package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/lampstack/versekeeper/internal/app"
	"github.com/lampstack/versekeeper/internal/app/domain/leaderboard"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Application) {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{
		TokenSecret:   []byte("test-secret"),
		WebhookSecret: []byte("hook-secret"),
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	return srv, application
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var body *bytes.Buffer = bytes.NewBuffer(nil)
	if payload != nil {
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	decoded := map[string]json.RawMessage{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerUser(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(body["token"], &token); err != nil || token == "" {
		t.Fatalf("register %s: no token in response", username)
	}
	return token
}

func TestAPI_RegisterLoginAndProgress(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerUser(t, srv, "anna")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/auth/login", "", map[string]string{
		"email":    "anna@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/progress", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress: status %d", resp.StatusCode)
	}
	var count int
	if err := json.Unmarshal(body["verses_memorized"], &count); err != nil || count != 0 {
		t.Fatalf("fresh user should have zero verses: %s", body["verses_memorized"])
	}
}

func TestAPI_RecordVerseAndLevelUp(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerUser(t, srv, "anna")

	var lastBody map[string]json.RawMessage
	for i := 1; i <= 4; i++ {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/verses", token, map[string]string{
			"verse_id":        fmt.Sprintf("GEN.1.%d", i),
			"verse_reference": fmt.Sprintf("Genesis 1:%d", i),
			"verse_text":      "In the beginning",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("record %d: status %d", i, resp.StatusCode)
		}
		lastBody = body
	}

	var rankUp bool
	if err := json.Unmarshal(lastBody["rank_up"], &rankUp); err != nil || !rankUp {
		t.Fatalf("fourth verse should level up: %s", lastBody["rank_up"])
	}

	// Repeating a verse returns 200 and does not move the counter.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/verses", token, map[string]string{
		"verse_id":        "GEN.1.1",
		"verse_reference": "Genesis 1:1",
		"verse_text":      "In the beginning",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat: status %d", resp.StatusCode)
	}
	var count int
	if err := json.Unmarshal(body["verses_memorized"], &count); err != nil || count != 4 {
		t.Fatalf("repeat moved the counter: %s", body["verses_memorized"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/progress/history", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	var history []map[string]interface{}
	if err := json.Unmarshal(body["history"], &history); err != nil || len(history) != 1 {
		t.Fatalf("expected one history entry: %s", body["history"])
	}
}

func TestAPI_Leaderboard(t *testing.T) {
	srv, _ := newTestServer(t)
	annaToken := registerUser(t, srv, "anna")
	bobToken := registerUser(t, srv, "bob")

	for i := 0; i < 3; i++ {
		if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/verses", annaToken, map[string]string{
			"verse_id":        fmt.Sprintf("PSA.1.%d", i),
			"verse_reference": fmt.Sprintf("Psalm 1:%d", i),
			"verse_text":      "Blessed is the man",
		}); resp.StatusCode != http.StatusCreated {
			t.Fatalf("anna verse %d: status %d", i, resp.StatusCode)
		}
	}
	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/verses", bobToken, map[string]string{
		"verse_id":        "PSA.1.0",
		"verse_reference": "Psalm 1:0",
		"verse_text":      "Blessed is the man",
	}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("bob verse: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/leaderboard?limit=10", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status %d", resp.StatusCode)
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(body["leaderboard"], &entries); err != nil || len(entries) != 2 {
		t.Fatalf("expected 2 entries: %s", body["leaderboard"])
	}
	if entries[0]["username"] != "anna" {
		t.Fatalf("anna should lead: %v", entries[0])
	}
	var current map[string]interface{}
	if err := json.Unmarshal(body["current_user"], &current); err != nil || current["username"] != "bob" {
		t.Fatalf("expected bob's standing: %s", body["current_user"])
	}

	if resp, _ := doJSON(t, http.MethodGet, srv.URL+"/leaderboard?limit=9999", bobToken, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized limit: status %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodGet, srv.URL+"/leaderboard?limit=abc", bobToken, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-integer limit: status %d", resp.StatusCode)
	}
}

func TestAPI_RecordValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerUser(t, srv, "anna")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/verses", token, map[string]string{
		"verse_id": "GEN.1.1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields: status %d", resp.StatusCode)
	}
	var msg string
	if err := json.Unmarshal(body["error"], &msg); err != nil || msg == "" {
		t.Fatalf("expected an error body: %s", body["error"])
	}
}

// unavailableBoard simulates a storage outage on every leaderboard read.
type unavailableBoard struct{}

func (unavailableBoard) TopUsers(context.Context, int, int) ([]leaderboard.Entry, error) {
	return nil, errors.New(`pq: relation "users" does not exist`)
}

func (unavailableBoard) UserStanding(context.Context, int64) (leaderboard.Entry, error) {
	return leaderboard.Entry{}, errors.New(`pq: relation "users" does not exist`)
}

func (unavailableBoard) CountRankedUsers(context.Context) (int, error) {
	return 0, errors.New(`pq: relation "users" does not exist`)
}

func TestAPI_InternalErrorsStayOpaque(t *testing.T) {
	application, err := app.New(app.Stores{Leaderboard: unavailableBoard{}}, app.Options{
		TokenSecret: []byte("test-secret"),
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	token := registerUser(t, srv, "anna")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/leaderboard", token, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("leaderboard outage: status %d", resp.StatusCode)
	}
	var msg string
	if err := json.Unmarshal(body["error"], &msg); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if msg != "server error" {
		t.Fatalf("storage detail leaked into the body: %q", msg)
	}
}

func TestAPI_AuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/verses", "/progress", "/progress/history", "/leaderboard"} {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token: status %d", path, resp.StatusCode)
		}
		resp, _ = doJSON(t, http.MethodGet, srv.URL+path, "garbage-token", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s with bad token: status %d", path, resp.StatusCode)
		}
	}
}

func TestAPI_RanksAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/ranks", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ranks: status %d", resp.StatusCode)
	}
	var tiers []map[string]interface{}
	if err := json.Unmarshal(body["ranks"], &tiers); err != nil || len(tiers) != 8 {
		t.Fatalf("expected 8 tiers: %s", body["ranks"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestAPI_BillingWebhook(t *testing.T) {
	srv, application := newTestServer(t)
	registerUser(t, srv, "anna")

	payload := []byte(`{"type":"checkout.session.completed","user_id":1}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Signature", application.Billing.Sign(payload))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook: status %d", resp.StatusCode)
	}

	// A tampered payload is rejected.
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/billing/webhook", bytes.NewReader([]byte(`{"type":"checkout.session.completed","user_id":2}`)))
	req.Header.Set("X-Webhook-Signature", application.Billing.Sign(payload))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("tampered webhook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("tampered webhook: status %d", resp.StatusCode)
	}
}
