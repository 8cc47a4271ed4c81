package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestWebfingerKnownAccount(t *testing.T) {
	s, _ := newTestServer(t)
	createTestAccount(t, s.Store, "alice")
	router := s.Router()

	resource := url.QueryEscape("acct:alice@" + testDomain)
	req := httptest.NewRequest("GET", "/.well-known/webfinger?resource="+resource, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp webfingerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Subject != "acct:alice@"+testDomain {
		t.Errorf("Expected subject 'acct:alice@%s', got '%s'", testDomain, resp.Subject)
	}
	if len(resp.Links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(resp.Links))
	}
	if resp.Links[0].Href != "https://"+testDomain+"/users/alice" {
		t.Errorf("Unexpected self link '%s'", resp.Links[0].Href)
	}
}

func TestWebfingerWithoutHost(t *testing.T) {
	s, _ := newTestServer(t)
	createTestAccount(t, s.Store, "alice")
	router := s.Router()

	req := httptest.NewRequest("GET", "/.well-known/webfinger?resource=acct:alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for bare acct lookup, got %d", w.Code)
	}
}

func TestWebfingerUnknownAccount(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	resource := url.QueryEscape("acct:nobody@" + testDomain)
	req := httptest.NewRequest("GET", "/.well-known/webfinger?resource="+resource, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestWebfingerForeignHost(t *testing.T) {
	s, _ := newTestServer(t)
	createTestAccount(t, s.Store, "alice")
	router := s.Router()

	resource := url.QueryEscape("acct:alice@other.example")
	req := httptest.NewRequest("GET", "/.well-known/webfinger?resource="+resource, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a foreign domain, got %d", w.Code)
	}
}

func TestWebfingerMalformedResource(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest("GET", "/.well-known/webfinger?resource=alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a resource without acct: prefix, got %d", w.Code)
	}
}
