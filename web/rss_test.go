package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/domain"
)

func getFeed(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w.Code, w.Body.String()
}

func TestFeedAllNotes(t *testing.T) {
	s, _ := newTestServer(t)
	acc := createTestAccount(t, s.Store, "alice")
	createTestNotes(t, s.Store, acc, 2)

	code, body := getFeed(t, s, "/feed")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, "<rss") {
		t.Error("Expected RSS XML in the response")
	}
	if !strings.Contains(body, "All glyptodon Notes") {
		t.Errorf("Expected feed title in body, got: %s", body)
	}
}

func TestFeedByUsername(t *testing.T) {
	s, _ := newTestServer(t)
	alice := createTestAccount(t, s.Store, "alice")
	createTestNotes(t, s.Store, alice, 1)

	code, body := getFeed(t, s, "/feed?username=alice")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, "glyptodon Notes - alice") {
		t.Errorf("Expected per-user feed title, got: %s", body)
	}

	code, _ = getFeed(t, s, "/feed?username=ghost")
	if code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown username, got %d", code)
	}
}

func TestFeedSingleNote(t *testing.T) {
	s, _ := newTestServer(t)
	acc := createTestAccount(t, s.Store, "alice")
	createTestNotes(t, s.Store, acc, 1)

	err, notes := s.Store.ReadNotesByUsername("alice")
	if err != nil {
		t.Fatalf("ReadNotesByUsername failed: %v", err)
	}
	noteId := (*notes)[0].Id

	code, body := getFeed(t, s, "/feed/"+noteId.String())
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, noteId.String()) {
		t.Error("Expected the note id in the feed item")
	}

	code, _ = getFeed(t, s, "/feed/not-a-uuid")
	if code != http.StatusNotFound {
		t.Errorf("Expected 404 for a malformed id, got %d", code)
	}
}

func TestFederatedFeed(t *testing.T) {
	s, _ := newTestServer(t)

	note := &domain.RemoteNote{
		Id:         uuid.New(),
		URI:        "https://remote.example/notes/1",
		ActorURI:   "https://remote.example/users/bob",
		Content:    "hello from afar",
		Published:  time.Now(),
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	if err := s.Store.CreateRemoteNote(note); err != nil {
		t.Fatalf("CreateRemoteNote failed: %v", err)
	}
	followersOnly := &domain.RemoteNote{
		Id:         uuid.New(),
		URI:        "https://remote.example/notes/2",
		ActorURI:   "https://remote.example/users/bob",
		Content:    "private musings",
		Published:  time.Now(),
		Visibility: domain.VisibilityFollowers,
		CreatedAt:  time.Now(),
	}
	if err := s.Store.CreateRemoteNote(followersOnly); err != nil {
		t.Fatalf("CreateRemoteNote failed: %v", err)
	}

	code, body := getFeed(t, s, "/feed?federated=true")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, "hello from afar") {
		t.Error("Expected the public remote note in the federated feed")
	}
	if strings.Contains(body, "private musings") {
		t.Error("Followers-only note must not appear in the federated feed")
	}
}

func TestFederatedFeedContentWarning(t *testing.T) {
	s, _ := newTestServer(t)

	note := &domain.RemoteNote{
		Id:         uuid.New(),
		URI:        "https://remote.example/notes/3",
		ActorURI:   "https://remote.example/users/bob",
		Content:    "spoilers inside",
		Summary:    "cw",
		Published:  time.Now(),
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	if err := s.Store.CreateRemoteNote(note); err != nil {
		t.Fatalf("CreateRemoteNote failed: %v", err)
	}

	code, body := getFeed(t, s, "/feed?federated=true")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if !strings.Contains(body, "[cw] spoilers inside") {
		t.Errorf("Expected summary-prefixed content, got: %s", body)
	}
}
