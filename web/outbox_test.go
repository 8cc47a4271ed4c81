package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func getJSON(t *testing.T, router http.Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var doc map[string]interface{}
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
			t.Fatalf("Failed to parse response from %s: %v", path, err)
		}
	}
	return w.Code, doc
}

func TestActorDocument(t *testing.T) {
	s, _ := newTestServer(t)
	createTestAccount(t, s.Store, "alice")
	router := s.Router()

	code, doc := getJSON(t, router, "/users/alice")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if doc["type"] != "Person" {
		t.Errorf("Expected type Person, got %v", doc["type"])
	}
	if doc["id"] != "https://"+testDomain+"/users/alice" {
		t.Errorf("Unexpected actor id %v", doc["id"])
	}
	key, ok := doc["publicKey"].(map[string]interface{})
	if !ok || key["publicKeyPem"] == "" {
		t.Error("Actor document must carry a public key")
	}
	endpoints, ok := doc["endpoints"].(map[string]interface{})
	if !ok || endpoints["sharedInbox"] != "https://"+testDomain+"/inbox" {
		t.Errorf("Expected shared inbox endpoint, got %v", doc["endpoints"])
	}
}

func TestActorNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	code, _ := getJSON(t, router, "/users/nobody")
	if code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}

func TestOutboxHeader(t *testing.T) {
	s, _ := newTestServer(t)
	acc := createTestAccount(t, s.Store, "alice")
	createTestNotes(t, s.Store, acc, 3)
	router := s.Router()

	code, doc := getJSON(t, router, "/users/alice/outbox")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if doc["type"] != "OrderedCollection" {
		t.Errorf("Expected OrderedCollection, got %v", doc["type"])
	}
	if doc["totalItems"] != float64(3) {
		t.Errorf("Expected totalItems 3, got %v", doc["totalItems"])
	}
	if doc["first"] == nil {
		t.Error("Outbox header must link its first page")
	}
}

func TestOutboxPagination(t *testing.T) {
	s, _ := newTestServer(t)
	acc := createTestAccount(t, s.Store, "alice")
	createTestNotes(t, s.Store, acc, itemsPerPage+5)
	router := s.Router()

	code, doc := getJSON(t, router, "/users/alice/outbox?page=1")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if doc["type"] != "OrderedCollectionPage" {
		t.Errorf("Expected OrderedCollectionPage, got %v", doc["type"])
	}
	items, ok := doc["orderedItems"].([]interface{})
	if !ok || len(items) != itemsPerPage {
		t.Fatalf("Expected a full page of %d items, got %v", itemsPerPage, doc["orderedItems"])
	}
	if doc["next"] == nil {
		t.Error("A full page must link the next one")
	}

	code, doc = getJSON(t, router, "/users/alice/outbox?page=2")
	if code != http.StatusOK {
		t.Fatalf("Expected 200 for page 2, got %d", code)
	}
	items, ok = doc["orderedItems"].([]interface{})
	if !ok || len(items) != 5 {
		t.Fatalf("Expected 5 items on the last page, got %v", doc["orderedItems"])
	}
	if doc["next"] != nil {
		t.Error("The last page must not link a next page")
	}
}

func TestOutboxInvalidPage(t *testing.T) {
	s, _ := newTestServer(t)
	createTestAccount(t, s.Store, "alice")
	router := s.Router()

	code, _ := getJSON(t, router, "/users/alice/outbox?page=zero")
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", code)
	}
	code, _ = getJSON(t, router, "/users/alice/outbox?page=0")
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 for page 0, got %d", code)
	}
}

func TestFollowersHeader(t *testing.T) {
	s, _ := newTestServer(t)
	createTestAccount(t, s.Store, "alice")
	router := s.Router()

	code, doc := getJSON(t, router, "/users/alice/followers")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if doc["totalItems"] != float64(0) {
		t.Errorf("Expected 0 followers, got %v", doc["totalItems"])
	}
	if doc["orderedItems"] != nil {
		t.Error("The followers collection must not expose its members")
	}
}

func TestNoteObject(t *testing.T) {
	s, _ := newTestServer(t)
	acc := createTestAccount(t, s.Store, "alice")
	createTestNotes(t, s.Store, acc, 1)
	err, notes := s.Store.ReadNotesByUsername("alice")
	if err != nil || len(*notes) != 1 {
		t.Fatalf("Failed to read back note: %v", err)
	}
	note := (*notes)[0]
	router := s.Router()

	code, doc := getJSON(t, router, "/notes/"+note.Id.String())
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if doc["type"] != "Note" {
		t.Errorf("Expected Note, got %v", doc["type"])
	}
	if doc["attributedTo"] != "https://"+testDomain+"/users/alice" {
		t.Errorf("Unexpected attribution %v", doc["attributedTo"])
	}
}

func TestNoteObjectInvalidId(t *testing.T) {
	s, _ := newTestServer(t)
	router := s.Router()

	code, _ := getJSON(t, router, "/notes/not-a-uuid")
	if code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}
