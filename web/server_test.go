package web

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/activitypub"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
)

const testDomain = "glyptodon.example"

// stubFetcher serves canned documents instead of the network.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: make(map[string]string)}
}

func (f *stubFetcher) serve(uri string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[uri] = body
}

func (f *stubFetcher) Fetch(uri string) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if body, ok := f.responses[uri]; ok {
		return 200, []byte(body), nil
	}
	return 404, nil, nil
}

func testConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.Host = "localhost"
	conf.Conf.HttpPort = 8080
	conf.Conf.SslDomain = testDomain
	conf.Conf.RecursionLimit = 10
	conf.Conf.CrawlMaxPages = 10
	conf.Conf.CrawlMaxItems = 100
	return conf
}

func newTestServer(t *testing.T) (*Server, *stubFetcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := store.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	fetch := newStubFetcher()
	conf := testConf()
	dispatcher := activitypub.NewDispatcher(store, fetch, conf)
	queue := activitypub.NewInboxQueue(dispatcher, 1, 16)
	t.Cleanup(queue.Close)

	return NewServer(store, conf, dispatcher, queue), fetch
}

func createTestAccount(t *testing.T, store *db.DB, username string) *domain.Account {
	t.Helper()
	keys := util.GeneratePemKeypair()
	acc := &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		DisplayName:   username,
		Summary:       "test account",
		CreatedAt:     time.Now(),
		WebPublicKey:  keys.Public,
		WebPrivateKey: keys.Private,
	}
	if err := store.CreateAccount(acc); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return acc
}

func createTestNotes(t *testing.T, store *db.DB, acc *domain.Account, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		save := &domain.SaveNote{UserId: acc.Id, Message: fmt.Sprintf("note %d", i)}
		if err := store.CreateNote(acc.Id, save); err != nil {
			t.Fatalf("Failed to create note: %v", err)
		}
	}
}
