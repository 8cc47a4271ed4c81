package activitypub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
)

func newTestStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := store.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return store
}

const followersURI = "https://remote.example/users/alice/followers"

func TestParseAudiencePrecedence(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name string
		to   StringList
		cc   StringList
		want domain.Visibility
	}{
		{"public in to", StringList{PublicURI}, nil, domain.VisibilityPublic},
		{"public in to wins over followers", StringList{PublicURI, followersURI}, nil, domain.VisibilityPublic},
		{"public in cc only", StringList{followersURI}, StringList{PublicURI}, domain.VisibilityHome},
		{"followers in to", StringList{followersURI}, nil, domain.VisibilityFollowers},
		{"followers in cc", nil, StringList{followersURI}, domain.VisibilityFollowers},
		{"nothing known", StringList{"https://other.example/users/bob"}, nil, domain.VisibilitySpecified},
		{"empty addressing", nil, nil, domain.VisibilitySpecified},
		{"public alias", StringList{"as:Public"}, nil, domain.VisibilityPublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aud := ParseAudience(StoredRecipients(store), tt.to, tt.cc, followersURI)
			if aud.Visibility != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, aud.Visibility)
			}
		})
	}
}

func TestParseAudienceResolvesRecipients(t *testing.T) {
	store := newTestStore(t)

	known := &domain.RemoteAccount{
		Id:            uuid.New(),
		Username:      "bob",
		Domain:        "other.example",
		ActorURI:      "https://other.example/users/bob",
		InboxURI:      "https://other.example/users/bob/inbox",
		PublicKeyPem:  "pem",
		LastFetchedAt: time.Now(),
	}
	if err := store.CreateRemoteAccount(known); err != nil {
		t.Fatalf("CreateRemoteAccount failed: %v", err)
	}

	to := StringList{
		"https://other.example/users/bob",     // resolvable
		"https://unknown.example/users/ghost", // dropped silently
	}
	aud := ParseAudience(StoredRecipients(store), to, nil, followersURI)

	if aud.Visibility != domain.VisibilitySpecified {
		t.Fatalf("Expected specified visibility, got %s", aud.Visibility)
	}
	if len(aud.Recipients) != 1 {
		t.Fatalf("Expected 1 resolved recipient, got %d", len(aud.Recipients))
	}
	if aud.Recipients[0].ActorURI != known.ActorURI {
		t.Errorf("Expected recipient %s, got %s", known.ActorURI, aud.Recipients[0].ActorURI)
	}
}

func TestRecipientLookupResolvesLocalAccount(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	createLocalAccount(t, d.Store, "bob")

	localURI := "https://glyptodon.example/users/bob"
	aud := ParseAudience(d.recipientLookup(d.newResolver()), StringList{localURI}, nil, "")

	if aud.Visibility != domain.VisibilitySpecified {
		t.Fatalf("Expected specified visibility, got %s", aud.Visibility)
	}
	if len(aud.Recipients) != 1 {
		t.Fatalf("Expected the local addressee to resolve, got %d recipients", len(aud.Recipients))
	}
	if aud.Recipients[0].ActorURI != localURI || aud.Recipients[0].Username != "bob" {
		t.Errorf("Expected bob at %s, got %s (%s)", localURI, aud.Recipients[0].ActorURI, aud.Recipients[0].Username)
	}
	if fetch.callCount(localURI) != 0 {
		t.Error("Local addressees must not be fetched over the network")
	}
	// a local addressee is carried by URI, never stored as a remote account
	if err, acc := d.Store.ReadRemoteAccountByURI(localURI); err == nil && acc != nil {
		t.Error("Local addressee leaked into the remote account table")
	}
}

func TestRecipientLookupFetchesUnknownRemote(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	carolURI := "https://other.example/users/carol"
	serveActor(fetch, carolURI, "carol")

	aud := ParseAudience(d.recipientLookup(d.newResolver()), StringList{carolURI}, nil, "")

	if len(aud.Recipients) != 1 || aud.Recipients[0].ActorURI != carolURI {
		t.Fatalf("Expected the unknown remote addressee to be fetched and resolved, got %v", aud.Recipients)
	}
	if fetch.callCount(carolURI) != 1 {
		t.Errorf("Expected 1 fetch of %s, got %d", carolURI, fetch.callCount(carolURI))
	}

	// unresolvable addressees drop out instead of failing the parse
	aud = ParseAudience(d.recipientLookup(d.newResolver()), StringList{"https://dead.example/users/ghost"}, nil, "")
	if len(aud.Recipients) != 0 {
		t.Errorf("Expected unreachable addressee to be dropped, got %d recipients", len(aud.Recipients))
	}
}

func TestAudienceRoundTrip(t *testing.T) {
	store := newTestStore(t)

	recipient := &domain.RemoteAccount{
		Id:            uuid.New(),
		Username:      "bob",
		Domain:        "other.example",
		ActorURI:      "https://other.example/users/bob",
		InboxURI:      "https://other.example/users/bob/inbox",
		PublicKeyPem:  "pem",
		LastFetchedAt: time.Now(),
	}
	if err := store.CreateRemoteAccount(recipient); err != nil {
		t.Fatalf("CreateRemoteAccount failed: %v", err)
	}

	// parse(render(v)) == v for all four classes
	audiences := []domain.Audience{
		{Visibility: domain.VisibilityPublic},
		{Visibility: domain.VisibilityHome},
		{Visibility: domain.VisibilityFollowers},
		{Visibility: domain.VisibilitySpecified, Recipients: []*domain.RemoteAccount{recipient}},
	}

	for _, aud := range audiences {
		t.Run(string(aud.Visibility), func(t *testing.T) {
			to, cc := RenderAudience(aud, followersURI)
			parsed := ParseAudience(StoredRecipients(store), to, cc, followersURI)
			if parsed.Visibility != aud.Visibility {
				t.Errorf("Round trip broke: rendered %s, parsed %s", aud.Visibility, parsed.Visibility)
			}
			if aud.Visibility == domain.VisibilitySpecified {
				if len(parsed.Recipients) != 1 || parsed.Recipients[0].ActorURI != recipient.ActorURI {
					t.Errorf("Round trip lost the recipient set")
				}
			}
		})
	}
}
