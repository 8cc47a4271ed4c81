package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
)

// actorMaxAge is how long a cached remote profile is served without a
// background refresh.
const actorMaxAge = 24 * time.Hour

// actorDoc is the wire form of a remote actor profile.
type actorDoc struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Name              string `json:"name"`
	Summary           string `json:"summary"`
	Inbox             string `json:"inbox"`
	Outbox            string `json:"outbox"`
	Followers         string `json:"followers"`
	Featured          string `json:"featured"`
	MovedTo           string `json:"movedTo"`
	PublicKey         struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
	Icon struct {
		URL string `json:"url"`
	} `json:"icon"`
	Endpoints struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
}

// FetchActor dereferences and validates a remote actor profile, consuming
// one unit of the resolver's budget.
func FetchActor(res *Resolver, actorURI string) (*domain.RemoteAccount, error) {
	body, err := res.FetchDocument(actorURI)
	if err != nil {
		return nil, err
	}

	var doc actorDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("activitypub: malformed actor document: %w", err)
	}
	if doc.Type == "Tombstone" {
		return nil, ErrGone
	}
	if !isActorType(doc.Type) {
		return nil, fmt.Errorf("activitypub: document at %s is a %s, not an actor", actorURI, doc.Type)
	}
	if doc.ID == "" || !sameHost(doc.ID, actorURI) {
		return nil, fmt.Errorf("activitypub: actor id %s does not match fetched host %s", doc.ID, hostOf(actorURI))
	}
	if doc.Inbox == "" {
		return nil, fmt.Errorf("activitypub: actor %s has no inbox", doc.ID)
	}

	username := doc.PreferredUsername
	if username == "" {
		username = doc.ID
	}
	return &domain.RemoteAccount{
		Id:            uuid.New(),
		Username:      username,
		Domain:        hostOf(doc.ID),
		ActorURI:      doc.ID,
		DisplayName:   doc.Name,
		Summary:       doc.Summary,
		InboxURI:      doc.Inbox,
		OutboxURI:     doc.Outbox,
		FollowersURI:  doc.Followers,
		FeaturedURI:   doc.Featured,
		PublicKeyPem:  doc.PublicKey.PublicKeyPem,
		AvatarURL:     doc.Icon.URL,
		MovedToURI:    doc.MovedTo,
		LastFetchedAt: time.Now(),
	}, nil
}

// resolveActor returns the cached account for an actor URI, fetching and
// caching it on first contact. A stale cache entry is returned as-is and a
// refresh job is queued; the inbound request never waits on a profile
// refresh.
func (d *Dispatcher) resolveActor(res *Resolver, actorURI string) (*domain.RemoteAccount, error) {
	err, cached := d.Store.ReadRemoteAccountByURI(actorURI)
	if err == nil && cached != nil {
		if time.Since(cached.LastFetchedAt) > actorMaxAge {
			if jobErr := d.Store.EnqueueJob(domain.JobRefreshActor, actorURI); jobErr != nil {
				log.Printf("Actors: could not queue refresh for %s: %s", actorURI, jobErr)
			}
		}
		return cached, nil
	}

	acc, err := FetchActor(res, actorURI)
	if err != nil {
		return nil, err
	}
	if err := d.Store.CreateRemoteAccount(acc); err != nil {
		if db.IsUniqueConstraint(err) {
			// concurrent first contact, use whichever row won
			if err2, existing := d.Store.ReadRemoteAccountByURI(actorURI); err2 == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return acc, nil
}

// ActorForKey resolves the account owning a signature keyId, fetching and
// caching the profile on first contact.
func (d *Dispatcher) ActorForKey(keyId string) (*domain.RemoteAccount, error) {
	actorURI := strings.Split(keyId, "#")[0]
	if d.newResolver().HostBlocked(actorURI) {
		return nil, ErrHostBlocked
	}
	return d.resolveActor(d.newResolver(), actorURI)
}

// RefreshActor re-fetches a cached profile in place. Used by the background
// job worker.
func RefreshActor(store *db.DB, res *Resolver, actorURI string) error {
	acc, err := FetchActor(res, actorURI)
	if err != nil {
		return err
	}
	return store.UpdateRemoteAccount(acc)
}
