package activitypub

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/util"
)

// ActorURI is the canonical ActivityPub id of a local account.
func ActorURI(conf *util.AppConfig, username string) string {
	return fmt.Sprintf("https://%s/users/%s", conf.Conf.SslDomain, username)
}

// NoteURI is the canonical ActivityPub id of a local note.
func NoteURI(conf *util.AppConfig, id uuid.UUID) string {
	return fmt.Sprintf("https://%s/notes/%s", conf.Conf.SslDomain, id.String())
}

// FollowersURI is the followers collection of a local account.
func FollowersURI(conf *util.AppConfig, username string) string {
	return ActorURI(conf, username) + "/followers"
}

// OutboxURI is the outbox collection of a local account.
func OutboxURI(conf *util.AppConfig, username string) string {
	return ActorURI(conf, username) + "/outbox"
}

// InboxURI is the inbox endpoint of a local account.
func InboxURI(conf *util.AppConfig, username string) string {
	return ActorURI(conf, username) + "/inbox"
}

// KeyURI is the id of a local account's signing key.
func KeyURI(conf *util.AppConfig, username string) string {
	return ActorURI(conf, username) + "#main-key"
}

// IsLocalURI reports whether the URI lives on this instance.
func IsLocalURI(conf *util.AppConfig, uri string) bool {
	host := hostOf(uri)
	return host == conf.Conf.SslDomain
}

// LocalUsernameFromURI extracts the username from a local actor URI, or ""
// when the URI is not a local actor.
func LocalUsernameFromURI(conf *util.AppConfig, uri string) string {
	if !IsLocalURI(conf, uri) {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	rest, ok := strings.CutPrefix(parsed.Path, "/users/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

// LocalNoteIdFromURI extracts the note id from a local note URI.
func LocalNoteIdFromURI(conf *util.AppConfig, uri string) (uuid.UUID, bool) {
	if !IsLocalURI(conf, uri) {
		return uuid.Nil, false
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return uuid.Nil, false
	}
	rest, ok := strings.CutPrefix(parsed.Path, "/notes/")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
