package activitypub

import (
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
)

// PublicURI is the well-known ActivityStreams public collection.
const PublicURI = "https://www.w3.org/ns/activitystreams#Public"

// isPublicURI accepts the aliases some implementations send.
func isPublicURI(uri string) bool {
	return uri == PublicURI || uri == "Public" || uri == "as:Public"
}

func containsPublic(list StringList) bool {
	for _, uri := range list {
		if isPublicURI(uri) {
			return true
		}
	}
	return false
}

// RecipientLookup resolves one Specified addressee to an actor record, or
// nil when the addressee cannot be resolved.
type RecipientLookup func(uri string) *domain.RemoteAccount

// StoredRecipients resolves addressees against cached remote accounts only.
// Used where the recipient set is not acted on, such as deriving a resolved
// target's visibility.
func StoredRecipients(store *db.DB) RecipientLookup {
	return func(uri string) *domain.RemoteAccount {
		err, acc := store.ReadRemoteAccountByURI(uri)
		if err != nil || acc == nil {
			return nil
		}
		return acc
	}
}

// recipientLookup resolves Specified addressees the way the inbox needs:
// local accounts by username, remote actors from the cache or a fresh fetch
// on the activity's budget. Unresolvable addressees drop out.
func (d *Dispatcher) recipientLookup(res *Resolver) RecipientLookup {
	return func(uri string) *domain.RemoteAccount {
		if username := LocalUsernameFromURI(d.Conf, uri); username != "" {
			err, local := d.Store.ReadAccByUsername(username)
			if err != nil || local == nil {
				return nil
			}
			// a local addressee rides along by URI, never as a remote row
			return &domain.RemoteAccount{
				Id:       local.Id,
				Username: local.Username,
				Domain:   d.Conf.Conf.SslDomain,
				ActorURI: uri,
			}
		}
		acc, err := d.resolveActor(res, uri)
		if err != nil {
			return nil
		}
		return acc
	}
}

// ParseAudience maps the to/cc addressing of an activity to a visibility
// scope. Precedence: public in to wins, then public in cc, then the author's
// followers collection; anything else is a direct message to the listed
// recipients, each independently resolved through lookup.
func ParseAudience(lookup RecipientLookup, to StringList, cc StringList, followersURI string) domain.Audience {
	if containsPublic(to) {
		return domain.Audience{Visibility: domain.VisibilityPublic}
	}
	if containsPublic(cc) {
		return domain.Audience{Visibility: domain.VisibilityHome}
	}
	if followersURI != "" && (to.Contains(followersURI) || cc.Contains(followersURI)) {
		return domain.Audience{Visibility: domain.VisibilityFollowers}
	}

	aud := domain.Audience{Visibility: domain.VisibilitySpecified}
	seen := make(map[string]bool)
	for _, uri := range append(append(StringList{}, to...), cc...) {
		if uri == "" || seen[uri] || uri == followersURI {
			continue
		}
		seen[uri] = true
		if acc := lookup(uri); acc != nil {
			aud.Recipients = append(aud.Recipients, acc)
		}
	}
	return aud
}

// RenderAudience is the inverse of ParseAudience: it produces to/cc lists
// that parse back to the same visibility.
func RenderAudience(aud domain.Audience, followersURI string) (to StringList, cc StringList) {
	switch aud.Visibility {
	case domain.VisibilityPublic:
		to = StringList{PublicURI}
		if followersURI != "" {
			cc = StringList{followersURI}
		}
	case domain.VisibilityHome:
		if followersURI != "" {
			to = StringList{followersURI}
		}
		cc = StringList{PublicURI}
	case domain.VisibilityFollowers:
		if followersURI != "" {
			to = StringList{followersURI}
		}
	case domain.VisibilitySpecified:
		for _, acc := range aud.Recipients {
			to = append(to, acc.ActorURI)
		}
	}
	return to, cc
}
