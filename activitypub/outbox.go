package activitypub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
)

const outboxPageSize = 20

// RenderActor renders a local account as an ActivityPub actor document.
func RenderActor(conf *util.AppConfig, account *domain.Account) map[string]interface{} {
	actorURI := ActorURI(conf, account.Username)
	return map[string]interface{}{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":                        actorURI,
		"type":                      "Person",
		"preferredUsername":         account.Username,
		"name":                      account.DisplayName,
		"summary":                   account.Summary,
		"url":                       actorURI,
		"inbox":                     InboxURI(conf, account.Username),
		"outbox":                    OutboxURI(conf, account.Username),
		"followers":                 FollowersURI(conf, account.Username),
		"manuallyApprovesFollowers": false,
		"discoverable":              true,
		"endpoints": map[string]interface{}{
			"sharedInbox": fmt.Sprintf("https://%s/inbox", conf.Conf.SslDomain),
		},
		"publicKey": map[string]interface{}{
			"id":           KeyURI(conf, account.Username),
			"owner":        actorURI,
			"publicKeyPem": account.WebPublicKey,
		},
	}
}

// RenderNote renders a local note as an ActivityPub Note document. The to/cc
// lists come from the same audience rule the inbox uses to parse them.
func RenderNote(conf *util.AppConfig, account *domain.Account, note *domain.Note) map[string]interface{} {
	actorURI := ActorURI(conf, account.Username)
	to, cc := RenderAudience(domain.Audience{Visibility: note.Visibility}, FollowersURI(conf, account.Username))

	doc := map[string]interface{}{
		"id":           NoteURI(conf, note.Id),
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      util.MarkdownLinksToHTML(note.Message),
		"published":    note.CreatedAt.UTC().Format(time.RFC3339),
		"to":           to,
		"cc":           cc,
	}
	if note.InReplyToURI != "" {
		doc["inReplyTo"] = note.InReplyToURI
	}
	if note.EditedAt != nil {
		doc["updated"] = note.EditedAt.UTC().Format(time.RFC3339)
	}
	return doc
}

// RenderOutbox renders the outbox collection header of a local account.
func RenderOutbox(conf *util.AppConfig, account *domain.Account, totalItems int) map[string]interface{} {
	outboxURI := OutboxURI(conf, account.Username)
	return map[string]interface{}{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         outboxURI,
		"type":       "OrderedCollection",
		"totalItems": totalItems,
		"first":      outboxURI + "?page=1",
	}
}

// RenderOutboxPage renders one page of Create activities for the account's
// notes. Page numbers start at 1.
func RenderOutboxPage(conf *util.AppConfig, account *domain.Account, notes []domain.Note, page int, hasNext bool) map[string]interface{} {
	outboxURI := OutboxURI(conf, account.Username)
	actorURI := ActorURI(conf, account.Username)

	items := make([]map[string]interface{}, 0, len(notes))
	for i := range notes {
		note := &notes[i]
		noteDoc := RenderNote(conf, account, note)
		items = append(items, map[string]interface{}{
			"id":        NoteURI(conf, note.Id) + "/activity",
			"type":      "Create",
			"actor":     actorURI,
			"published": note.CreatedAt.UTC().Format(time.RFC3339),
			"to":        noteDoc["to"],
			"cc":        noteDoc["cc"],
			"object":    noteDoc,
		})
	}

	doc := map[string]interface{}{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           fmt.Sprintf("%s?page=%d", outboxURI, page),
		"type":         "OrderedCollectionPage",
		"partOf":       outboxURI,
		"orderedItems": items,
	}
	if hasNext {
		doc["next"] = fmt.Sprintf("%s?page=%d", outboxURI, page+1)
	}
	return doc
}

// RenderFollowers renders the followers collection header. Only the count is
// exposed, never the member list.
func RenderFollowers(conf *util.AppConfig, account *domain.Account, totalItems int) map[string]interface{} {
	return map[string]interface{}{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         FollowersURI(conf, account.Username),
		"type":       "OrderedCollection",
		"totalItems": totalItems,
	}
}

// SendFollow records a pending outbound follow and queues the Follow
// activity for delivery.
func (d *Dispatcher) SendFollow(local *domain.Account, remoteActorURI string) error {
	res := d.newResolver()
	remote, err := d.resolveActor(res, remoteActorURI)
	if err != nil {
		return fmt.Errorf("failed to fetch remote actor: %w", err)
	}

	localURI := ActorURI(d.Conf, local.Username)
	followID := fmt.Sprintf("https://%s/activities/%s", d.Conf.Conf.SslDomain, uuid.New().String())

	record := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       local.Id,
		TargetAccountId: remote.Id,
		URI:             followID,
		Accepted:        false, // pending until Accept arrives
		CreatedAt:       time.Now(),
	}
	if err := d.Store.CreateFollow(record); err != nil {
		if db.IsUniqueConstraint(err) {
			return fmt.Errorf("already following %s", remoteActorURI)
		}
		return fmt.Errorf("failed to store follow: %w", err)
	}

	follow := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       followID,
		"type":     "Follow",
		"actor":    localURI,
		"object":   remoteActorURI,
	}
	return enqueue(d.Store, remote.InboxURI, follow)
}
