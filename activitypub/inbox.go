package activitypub

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
)

// skip logs a non-fatal per-activity outcome and drops the activity. The
// remote sender never sees these; redelivering the same payload later yields
// the same skip.
func skip(reason string, args ...interface{}) error {
	log.Printf("Inbox: skip: "+reason, args...)
	return nil
}

// resolveOrSkip classifies a resolution failure: budget exhaustion and
// retryable fetch errors propagate, everything terminal becomes a skip.
func resolveOrSkip(uri string, err error) (skipped bool, out error) {
	if isFatal(err) {
		return false, err
	}
	if isSkippable(err) {
		log.Printf("Inbox: skip: could not resolve %s: %s", uri, err)
		return true, nil
	}
	return false, err
}

// Create materializes a remote note. The lock is keyed by the note's URI so
// two concurrent deliveries of the same Create cannot both observe "absent".
func (d *Dispatcher) create(res *Resolver, actor *domain.RemoteAccount, act *Activity) error {
	objURI := act.Object.URI
	if act.Object.IsZero() {
		return skip("Create from %s has no object", actor.ActorURI)
	}
	if objURI != "" {
		if err := requireSameHost(actor.ActorURI, objURI); err != nil {
			return skip("host mismatch: %s", err)
		}
	}

	key := objURI
	if key == "" {
		key = act.ID
	}
	release := d.Locks.Acquire(key)
	defer release()

	if objURI != "" && d.noteExists(objURI) {
		return skip("note %s already exists", objURI)
	}

	obj, err := res.Resolve(act.Object)
	if err != nil {
		if skipped, serr := resolveOrSkip(objURI, err); skipped || serr != nil {
			return serr
		}
	}
	return d.materializeNote(res, actor, act, obj)
}

// materializeNote validates provenance and persists a resolved note
// document. Shared by the Create handler and the outbox crawler; the caller
// holds the lock.
func (d *Dispatcher) materializeNote(res *Resolver, actor *domain.RemoteAccount, act *Activity, obj *Object) error {
	if !isNoteType(obj.Type) {
		return skip("Create object type %s is not a note", obj.Type)
	}
	if obj.ID == "" {
		return skip("note from %s has no id", actor.ActorURI)
	}
	if err := requireSameHost(actor.ActorURI, obj.ID); err != nil {
		return skip("host mismatch: %s", err)
	}
	if obj.AttributedTo != "" && obj.AttributedTo != actor.ActorURI {
		return skip("note %s attributed to %s, delivered by %s", obj.ID, obj.AttributedTo, actor.ActorURI)
	}

	to, cc := obj.To, obj.CC
	if len(to) == 0 && len(cc) == 0 {
		to, cc = act.To, act.CC
	}
	aud := ParseAudience(d.recipientLookup(res), to, cc, actor.FollowersURI)

	published, err := obj.PublishedAt()
	if err != nil {
		published = time.Now()
	}

	note := &domain.RemoteNote{
		Id:            uuid.New(),
		URI:           obj.ID,
		ActorURI:      actor.ActorURI,
		Content:       obj.Content,
		Summary:       obj.Summary,
		Published:     published,
		Visibility:    aud.Visibility,
		RecipientURIs: db.JoinURIs(recipientURIs(aud)),
		InReplyToURI:  obj.InReplyTo.URI,
		CreatedAt:     time.Now(),
	}
	if err := d.Store.CreateRemoteNote(note); err != nil {
		if db.IsUniqueConstraint(err) {
			return skip("note %s already exists", obj.ID)
		}
		return err
	}
	log.Printf("Inbox: ok: note %s from %s", obj.ID, actor.ActorURI)
	return nil
}

func recipientURIs(aud domain.Audience) []string {
	var uris []string
	for _, acc := range aud.Recipients {
		uris = append(uris, acc.ActorURI)
	}
	return uris
}

// Update edits a note we already hold, or refreshes the sending actor's own
// profile.
func (d *Dispatcher) update(res *Resolver, actor *domain.RemoteAccount, act *Activity) error {
	if act.Object.IsZero() {
		return skip("Update from %s has no object", actor.ActorURI)
	}

	// actor updating its own profile
	if act.Object.URI == actor.ActorURI {
		return d.updateActorProfile(actor, act)
	}

	objURI := act.Object.URI
	if objURI != "" {
		if err := requireSameHost(actor.ActorURI, objURI); err != nil {
			return skip("host mismatch: %s", err)
		}
	}

	release := d.Locks.Acquire(objURI)
	defer release()

	err, existing := d.Store.ReadRemoteNoteByURI(objURI)
	if err == sql.ErrNoRows {
		return skip("Update for unknown note %s", objURI)
	}
	if err != nil {
		return err
	}
	if existing.ActorURI != actor.ActorURI {
		return skip("note %s belongs to %s, Update sent by %s", objURI, existing.ActorURI, actor.ActorURI)
	}

	obj, err := res.Resolve(act.Object)
	if err != nil {
		if skipped, serr := resolveOrSkip(objURI, err); skipped || serr != nil {
			return serr
		}
	}
	if !isNoteType(obj.Type) {
		return skip("Update object type %s is not a note", obj.Type)
	}
	if err := d.Store.UpdateRemoteNoteContent(objURI, obj.Content, obj.Summary); err != nil {
		return err
	}
	log.Printf("Inbox: ok: updated note %s", objURI)
	return nil
}

func (d *Dispatcher) updateActorProfile(actor *domain.RemoteAccount, act *Activity) error {
	if !act.Object.IsInline() {
		// re-fetch off the request path
		return d.Store.EnqueueJob(domain.JobRefreshActor, actor.ActorURI)
	}
	var doc actorDoc
	if err := json.Unmarshal(act.Object.Raw, &doc); err != nil {
		return skip("malformed actor document in Update from %s", actor.ActorURI)
	}
	if !isActorType(doc.Type) {
		return skip("Update object type %s is not an actor", doc.Type)
	}
	actor.DisplayName = doc.Name
	actor.Summary = doc.Summary
	if doc.Inbox != "" {
		actor.InboxURI = doc.Inbox
	}
	if doc.Outbox != "" {
		actor.OutboxURI = doc.Outbox
	}
	if doc.Followers != "" {
		actor.FollowersURI = doc.Followers
	}
	if doc.Featured != "" {
		actor.FeaturedURI = doc.Featured
	}
	if doc.PublicKey.PublicKeyPem != "" {
		actor.PublicKeyPem = doc.PublicKey.PublicKeyPem
	}
	actor.AvatarURL = doc.Icon.URL
	actor.LastFetchedAt = time.Now()
	if err := d.Store.UpdateRemoteAccount(actor); err != nil {
		return err
	}
	log.Printf("Inbox: ok: refreshed profile %s", actor.ActorURI)
	return nil
}

// Delete removes a note, or queues an actor purge. The former type is taken
// from a Tombstone's formerType, an inline object's type, the actor/object
// URI coincidence, and finally defaults to Note.
func (d *Dispatcher) delete(actor *domain.RemoteAccount, act *Activity) error {
	if act.Object.IsZero() {
		return skip("Delete from %s has no object", actor.ActorURI)
	}
	objURI := act.Object.URI

	formerType := "Note"
	if act.Object.IsInline() {
		var probe struct {
			Type       string `json:"type"`
			FormerType string `json:"formerType"`
		}
		if err := json.Unmarshal(act.Object.Raw, &probe); err == nil {
			switch {
			case probe.Type == "Tombstone" && probe.FormerType != "":
				formerType = probe.FormerType
			case probe.Type != "" && probe.Type != "Tombstone":
				formerType = probe.Type
			}
		}
	}
	if objURI == actor.ActorURI {
		formerType = "Person"
	}

	if isActorType(formerType) {
		if objURI != actor.ActorURI {
			return skip("Delete of actor %s sent by %s", objURI, actor.ActorURI)
		}
		// deletion cascades run off the request path
		if err := d.Store.EnqueueJob(domain.JobPurgeActor, actor.ActorURI); err != nil {
			return err
		}
		log.Printf("Inbox: ok: queued purge of %s", actor.ActorURI)
		return nil
	}

	if err := requireSameHost(actor.ActorURI, objURI); err != nil {
		return skip("host mismatch: %s", err)
	}

	release := d.Locks.Acquire(objURI)
	defer release()

	err, existing := d.Store.ReadRemoteNoteByURI(objURI)
	if err == sql.ErrNoRows {
		return skip("Delete for unknown note %s", objURI)
	}
	if err != nil {
		return err
	}
	if existing.ActorURI != actor.ActorURI {
		return skip("note %s belongs to %s, Delete sent by %s", objURI, existing.ActorURI, actor.ActorURI)
	}
	if err := d.Store.DeleteRemoteNoteByURI(objURI); err != nil {
		return err
	}
	log.Printf("Inbox: ok: deleted note %s", objURI)
	return nil
}

// Follow subscribes a remote actor to a local account. The relationship is
// auto-accepted and the Accept is queued for delivery.
func (d *Dispatcher) follow(actor *domain.RemoteAccount, act *Activity) error {
	username := LocalUsernameFromURI(d.Conf, act.Object.URI)
	if username == "" {
		return skip("Follow target %s is not a local actor", act.Object.URI)
	}
	err, local := d.Store.ReadAccByUsername(username)
	if err == sql.ErrNoRows {
		return skip("Follow target %s does not exist", act.Object.URI)
	}
	if err != nil {
		return err
	}

	err, existing := d.Store.ReadFollowByAccounts(actor.Id, local.Id)
	if err == nil && existing != nil {
		return skip("%s already follows %s", actor.ActorURI, username)
	}

	follow := &domain.Follow{
		Id:              uuid.New(),
		AccountId:       actor.Id,
		TargetAccountId: local.Id,
		URI:             act.ID,
		CreatedAt:       time.Now(),
		Accepted:        true,
	}
	if err := d.Store.CreateFollow(follow); err != nil {
		if db.IsUniqueConstraint(err) {
			return skip("%s already follows %s", actor.ActorURI, username)
		}
		return err
	}

	if err := d.queueAccept(local, actor, act); err != nil {
		log.Printf("Inbox: could not queue Accept for %s: %s", act.ID, err)
	}
	log.Printf("Inbox: ok: %s follows %s", actor.ActorURI, username)
	return nil
}

// Accept confirms a follow request this instance originated.
func (d *Dispatcher) accept(actor *domain.RemoteAccount, act *Activity) error {
	wrapped, err := d.wrappedActivity(act)
	if err != nil {
		return skip("Accept from %s wraps nothing usable: %s", actor.ActorURI, err)
	}
	if wrapped.Type != "Follow" {
		return skip("Accept of %s is not supported", wrapped.Type)
	}
	err, follow := d.Store.ReadFollowByURI(wrapped.ID)
	if err == sql.ErrNoRows || follow == nil {
		return skip("Accept for unknown follow %s", wrapped.ID)
	}
	if err != nil {
		return err
	}
	// only a follow we sent to this actor is genuinely pending
	if follow.TargetAccountId != actor.Id {
		return skip("Accept for follow %s sent by wrong actor %s", wrapped.ID, actor.ActorURI)
	}
	if follow.Accepted {
		return skip("follow %s already accepted", wrapped.ID)
	}
	if err := d.Store.AcceptFollowByURI(wrapped.ID); err != nil {
		return err
	}
	log.Printf("Inbox: ok: follow %s accepted", wrapped.ID)
	return nil
}

// Reject withdraws a follow request this instance originated.
func (d *Dispatcher) reject(actor *domain.RemoteAccount, act *Activity) error {
	wrapped, err := d.wrappedActivity(act)
	if err != nil {
		return skip("Reject from %s wraps nothing usable: %s", actor.ActorURI, err)
	}
	if wrapped.Type != "Follow" {
		return skip("Reject of %s is not supported", wrapped.Type)
	}
	err, follow := d.Store.ReadFollowByURI(wrapped.ID)
	if err == sql.ErrNoRows || follow == nil {
		return skip("Reject for unknown follow %s", wrapped.ID)
	}
	if err != nil {
		return err
	}
	if follow.TargetAccountId != actor.Id {
		return skip("Reject for follow %s sent by wrong actor %s", wrapped.ID, actor.ActorURI)
	}
	if err := d.Store.DeleteFollowByURI(wrapped.ID); err != nil {
		return err
	}
	log.Printf("Inbox: ok: follow %s rejected", wrapped.ID)
	return nil
}

// Undo reverses a previously applied activity. Undoing something not
// currently in effect is a skip.
func (d *Dispatcher) undo(actor *domain.RemoteAccount, act *Activity) error {
	wrapped, err := d.wrappedActivity(act)
	if err != nil {
		return skip("Undo from %s wraps nothing usable: %s", actor.ActorURI, err)
	}
	if wrapped.Actor != "" && wrapped.Actor != actor.ActorURI {
		return skip("Undo by %s of an activity by %s", actor.ActorURI, wrapped.Actor)
	}

	switch wrapped.Type {
	case "Follow":
		return d.undoFollow(actor, wrapped)
	case "Like", "EmojiReaction", "EmojiReact":
		return d.undoLike(actor, wrapped)
	case "Announce":
		return d.undoAnnounce(actor, wrapped)
	case "Block":
		return d.undoBlock(actor, wrapped)
	case "Accept":
		return d.undoAccept(actor, wrapped)
	default:
		return skip("Undo of %s is not supported", wrapped.Type)
	}
}

func (d *Dispatcher) undoFollow(actor *domain.RemoteAccount, wrapped *Activity) error {
	err, follow := d.Store.ReadFollowByURI(wrapped.ID)
	if err == sql.ErrNoRows || follow == nil {
		// fall back to the account pair for senders that mint fresh ids
		username := LocalUsernameFromURI(d.Conf, wrapped.Object.URI)
		if username == "" {
			return skip("Undo Follow for unknown follow %s", wrapped.ID)
		}
		accErr, local := d.Store.ReadAccByUsername(username)
		if accErr != nil {
			return skip("Undo Follow for unknown follow %s", wrapped.ID)
		}
		pairErr, pair := d.Store.ReadFollowByAccounts(actor.Id, local.Id)
		if pairErr != nil || pair == nil {
			return skip("%s does not follow %s", actor.ActorURI, username)
		}
		follow = pair
	} else if err != nil {
		return err
	}
	if follow.AccountId != actor.Id {
		return skip("Undo Follow %s sent by wrong actor %s", follow.URI, actor.ActorURI)
	}
	if err := d.Store.DeleteFollowByURI(follow.URI); err != nil {
		return err
	}
	log.Printf("Inbox: ok: %s unfollowed", actor.ActorURI)
	return nil
}

func (d *Dispatcher) undoLike(actor *domain.RemoteAccount, wrapped *Activity) error {
	err, reaction := d.Store.ReadReactionByURI(wrapped.ID)
	if err == sql.ErrNoRows || reaction == nil {
		return skip("Undo Like for unknown reaction %s", wrapped.ID)
	}
	if err != nil {
		return err
	}
	if reaction.AccountId != actor.Id {
		return skip("Undo Like %s sent by wrong actor %s", wrapped.ID, actor.ActorURI)
	}
	if err := d.Store.DeleteReactionByURI(wrapped.ID); err != nil {
		return err
	}
	log.Printf("Inbox: ok: reaction %s removed", wrapped.ID)
	return nil
}

func (d *Dispatcher) undoAnnounce(actor *domain.RemoteAccount, wrapped *Activity) error {
	release := d.Locks.Acquire(wrapped.ID)
	defer release()

	err, renote := d.Store.ReadRemoteNoteByURI(wrapped.ID)
	if err == sql.ErrNoRows || renote == nil {
		return skip("Undo Announce for unknown renote %s", wrapped.ID)
	}
	if err != nil {
		return err
	}
	if renote.ActorURI != actor.ActorURI {
		return skip("Undo Announce %s sent by wrong actor %s", wrapped.ID, actor.ActorURI)
	}
	if err := d.Store.DeleteRemoteNoteByURI(wrapped.ID); err != nil {
		return err
	}
	log.Printf("Inbox: ok: renote %s removed", wrapped.ID)
	return nil
}

func (d *Dispatcher) undoBlock(actor *domain.RemoteAccount, wrapped *Activity) error {
	err, block := d.Store.ReadBlockByURI(wrapped.ID)
	if err == sql.ErrNoRows || block == nil {
		return skip("Undo Block for unknown block %s", wrapped.ID)
	}
	if err != nil {
		return err
	}
	if block.ActorURI != actor.ActorURI {
		return skip("Undo Block %s sent by wrong actor %s", wrapped.ID, actor.ActorURI)
	}
	if err := d.Store.DeleteBlockByURI(wrapped.ID); err != nil {
		return err
	}
	log.Printf("Inbox: ok: block %s removed", wrapped.ID)
	return nil
}

func (d *Dispatcher) undoAccept(actor *domain.RemoteAccount, wrapped *Activity) error {
	followURI := wrapped.Object.URI
	err, follow := d.Store.ReadFollowByURI(followURI)
	if err == sql.ErrNoRows || follow == nil {
		return skip("Undo Accept for unknown follow %s", followURI)
	}
	if err != nil {
		return err
	}
	if follow.TargetAccountId != actor.Id {
		return skip("Undo Accept %s sent by wrong actor %s", followURI, actor.ActorURI)
	}
	if !follow.Accepted {
		return skip("follow %s is not accepted", followURI)
	}
	if err := d.Store.UnacceptFollowByURI(followURI); err != nil {
		return err
	}
	log.Printf("Inbox: ok: follow %s unaccepted", followURI)
	return nil
}

// Like records a reaction on a note held locally. The reaction content is
// taken from _misskey_reaction, then content, then name.
func (d *Dispatcher) like(actor *domain.RemoteAccount, act *Activity) error {
	noteURI := act.Object.URI
	if noteURI == "" {
		return skip("Like from %s has no object", actor.ActorURI)
	}

	release := d.Locks.Acquire(noteURI)
	defer release()

	if !d.noteExists(noteURI) {
		return skip("Like for unknown note %s", noteURI)
	}

	content := act.MisskeyReaction
	if content == "" {
		content = act.Content
	}
	if content == "" {
		content = act.Name
	}
	if content == "" {
		content = "👍"
	}

	if act.ID != "" {
		if err, existing := d.Store.ReadReactionByURI(act.ID); err == nil && existing != nil {
			return skip("already reacted: %s", act.ID)
		}
	}
	if err, existing := d.Store.ReadReactionByAccountAndNote(actor.Id, noteURI); err == nil && existing != nil {
		return skip("already reacted: %s on %s", actor.ActorURI, noteURI)
	}

	reaction := &domain.Reaction{
		Id:        uuid.New(),
		AccountId: actor.Id,
		NoteURI:   noteURI,
		Content:   content,
		URI:       act.ID,
		CreatedAt: time.Now(),
	}
	if err := d.Store.CreateReaction(reaction); err != nil {
		if db.IsUniqueConstraint(err) {
			return skip("already reacted: %s on %s", actor.ActorURI, noteURI)
		}
		return err
	}
	log.Printf("Inbox: ok: %s reacted %s on %s", actor.ActorURI, content, noteURI)
	return nil
}

// Announce materializes a renote. Relay-sourced announces take a lightweight
// path that bypasses the visibility gate; everyone else must be allowed to
// see the target, and the announce may not predate it.
func (d *Dispatcher) announce(res *Resolver, actor *domain.RemoteAccount, act *Activity) error {
	targetURI := act.Object.URI
	if targetURI == "" {
		return skip("Announce from %s has no object", actor.ActorURI)
	}
	if act.ID == "" {
		return skip("Announce from %s has no id", actor.ActorURI)
	}
	// checked before any fetch goes out
	if res.HostBlocked(targetURI) {
		return skip("Announce target host %s is blocked", hostOf(targetURI))
	}

	release := d.Locks.Acquire(act.ID)
	defer release()

	if errNote, existing := d.Store.ReadRemoteNoteByURI(act.ID); errNote == nil && existing != nil {
		return skip("renote %s already exists", act.ID)
	}

	if err, relay := d.Store.ReadRelayByActorURI(actor.ActorURI); err == nil && relay != nil {
		return d.relayAnnounce(actor, act, targetURI)
	}

	targetPublished, targetVisibility, found, err := d.announceTarget(res, targetURI)
	if err != nil {
		if skipped, serr := resolveOrSkip(targetURI, err); skipped || serr != nil {
			return serr
		}
	}
	if !found {
		return skip("Announce target %s could not be resolved", targetURI)
	}

	if !targetVisibility.Announceable() {
		return skip("target %s visibility %s is not announceable", targetURI, targetVisibility)
	}
	if act.Published != "" {
		announced, perr := time.Parse(time.RFC3339, act.Published)
		if perr != nil {
			return skip("Announce %s has malformed timestamp %q", act.ID, act.Published)
		}
		if !targetPublished.IsZero() && announced.Before(targetPublished) {
			return skip("Announce %s predates its target", act.ID)
		}
	}

	aud := ParseAudience(d.recipientLookup(res), act.To, act.CC, actor.FollowersURI)
	renote := &domain.RemoteNote{
		Id:            uuid.New(),
		URI:           act.ID,
		ActorURI:      actor.ActorURI,
		Published:     time.Now(),
		Visibility:    aud.Visibility,
		RecipientURIs: db.JoinURIs(recipientURIs(aud)),
		RenoteOfURI:   targetURI,
		CreatedAt:     time.Now(),
	}
	if act.Published != "" {
		if announced, perr := time.Parse(time.RFC3339, act.Published); perr == nil {
			renote.Published = announced
		}
	}
	if err := d.Store.CreateRemoteNote(renote); err != nil {
		if db.IsUniqueConstraint(err) {
			return skip("renote %s already exists", act.ID)
		}
		return err
	}
	log.Printf("Inbox: ok: %s renoted %s", actor.ActorURI, targetURI)
	return nil
}

// relayAnnounce stores a renote pointing at the target without dereferencing
// it. Relays broadcast public content in bulk; the full note is only fetched
// if something later asks for it.
func (d *Dispatcher) relayAnnounce(actor *domain.RemoteAccount, act *Activity, targetURI string) error {
	published := time.Now()
	if act.Published != "" {
		if announced, perr := time.Parse(time.RFC3339, act.Published); perr == nil {
			published = announced
		}
	}
	renote := &domain.RemoteNote{
		Id:          uuid.New(),
		URI:         act.ID,
		ActorURI:    actor.ActorURI,
		Published:   published,
		Visibility:  domain.VisibilityPublic,
		RenoteOfURI: targetURI,
		CreatedAt:   time.Now(),
	}
	if err := d.Store.CreateRemoteNote(renote); err != nil {
		if db.IsUniqueConstraint(err) {
			return skip("renote %s already exists", act.ID)
		}
		return err
	}
	log.Printf("Inbox: ok: relay %s announced %s", actor.ActorURI, targetURI)
	return nil
}

// announceTarget finds the announced note locally or resolves it remotely,
// returning its published time and visibility.
func (d *Dispatcher) announceTarget(res *Resolver, targetURI string) (time.Time, domain.Visibility, bool, error) {
	if id, ok := LocalNoteIdFromURI(d.Conf, targetURI); ok {
		err, note := d.Store.ReadNoteId(id)
		if err != nil || note == nil {
			return time.Time{}, "", false, nil
		}
		return note.CreatedAt, note.Visibility, true, nil
	}

	err, existing := d.Store.ReadRemoteNoteByURI(targetURI)
	if err == nil && existing != nil {
		return existing.Published, existing.Visibility, true, nil
	}

	obj, err := res.ResolveURI(targetURI)
	if err != nil {
		return time.Time{}, "", false, err
	}
	if !isNoteType(obj.Type) {
		return time.Time{}, "", false, nil
	}
	published, perr := obj.PublishedAt()
	if perr != nil {
		published = time.Time{}
	}
	aud := ParseAudience(StoredRecipients(d.Store), obj.To, obj.CC, "")
	return published, aud.Visibility, true, nil
}

// Add pins a note to the actor's featured collection.
func (d *Dispatcher) add(actor *domain.RemoteAccount, act *Activity) error {
	return d.setPinned(actor, act, true)
}

// Remove unpins it.
func (d *Dispatcher) remove(actor *domain.RemoteAccount, act *Activity) error {
	return d.setPinned(actor, act, false)
}

func (d *Dispatcher) setPinned(actor *domain.RemoteAccount, act *Activity, pinned bool) error {
	if actor.FeaturedURI == "" || act.Target.URI != actor.FeaturedURI {
		return skip("Add/Remove target %s is not the featured collection of %s", act.Target.URI, actor.ActorURI)
	}
	noteURI := act.Object.URI
	err, note := d.Store.ReadRemoteNoteByURI(noteURI)
	if err == sql.ErrNoRows || note == nil {
		return skip("pin for unknown note %s", noteURI)
	}
	if err != nil {
		return err
	}
	if note.ActorURI != actor.ActorURI {
		return skip("note %s belongs to %s, pin sent by %s", noteURI, note.ActorURI, actor.ActorURI)
	}
	if err := d.Store.SetRemoteNotePinned(noteURI, pinned); err != nil {
		return err
	}
	log.Printf("Inbox: ok: note %s pinned=%t", noteURI, pinned)
	return nil
}

// Block records that a remote actor blocked a local account.
func (d *Dispatcher) block(actor *domain.RemoteAccount, act *Activity) error {
	username := LocalUsernameFromURI(d.Conf, act.Object.URI)
	if username == "" {
		return skip("Block target %s is not a local actor", act.Object.URI)
	}
	err, local := d.Store.ReadAccByUsername(username)
	if err == sql.ErrNoRows {
		return skip("Block target %s does not exist", act.Object.URI)
	}
	if err != nil {
		return err
	}
	block := &domain.Block{
		Id:        uuid.New(),
		ActorURI:  actor.ActorURI,
		AccountId: local.Id,
		URI:       act.ID,
		CreatedAt: time.Now(),
	}
	if err := d.Store.CreateBlock(block); err != nil {
		if db.IsUniqueConstraint(err) {
			return skip("%s already blocked %s", actor.ActorURI, username)
		}
		return err
	}
	log.Printf("Inbox: ok: %s blocked %s", actor.ActorURI, username)
	return nil
}

// Flag stores a remote moderation report.
func (d *Dispatcher) flag(actor *domain.RemoteAccount, act *Activity) error {
	uris := act.Object.URIs()
	if len(uris) == 0 {
		return skip("Flag from %s names no objects", actor.ActorURI)
	}
	report := &domain.Report{
		Id:         uuid.New(),
		ActorURI:   actor.ActorURI,
		ObjectURIs: db.JoinURIs(uris),
		Comment:    act.Content,
		CreatedAt:  time.Now(),
	}
	if err := d.Store.CreateReport(report); err != nil {
		return err
	}
	log.Printf("Inbox: ok: report from %s on %d objects", actor.ActorURI, len(uris))
	return nil
}

// Move records that the actor migrated to another account.
func (d *Dispatcher) move(actor *domain.RemoteAccount, act *Activity) error {
	if act.Object.URI != "" && act.Object.URI != actor.ActorURI {
		return skip("Move object %s is not the sending actor %s", act.Object.URI, actor.ActorURI)
	}
	target := act.Target.URI
	if target == "" {
		return skip("Move from %s names no target", actor.ActorURI)
	}
	if err := d.Store.UpdateRemoteAccountMovedTo(actor.ActorURI, target); err != nil {
		return err
	}
	log.Printf("Inbox: ok: %s moved to %s", actor.ActorURI, target)
	return nil
}

// wrappedActivity decodes the activity wrapped by an Undo/Accept/Reject.
// A bare URI is looked up in the activity log instead of being re-fetched.
func (d *Dispatcher) wrappedActivity(act *Activity) (*Activity, error) {
	if act.Object.IsZero() {
		return nil, fmt.Errorf("no wrapped object")
	}
	if act.Object.IsInline() {
		var wrapped Activity
		if err := json.Unmarshal(act.Object.Raw, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Type == "" {
			return nil, fmt.Errorf("wrapped object has no type")
		}
		return &wrapped, nil
	}
	err, logged := d.Store.ReadActivityByURI(act.Object.URI)
	if err != nil || logged == nil {
		// unknown reference, let the handler decide what the bare id undoes
		return &Activity{ID: act.Object.URI, Type: "Follow", Object: ObjectRef{}}, nil
	}
	var wrapped Activity
	if jerr := json.Unmarshal([]byte(logged.RawJSON), &wrapped); jerr != nil {
		return nil, jerr
	}
	return &wrapped, nil
}

// noteExists reports whether a note URI is materialized locally, as either a
// local note or a remote copy.
func (d *Dispatcher) noteExists(uri string) bool {
	if id, ok := LocalNoteIdFromURI(d.Conf, uri); ok {
		err, note := d.Store.ReadNoteId(id)
		return err == nil && note != nil
	}
	err, note := d.Store.ReadRemoteNoteByURI(uri)
	return err == nil && note != nil
}
