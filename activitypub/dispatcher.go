package activitypub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
)

// Dispatcher performs inbound activities: it validates the envelope, resolves
// the actor, and routes to the per-verb handler. One Dispatcher serves the
// whole process; every call to Perform gets its own Resolver so each
// delivery has an independent fetch budget.
type Dispatcher struct {
	Store *db.DB
	Fetch Fetcher
	Locks *LockManager
	Conf  *util.AppConfig
}

func NewDispatcher(store *db.DB, fetch Fetcher, conf *util.AppConfig) *Dispatcher {
	return &Dispatcher{
		Store: store,
		Fetch: fetch,
		Locks: NewLockManager(),
		Conf:  conf,
	}
}

func (d *Dispatcher) newResolver() *Resolver {
	return NewResolver(d.Fetch, d.Conf.Conf.RecursionLimit, d.Conf.Conf.BlockedHosts)
}

// Perform processes one inbound delivery. deliveredBy is the URI of the
// actor the transport authenticated (the signature's key owner); every
// activity in the delivery must name an actor on that host, so a batch cannot
// smuggle in items attributed to a foreign instance. A Collection or
// OrderedCollection payload is flattened one level and its items share a
// single fetch budget; the whole batch is rejected before any item runs if
// the item count alone exceeds that budget. Per-item failures are logged and
// skipped, except budget exhaustion, which aborts the rest of the batch.
func (d *Dispatcher) Perform(deliveredBy string, raw []byte) error {
	var envelope Activity
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("activitypub: malformed activity: %w", err)
	}

	res := d.newResolver()

	if envelope.IsCollection() {
		items := envelope.CollectionItems()
		if err := res.CheckBudget(len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if err := d.performOne(res, deliveredBy, item); err != nil {
				if isFatal(err) {
					return err
				}
				log.Printf("Inbox: skipping batch item: %s", err)
			}
		}
		return nil
	}

	return d.performOne(res, deliveredBy, raw)
}

func (d *Dispatcher) performOne(res *Resolver, deliveredBy string, raw []byte) error {
	var act Activity
	if err := json.Unmarshal(raw, &act); err != nil {
		return fmt.Errorf("activitypub: malformed activity: %w", err)
	}
	if act.Type == "" {
		return fmt.Errorf("activitypub: activity has no type")
	}
	if act.Actor == "" {
		return fmt.Errorf("activitypub: activity has no actor")
	}
	// the named actor must live on the authenticated sender's host
	if deliveredBy != "" && !sameHost(deliveredBy, act.Actor) {
		return fmt.Errorf("activitypub: activity actor %s is not on delivering host %s", act.Actor, hostOf(deliveredBy))
	}
	if res.HostBlocked(act.Actor) {
		return ErrHostBlocked
	}

	// nested collections don't flatten
	if act.IsCollection() {
		return fmt.Errorf("activitypub: nested collection not allowed")
	}

	actor, err := d.resolveActor(res, act.Actor)
	if err != nil {
		return err
	}

	record, seen, err := d.recordActivity(&act, raw)
	if err != nil {
		return err
	}
	if seen {
		log.Printf("Inbox: skip: activity %s already processed", act.ID)
		return nil
	}

	handlerErr := d.dispatchVerb(res, actor, &act)
	if handlerErr != nil && record != nil {
		// keep the log honest: a failed activity may be redelivered
		d.Store.DeleteActivity(record.Id)
	}
	return handlerErr
}

func (d *Dispatcher) dispatchVerb(res *Resolver, actor *domain.RemoteAccount, act *Activity) error {
	switch act.Type {
	case "Create":
		return d.create(res, actor, act)
	case "Update":
		return d.update(res, actor, act)
	case "Delete":
		return d.delete(actor, act)
	case "Follow":
		return d.follow(actor, act)
	case "Accept":
		return d.accept(actor, act)
	case "Reject":
		return d.reject(actor, act)
	case "Undo":
		return d.undo(actor, act)
	case "Like", "EmojiReaction", "EmojiReact":
		return d.like(actor, act)
	case "Announce":
		return d.announce(res, actor, act)
	case "Add":
		return d.add(actor, act)
	case "Remove":
		return d.remove(actor, act)
	case "Block":
		return d.block(actor, act)
	case "Flag":
		return d.flag(actor, act)
	case "Move":
		return d.move(actor, act)
	case "Read", "Invite", "Join", "Leave":
		// received but intentionally not acted on
		log.Printf("Inbox: ignoring %s from %s", act.Type, actor.ActorURI)
		return nil
	default:
		return fmt.Errorf("activitypub: unhandled activity type %s", act.Type)
	}
}

// recordActivity stores the delivery in the activity log and reports whether
// the URI was already logged, which keeps redelivery harmless.
func (d *Dispatcher) recordActivity(act *Activity, raw []byte) (*domain.Activity, bool, error) {
	if act.ID == "" {
		// transient activity without an id, nothing to deduplicate on
		return nil, false, nil
	}
	record := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  act.ID,
		ActivityType: act.Type,
		ActorURI:     act.Actor,
		ObjectURI:    act.Object.URI,
		RawJSON:      string(raw),
		Processed:    true,
		CreatedAt:    time.Now(),
	}
	if err := d.Store.CreateActivity(record); err != nil {
		if db.IsUniqueConstraint(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return record, false, nil
}

// requireSameHost enforces that an activity only carries objects from its
// actor's own instance.
func requireSameHost(actorURI string, objectURI string) error {
	if !sameHost(actorURI, objectURI) {
		return fmt.Errorf("activitypub: object %s is not on actor host %s", objectURI, hostOf(actorURI))
	}
	return nil
}

// isSkippable reports whether a resolution failure should drop the activity
// rather than fail the delivery: terminal fetch statuses, tombstones, blocked
// or unfetchable references.
func isSkippable(err error) bool {
	if errors.Is(err, ErrGone) || errors.Is(err, ErrSchemeNotAllowed) || errors.Is(err, ErrHostBlocked) {
		return true
	}
	var ferr *FetchError
	if errors.As(err, &ferr) {
		return !ferr.Retryable()
	}
	return false
}
