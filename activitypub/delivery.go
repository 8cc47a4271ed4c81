package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
)

const (
	deliveryBatchSize   = 50
	deliveryMaxAttempts = 10
)

// StartDeliveryWorker starts the background worker draining the outbound
// delivery queue.
func StartDeliveryWorker(store *db.DB, conf *util.AppConfig) {
	log.Println("DeliveryWorker: starting")

	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			processDeliveryQueue(store, conf)
		}
	}()
}

func processDeliveryQueue(store *db.DB, conf *util.AppConfig) {
	err, items := store.ReadPendingDeliveries(deliveryBatchSize)
	if err != nil {
		log.Printf("DeliveryWorker: failed to read queue: %v", err)
		return
	}
	if items == nil || len(*items) == 0 {
		return
	}

	log.Printf("DeliveryWorker: processing %d pending deliveries", len(*items))

	for _, item := range *items {
		if err := deliverActivity(store, &item, conf); err != nil {
			item.Attempts++
			backoffMinutes := []int{1, 5, 15, 60, 240, 1440}[min(item.Attempts-1, 5)]
			item.NextRetryAt = time.Now().Add(time.Duration(backoffMinutes) * time.Minute)

			if item.Attempts >= deliveryMaxAttempts {
				log.Printf("DeliveryWorker: giving up on delivery to %s after %d attempts", item.InboxURI, item.Attempts)
				store.DeleteDelivery(item.Id)
			} else {
				log.Printf("DeliveryWorker: delivery to %s failed (attempt %d), retry in %dm: %v",
					item.InboxURI, item.Attempts, backoffMinutes, err)
				store.UpdateDeliveryAttempt(item.Id, item.Attempts, item.NextRetryAt)
			}
		} else {
			log.Printf("DeliveryWorker: delivered to %s", item.InboxURI)
			store.DeleteDelivery(item.Id)
		}
	}
}

func deliverActivity(store *db.DB, item *domain.DeliveryQueueItem, conf *util.AppConfig) error {
	var activity map[string]interface{}
	if err := json.Unmarshal([]byte(item.ActivityJSON), &activity); err != nil {
		return fmt.Errorf("failed to parse activity JSON: %w", err)
	}

	actor, ok := activity["actor"].(string)
	if !ok {
		return fmt.Errorf("activity missing actor field")
	}
	username := LocalUsernameFromURI(conf, actor)
	if username == "" {
		return fmt.Errorf("actor %s is not local", actor)
	}

	err, localAccount := store.ReadAccByUsername(username)
	if err != nil {
		return fmt.Errorf("failed to get local account: %w", err)
	}

	privateKey, err := ParsePrivateKey(localAccount.WebPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	req, err := http.NewRequest("POST", item.InboxURI, bytes.NewReader([]byte(item.ActivityJSON)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", util.GetNameAndVersion())
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if err := SignRequest(req, privateKey, KeyURI(conf, username)); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}

// queueAccept renders and enqueues the Accept for an inbound Follow.
func (d *Dispatcher) queueAccept(local *domain.Account, actor *domain.RemoteAccount, followAct *Activity) error {
	localURI := ActorURI(d.Conf, local.Username)
	accept := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       fmt.Sprintf("%s/accepts/%s", localURI, uuid.New().String()),
		"type":     "Accept",
		"actor":    localURI,
		"object": map[string]interface{}{
			"id":     followAct.ID,
			"type":   "Follow",
			"actor":  actor.ActorURI,
			"object": localURI,
		},
	}
	return enqueue(d.Store, actor.InboxURI, accept)
}

// FederateNote renders a local note as a Create and enqueues a delivery to
// every accepted follower's inbox.
func FederateNote(store *db.DB, conf *util.AppConfig, account *domain.Account, note *domain.Note) error {
	noteURI := NoteURI(conf, note.Id)
	actorURI := ActorURI(conf, account.Username)

	aud := domain.Audience{Visibility: note.Visibility}
	to, cc := RenderAudience(aud, FollowersURI(conf, account.Username))

	create := map[string]interface{}{
		"@context":  "https://www.w3.org/ns/activitystreams",
		"id":        noteURI + "/activity",
		"type":      "Create",
		"actor":     actorURI,
		"to":        to,
		"cc":        cc,
		"published": note.CreatedAt.UTC().Format(time.RFC3339),
		"object": map[string]interface{}{
			"id":           noteURI,
			"type":         "Note",
			"attributedTo": actorURI,
			"content":      util.MarkdownLinksToHTML(note.Message),
			"published":    note.CreatedAt.UTC().Format(time.RFC3339),
			"to":           to,
			"cc":           cc,
		},
	}

	err, followers := store.ReadFollowersByAccountId(account.Id)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, follow := range *followers {
		err, remote := store.ReadRemoteAccountById(follow.AccountId)
		if err != nil || remote == nil || remote.InboxURI == "" {
			continue
		}
		if seen[remote.InboxURI] {
			continue
		}
		seen[remote.InboxURI] = true
		if err := enqueue(store, remote.InboxURI, create); err != nil {
			log.Printf("Delivery: could not enqueue to %s: %v", remote.InboxURI, err)
		}
	}
	return nil
}

// SubscribeRelay registers a relay and queues the Follow handshake to its
// inbox.
func SubscribeRelay(store *db.DB, conf *util.AppConfig, account *domain.Account, relayActorURI string, relayInboxURI string) error {
	relay := &domain.Relay{
		Id:        uuid.New(),
		ActorURI:  relayActorURI,
		InboxURI:  relayInboxURI,
		CreatedAt: time.Now(),
	}
	if err := store.CreateRelay(relay); err != nil && !db.IsUniqueConstraint(err) {
		return err
	}

	localURI := ActorURI(conf, account.Username)
	follow := map[string]interface{}{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       fmt.Sprintf("%s/follows/%s", localURI, uuid.New().String()),
		"type":     "Follow",
		"actor":    localURI,
		"object":   PublicURI,
	}
	return enqueue(store, relayInboxURI, follow)
}

func enqueue(store *db.DB, inboxURI string, activity map[string]interface{}) error {
	raw, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return store.EnqueueDelivery(&domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     inboxURI,
		ActivityJSON: string(raw),
		NextRetryAt:  time.Now(),
		CreatedAt:    time.Now(),
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
