package domain

import (
	"github.com/google/uuid"
	"time"
)

// RemoteAccount represents a cached federated user
type RemoteAccount struct {
	Id            uuid.UUID
	Username      string
	Domain        string
	ActorURI      string
	DisplayName   string
	Summary       string
	InboxURI      string
	OutboxURI     string
	FollowersURI  string
	FeaturedURI   string
	PublicKeyPem  string
	AvatarURL     string
	MovedToURI    string // set when the actor announced a Move
	LastFetchedAt time.Time
}

// Follow represents a follow relationship
type Follow struct {
	Id              uuid.UUID
	AccountId       uuid.UUID // Can be local or remote account
	TargetAccountId uuid.UUID // Can be local or remote account
	URI             string    // ActivityPub Follow activity URI
	CreatedAt       time.Time
	Accepted        bool
}

// Reaction represents a reaction (Like) on a note, local or remote.
type Reaction struct {
	Id        uuid.UUID
	AccountId uuid.UUID // reacting account (remote account id for inbound Likes)
	NoteURI   string    // URI of the reacted note
	Content   string    // emoji or reaction shortcode
	URI       string    // ActivityPub Like activity URI
	CreatedAt time.Time
}

// Block records that a remote actor blocked a local account.
type Block struct {
	Id        uuid.UUID
	ActorURI  string
	AccountId uuid.UUID
	URI       string // ActivityPub Block activity URI
	CreatedAt time.Time
}

// Report is a stored Flag activity.
type Report struct {
	Id         uuid.UUID
	ActorURI   string
	ObjectURIs string // space-joined URIs of the flagged objects
	Comment    string
	CreatedAt  time.Time
}

// Relay is a registered relay actor whose Announces take the lightweight
// broadcast path.
type Relay struct {
	Id        uuid.UUID
	ActorURI  string
	InboxURI  string
	CreatedAt time.Time
}

// Activity represents an ActivityPub activity (for logging/deduplication)
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Follow, Create, Like, Announce, Undo, etc.
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Processed    bool
	CreatedAt    time.Time
	Local        bool // true if originated from this server
}

// DeliveryQueueItem represents an item in the delivery queue
type DeliveryQueueItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActivityJSON string // The complete activity to deliver
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}

// BackgroundJob is a fire-and-forget job (actor profile refresh, account
// purge cascade) processed outside the inbound request path.
type BackgroundJob struct {
	Id          uuid.UUID
	Kind        string // "refresh_actor", "purge_actor"
	Payload     string
	Attempts    int
	NextRetryAt time.Time
	CreatedAt   time.Time
}

const (
	JobRefreshActor = "refresh_actor"
	JobPurgeActor   = "purge_actor"
)
