package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

type SaveNote struct {
	UserId  uuid.UUID
	Message string
}

// Note is a note authored by a local account.
type Note struct {
	Id        uuid.UUID
	CreatedBy string
	Message   string
	CreatedAt time.Time
	EditedAt  *time.Time // When the note was last edited (nil if never edited)
	// ActivityPub fields
	Visibility   Visibility
	InReplyToURI string // URI of the note this is replying to
	ObjectURI    string // ActivityPub object URI
	Federated    bool   // Whether to federate this note
}

func (note *Note) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tCreatedBy: %s \n\tMessage: %s \n\tCreatedAt: %s)", note.Id, note.CreatedBy, note.Message, note.CreatedAt)
}

// RemoteNote is a locally materialized copy of a note published by a remote
// actor. Renotes (Announce) are stored as a RemoteNote whose RenoteOfURI
// points at the announced object.
type RemoteNote struct {
	Id            uuid.UUID
	URI           string // ActivityPub object URI (or Announce activity URI for renotes)
	ActorURI      string
	Content       string
	Summary       string // content warning
	Published     time.Time
	Visibility    Visibility
	RecipientURIs string // space-joined actor URIs for Specified visibility
	InReplyToURI  string
	RenoteOfURI   string
	Pinned        bool
	CreatedAt     time.Time
}

func (n *RemoteNote) IsRenote() bool {
	return n.RenoteOfURI != ""
}
