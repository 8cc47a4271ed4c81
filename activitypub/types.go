package activitypub

import (
	"bytes"
	"encoding/json"
	"net/url"
	"time"
)

// StringList unmarshals a JSON value that is either a single string or an
// array. Non-string array members (inline objects in to/cc) are ignored.
type StringList []string

func (s *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = nil
		return nil
	}
	if b[0] == '"' {
		var single string
		if err := json.Unmarshal(b, &single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out StringList
	for _, item := range raw {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			out = append(out, str)
		}
	}
	*s = out
	return nil
}

func (s StringList) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// ObjectRef is a reference to an ActivityPub object: either a bare URI or an
// inline JSON document. For inline documents the id, if present, is also
// extracted into URI.
type ObjectRef struct {
	URI string
	Raw json.RawMessage
}

func (r *ObjectRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = ObjectRef{}
		return nil
	}
	if b[0] == '"' {
		var uri string
		if err := json.Unmarshal(b, &uri); err != nil {
			return err
		}
		*r = ObjectRef{URI: uri}
		return nil
	}
	r.Raw = append(json.RawMessage(nil), b...)
	var probe struct {
		ID string `json:"id"`
	}
	// arrays (e.g. Flag object lists) have no single id
	if err := json.Unmarshal(b, &probe); err == nil {
		r.URI = probe.ID
	}
	return nil
}

func (r ObjectRef) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(r.URI)
}

func (r ObjectRef) IsInline() bool {
	return len(r.Raw) > 0
}

func (r ObjectRef) IsZero() bool {
	return r.URI == "" && len(r.Raw) == 0
}

// URIs returns all URIs named by the reference: the single URI, or every
// string member when the reference is an array (Flag activities).
func (r ObjectRef) URIs() []string {
	if len(r.Raw) > 0 && r.Raw[0] == '[' {
		var list StringList
		if err := json.Unmarshal(r.Raw, &list); err == nil {
			return list
		}
		return nil
	}
	if r.URI != "" {
		return []string{r.URI}
	}
	return nil
}

// Activity is the generic envelope of an inbound activity.
type Activity struct {
	Context         interface{}       `json:"@context,omitempty"`
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Actor           string            `json:"actor"`
	Object          ObjectRef         `json:"object"`
	Target          ObjectRef         `json:"target"`
	To              StringList        `json:"to"`
	CC              StringList        `json:"cc"`
	Published       string            `json:"published"`
	Content         string            `json:"content"`
	Name            string            `json:"name"`
	MisskeyReaction string            `json:"_misskey_reaction"`
	Items           []json.RawMessage `json:"items"`
	OrderedItems    []json.RawMessage `json:"orderedItems"`
}

// IsCollection reports whether the payload is a one-level activity batch.
func (a *Activity) IsCollection() bool {
	return a.Type == "Collection" || a.Type == "OrderedCollection"
}

// CollectionItems returns the batch items of a Collection payload.
func (a *Activity) CollectionItems() []json.RawMessage {
	if len(a.OrderedItems) > 0 {
		return a.OrderedItems
	}
	return a.Items
}

// Object is a resolved ActivityPub object document.
type Object struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Actor           string            `json:"actor"`
	AttributedTo    string            `json:"attributedTo"`
	Content         string            `json:"content"`
	Summary         string            `json:"summary"`
	Name            string            `json:"name"`
	Published       string            `json:"published"`
	Updated         string            `json:"updated"`
	To              StringList        `json:"to"`
	CC              StringList        `json:"cc"`
	InReplyTo       ObjectRef         `json:"inReplyTo"`
	Object          ObjectRef         `json:"object"`
	Target          ObjectRef         `json:"target"`
	FormerType      string            `json:"formerType"`
	MisskeyReaction string            `json:"_misskey_reaction"`
	TotalItems      int               `json:"totalItems"`
	First           ObjectRef         `json:"first"`
	Next            ObjectRef         `json:"next"`
	PartOf          string            `json:"partOf"`
	Items           []json.RawMessage `json:"items"`
	OrderedItems    []json.RawMessage `json:"orderedItems"`
}

// PageItems returns the items of a collection page.
func (o *Object) PageItems() []json.RawMessage {
	if len(o.OrderedItems) > 0 {
		return o.OrderedItems
	}
	return o.Items
}

// PublishedAt parses the published timestamp.
func (o *Object) PublishedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, o.Published)
}

var knownObjectTypes = map[string]bool{
	"Note": true, "Article": true, "Question": true, "Page": true,
	"Person": true, "Service": true, "Application": true, "Group": true, "Organization": true,
	"Collection": true, "OrderedCollection": true,
	"CollectionPage": true, "OrderedCollectionPage": true,
	"Tombstone": true, "Event": true, "Image": true, "Video": true, "Audio": true, "Document": true,
}

func isActorType(t string) bool {
	switch t {
	case "Person", "Service", "Application", "Group", "Organization":
		return true
	}
	return false
}

func isNoteType(t string) bool {
	switch t {
	case "Note", "Article", "Question", "Page":
		return true
	}
	return false
}

func isCollectionType(t string) bool {
	switch t {
	case "Collection", "OrderedCollection", "CollectionPage", "OrderedCollectionPage":
		return true
	}
	return false
}

// hostOf extracts the authority of a URI; empty on parse failure.
func hostOf(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// sameHost reports whether two URIs share an authority. Unparsable URIs
// never match anything.
func sameHost(a, b string) bool {
	ha, hb := hostOf(a), hostOf(b)
	return ha != "" && ha == hb
}
