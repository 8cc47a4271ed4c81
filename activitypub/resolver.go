package activitypub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Resolver dereferences object references on behalf of a single inbound
// activity. Every dispatch gets a fresh Resolver so the fetch budget is
// scoped to that activity, including everything its handlers resolve
// transitively.
type Resolver struct {
	fetch        Fetcher
	remaining    int
	blockedHosts []string
}

func NewResolver(fetch Fetcher, budget int, blockedHosts []string) *Resolver {
	return &Resolver{fetch: fetch, remaining: budget, blockedHosts: blockedHosts}
}

// Remaining returns the unused portion of the fetch budget.
func (r *Resolver) Remaining() int {
	return r.remaining
}

// CheckBudget fails without fetching when fewer than n dereferences remain.
// Batch handlers call this up front so an oversized batch is rejected before
// any partial work happens.
func (r *Resolver) CheckBudget(n int) error {
	if r.remaining < n {
		return ErrRecursionLimit
	}
	return nil
}

// HostBlocked reports whether the URI points at a blocked instance.
// Subdomains of a blocked host are blocked too.
func (r *Resolver) HostBlocked(uri string) bool {
	host := hostOf(uri)
	if host == "" {
		return false
	}
	for _, blocked := range r.blockedHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// Resolve turns a reference into an object document. Inline documents are
// decoded without consuming budget; bare URIs cost one fetch each. The
// budget check happens before the fetch, so a denied fetch never goes out.
func (r *Resolver) Resolve(ref ObjectRef) (*Object, error) {
	if ref.IsInline() {
		return decodeObject(ref.Raw)
	}
	return r.ResolveURI(ref.URI)
}

// ResolveURI dereferences a bare URI, consuming one unit of budget.
func (r *Resolver) ResolveURI(uri string) (*Object, error) {
	body, err := r.FetchDocument(uri)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		// a Tombstone still carries its formerType for the caller
		if errors.Is(err, ErrGone) {
			return obj, err
		}
		return nil, err
	}
	// anti-spoofing: the document must live where we fetched it from
	if obj.ID != "" && !sameHost(obj.ID, uri) {
		return nil, fmt.Errorf("activitypub: document id %s does not match fetched host %s", obj.ID, hostOf(uri))
	}
	return obj, nil
}

// FetchDocument performs the guarded dereference and returns the raw body.
// The budget check happens before the fetch; a denied fetch never goes out.
func (r *Resolver) FetchDocument(uri string) ([]byte, error) {
	if uri == "" {
		return nil, fmt.Errorf("activitypub: empty object reference")
	}
	if !strings.HasPrefix(uri, "https://") && !strings.HasPrefix(uri, "http://") {
		return nil, ErrSchemeNotAllowed
	}
	if r.HostBlocked(uri) {
		return nil, ErrHostBlocked
	}
	if r.remaining <= 0 {
		return nil, ErrRecursionLimit
	}
	r.remaining--

	status, body, err := r.fetch.Fetch(uri)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &FetchError{URI: uri, Status: status}
	}
	return body, nil
}

func decodeObject(raw []byte) (*Object, error) {
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("activitypub: malformed object document: %w", err)
	}
	if obj.Type == "" {
		return nil, fmt.Errorf("activitypub: object document has no type")
	}
	if obj.Type == "Tombstone" {
		return &obj, ErrGone
	}
	if !knownObjectTypes[obj.Type] {
		return nil, fmt.Errorf("activitypub: unknown object type %s", obj.Type)
	}
	return &obj, nil
}
