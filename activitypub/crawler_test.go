package activitypub

import (
	"errors"
	"fmt"
	"testing"
)

// outboxWithCreates serves an outbox of n inline Create activities for the
// given actor.
func outboxWithCreates(fetch *fakeFetcher, actorURI string, n int) {
	items := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			items += ","
		}
		noteURI := fmt.Sprintf("%s/notes/%d", actorURI, i)
		items += fmt.Sprintf(`{
			"id": "%s/activity",
			"type": "Create",
			"actor": "%s",
			"object": {
				"id": "%s",
				"type": "Note",
				"attributedTo": "%s",
				"content": "note %d",
				"published": "2026-08-01T10:00:00Z",
				"to": ["https://www.w3.org/ns/activitystreams#Public"]
			}
		}`, noteURI, actorURI, noteURI, actorURI, i)
	}
	fetch.serve(actorURI+"/outbox", 200, fmt.Sprintf(`{
		"id": "%s/outbox",
		"type": "OrderedCollection",
		"totalItems": %d,
		"orderedItems": [%s]
	}`, actorURI, n, items))
}

func TestCrawlBackfillsNotes(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	actorURI := "https://remote.example/users/alice"
	serveActor(fetch, actorURI, "alice")
	outboxWithCreates(fetch, actorURI, 5)

	report, err := d.Crawl(actorURI, CrawlOptions{})
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if report.Created != 5 {
		t.Errorf("Expected 5 created notes, got %d", report.Created)
	}

	for i := 0; i < 5; i++ {
		noteURI := fmt.Sprintf("%s/notes/%d", actorURI, i)
		if !d.noteExists(noteURI) {
			t.Errorf("Expected note %s to be materialized", noteURI)
		}
	}
}

func TestCrawlIsIdempotent(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	actorURI := "https://remote.example/users/alice"
	serveActor(fetch, actorURI, "alice")
	outboxWithCreates(fetch, actorURI, 5)

	first, err := d.Crawl(actorURI, CrawlOptions{})
	if err != nil {
		t.Fatalf("First crawl failed: %v", err)
	}
	if first.Created != 5 {
		t.Fatalf("Expected 5 created on first crawl, got %d", first.Created)
	}

	second, err := d.Crawl(actorURI, CrawlOptions{})
	if err != nil {
		t.Fatalf("Second crawl failed: %v", err)
	}
	if second.Created != 0 {
		t.Errorf("Second crawl over unchanged outbox must create nothing, got %d", second.Created)
	}
	if second.Skipped != 5 {
		t.Errorf("Expected 5 skips on second crawl, got %d", second.Skipped)
	}
}

func TestCrawlRejectsLocalActor(t *testing.T) {
	d, _ := newTestDispatcher(t)
	_, err := d.Crawl(fmt.Sprintf("https://%s/users/bob", testDomain), CrawlOptions{})
	if !errors.Is(err, ErrLocalActor) {
		t.Fatalf("Expected ErrLocalActor, got %v", err)
	}
}

func TestCrawlRequiresOutbox(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	actorURI := "https://remote.example/users/noout"
	fetch.serve(actorURI, 200, fmt.Sprintf(`{
		"id": "%s",
		"type": "Person",
		"preferredUsername": "noout",
		"inbox": "%s/inbox"
	}`, actorURI, actorURI))

	_, err := d.Crawl(actorURI, CrawlOptions{})
	if !errors.Is(err, ErrNoOutbox) {
		t.Fatalf("Expected ErrNoOutbox, got %v", err)
	}
}

func TestCrawlItemBound(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	d.Conf.Conf.CrawlMaxItems = 3
	d.Conf.Conf.RecursionLimit = 50
	actorURI := "https://remote.example/users/alice"
	serveActor(fetch, actorURI, "alice")
	outboxWithCreates(fetch, actorURI, 10)

	report, err := d.Crawl(actorURI, CrawlOptions{})
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if report.Items != 3 {
		t.Errorf("Expected the item bound to stop at 3, processed %d", report.Items)
	}
	if report.Created != 3 {
		t.Errorf("Expected 3 created notes, got %d", report.Created)
	}
}

func TestCrawlSkipsAnnouncesUnlessRequested(t *testing.T) {
	d, fetch := newTestDispatcher(t)
	actorURI := "https://remote.example/users/alice"
	targetURI := "https://other.example/notes/far"
	serveActor(fetch, actorURI, "alice")
	fetch.serve(actorURI+"/outbox", 200, fmt.Sprintf(`{
		"id": "%s/outbox",
		"type": "OrderedCollection",
		"totalItems": 1,
		"orderedItems": [{
			"id": "%s/announces/1",
			"type": "Announce",
			"actor": "%s",
			"object": "%s",
			"to": ["https://www.w3.org/ns/activitystreams#Public"]
		}]
	}`, actorURI, actorURI, actorURI, targetURI))

	report, err := d.Crawl(actorURI, CrawlOptions{IncludeAnnounce: false})
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if report.Created != 0 || report.Skipped != 1 {
		t.Errorf("Expected the announce to be skipped, report %+v", report)
	}
	if fetch.callCount(targetURI) != 0 {
		t.Error("Skipped announce must not fetch its target")
	}
}
