package activitypub

import (
	"log"
	"sync"
)

// inboxDelivery is one queued payload together with the actor the transport
// authenticated it against.
type inboxDelivery struct {
	deliveredBy string
	raw         []byte
}

// InboxQueue decouples the inbound HTTP endpoint from activity processing:
// the handler validates, stores the raw payload, responds 202, and hands the
// payload here. A small worker pool drains it.
type InboxQueue struct {
	dispatcher *Dispatcher
	jobs       chan inboxDelivery
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewInboxQueue(dispatcher *Dispatcher, workers int, depth int) *InboxQueue {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 256
	}
	q := &InboxQueue{
		dispatcher: dispatcher,
		jobs:       make(chan inboxDelivery, depth),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *InboxQueue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.dispatcher.Perform(job.deliveredBy, job.raw); err != nil {
			log.Printf("InboxQueue: activity failed: %s", err)
		}
	}
}

// Submit queues a raw activity payload on behalf of the authenticated actor.
// Returns false when the queue is full so the endpoint can ask the remote
// server to retry later.
func (q *InboxQueue) Submit(deliveredBy string, raw []byte) bool {
	select {
	case q.jobs <- inboxDelivery{deliveredBy: deliveredBy, raw: raw}:
		return true
	default:
		log.Printf("InboxQueue: full, dropping delivery")
		return false
	}
}

// Close stops accepting work and waits for in-flight activities to finish.
func (q *InboxQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.jobs)
	})
	q.wg.Wait()
}
