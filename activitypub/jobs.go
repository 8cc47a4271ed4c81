package activitypub

import (
	"fmt"
	"log"
	"time"

	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
)

const (
	jobBatchSize   = 20
	jobMaxAttempts = 5
)

// StartJobWorker starts the background worker for fire-and-forget jobs:
// actor profile refreshes and account purge cascades. These run off the
// inbound request path so a slow remote server never delays an activity's
// outcome.
func StartJobWorker(store *db.DB, fetch Fetcher, conf *util.AppConfig) {
	log.Println("JobWorker: starting")

	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for range ticker.C {
			processJobQueue(store, fetch, conf)
		}
	}()
}

func processJobQueue(store *db.DB, fetch Fetcher, conf *util.AppConfig) {
	err, jobs := store.ReadPendingJobs(jobBatchSize)
	if err != nil {
		log.Printf("JobWorker: failed to read queue: %v", err)
		return
	}
	if jobs == nil || len(*jobs) == 0 {
		return
	}

	for _, job := range *jobs {
		if err := runJob(store, fetch, conf, &job); err != nil {
			job.Attempts++
			if job.Attempts >= jobMaxAttempts {
				log.Printf("JobWorker: giving up on %s %s after %d attempts: %v", job.Kind, job.Payload, job.Attempts, err)
				store.DeleteJob(job.Id)
				continue
			}
			backoff := time.Duration(job.Attempts) * 5 * time.Minute
			log.Printf("JobWorker: %s %s failed (attempt %d): %v", job.Kind, job.Payload, job.Attempts, err)
			store.UpdateJobAttempt(job.Id, job.Attempts, time.Now().Add(backoff))
		} else {
			store.DeleteJob(job.Id)
		}
	}
}

func runJob(store *db.DB, fetch Fetcher, conf *util.AppConfig, job *domain.BackgroundJob) error {
	switch job.Kind {
	case domain.JobRefreshActor:
		res := NewResolver(fetch, conf.Conf.RecursionLimit, conf.Conf.BlockedHosts)
		return RefreshActor(store, res, job.Payload)
	case domain.JobPurgeActor:
		return purgeActor(store, job.Payload)
	default:
		return fmt.Errorf("unknown job kind %s", job.Kind)
	}
}

// purgeActor removes every trace of a deleted remote account: its notes,
// follows, reactions, logged activities, and finally the cached profile.
func purgeActor(store *db.DB, actorURI string) error {
	err, acc := store.ReadRemoteAccountByURI(actorURI)
	if err != nil || acc == nil {
		// already purged
		return nil
	}

	if err := store.DeleteRemoteNotesByActorURI(actorURI); err != nil {
		return err
	}
	if err := store.DeleteFollowsByAccountId(acc.Id); err != nil {
		return err
	}
	if err := store.DeleteReactionsByAccountId(acc.Id); err != nil {
		return err
	}
	if err := store.DeleteActivitiesByActorURI(actorURI); err != nil {
		return err
	}
	if err := store.DeleteRemoteAccount(acc.Id); err != nil {
		return err
	}
	log.Printf("JobWorker: purged %s", actorURI)
	return nil
}
