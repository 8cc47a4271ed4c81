package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/domain"
)

// Remote Accounts queries
const (
	sqlInsertRemoteAccount = `INSERT INTO remote_accounts(id, username, domain, actor_uri, display_name, summary, inbox_uri, outbox_uri, followers_uri, featured_uri, public_key_pem, avatar_url, moved_to_uri, last_fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRemoteAccount = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, outbox_uri, followers_uri, featured_uri, public_key_pem, avatar_url, moved_to_uri, last_fetched_at FROM remote_accounts`
	sqlUpdateRemoteAccount = `UPDATE remote_accounts SET display_name = ?, summary = ?, inbox_uri = ?, outbox_uri = ?, followers_uri = ?, featured_uri = ?, public_key_pem = ?, avatar_url = ?, last_fetched_at = ? WHERE actor_uri = ?`
	sqlUpdateRemoteMovedTo = `UPDATE remote_accounts SET moved_to_uri = ? WHERE actor_uri = ?`
	sqlDeleteRemoteAccount = `DELETE FROM remote_accounts WHERE id = ?`
)

func (db *DB) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRemoteAccount,
			acc.Id.String(),
			acc.Username,
			acc.Domain,
			acc.ActorURI,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.FeaturedURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			acc.MovedToURI,
			acc.LastFetchedAt,
		)
		return err
	})
}

func (db *DB) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteAccount,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.FeaturedURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			acc.LastFetchedAt,
			acc.ActorURI,
		)
		return err
	})
}

func (db *DB) UpdateRemoteAccountMovedTo(actorURI string, movedToURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteMovedTo, movedToURI, actorURI)
		return err
	})
}

func (db *DB) DeleteRemoteAccount(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteRemoteAccount, id.String())
		return err
	})
}

func (db *DB) ReadRemoteAccountByURI(uri string) (error, *domain.RemoteAccount) {
	row := db.db.QueryRow(sqlSelectRemoteAccount+` WHERE actor_uri = ?`, uri)
	return scanRemoteAccount(row)
}

func (db *DB) ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount) {
	row := db.db.QueryRow(sqlSelectRemoteAccount+` WHERE id = ?`, id.String())
	return scanRemoteAccount(row)
}

func scanRemoteAccount(row *sql.Row) (error, *domain.RemoteAccount) {
	var acc domain.RemoteAccount
	var idStr string
	err := row.Scan(
		&idStr,
		&acc.Username,
		&acc.Domain,
		&acc.ActorURI,
		&acc.DisplayName,
		&acc.Summary,
		&acc.InboxURI,
		&acc.OutboxURI,
		&acc.FollowersURI,
		&acc.FeaturedURI,
		&acc.PublicKeyPem,
		&acc.AvatarURL,
		&acc.MovedToURI,
		&acc.LastFetchedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	return nil, &acc
}

// Follow queries
const (
	sqlInsertFollow           = `INSERT INTO follows(id, account_id, target_account_id, uri, accepted, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectFollow           = `SELECT id, account_id, target_account_id, uri, accepted, created_at FROM follows`
	sqlAcceptFollowByURI      = `UPDATE follows SET accepted = 1 WHERE uri = ?`
	sqlUnacceptFollowByURI    = `UPDATE follows SET accepted = 0 WHERE uri = ?`
	sqlDeleteFollowByURI      = `DELETE FROM follows WHERE uri = ?`
	sqlDeleteFollowsByAccount = `DELETE FROM follows WHERE account_id = ? OR target_account_id = ?`
)

func (db *DB) CreateFollow(follow *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollow,
			follow.Id.String(),
			follow.AccountId.String(),
			follow.TargetAccountId.String(),
			follow.URI,
			follow.Accepted,
			follow.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadFollowByURI(uri string) (error, *domain.Follow) {
	row := db.db.QueryRow(sqlSelectFollow+` WHERE uri = ?`, uri)
	return scanFollow(row)
}

func (db *DB) ReadFollowByAccounts(accountId uuid.UUID, targetAccountId uuid.UUID) (error, *domain.Follow) {
	row := db.db.QueryRow(sqlSelectFollow+` WHERE account_id = ? AND target_account_id = ?`, accountId.String(), targetAccountId.String())
	return scanFollow(row)
}

func scanFollow(row *sql.Row) (error, *domain.Follow) {
	var follow domain.Follow
	var idStr, accountIdStr, targetIdStr string
	err := row.Scan(
		&idStr,
		&accountIdStr,
		&targetIdStr,
		&follow.URI,
		&follow.Accepted,
		&follow.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	follow.Id, _ = uuid.Parse(idStr)
	follow.AccountId, _ = uuid.Parse(accountIdStr)
	follow.TargetAccountId, _ = uuid.Parse(targetIdStr)
	return nil, &follow
}

func (db *DB) AcceptFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptFollowByURI, uri)
		return err
	})
}

func (db *DB) UnacceptFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUnacceptFollowByURI, uri)
		return err
	})
}

func (db *DB) DeleteFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByURI, uri)
		return err
	})
}

func (db *DB) DeleteFollowsByAccountId(accountId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowsByAccount, accountId.String(), accountId.String())
		return err
	})
}

func (db *DB) ReadFollowersByAccountId(accountId uuid.UUID) (error, *[]domain.Follow) {
	rows, err := db.db.Query(sqlSelectFollow+` WHERE target_account_id = ? AND accepted = 1`, accountId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var followers []domain.Follow
	for rows.Next() {
		var follow domain.Follow
		var idStr, accountIdStr, targetIdStr string
		if err := rows.Scan(&idStr, &accountIdStr, &targetIdStr, &follow.URI, &follow.Accepted, &follow.CreatedAt); err != nil {
			return err, &followers
		}
		follow.Id, _ = uuid.Parse(idStr)
		follow.AccountId, _ = uuid.Parse(accountIdStr)
		follow.TargetAccountId, _ = uuid.Parse(targetIdStr)
		followers = append(followers, follow)
	}
	if err = rows.Err(); err != nil {
		return err, &followers
	}
	return nil, &followers
}

func (db *DB) CountFollowersByAccountId(accountId uuid.UUID) (error, int) {
	row := db.db.QueryRow(`SELECT COUNT(*) FROM follows WHERE target_account_id = ? AND accepted = 1`, accountId.String())
	var count int
	if err := row.Scan(&count); err != nil {
		return err, 0
	}
	return nil, count
}

// Remote notes queries
const (
	sqlInsertRemoteNote = `INSERT INTO remote_notes(id, uri, actor_uri, content, summary, published, visibility, recipient_uris, in_reply_to_uri, renote_of_uri, pinned, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRemoteNote = `SELECT id, uri, actor_uri, content, summary, published, visibility, recipient_uris, in_reply_to_uri, renote_of_uri, pinned, created_at FROM remote_notes`
	sqlUpdateRemoteNote = `UPDATE remote_notes SET content = ?, summary = ? WHERE uri = ?`
	sqlPinRemoteNote    = `UPDATE remote_notes SET pinned = ? WHERE uri = ?`
	sqlDeleteRemoteNote = `DELETE FROM remote_notes WHERE uri = ?`
)

func (db *DB) CreateRemoteNote(note *domain.RemoteNote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRemoteNote,
			note.Id.String(),
			note.URI,
			note.ActorURI,
			note.Content,
			note.Summary,
			note.Published,
			string(note.Visibility),
			note.RecipientURIs,
			note.InReplyToURI,
			note.RenoteOfURI,
			note.Pinned,
			note.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadRemoteNoteByURI(uri string) (error, *domain.RemoteNote) {
	row := db.db.QueryRow(sqlSelectRemoteNote+` WHERE uri = ?`, uri)
	var note domain.RemoteNote
	var idStr, visibility string
	err := row.Scan(
		&idStr,
		&note.URI,
		&note.ActorURI,
		&note.Content,
		&note.Summary,
		&note.Published,
		&visibility,
		&note.RecipientURIs,
		&note.InReplyToURI,
		&note.RenoteOfURI,
		&note.Pinned,
		&note.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	note.Id, _ = uuid.Parse(idStr)
	note.Visibility = domain.Visibility(visibility)
	return nil, &note
}

func (db *DB) UpdateRemoteNoteContent(uri string, content string, summary string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteNote, content, summary, uri)
		return err
	})
}

func (db *DB) SetRemoteNotePinned(uri string, pinned bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlPinRemoteNote, pinned, uri)
		return err
	})
}

func (db *DB) DeleteRemoteNoteByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteRemoteNote, uri)
		return err
	})
}

func (db *DB) DeleteRemoteNotesByActorURI(actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM remote_notes WHERE actor_uri = ?`, actorURI)
		return err
	})
}

// ReadPublicRemoteNotes returns the most recent public federated notes.
func (db *DB) ReadPublicRemoteNotes(limit int) (error, *[]domain.RemoteNote) {
	rows, err := db.db.Query(sqlSelectRemoteNote+` WHERE visibility = 'public' AND renote_of_uri = '' ORDER BY published DESC LIMIT ?`, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var notes []domain.RemoteNote
	for rows.Next() {
		var note domain.RemoteNote
		var idStr, visibility string
		if err := rows.Scan(&idStr, &note.URI, &note.ActorURI, &note.Content, &note.Summary, &note.Published, &visibility, &note.RecipientURIs, &note.InReplyToURI, &note.RenoteOfURI, &note.Pinned, &note.CreatedAt); err != nil {
			return err, &notes
		}
		note.Id, _ = uuid.Parse(idStr)
		note.Visibility = domain.Visibility(visibility)
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return err, &notes
	}
	return nil, &notes
}

// Reaction queries
const (
	sqlInsertReaction = `INSERT INTO reactions(id, account_id, note_uri, content, uri, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectReaction = `SELECT id, account_id, note_uri, content, uri, created_at FROM reactions`
)

func (db *DB) CreateReaction(reaction *domain.Reaction) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertReaction,
			reaction.Id.String(),
			reaction.AccountId.String(),
			reaction.NoteURI,
			reaction.Content,
			reaction.URI,
			reaction.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadReactionByURI(uri string) (error, *domain.Reaction) {
	row := db.db.QueryRow(sqlSelectReaction+` WHERE uri = ?`, uri)
	return scanReaction(row)
}

func (db *DB) ReadReactionByAccountAndNote(accountId uuid.UUID, noteURI string) (error, *domain.Reaction) {
	row := db.db.QueryRow(sqlSelectReaction+` WHERE account_id = ? AND note_uri = ?`, accountId.String(), noteURI)
	return scanReaction(row)
}

func scanReaction(row *sql.Row) (error, *domain.Reaction) {
	var reaction domain.Reaction
	var idStr, accountIdStr string
	err := row.Scan(&idStr, &accountIdStr, &reaction.NoteURI, &reaction.Content, &reaction.URI, &reaction.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	reaction.Id, _ = uuid.Parse(idStr)
	reaction.AccountId, _ = uuid.Parse(accountIdStr)
	return nil, &reaction
}

func (db *DB) CountReactionsByNoteURI(noteURI string) (error, int) {
	row := db.db.QueryRow(`SELECT COUNT(*) FROM reactions WHERE note_uri = ?`, noteURI)
	var count int
	if err := row.Scan(&count); err != nil {
		return err, 0
	}
	return nil, count
}

func (db *DB) DeleteReactionByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM reactions WHERE uri = ?`, uri)
		return err
	})
}

func (db *DB) DeleteReactionsByAccountId(accountId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM reactions WHERE account_id = ?`, accountId.String())
		return err
	})
}

// Block queries

func (db *DB) CreateBlock(block *domain.Block) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO blocks(id, actor_uri, account_id, uri, created_at) VALUES (?, ?, ?, ?, ?)`,
			block.Id.String(),
			block.ActorURI,
			block.AccountId.String(),
			block.URI,
			block.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadBlockByURI(uri string) (error, *domain.Block) {
	row := db.db.QueryRow(`SELECT id, actor_uri, account_id, uri, created_at FROM blocks WHERE uri = ?`, uri)
	var block domain.Block
	var idStr, accountIdStr string
	err := row.Scan(&idStr, &block.ActorURI, &accountIdStr, &block.URI, &block.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	block.Id, _ = uuid.Parse(idStr)
	block.AccountId, _ = uuid.Parse(accountIdStr)
	return nil, &block
}

func (db *DB) DeleteBlockByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM blocks WHERE uri = ?`, uri)
		return err
	})
}

// Report queries

func (db *DB) CreateReport(report *domain.Report) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO reports(id, actor_uri, object_uris, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
			report.Id.String(),
			report.ActorURI,
			report.ObjectURIs,
			report.Comment,
			report.CreatedAt,
		)
		return err
	})
}

// Relay queries

func (db *DB) CreateRelay(relay *domain.Relay) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO relays(id, actor_uri, inbox_uri, created_at) VALUES (?, ?, ?, ?)`,
			relay.Id.String(),
			relay.ActorURI,
			relay.InboxURI,
			relay.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadRelayByActorURI(actorURI string) (error, *domain.Relay) {
	row := db.db.QueryRow(`SELECT id, actor_uri, inbox_uri, created_at FROM relays WHERE actor_uri = ?`, actorURI)
	var relay domain.Relay
	var idStr string
	err := row.Scan(&idStr, &relay.ActorURI, &relay.InboxURI, &relay.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	relay.Id, _ = uuid.Parse(idStr)
	return nil, &relay
}

// Activity queries
const (
	sqlInsertActivity = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActivity = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, processed, local, created_at FROM activities`
	sqlUpdateActivity = `UPDATE activities SET processed = ?, object_uri = ? WHERE id = ?`
)

func (db *DB) CreateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(),
			activity.ActivityURI,
			activity.ActivityType,
			activity.ActorURI,
			activity.ObjectURI,
			activity.RawJSON,
			activity.Processed,
			activity.Local,
			activity.CreatedAt,
		)
		return err
	})
}

func (db *DB) UpdateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateActivity,
			activity.Processed,
			activity.ObjectURI,
			activity.Id.String(),
		)
		return err
	})
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	row := db.db.QueryRow(sqlSelectActivity+` WHERE activity_uri = ?`, uri)
	return scanActivity(row)
}

func (db *DB) ReadActivityByObjectURI(objectURI string) (error, *domain.Activity) {
	row := db.db.QueryRow(sqlSelectActivity+` WHERE object_uri = ?`, objectURI)
	return scanActivity(row)
}

func scanActivity(row *sql.Row) (error, *domain.Activity) {
	var activity domain.Activity
	var idStr string
	err := row.Scan(
		&idStr,
		&activity.ActivityURI,
		&activity.ActivityType,
		&activity.ActorURI,
		&activity.ObjectURI,
		&activity.RawJSON,
		&activity.Processed,
		&activity.Local,
		&activity.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	activity.Id, _ = uuid.Parse(idStr)
	return nil, &activity
}

func (db *DB) DeleteActivity(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM activities WHERE id = ?`, id.String())
		return err
	})
}

func (db *DB) DeleteActivitiesByActorURI(actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM activities WHERE actor_uri = ?`, actorURI)
		return err
	})
}

// Delivery Queue queries
const (
	sqlInsertDeliveryQueue     = `INSERT INTO delivery_queue(id, inbox_uri, activity_json, attempts, next_retry_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectPendingDeliveries = `SELECT id, inbox_uri, activity_json, attempts, next_retry_at, created_at FROM delivery_queue WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdateDeliveryAttempt   = `UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteDelivery          = `DELETE FROM delivery_queue WHERE id = ?`
)

func (db *DB) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertDeliveryQueue,
			item.Id.String(),
			item.InboxURI,
			item.ActivityJSON,
			item.Attempts,
			item.NextRetryAt,
			item.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	rows, err := db.db.Query(sqlSelectPendingDeliveries, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.DeliveryQueueItem
	for rows.Next() {
		var item domain.DeliveryQueueItem
		var idStr string
		if err := rows.Scan(&idStr, &item.InboxURI, &item.ActivityJSON, &item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return err, &items
		}
		item.Id, _ = uuid.Parse(idStr)
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return err, &items
	}
	return nil, &items
}

func (db *DB) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateDeliveryAttempt, attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteDelivery(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteDelivery, id.String())
		return err
	})
}

// Background job queries
const (
	sqlInsertJob         = `INSERT INTO background_jobs(id, kind, payload, attempts, next_retry_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectPendingJobs = `SELECT id, kind, payload, attempts, next_retry_at, created_at FROM background_jobs WHERE next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlUpdateJobAttempt  = `UPDATE background_jobs SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteJob         = `DELETE FROM background_jobs WHERE id = ?`
)

func (db *DB) EnqueueJob(kind string, payload string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertJob,
			uuid.New().String(),
			kind,
			payload,
			0,
			time.Now(),
			time.Now(),
		)
		return err
	})
}

func (db *DB) ReadPendingJobs(limit int) (error, *[]domain.BackgroundJob) {
	rows, err := db.db.Query(sqlSelectPendingJobs, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var jobs []domain.BackgroundJob
	for rows.Next() {
		var job domain.BackgroundJob
		var idStr string
		if err := rows.Scan(&idStr, &job.Kind, &job.Payload, &job.Attempts, &job.NextRetryAt, &job.CreatedAt); err != nil {
			return err, &jobs
		}
		job.Id, _ = uuid.Parse(idStr)
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return err, &jobs
	}
	return nil, &jobs
}

func (db *DB) UpdateJobAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateJobAttempt, attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteJob(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteJob, id.String())
		return err
	})
}

// JoinURIs joins object URIs for storage in a single text column.
func JoinURIs(uris []string) string {
	return strings.Join(uris, " ")
}

// SplitURIs is the inverse of JoinURIs.
func SplitURIs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Fields(joined)
}
