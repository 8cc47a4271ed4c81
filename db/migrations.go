package db

import (
	"database/sql"
	"log"
)

// SQL for the federation tables
const (
	// Follow relationships table
	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		accepted INTEGER DEFAULT 0,
		UNIQUE(account_id, target_account_id)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_account_id ON follows(account_id);
		CREATE INDEX IF NOT EXISTS idx_follows_target_account_id ON follows(target_account_id);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	// Remote accounts cache table
	sqlCreateRemoteAccountsTable = `CREATE TABLE IF NOT EXISTS remote_accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT NOT NULL,
		outbox_uri TEXT,
		followers_uri TEXT,
		featured_uri TEXT,
		public_key_pem TEXT NOT NULL,
		avatar_url TEXT,
		moved_to_uri TEXT DEFAULT '',
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateRemoteAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_actor_uri ON remote_accounts(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_domain ON remote_accounts(domain);
	`

	// Locally materialized remote notes (and renotes)
	sqlCreateRemoteNotesTable = `CREATE TABLE IF NOT EXISTS remote_notes (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		actor_uri TEXT NOT NULL,
		content TEXT,
		summary TEXT,
		published TIMESTAMP,
		visibility TEXT DEFAULT 'public',
		recipient_uris TEXT DEFAULT '',
		in_reply_to_uri TEXT DEFAULT '',
		renote_of_uri TEXT DEFAULT '',
		pinned INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateRemoteNotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_notes_uri ON remote_notes(uri);
		CREATE INDEX IF NOT EXISTS idx_remote_notes_actor_uri ON remote_notes(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_notes_published ON remote_notes(published DESC);
	`

	// Activities log table (for deduplication & debugging)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		local INTEGER DEFAULT 0
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_processed ON activities(processed);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`

	// Reactions table
	sqlCreateReactionsTable = `CREATE TABLE IF NOT EXISTS reactions (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		note_uri TEXT NOT NULL,
		content TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, note_uri)
	)`

	sqlCreateReactionsIndices = `
		CREATE INDEX IF NOT EXISTS idx_reactions_note_uri ON reactions(note_uri);
		CREATE INDEX IF NOT EXISTS idx_reactions_account_id ON reactions(account_id);
	`

	// Blocks table
	sqlCreateBlocksTable = `CREATE TABLE IF NOT EXISTS blocks (
		id TEXT NOT NULL PRIMARY KEY,
		actor_uri TEXT NOT NULL,
		account_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_uri, account_id)
	)`

	// Reports table (Flag activities)
	sqlCreateReportsTable = `CREATE TABLE IF NOT EXISTS reports (
		id TEXT NOT NULL PRIMARY KEY,
		actor_uri TEXT NOT NULL,
		object_uris TEXT NOT NULL,
		comment TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Registered relays table
	sqlCreateRelaysTable = `CREATE TABLE IF NOT EXISTS relays (
		id TEXT NOT NULL PRIMARY KEY,
		actor_uri TEXT UNIQUE NOT NULL,
		inbox_uri TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Delivery queue table
	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		inbox_uri TEXT NOT NULL,
		activity_json TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
	`

	// Background jobs table
	sqlCreateJobsTable = `CREATE TABLE IF NOT EXISTS background_jobs (
		id TEXT NOT NULL PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateJobsIndices = `
		CREATE INDEX IF NOT EXISTS idx_background_jobs_next_retry ON background_jobs(next_retry_at);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		tables := []struct {
			name string
			sql  string
		}{
			{"follows", sqlCreateFollowsTable},
			{"remote_accounts", sqlCreateRemoteAccountsTable},
			{"remote_notes", sqlCreateRemoteNotesTable},
			{"activities", sqlCreateActivitiesTable},
			{"reactions", sqlCreateReactionsTable},
			{"blocks", sqlCreateBlocksTable},
			{"reports", sqlCreateReportsTable},
			{"relays", sqlCreateRelaysTable},
			{"delivery_queue", sqlCreateDeliveryQueueTable},
			{"background_jobs", sqlCreateJobsTable},
		}
		for _, table := range tables {
			if err := db.createTableIfNotExists(tx, table.sql, table.name); err != nil {
				return err
			}
		}

		indices := []string{
			sqlCreateFollowsIndices,
			sqlCreateRemoteAccountsIndices,
			sqlCreateRemoteNotesIndices,
			sqlCreateActivitiesIndices,
			sqlCreateReactionsIndices,
			sqlCreateDeliveryQueueIndices,
			sqlCreateJobsIndices,
		}
		for _, index := range indices {
			if _, err := tx.Exec(index); err != nil {
				log.Printf("Warning: Failed to create indices: %v", err)
			}
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	return nil
}
