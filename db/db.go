package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/domain"
	"log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
	"time"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	//Accounts
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts(
                        id uuid NOT NULL PRIMARY KEY,
                        username varchar(100) UNIQUE NOT NULL,
                        display_name varchar(255),
                        summary text,
                        created_at timestamp default current_timestamp,
                        web_public_key text,
                        web_private_key text
                        )`
	sqlInsertAccount        = `INSERT INTO accounts(id, username, display_name, summary, web_public_key, web_private_key, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccByUsername  = `SELECT id, username, display_name, summary, created_at, web_public_key, web_private_key FROM accounts WHERE username = ?`
	sqlSelectAccById        = `SELECT id, username, display_name, summary, created_at, web_public_key, web_private_key FROM accounts WHERE id = ?`

	//Notes
	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes(
                        id uuid NOT NULL PRIMARY KEY,
                        user_id uuid NOT NULL,
                        message varchar(1000),
                        visibility varchar(20) DEFAULT 'public',
                        in_reply_to_uri text,
                        created_at timestamp default current_timestamp
                        )`
	sqlInsertNote     = `INSERT INTO notes(id, user_id, message, visibility, in_reply_to_uri, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectNoteById = `SELECT notes.id, accounts.username, notes.message, notes.visibility, notes.created_at FROM notes
    														INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE notes.id = ?`
	sqlSelectNotesByUsername = `SELECT notes.id, accounts.username, notes.message, notes.visibility, notes.created_at FROM notes
    														INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE accounts.username = ?
                                                            ORDER BY notes.created_at DESC`
	sqlSelectAllNotes = `SELECT notes.id, accounts.username, notes.message, notes.visibility, notes.created_at FROM notes
    														INNER JOIN accounts ON accounts.id = notes.user_id
                                                            ORDER BY notes.created_at DESC`
	sqlSelectPublicNotesByUsername = `SELECT notes.id, accounts.username, notes.message, notes.visibility, notes.created_at FROM notes
    														INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE accounts.username = ? AND notes.visibility = 'public'
                                                            ORDER BY notes.created_at DESC LIMIT ? OFFSET ?`
	sqlCountPublicNotesByUsername = `SELECT COUNT(*) FROM notes
    														INNER JOIN accounts ON accounts.id = notes.user_id
                                                            WHERE accounts.username = ? AND notes.visibility = 'public'`
)

// Open opens (or creates) a database at the given DSN. Use ":memory:" for
// tests.
func Open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// a plain in-memory database exists per connection
	if dsn == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	var journalMode string
	if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		log.Printf("Warning: Failed to enable WAL mode: %v", err)
	}

	// Optimize PRAGMAs for the concurrent ActivityPub workload
	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA cache_size = -64000")
	sqlDB.Exec("PRAGMA temp_store = MEMORY")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")

	database := &DB{db: sqlDB}
	if err := database.CreateDB(); err != nil {
		return nil, err
	}
	return database, nil
}

func GetDB() *DB {
	dbOnce.Do(func() {
		database, err := Open("database.db")
		if err != nil {
			panic(err)
		}
		dbInstance = database
		log.Printf("Database initialized with connection pooling (max 25 connections)")
	})

	return dbInstance
}

// CreateDB creates the base tables.
func (db *DB) CreateDB() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateAccountsTable); err != nil {
			return err
		}
		if _, err := tx.Exec(sqlCreateNotesTable); err != nil {
			return err
		}
		return nil
	})
}

// IsUniqueConstraint reports whether err is a sqlite UNIQUE constraint
// violation. Handlers treat these as "already exists" conflicts, never as
// failures.
func IsUniqueConstraint(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlitelib.SQLITE_CONSTRAINT ||
			code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			var serr *sqlite.Error
			if errors.As(err, &serr) && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

// Accounts

func (db *DB) CreateAccount(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount,
			acc.Id.String(),
			acc.Username,
			acc.DisplayName,
			acc.Summary,
			acc.WebPublicKey,
			acc.WebPrivateKey,
			acc.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	row := db.db.QueryRow(sqlSelectAccByUsername, username)
	return scanAccount(row)
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	row := db.db.QueryRow(sqlSelectAccById, id.String())
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (error, *domain.Account) {
	var acc domain.Account
	var idStr string
	err := row.Scan(&idStr, &acc.Username, &acc.DisplayName, &acc.Summary, &acc.CreatedAt, &acc.WebPublicKey, &acc.WebPrivateKey)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	return nil, &acc
}

// Notes (local)

func (db *DB) CreateNote(userId uuid.UUID, save *domain.SaveNote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNote,
			uuid.New().String(),
			userId.String(),
			save.Message,
			string(domain.VisibilityPublic),
			"",
			time.Now(),
		)
		return err
	})
}

func (db *DB) ReadNoteId(id uuid.UUID) (error, *domain.Note) {
	row := db.db.QueryRow(sqlSelectNoteById, id.String())
	var note domain.Note
	var idStr, visibility string
	err := row.Scan(&idStr, &note.CreatedBy, &note.Message, &visibility, &note.CreatedAt)
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

func (db *DB) ReadNotesByUsername(username string) (error, *[]domain.Note) {
	return db.readNotes(sqlSelectNotesByUsername, username)
}

// ReadPublicNotesByUsername returns a page of the account's public notes,
// newest first.
func (db *DB) ReadPublicNotesByUsername(username string, limit int, offset int) (error, *[]domain.Note) {
	return db.readNotes(sqlSelectPublicNotesByUsername, username, limit, offset)
}

func (db *DB) CountPublicNotesByUsername(username string) (error, int) {
	var count int
	if err := db.db.QueryRow(sqlCountPublicNotesByUsername, username).Scan(&count); err != nil {
		return err, 0
	}
	return nil, count
}

func (db *DB) ReadAllNotes() (error, *[]domain.Note) {
	return db.readNotes(sqlSelectAllNotes)
}

func (db *DB) readNotes(query string, args ...interface{}) (error, *[]domain.Note) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var note domain.Note
		var idStr, visibility string
		if err := rows.Scan(&idStr, &note.CreatedBy, &note.Message, &visibility, &note.CreatedAt); err != nil {
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
