// Package anki writes Anki 2 collection databases.
//
// It covers what a deck build needs: note types (models), deck options groups,
// notes and their new cards. Review history, scheduling and sync state are left
// at their empty defaults.
package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDeckID is the id of the deck every fresh collection starts with.
const DefaultDeckID int64 = 1

// ErrClosed is returned by operations on a closed collection.
var ErrClosed = errors.New("collection is closed")

// Option configures a Collection.
type Option func(*Collection)

// WithClock overrides the time source used for ids and modification stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) {
		c.now = now
	}
}

// Collection is an open collection database. All writes happen inside one
// transaction that is committed by Close.
type Collection struct {
	db      *sql.DB
	tx      *sql.Tx
	now     func() time.Time
	conf    map[string]any
	nextID  int64
	nextPos int64
	closed  bool
	mu      sync.Mutex

	Models *Models
	Decks  *Decks
}

// Open creates a new collection file at path. The file must not exist yet.
func Open(ctx context.Context, path string, opts ...Option) (*Collection, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", path, err)
	}

	col, err := OpenDB(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return col, nil
}

// OpenDB initializes an empty database as a collection.
func OpenDB(ctx context.Context, db *sql.DB, opts ...Option) (*Collection, error) {
	c := &Collection{
		db:      db,
		now:     time.Now,
		nextPos: 1,
	}
	for _, opt := range opts {
		opt(c)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	now := c.now()
	crt := time.Date(now.Year(), now.Month(), now.Day(), 4, 0, 0, 0, now.Location()).Unix()
	if _, err := tx.ExecContext(ctx, insertColSQL, crt, now.UnixMilli(), now.UnixMilli(), SchemaVersion); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to initialize collection: %w", err)
	}

	c.conf = defaultConf()
	c.Decks = newDecks(c)
	c.Models = newModels(c)
	if err := c.Models.addStock(); err != nil {
		tx.Rollback()
		return nil, err
	}

	return c, nil
}

// NoteCount returns the number of notes in the collection.
func (c *Collection) NoteCount(ctx context.Context) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := c.tx.QueryRowContext(ctx, countNotesSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return n, nil
}

// Close writes the model, deck and configuration tables, commits and closes
// the database.
func (c *Collection) Close(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.closed = true

	if err := c.flush(ctx); err != nil {
		c.tx.Rollback()
		c.db.Close()
		return err
	}

	if err := c.tx.Commit(); err != nil {
		c.db.Close()
		return fmt.Errorf("failed to commit collection: %w", err)
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close collection: %w", err)
	}
	return nil
}

// Abort discards every change and closes the database.
func (c *Collection) Abort() error {
	if c.closed {
		return nil
	}
	c.closed = true

	rbErr := c.tx.Rollback()
	closeErr := c.db.Close()
	if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back collection: %w", rbErr)
	}
	return closeErr
}

func (c *Collection) flush(ctx context.Context) error {
	models, err := json.Marshal(c.Models.export())
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}
	decks, err := json.Marshal(c.Decks.exportDecks())
	if err != nil {
		return fmt.Errorf("failed to encode decks: %w", err)
	}
	dconf, err := json.Marshal(c.Decks.exportConfigs())
	if err != nil {
		return fmt.Errorf("failed to encode deck options: %w", err)
	}

	if cur := c.Models.current(); cur != 0 {
		c.conf["curModel"] = fmt.Sprint(cur)
	}
	c.conf["nextPos"] = c.nextPos
	conf, err := json.Marshal(c.conf)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if _, err := c.tx.ExecContext(ctx, updateColSQL, c.now().UnixMilli(), string(conf), string(models), string(decks), string(dconf)); err != nil {
		return fmt.Errorf("failed to write collection metadata: %w", err)
	}
	return nil
}

func (c *Collection) checkOpen() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

// newID returns a millisecond timestamp id that is unique within the
// collection.
func (c *Collection) newID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.nextID {
		id = c.nextID + 1
	}
	c.nextID = id
	return id
}

func (c *Collection) modTime() int64 {
	return c.now().Unix()
}

func defaultConf() map[string]any {
	return map[string]any{
		"nextPos":       1,
		"estTimes":      true,
		"activeDecks":   []int64{DefaultDeckID},
		"sortType":      "noteFld",
		"timeLim":       0,
		"sortBackwards": false,
		"addToCur":      true,
		"curDeck":       DefaultDeckID,
		"newBury":       true,
		"newSpread":     0,
		"dueCounts":     true,
		"curModel":      nil,
		"collapseTime":  1200,
	}
}
