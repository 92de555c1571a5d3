package params

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

const (
	kindArg = "arg"
	kindAux = "aux"
)

// SQLStore keeps checkpoints in a libsql database file. A file may hold many
// checkpoints; Load returns the most recently saved one.
type SQLStore struct{}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database %s: %w", path, err)
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	createTables := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			created INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS params (
			checkpoint_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (checkpoint_id, kind, name)
		)`,
	}
	for _, query := range createTables {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create checkpoint schema: %w", err)
		}
	}
	return nil
}

func (SQLStore) Save(ctx context.Context, ck *Checkpoint, path string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT INTO checkpoints (id, created) VALUES (?, ?)",
		ck.ID.String(), ck.Created.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert checkpoint %s: %w", ck.ID, err)
	}
	for kind, table := range map[string]*Table{kindArg: ck.Args, kindAux: ck.Aux} {
		encoded, err := encodeTable(table)
		if err != nil {
			return err
		}
		for name, data := range encoded {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO params (checkpoint_id, kind, name, data) VALUES (?, ?, ?, ?)",
				ck.ID.String(), kind, name, data); err != nil {
				return fmt.Errorf("failed to insert parameter %q: %w", name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint %s to %s: %w", ck.ID, path, err)
	}
	return nil
}

func (s SQLStore) Load(ctx context.Context, path string) (*Checkpoint, error) {
	return s.load(ctx, path, uuid.Nil)
}

// LoadID returns a specific checkpoint from the database at path.
func (s SQLStore) LoadID(ctx context.Context, path string, id uuid.UUID) (*Checkpoint, error) {
	return s.load(ctx, path, id)
}

// List returns the ids in the database at path, newest first.
func (SQLStore) List(ctx context.Context, path string) ([]uuid.UUID, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT id FROM checkpoints ORDER BY created DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints in %s: %w", path, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad checkpoint id %q", ErrCorruptCheckpoint, raw)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (SQLStore) load(ctx context.Context, path string, id uuid.UUID) (*Checkpoint, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var (
		rawID   string
		created int64
	)
	row := db.QueryRowContext(ctx, "SELECT id, created FROM checkpoints ORDER BY created DESC LIMIT 1")
	if id != uuid.Nil {
		row = db.QueryRowContext(ctx, "SELECT id, created FROM checkpoints WHERE id = ?", id.String())
	}
	if err := row.Scan(&rawID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if id != uuid.Nil {
				return nil, fmt.Errorf("checkpoint %s not found in %s", id, path)
			}
			return nil, fmt.Errorf("no checkpoint found in %s", path)
		}
		return nil, fmt.Errorf("failed to read checkpoint from %s: %w", path, err)
	}
	ckID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad checkpoint id %q", ErrCorruptCheckpoint, rawID)
	}

	ck := &Checkpoint{
		ID:      ckID,
		Created: time.Unix(0, created).UTC(),
		Args:    NewTable(),
		Aux:     NewTable(),
	}
	rows, err := db.QueryContext(ctx, "SELECT kind, name, data FROM params WHERE checkpoint_id = ?", rawID)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters from %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, name string
			data       []byte
		)
		if err := rows.Scan(&kind, &name, &data); err != nil {
			return nil, err
		}
		m, err := decodeMatrix(name, data)
		if err != nil {
			return nil, err
		}
		switch kind {
		case kindArg:
			ck.Args.Set(name, m)
		case kindAux:
			ck.Aux.Set(name, m)
		default:
			return nil, fmt.Errorf("%w: parameter %q has unknown kind %q", ErrCorruptCheckpoint, name, kind)
		}
	}
	return ck, rows.Err()
}
