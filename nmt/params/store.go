package params

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store loads and saves checkpoints at a path.
type Store interface {
	Load(ctx context.Context, path string) (*Checkpoint, error)
	Save(ctx context.Context, ck *Checkpoint, path string) error
}

// Catalog is a Store that holds many checkpoints addressable by id.
type Catalog interface {
	Store
	LoadID(ctx context.Context, path string, id uuid.UUID) (*Checkpoint, error)
	List(ctx context.Context, path string) ([]uuid.UUID, error)
}

// CatalogFor returns the store for path when it can select checkpoints by id.
func CatalogFor(path string) (Catalog, error) {
	c, ok := StoreFor(path).(Catalog)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrSingleCheckpoint)
	}
	return c, nil
}

// StoreFor picks a store by file extension: .db and .sqlite files are libsql
// databases, everything else uses the gob file format.
func StoreFor(path string) Store {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return &SQLStore{}
	default:
		return &FileStore{}
	}
}

// FileStore keeps one checkpoint per file.
type FileStore struct{}

type fileCheckpoint struct {
	ID      uuid.UUID
	Created time.Time
	Args    map[string][]byte
	Aux     map[string][]byte
}

func (FileStore) Load(ctx context.Context, path string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint %s: %w", path, err)
	}
	defer f.Close()

	var raw fileCheckpoint
	if err := gob.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, path, err)
	}
	args, err := decodeTable(raw.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	aux, err := decodeTable(raw.Aux)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Checkpoint{ID: raw.ID, Created: raw.Created, Args: args, Aux: aux}, nil
}

// Save writes to a temporary file next to path and renames it into place.
func (FileStore) Save(ctx context.Context, ck *Checkpoint, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := fileCheckpoint{ID: ck.ID, Created: ck.Created}
	var err error
	if raw.Args, err = encodeTable(ck.Args); err != nil {
		return err
	}
	if raw.Aux, err = encodeTable(ck.Aux); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place at %s: %w", path, err)
	}
	return nil
}
