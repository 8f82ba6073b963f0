package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// LocalStorageRepository is a durable string key/value store that survives
// process restarts, in the role the browser's localStorage played.
type LocalStorageRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type localStorageEntry struct {
	Key       string    `db:"storage_key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

type localStorageRepo struct {
	db *sqlx.DB
}

func NewLocalStorageRepository(db *sqlx.DB) LocalStorageRepository {
	return &localStorageRepo{db: db}
}

func (r *localStorageRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var entry localStorageEntry
	err := r.db.GetContext(ctx, &entry, r.db.Rebind(`
		SELECT storage_key, value, updated_at FROM local_storage WHERE storage_key = ?
	`), key)
	found, err := optionalRow(&entry, err)
	if err != nil {
		return "", false, err
	}
	if found == nil {
		return "", false, nil
	}
	return found.Value, true, nil
}

func (r *localStorageRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO local_storage (storage_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (storage_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`), key, value, time.Now().UTC())
	return err
}

func (r *localStorageRepo) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM local_storage WHERE storage_key = ?
	`), key)
	return err
}
