package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gustavoprado11/carvao-app-sub000/database"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
)

// MetaRepository, metadados de instalação (chave/valor binário).
// Hoje guarda só o salt da derivação de chave dos previews.
type MetaRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type sqliteMetaRepo struct {
	db database.TxQuerier
}

// NewSQLiteMetaRepo, constructor — devolve a interface.
func NewSQLiteMetaRepo(db database.TxQuerier) MetaRepository {
	return &sqliteMetaRepo{db: db}
}

// Get lê um valor. Devolve pkg.ErrNotFound se a chave não existe.
func (r *sqliteMetaRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM app_meta WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: meta key %s", pkg.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meta key %s: %w", key, err)
	}
	return value, nil
}

// Set grava (ou sobrescreve) um valor.
func (r *sqliteMetaRepo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta key %s: %w", key, err)
	}
	return nil
}
