package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// AppConfigRepository stores runtime setting overrides. An empty value
// means "no override".
type AppConfigRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	// SeedDefaults inserts keys with empty values, leaving existing rows alone.
	SeedDefaults(ctx context.Context, keys []string) error
}

type appConfigRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewAppConfigRepository(db *DB, logger *slog.Logger) AppConfigRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &appConfigRepo{db: db, logger: logger}
}

func (r *appConfigRepo) Get(ctx context.Context, key string) (string, bool, error) {
	b := r.db.builder()
	q, args := b.Select("value").
		From(b.Table(TableAppConfig)).
		Where(entsql.EQ("key", key)).
		Query()
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return "", false, dbError("get setting", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var v string
	if err := rows.Scan(&v); err != nil {
		return "", false, dbError("get setting", err)
	}
	return v, true, nil
}

func (r *appConfigRepo) All(ctx context.Context) (map[string]string, error) {
	b := r.db.builder()
	q, args := b.Select("key", "value").From(b.Table(TableAppConfig)).Query()
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, dbError("list settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, dbError("list settings", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *appConfigRepo) Set(ctx context.Context, key, value string) error {
	q, args := r.db.builder().Insert(TableAppConfig).
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to store setting", "key", key, "error", err)
		return dbError("set setting", err)
	}
	r.logger.Info("setting stored", "key", key, "value", value)
	return nil
}

func (r *appConfigRepo) SeedDefaults(ctx context.Context, keys []string) error {
	now := time.Now().UTC()
	for _, k := range keys {
		q, args := r.db.builder().Insert(TableAppConfig).
			Columns("key", "value", "updated_at").
			Values(k, "", now).
			OnConflict(entsql.ConflictColumns("key"), entsql.DoNothing()).
			Query()
		if _, err := r.db.exec(ctx, q, args); err != nil {
			return dbError("seed settings", err)
		}
	}
	return nil
}
