package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres is a Store backed by a pgx connection pool
type Postgres struct {
	*pgQueries
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := checkSchema(ctx, pool, Schema); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{
		pgQueries: &pgQueries{db: pool},
		pool:      pool,
	}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Tx(ctx context.Context, fn func(q Queries) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&pgQueries{db: tx})
	})
}

// checkSchema verifies that a table exists for every declared record type
func checkSchema(ctx context.Context, db dbtx, schema []RecordType) error {
	tables := make([]string, 0, len(schema))
	for _, rt := range schema {
		tables = append(tables, rt.Table)
	}
	rows, err := db.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = ANY($1)`,
		tables,
	)
	if err != nil {
		return fmt.Errorf("failed to inspect database schema: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, rt := range schema {
		if !found[rt.Table] {
			return fmt.Errorf("table %s for %s records does not exist; migrations have not been applied", rt.Table, rt.Name)
		}
	}
	return nil
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	db dbtx
}

// mapError translates constraint violations and empty results into the store's
// sentinel errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

const userColumns = `id, twitch_id, login, display_name, description, user_type, broadcaster_type,
	avatar_url, offline_image_url, view_count, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.TwitchID,
		&u.Login,
		&u.DisplayName,
		&u.Description,
		&u.UserType,
		&u.BroadcasterType,
		&u.AvatarURL,
		&u.OfflineImageURL,
		&u.ViewCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (q *pgQueries) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM twitch_user WHERE id = $1`, id))
}

func (q *pgQueries) GetUserByTwitchID(ctx context.Context, twitchID string) (*User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM twitch_user WHERE twitch_id = $1`, twitchID))
}

func (q *pgQueries) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM twitch_user WHERE login = $1`, strings.ToLower(login)))
}

func (q *pgQueries) CreateUser(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO twitch_user (
			id, twitch_id, login, display_name, description, user_type, broadcaster_type,
			avatar_url, offline_image_url, view_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		user.ID,
		user.TwitchID,
		user.Login,
		user.DisplayName,
		user.Description,
		user.UserType,
		user.BroadcasterType,
		user.AvatarURL,
		user.OfflineImageURL,
		user.ViewCount,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return mapError(err)
}

func (q *pgQueries) UpdateUser(ctx context.Context, user *User) error {
	err := q.db.QueryRow(ctx, `
		UPDATE twitch_user SET
			login = $2,
			display_name = $3,
			description = $4,
			user_type = $5,
			broadcaster_type = $6,
			avatar_url = $7,
			offline_image_url = $8,
			view_count = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING twitch_id, created_at, updated_at`,
		user.ID,
		user.Login,
		user.DisplayName,
		user.Description,
		user.UserType,
		user.BroadcasterType,
		user.AvatarURL,
		user.OfflineImageURL,
		user.ViewCount,
	).Scan(&user.TwitchID, &user.CreatedAt, &user.UpdatedAt)
	return mapError(err)
}

func (q *pgQueries) CreateToken(ctx context.Context, token *Token) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO twitch_token (id, user_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		token.ID,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
	).Scan(&token.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) GetLatestToken(ctx context.Context, userID uuid.UUID) (*Token, error) {
	var t Token
	err := q.db.QueryRow(ctx, `
		SELECT id, user_id, access_token, refresh_token, expires_at, created_at
		FROM twitch_token
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT 1`,
		userID,
	).Scan(&t.ID, &t.UserID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (q *pgQueries) CountTokens(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM twitch_token WHERE user_id = $1`, userID).Scan(&count)
	return count, mapError(err)
}

func (q *pgQueries) CreateLogin(ctx context.Context, login *Login) error {
	if login.ID == uuid.Nil {
		login.ID = uuid.New()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO twitch_login (id, token_id, user_id, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		login.ID,
		login.TokenID,
		login.UserID,
		login.IP,
		login.UserAgent,
	).Scan(&login.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) CreateProfileChange(ctx context.Context, change *ProfileChange) error {
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO twitch_profile_change (id, user_id, previous_values, new_values)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		change.ID,
		change.UserID,
		change.PreviousValues,
		change.NewValues,
	).Scan(&change.CreatedAt)
	return mapError(err)
}

func (q *pgQueries) ListProfileChanges(ctx context.Context, userID uuid.UUID) ([]ProfileChange, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, previous_values, new_values, created_at
		FROM twitch_profile_change
		WHERE user_id = $1
		ORDER BY seq DESC`,
		userID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	changes := make([]ProfileChange, 0)
	for rows.Next() {
		var c ProfileChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.PreviousValues, &c.NewValues, &c.CreatedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
