package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/castwatch/backend/internal/db"
	"github.com/castwatch/backend/internal/models"
)

const pgUniqueViolation = "23505"

// childSet names a table holding one of the id sets owned by a user.
type childSet struct {
	table  string
	column string
}

var (
	favoriteActors = childSet{table: "favorite_actors", column: "actor_id"}
	watchedMovies  = childSet{table: "watched_movies", column: "movie_id"}
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// FindByLogin fetches a user, with both id sets, by login.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	return r.findOne(ctx, "login", login)
}

// FindByAPIKey fetches a user, with both id sets, by access token.
func (r *PostgresUserRepository) FindByAPIKey(ctx context.Context, apiKey string) (models.User, error) {
	return r.findOne(ctx, "api_key", apiKey)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, login, password_hash, api_key, created_at, version
        FROM users
        WHERE `+column+` = $1
    `, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Login, &user.Password, &user.APIKey, &user.CreatedAt, &user.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}
	user.CreatedAt = user.CreatedAt.UTC()

	if user.FavoriteActors, err = loadIDs(ctx, conn, favoriteActors, user.ID); err != nil {
		return models.User{}, err
	}
	if user.WatchedMovies, err = loadIDs(ctx, conn, watchedMovies, user.ID); err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Save inserts a new user (ID == 0) or updates an existing one, then reconciles
// both id sets with the stored rows in the same transaction: ids no longer in a
// set are deleted and new ones inserted. The API key is written only on insert.
// An update only applies when user.Version still matches the stored row;
// otherwise ErrStale is returned and nothing changes, so a caller holding an
// outdated snapshot cannot drop ids saved in between.
func (r *PostgresUserRepository) Save(ctx context.Context, user models.User) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("begin save user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if user.ID == 0 {
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
		user.Version = 0
		err = tx.QueryRow(ctx, `
            INSERT INTO users (login, password_hash, api_key, created_at)
            VALUES ($1, $2, $3, $4)
            RETURNING id
        `, user.Login, user.Password, user.APIKey, user.CreatedAt).Scan(&user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return models.User{}, ErrConflict
			}
			return models.User{}, fmt.Errorf("insert user: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx, `
            UPDATE users
            SET login = $2, password_hash = $3, version = version + 1
            WHERE id = $1 AND version = $4
        `, user.ID, user.Login, user.Password, user.Version)
		if err != nil {
			if isUniqueViolation(err) {
				return models.User{}, ErrConflict
			}
			return models.User{}, fmt.Errorf("update user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
				return models.User{}, fmt.Errorf("check user: %w", err)
			}
			if exists {
				return models.User{}, ErrStale
			}
			return models.User{}, ErrNotFound
		}
		user.Version++
	}

	if err := syncIDs(ctx, tx, favoriteActors, user.ID, user.FavoriteActors); err != nil {
		return models.User{}, err
	}
	if err := syncIDs(ctx, tx, watchedMovies, user.ID, user.WatchedMovies); err != nil {
		return models.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("commit save user: %w", err)
	}

	if user.FavoriteActors == nil {
		user.FavoriteActors = models.NewIDSet()
	}
	if user.WatchedMovies == nil {
		user.WatchedMovies = models.NewIDSet()
	}
	return user, nil
}

// Delete removes a user. Favorite actor and watched movie rows cascade.
func (r *PostgresUserRepository) Delete(ctx context.Context, userID int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadIDs(ctx context.Context, q querier, set childSet, userID int64) (models.IDSet, error) {
	rows, err := q.Query(ctx, `SELECT `+set.column+` FROM `+set.table+` WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", set.table, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", set.table, err)
	}
	return models.NewIDSet(ids...), nil
}

func syncIDs(ctx context.Context, tx pgx.Tx, set childSet, userID int64, ids models.IDSet) error {
	members := ids.Slice()

	if _, err := tx.Exec(ctx, `
        DELETE FROM `+set.table+`
        WHERE user_id = $1 AND NOT (`+set.column+` = ANY($2::BIGINT[]))
    `, userID, members); err != nil {
		return fmt.Errorf("prune %s: %w", set.table, err)
	}

	if len(members) == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO `+set.table+` (user_id, `+set.column+`)
        SELECT $1::BIGINT, unnest($2::BIGINT[])
        ON CONFLICT (user_id, `+set.column+`) DO NOTHING
    `, userID, members); err != nil {
		return fmt.Errorf("insert %s: %w", set.table, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ UserRepository = (*PostgresUserRepository)(nil)
