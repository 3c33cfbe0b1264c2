package postgres

import (
	"context"
	"errors"

	"github.com/baharkarakas/credits-backend/internal/models"
	repo "github.com/baharkarakas/credits-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type usersRepo struct{ pool *pgxpool.Pool }

func NewUsers(pool *pgxpool.Pool) repo.Users {
	return &usersRepo{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same SQL can
// run standalone or inside the reconciliation transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *usersRepo) q(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, uid, provider, display_name, email, is_anonymous, credits, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.UID, &u.Provider, &u.DisplayName, &u.Email, &u.IsAnonymous, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, repo.ErrUserNotFound
	}
	return u, err
}

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users(uid, provider, display_name, email, is_anonymous)
		 VALUES($1,$2,$3,$4,$5)
		 RETURNING `+userCols,
		u.UID, u.Provider, u.DisplayName, u.Email, u.IsAnonymous,
	)
	return scanUser(row)
}

func (r *usersRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r *usersRepo) GetByUID(ctx context.Context, uid string) (models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE uid=$1`, uid))
}

func (r *usersRepo) UpdateProfile(ctx context.Context, u models.User) (models.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		    SET provider=$2, display_name=$3, email=$4, is_anonymous=$5, updated_at=now()
		  WHERE id=$1
		  RETURNING `+userCols,
		u.ID, u.Provider, u.DisplayName, u.Email, u.IsAnonymous,
	)
	return scanUser(row)
}

func (r *usersRepo) IncrementCredits(ctx context.Context, tx pgx.Tx, userID, delta int64) (int64, error) {
	var balance int64
	err := r.q(tx).QueryRow(ctx,
		`UPDATE users
		    SET credits = credits + $2, updated_at = now()
		  WHERE id = $1
		  RETURNING credits`,
		userID, delta,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repo.ErrUserNotFound
	}
	return balance, err
}

func (r *usersRepo) Credits(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var balance int64
	err := r.q(tx).QueryRow(ctx, `SELECT credits FROM users WHERE id=$1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repo.ErrUserNotFound
	}
	return balance, err
}
