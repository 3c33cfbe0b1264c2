package repository

import (
	"context"
	"errors"

	"github.com/baharkarakas/credits-backend/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
)

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByUID(ctx context.Context, uid string) (models.User, error)
	UpdateProfile(ctx context.Context, u models.User) (models.User, error)

	// IncrementCredits applies delta as a single store-side increment and
	// returns the resulting balance. The read-modify-write never happens in
	// application code. Runs on tx when non-nil, on the pool otherwise.
	IncrementCredits(ctx context.Context, tx pgx.Tx, userID, delta int64) (int64, error)
	Credits(ctx context.Context, tx pgx.Tx, userID int64) (int64, error)
}

type Purchases interface {
	// FindForUser reports the ledger row for (purchaseID, userID) if one exists.
	FindForUser(ctx context.Context, tx pgx.Tx, purchaseID string, userID int64) (models.Purchase, bool, error)

	// InsertIfAbsent inserts the ledger row unless a row with the same
	// purchase id already exists, returning whether the insert happened.
	// The unique key on purchase_id is the sole serialization point for
	// concurrent claims of the same purchase.
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, p models.Purchase) (bool, error)

	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Purchase, error)

	// WithTx runs fn inside a single database transaction (pgx.Tx),
	// committing on nil and rolling back on error.
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
