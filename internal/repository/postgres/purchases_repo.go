package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/baharkarakas/credits-backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type purchasesRepo struct{ pool *pgxpool.Pool }

func (r *purchasesRepo) FindForUser(ctx context.Context, tx pgx.Tx, purchaseID string, userID int64) (models.Purchase, bool, error) {
	var q querier = r.pool
	if tx != nil {
		q = tx
	}
	var p models.Purchase
	err := q.QueryRow(ctx,
		`SELECT id, user_id, purchase_id, product_id, platform, created_at
		   FROM purchases
		  WHERE purchase_id=$1 AND user_id=$2
		  LIMIT 1`,
		purchaseID, userID,
	).Scan(&p.ID, &p.UserID, &p.PurchaseID, &p.ProductID, &p.Platform, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Purchase{}, false, nil
	}
	if err != nil {
		return models.Purchase{}, false, err
	}
	return p, true, nil
}

func (r *purchasesRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, p models.Purchase) (bool, error) {
	var q querier = r.pool
	if tx != nil {
		q = tx
	}
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO purchases (user_id, purchase_id, product_id, platform, verification_data, verification_result)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (purchase_id) DO NOTHING
		 RETURNING id`,
		p.UserID, p.PurchaseID, p.ProductID, p.Platform, p.VerificationData, p.VerificationResult,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// lost the race: a row with this purchase id already exists
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *purchasesRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, purchase_id, product_id, platform, created_at
		   FROM purchases
		  WHERE user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.PurchaseID, &p.ProductID, &p.Platform, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *purchasesRepo) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
