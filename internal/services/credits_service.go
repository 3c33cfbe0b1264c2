package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/baharkarakas/credits-backend/internal/metrics"
	"github.com/baharkarakas/credits-backend/internal/models"
	repo "github.com/baharkarakas/credits-backend/internal/repository"
	"github.com/baharkarakas/credits-backend/internal/verifier"
	"github.com/baharkarakas/credits-backend/internal/worker"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUnsupportedProduct  = errors.New("unsupported product_id")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrAlreadyProcessed    = errors.New("purchase already processed")
)

type PurchaseInput struct {
	Platform         models.Platform
	PurchaseID       string
	ProductID        string
	VerificationData string
}

type PurchaseResult struct {
	CreditsAdded int64 `json:"creditsAdded"`
	Balance      int64 `json:"balance"`
}

// CreditsService reconciles client purchase claims: verify against the issuing
// platform, then commit the ledger row and the balance increment as one
// atomic transaction. Credits are granted at most once per purchase id.
type CreditsService struct {
	users     repo.Users
	purchases repo.Purchases
	logs      repo.AuditLogs
	apple     verifier.Verifier
	google    verifier.Verifier
	wp        *worker.Pool
	log       *slog.Logger
}

func NewCreditsService(users repo.Users, purchases repo.Purchases, logs repo.AuditLogs, apple, google verifier.Verifier, wp *worker.Pool, log *slog.Logger) *CreditsService {
	return &CreditsService{
		users:     users,
		purchases: purchases,
		logs:      logs,
		apple:     apple,
		google:    google,
		wp:        wp,
		log:       log,
	}
}

func (s *CreditsService) verifierFor(p models.Platform) verifier.Verifier {
	switch p {
	case models.PlatformIOS, models.PlatformMacOS:
		return s.apple
	case models.PlatformAndroid:
		return s.google
	}
	return nil
}

// Purchase runs the reconciliation flow. Replays of an already committed
// purchase id by the same user succeed and report the originally granted
// amount; a lost insert race surfaces as ErrAlreadyProcessed with every
// side effect rolled back.
func (s *CreditsService) Purchase(ctx context.Context, user models.User, in PurchaseInput) (PurchaseResult, error) {
	creditsToAdd, ok := models.CreditsFor(in.ProductID)
	if !ok {
		return PurchaseResult{}, ErrUnsupportedProduct
	}

	v := s.verifierFor(in.Platform)
	if v == nil {
		return PurchaseResult{}, ErrUnsupportedPlatform
	}

	verdict, err := v.Verify(ctx, verifier.Claim{
		Platform:   in.Platform,
		ProductID:  in.ProductID,
		PurchaseID: in.PurchaseID,
		Token:      in.VerificationData,
	})
	if err != nil {
		metrics.PurchasesFailed.Inc()
		s.audit(in.PurchaseID, "rejected", map[string]any{"platform": in.Platform})
		return PurchaseResult{}, err
	}

	var (
		result PurchaseResult
		replay bool
	)
	err = s.purchases.WithTx(ctx, func(tx pgx.Tx) error {
		existing, found, err := s.purchases.FindForUser(ctx, tx, in.PurchaseID, user.ID)
		if err != nil {
			return err
		}
		if found {
			// Duplicate submission: no re-credit. Report the current balance
			// and the credit value of the product that was actually recorded.
			balance, err := s.users.Credits(ctx, tx, user.ID)
			if err != nil {
				return err
			}
			granted, ok := models.CreditsFor(existing.ProductID)
			if !ok {
				granted = creditsToAdd
			}
			replay = true
			result = PurchaseResult{CreditsAdded: granted, Balance: balance}
			return nil
		}

		balance, err := s.users.IncrementCredits(ctx, tx, user.ID, creditsToAdd)
		if err != nil {
			return err
		}

		raw, err := json.Marshal(verdict)
		if err != nil {
			return err
		}
		inserted, err := s.purchases.InsertIfAbsent(ctx, tx, models.Purchase{
			UserID:             user.ID,
			PurchaseID:         in.PurchaseID,
			ProductID:          in.ProductID,
			Platform:           in.Platform,
			VerificationData:   in.VerificationData,
			VerificationResult: raw,
		})
		if err != nil {
			return err
		}
		if !inserted {
			// Lost the race to another request for the same purchase id.
			// Returning an error rolls the increment back with the tx.
			return ErrAlreadyProcessed
		}
		result = PurchaseResult{CreditsAdded: creditsToAdd, Balance: balance}
		return nil
	})
	if err != nil {
		metrics.PurchasesFailed.Inc()
		if errors.Is(err, ErrAlreadyProcessed) {
			s.audit(in.PurchaseID, "conflict", map[string]any{"user_id": user.ID})
		}
		return PurchaseResult{}, err
	}

	if replay {
		metrics.PurchaseReplays.Inc()
		s.audit(in.PurchaseID, "replayed", map[string]any{"user_id": user.ID})
	} else {
		metrics.PurchasesTotal.WithLabelValues(string(in.Platform)).Inc()
		s.audit(in.PurchaseID, "committed", map[string]any{
			"user_id":    user.ID,
			"product_id": in.ProductID,
			"credits":    creditsToAdd,
		})
	}
	return result, nil
}

func (s *CreditsService) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.users.Credits(ctx, nil, userID)
}

func (s *CreditsService) History(ctx context.Context, userID int64, limit, offset int) ([]models.Purchase, error) {
	return s.purchases.ListByUser(ctx, userID, limit, offset)
}

// audit writes are best-effort and run off the request path on the pool.
func (s *CreditsService) audit(purchaseID, action string, details map[string]any) {
	id := purchaseID
	s.wp.Submit(func() {
		if err := s.logs.Create(context.Background(), models.AuditLog{
			EntityType: "purchase",
			EntityID:   &id,
			Action:     action,
			Details:    details,
		}); err != nil {
			s.log.Warn("audit write failed", "action", action, "err", err)
		}
	})
}
