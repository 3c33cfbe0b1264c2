package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/awa/go-iap/playstore"
	"github.com/baharkarakas/credits-backend/internal/config"
	"github.com/baharkarakas/credits-backend/internal/models"
	"google.golang.org/api/androidpublisher/v3"
)

// purchaseStateCompleted is the androidpublisher sentinel for a finished
// purchase; anything else (pending, canceled) is a rejection.
const purchaseStateCompleted = 0

type playClient interface {
	VerifyProduct(ctx context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error)
}

// GooglePlay verifies product purchases through the androidpublisher API.
// Without a service account key the verifier stays constructible but rejects
// everything with ErrNotConfigured.
type GooglePlay struct {
	client      playClient
	packageName string
	log         *slog.Logger
}

func NewGooglePlay(cfg config.Google, log *slog.Logger) (*GooglePlay, error) {
	g := &GooglePlay{packageName: cfg.PackageName, log: log}
	if cfg.ServiceAccountJSON == "" {
		log.Warn("google play service account not set; android verification disabled")
		return g, nil
	}
	client, err := playstore.New([]byte(cfg.ServiceAccountJSON))
	if err != nil {
		return nil, fmt.Errorf("playstore client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GooglePlay) Verify(ctx context.Context, claim Claim) (Verdict, error) {
	if claim.Platform != models.PlatformAndroid {
		return Verdict{}, fmt.Errorf("%w: google verifier got platform %q", ErrVerificationFailed, claim.Platform)
	}
	if g.client == nil {
		return Verdict{}, ErrNotConfigured
	}
	if claim.PackageName != "" && g.packageName != "" && claim.PackageName != g.packageName {
		return Verdict{}, ErrPackageMismatch
	}
	packageName := g.packageName
	if packageName == "" {
		packageName = claim.PackageName
	}
	if packageName == "" {
		return Verdict{}, ErrNotConfigured
	}

	purchase, err := g.client.VerifyProduct(ctx, packageName, claim.ProductID, claim.Token)
	if err != nil {
		g.log.Error("google play verification failed", "err", err)
		return Verdict{}, fmt.Errorf("%w: play lookup", ErrVerificationFailed)
	}
	if purchase == nil {
		return Verdict{}, fmt.Errorf("%w: empty play response", ErrVerificationFailed)
	}

	if purchase.PurchaseState != purchaseStateCompleted {
		g.log.Error("google play purchase not completed", "state", purchase.PurchaseState)
		return Verdict{}, ErrNotCompleted
	}
	if purchase.OrderId != "" && claim.PurchaseID != "" && purchase.OrderId != claim.PurchaseID {
		g.log.Error("google play order id mismatch", "order_id", purchase.OrderId)
		return Verdict{}, ErrOrderMismatch
	}

	raw, err := json.Marshal(purchase)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: encode purchase", ErrVerificationFailed)
	}
	return Verdict{
		Provider: "google_play",
		OrderID:  purchase.OrderId,
		Raw:      raw,
	}, nil
}
