package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baharkarakas/credits-backend/internal/models"
)

// Claim is a client-submitted purchase to verify against the issuing platform.
type Claim struct {
	Platform  models.Platform
	ProductID string
	// PurchaseID is the client-claimed platform order id. When set, Google
	// verification requires it to match the platform-reported order id.
	PurchaseID string
	// Token is the raw verification payload: a JWS for Apple, an opaque
	// purchase token for Google Play.
	Token string
	// PackageName optionally overrides the configured Play package name and
	// must match it when both are set.
	PackageName string
}

// Verdict is the structured confirmation of a completed purchase. Raw holds
// the decoded platform response and is persisted for audit.
type Verdict struct {
	Provider    string          `json:"provider"`
	Environment string          `json:"environment,omitempty"`
	OrderID     string          `json:"order_id,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Verifier confirms a purchase claim with the issuing platform. Adapters fail
// closed and never retry internally; every failure wraps ErrVerificationFailed
// so callers can classify without seeing platform internals.
type Verifier interface {
	Verify(ctx context.Context, claim Claim) (Verdict, error)
}

var ErrVerificationFailed = errors.New("verification failed")

var (
	ErrNotConfigured   = fmt.Errorf("%w: verifier not configured", ErrVerificationFailed)
	ErrMalformedToken  = fmt.Errorf("%w: malformed token", ErrVerificationFailed)
	ErrUntrustedChain  = fmt.Errorf("%w: certificate chain not trusted", ErrVerificationFailed)
	ErrNotCompleted    = fmt.Errorf("%w: purchase not completed", ErrVerificationFailed)
	ErrOrderMismatch   = fmt.Errorf("%w: order id mismatch", ErrVerificationFailed)
	ErrPackageMismatch = fmt.Errorf("%w: package name mismatch", ErrVerificationFailed)
)
