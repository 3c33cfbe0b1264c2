package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/baharkarakas/credits-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/androidpublisher/v3"
)

type playClientStub struct {
	purchase *androidpublisher.ProductPurchase
	err      error
	calls    int
}

func (s *playClientStub) VerifyProduct(_ context.Context, _, _, _ string) (*androidpublisher.ProductPurchase, error) {
	s.calls++
	return s.purchase, s.err
}

func newGoogleWithStub(stub *playClientStub) *GooglePlay {
	return &GooglePlay{client: stub, packageName: "com.example.app", log: testLogger()}
}

func androidClaim() Claim {
	return Claim{
		Platform:   models.PlatformAndroid,
		ProductID:  "credits_100",
		PurchaseID: "GPA.1234-5678",
		Token:      "purchase-token",
	}
}

func TestGoogleVerifyCompletedPurchase(t *testing.T) {
	g := newGoogleWithStub(&playClientStub{purchase: &androidpublisher.ProductPurchase{
		OrderId:       "GPA.1234-5678",
		PurchaseState: 0,
	}})

	v, err := g.Verify(context.Background(), androidClaim())
	require.NoError(t, err)
	assert.Equal(t, "google_play", v.Provider)
	assert.Equal(t, "GPA.1234-5678", v.OrderID)
	assert.NotEmpty(t, v.Raw)
}

func TestGoogleVerifyRejectsPendingState(t *testing.T) {
	// state 1 is pending; only the completed sentinel passes
	g := newGoogleWithStub(&playClientStub{purchase: &androidpublisher.ProductPurchase{
		OrderId:       "GPA.1234-5678",
		PurchaseState: 1,
	}})

	_, err := g.Verify(context.Background(), androidClaim())
	require.ErrorIs(t, err, ErrNotCompleted)
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestGoogleVerifyRejectsOrderIDMismatch(t *testing.T) {
	g := newGoogleWithStub(&playClientStub{purchase: &androidpublisher.ProductPurchase{
		OrderId:       "GPA.0000-9999",
		PurchaseState: 0,
	}})

	_, err := g.Verify(context.Background(), androidClaim())
	require.ErrorIs(t, err, ErrOrderMismatch)
}

func TestGoogleVerifyRejectsPackageMismatch(t *testing.T) {
	stub := &playClientStub{}
	g := newGoogleWithStub(stub)

	claim := androidClaim()
	claim.PackageName = "com.other.app"
	_, err := g.Verify(context.Background(), claim)
	require.ErrorIs(t, err, ErrPackageMismatch)
	assert.Zero(t, stub.calls)
}

func TestGoogleVerifyNormalizesLookupErrors(t *testing.T) {
	g := newGoogleWithStub(&playClientStub{err: errors.New("googleapi: 404 not found")})

	_, err := g.Verify(context.Background(), androidClaim())
	require.ErrorIs(t, err, ErrVerificationFailed)
	// platform error detail is normalized away
	assert.NotContains(t, err.Error(), "googleapi")
}

func TestGoogleVerifyUnconfigured(t *testing.T) {
	g := &GooglePlay{log: testLogger()}
	_, err := g.Verify(context.Background(), androidClaim())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestGoogleVerifyRejectsWrongPlatform(t *testing.T) {
	g := newGoogleWithStub(&playClientStub{})
	claim := androidClaim()
	claim.Platform = models.PlatformIOS
	_, err := g.Verify(context.Background(), claim)
	require.ErrorIs(t, err, ErrVerificationFailed)
}
