package verifier

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/baharkarakas/credits-backend/internal/config"
	"github.com/baharkarakas/credits-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	EnvironmentProduction = "Production"
	EnvironmentSandbox    = "Sandbox"
)

// Apple verifies App Store signed transactions (JWS) for iOS and macOS.
// Trust roots are loaded once at construction from the certificate directory;
// construction fails hard when the directory is missing or holds no certs.
type Apple struct {
	roots    *x509.CertPool
	bundleID string
	appID    int64
	log      *slog.Logger
}

func NewApple(cfg config.Apple, log *slog.Logger) (*Apple, error) {
	roots, err := loadRootCAs(cfg.CertDir)
	if err != nil {
		return nil, err
	}
	return &Apple{
		roots:    roots,
		bundleID: cfg.BundleID,
		appID:    cfg.AppID,
		log:      log,
	}, nil
}

// appleTransaction is the decoded JWSTransaction payload. Dates are
// millisecond epochs as Apple sends them.
type appleTransaction struct {
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	BundleID              string `json:"bundleId"`
	ProductID             string `json:"productId"`
	Type                  string `json:"type"`
	Environment           string `json:"environment"`
	PurchaseDate          int64  `json:"purchaseDate"`
	SignedDate            int64  `json:"signedDate"`
	Quantity              int64  `json:"quantity"`
	jwt.RegisteredClaims
}

func (a *Apple) Verify(_ context.Context, claim Claim) (Verdict, error) {
	if claim.Platform != models.PlatformIOS && claim.Platform != models.PlatformMacOS {
		return Verdict{}, fmt.Errorf("%w: apple verifier got platform %q", ErrVerificationFailed, claim.Platform)
	}

	environment := ParseEnvironment(claim.Token)

	txn := &appleTransaction{}
	tok, err := jwt.ParseWithClaims(claim.Token, txn, a.keyFunc, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		a.log.Error("apple receipt verification failed", "env", environment, "err", err)
		return Verdict{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if !tok.Valid {
		return Verdict{}, ErrMalformedToken
	}

	if a.bundleID != "" && txn.BundleID != a.bundleID {
		a.log.Error("apple bundle id mismatch", "got", txn.BundleID)
		return Verdict{}, fmt.Errorf("%w: bundle id mismatch", ErrVerificationFailed)
	}
	if !strings.EqualFold(txn.Environment, environment) {
		return Verdict{}, fmt.Errorf("%w: environment mismatch", ErrVerificationFailed)
	}

	raw, err := json.Marshal(txn)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: encode transaction", ErrVerificationFailed)
	}
	return Verdict{
		Provider:    "apple",
		Environment: environment,
		OrderID:     txn.TransactionID,
		Raw:         raw,
	}, nil
}

// keyFunc extracts the x5c chain from the JWS header, validates it against the
// loaded roots and returns the leaf public key. Any gap in the chain of trust
// fails the whole verification.
func (a *Apple) keyFunc(t *jwt.Token) (any, error) {
	x5c, ok := t.Header["x5c"].([]any)
	if !ok || len(x5c) == 0 {
		return nil, ErrMalformedToken
	}

	certs := make([]*x509.Certificate, 0, len(x5c))
	for _, entry := range x5c {
		s, ok := entry.(string)
		if !ok {
			return nil, ErrMalformedToken
		}
		der, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c entry", ErrMalformedToken)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c certificate", ErrMalformedToken)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         a.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUntrustedChain, err)
	}
	return certs[0].PublicKey, nil
}

// ParseEnvironment decodes the middle JWS segment without trusting it, only
// to pick the verification environment. Anything undecodable means sandbox.
func ParseEnvironment(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return EnvironmentSandbox
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return EnvironmentSandbox
	}
	var body struct {
		Environment string `json:"environment"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return EnvironmentSandbox
	}
	if strings.EqualFold(strings.TrimSpace(body.Environment), "production") {
		return EnvironmentProduction
	}
	return EnvironmentSandbox
}

func loadRootCAs(dir string) (*x509.CertPool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("certificate directory not found: %s: %w", dir, err)
	}

	pool := x509.NewCertPool()
	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".cer") && !strings.HasSuffix(name, ".pem") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read root certificate %s: %w", e.Name(), err)
		}
		if block, _ := pem.Decode(b); block != nil {
			b = block.Bytes
		}
		cert, err := x509.ParseCertificate(b)
		if err != nil {
			return nil, fmt.Errorf("parse root certificate %s: %w", e.Name(), err)
		}
		pool.AddCert(cert)
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no apple root certificates found in %s", dir)
	}
	return pool, nil
}
