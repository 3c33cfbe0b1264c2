package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/baharkarakas/credits-backend/internal/auth"
	"github.com/baharkarakas/credits-backend/internal/config"
	"github.com/baharkarakas/credits-backend/internal/models"
	repo "github.com/baharkarakas/credits-backend/internal/repository"
	"github.com/baharkarakas/credits-backend/internal/services"
	"github.com/baharkarakas/credits-backend/internal/verifier"
	"github.com/baharkarakas/credits-backend/internal/worker"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore backs the router tests with in-memory users and purchases.
type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]models.User
	byUID     map[string]int64
	purchases map[string]models.Purchase
	nextUser  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[int64]models.User),
		byUID:     make(map[string]int64),
		purchases: make(map[string]models.Purchase),
	}
}

func (s *fakeStore) Create(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	u.ID = s.nextUser
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	s.byUID[u.UID] = u.ID
	return u, nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repo.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetByUID(_ context.Context, uid string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUID[uid]
	if !ok {
		return models.User{}, repo.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *fakeStore) UpdateProfile(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) IncrementCredits(_ context.Context, _ pgx.Tx, userID, delta int64) (int64, error) {
	u, ok := s.users[userID]
	if !ok {
		return 0, repo.ErrUserNotFound
	}
	u.Credits += delta
	s.users[userID] = u
	return u.Credits, nil
}

func (s *fakeStore) Credits(_ context.Context, _ pgx.Tx, userID int64) (int64, error) {
	u, ok := s.users[userID]
	if !ok {
		return 0, repo.ErrUserNotFound
	}
	return u.Credits, nil
}

func (s *fakeStore) FindForUser(_ context.Context, _ pgx.Tx, purchaseID string, userID int64) (models.Purchase, bool, error) {
	p, ok := s.purchases[purchaseID]
	if !ok || p.UserID != userID {
		return models.Purchase{}, false, nil
	}
	return p, true, nil
}

func (s *fakeStore) InsertIfAbsent(_ context.Context, _ pgx.Tx, p models.Purchase) (bool, error) {
	if _, exists := s.purchases[p.PurchaseID]; exists {
		return false, nil
	}
	s.purchases[p.PurchaseID] = p
	return true, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID int64, limit, offset int) ([]models.Purchase, error) {
	var out []models.Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	usersSnap := make(map[int64]models.User, len(s.users))
	for k, v := range s.users {
		usersSnap[k] = v
	}
	purchasesSnap := make(map[string]models.Purchase, len(s.purchases))
	for k, v := range s.purchases {
		purchasesSnap[k] = v
	}
	if err := fn(nil); err != nil {
		s.users = usersSnap
		s.purchases = purchasesSnap
		return err
	}
	return nil
}

type noopAudit struct{}

func (noopAudit) Create(context.Context, models.AuditLog) error { return nil }

type okVerifier struct{}

func (okVerifier) Verify(_ context.Context, claim verifier.Claim) (verifier.Verdict, error) {
	return verifier.Verdict{Provider: "stub", OrderID: claim.PurchaseID}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	wp := worker.NewPool(1)
	t.Cleanup(wp.Stop)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tm := auth.NewTokenManager("test-secret", time.Minute, time.Hour)
	us := services.NewUserService(store)
	cs := services.NewCreditsService(store, store, noopAudit{}, okVerifier{}, okVerifier{}, wp, log)

	srv := httptest.NewServer(NewRouter(config.Config{Env: "test", RateRPS: 0}, tm, us, cs))
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func loginToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/auth/login", "", map[string]any{
		"uid":      "uid-1",
		"provider": "google",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Access string `json:"access"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Access)
	return body.Access
}

func TestPurchaseEndpointFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	token := loginToken(t, srv)

	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/credits/purchase", token, map[string]string{
		"platform":          "ios",
		"purchase_id":       "txn-1",
		"product_id":        "credits_100",
		"verification_data": "a.b.c",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result services.PurchaseResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(100), result.CreditsAdded)
	assert.Equal(t, int64(100), result.Balance)

	// replay succeeds with the same grant, no double credit
	resp = postJSON(t, srv.Client(), srv.URL+"/api/v1/credits/purchase", token, map[string]string{
		"platform":          "ios",
		"purchase_id":       "txn-1",
		"product_id":        "credits_100",
		"verification_data": "a.b.c",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(100), result.CreditsAdded)
	assert.Equal(t, int64(100), result.Balance)
}

func TestPurchaseEndpointRejectsUnknownProduct(t *testing.T) {
	srv, _ := newTestServer(t)
	token := loginToken(t, srv)

	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/credits/purchase", token, map[string]string{
		"platform":          "ios",
		"purchase_id":       "txn-2",
		"product_id":        "not_a_real_sku",
		"verification_data": "a.b.c",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPurchaseEndpointValidatesPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	token := loginToken(t, srv)

	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/credits/purchase", token, map[string]string{
		"platform":          "windows",
		"purchase_id":       "",
		"product_id":        "credits_100",
		"verification_data": "",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPurchaseEndpointConflictForForeignPurchaseID(t *testing.T) {
	srv, store := newTestServer(t)
	token := loginToken(t, srv)

	// the same purchase id already committed by a different user
	otherUser, err := store.Create(context.Background(), models.User{UID: "uid-other", Provider: "google"})
	require.NoError(t, err)
	store.purchases["txn-3"] = models.Purchase{UserID: otherUser.ID, PurchaseID: "txn-3", ProductID: "credits_100"}

	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/credits/purchase", token, map[string]string{
		"platform":          "android",
		"purchase_id":       "txn-3",
		"product_id":        "credits_100",
		"verification_data": "token",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPurchaseEndpointRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/credits/purchase", "", map[string]string{
		"platform":          "ios",
		"purchase_id":       "txn-4",
		"product_id":        "credits_100",
		"verification_data": "a.b.c",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRotation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.Client(), srv.URL+"/api/v1/auth/login", "", map[string]any{
		"uid":      "uid-refresh",
		"provider": "apple",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Refresh string `json:"refresh"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	resp = postJSON(t, srv.Client(), srv.URL+"/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.Refresh,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	assert.NotEmpty(t, refreshed.Access)
	// the 1h refresh TTL is under the rotation threshold, so it rotates
	assert.NotEmpty(t, refreshed.Refresh)
}
