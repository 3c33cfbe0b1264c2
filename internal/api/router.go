package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/credits-backend/internal/api/httpx"
	"github.com/baharkarakas/credits-backend/internal/api/validate"
	"github.com/baharkarakas/credits-backend/internal/auth"
	"github.com/baharkarakas/credits-backend/internal/config"
	"github.com/baharkarakas/credits-backend/internal/metrics"
	"github.com/baharkarakas/credits-backend/internal/middleware"
	"github.com/baharkarakas/credits-backend/internal/models"
	repo "github.com/baharkarakas/credits-backend/internal/repository"
	"github.com/baharkarakas/credits-backend/internal/services"
	"github.com/baharkarakas/credits-backend/internal/verifier"
)

func NewRouter(cfg config.Config, tm *auth.TokenManager, us *services.UserService, cs *services.CreditsService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authmw := middleware.NewAuthMiddleware(tm, us)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				UID         string  `json:"uid"`
				Provider    string  `json:"provider"`
				DisplayName *string `json:"display_name"`
				Email       *string `json:"email"`
				IsAnonymous bool    `json:"is_anonymous"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			u, err := us.Login(r.Context(), services.LoginInput{
				UID:         req.UID,
				Provider:    req.Provider,
				DisplayName: req.DisplayName,
				Email:       req.Email,
				IsAnonymous: req.IsAnonymous,
			})
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
				return
			}
			access, refresh, exp, err := tm.GeneratePair(u)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"access":     access,
				"refresh":    refresh,
				"expires_in": int64(time.Until(exp).Seconds()),
				"user":       u,
			})
		})

		r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				RefreshToken string `json:"refresh_token"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request", nil)
				return
			}
			claims, isRefresh, err := tm.ParseAny(req.RefreshToken)
			if err != nil || !isRefresh {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
				return
			}
			u, err := us.GetByID(r.Context(), claims.UserID)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "user not found", nil)
				return
			}
			access, refresh, _, err := tm.GeneratePair(u)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
				return
			}
			// keep the old refresh token while it still has plenty of life
			if !tm.ShouldRotate(claims) {
				refresh = req.RefreshToken
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]string{
				"access":  access,
				"refresh": refresh,
			})
		})

		// ---------- authenticated ----------
		r.Group(func(r chi.Router) {
			r.Use(authmw.Auth)

			r.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
				u, ok := middleware.UserFrom(r.Context())
				if !ok {
					httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "no user in context", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, u)
			})

			r.Get("/credits/balance", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.UserFrom(r.Context())
				balance, err := cs.Balance(r.Context(), u.ID)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]int64{"balance": balance})
			})

			r.Post("/credits/purchase", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.UserFrom(r.Context())

				var req struct {
					Platform         string `json:"platform"`
					PurchaseID       string `json:"purchase_id"`
					ProductID        string `json:"product_id"`
					VerificationData string `json:"verification_data"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
					return
				}
				req.Platform = strings.ToLower(req.Platform)

				var errs validate.Errs
				for _, e := range []*validate.ErrField{
					validate.OneOf("platform", req.Platform, "ios", "android", "macos"),
					validate.Required("purchase_id", req.PurchaseID),
					validate.MaxLen("purchase_id", req.PurchaseID, 200),
					validate.Required("product_id", req.ProductID),
					validate.MaxLen("product_id", req.ProductID, 100),
					validate.Required("verification_data", req.VerificationData),
				} {
					if e != nil {
						errs = append(errs, *e)
					}
				}
				if len(errs) > 0 {
					httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", errs)
					return
				}

				result, err := cs.Purchase(r.Context(), u, services.PurchaseInput{
					Platform:         models.Platform(req.Platform),
					PurchaseID:       req.PurchaseID,
					ProductID:        req.ProductID,
					VerificationData: req.VerificationData,
				})
				if err != nil {
					writePurchaseError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, result)
			})

			r.Get("/credits/purchases", func(w http.ResponseWriter, r *http.Request) {
				u, _ := middleware.UserFrom(r.Context())

				limit := 50
				offset := 0
				if v := r.URL.Query().Get("limit"); v != "" {
					if n, err := strconv.Atoi(v); err == nil && n > 0 {
						limit = n
					}
				}
				if v := r.URL.Query().Get("offset"); v != "" {
					if n, err := strconv.Atoi(v); err == nil && n >= 0 {
						offset = n
					}
				}

				purchases, err := cs.History(r.Context(), u.ID, limit, offset)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, purchases)
			})
		})
	})

	return r
}

// writePurchaseError maps business outcomes to stable response categories.
// Adapter detail never leaks past the log line the adapter already wrote.
func writePurchaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUnsupportedProduct):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_product", "Unsupported product_id", nil)
	case errors.Is(err, services.ErrUnsupportedPlatform):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_platform", "Unsupported platform", nil)
	case errors.Is(err, verifier.ErrVerificationFailed):
		httpx.WriteError(w, http.StatusBadRequest, "verification_failed", "Purchase verification failed", nil)
	case errors.Is(err, services.ErrAlreadyProcessed):
		httpx.WriteError(w, http.StatusConflict, "conflict", "Purchase already processed", nil)
	case errors.Is(err, repo.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found", nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
