package services

import (
	"context"
	"errors"
	"strings"

	"github.com/baharkarakas/credits-backend/internal/models"
	repo "github.com/baharkarakas/credits-backend/internal/repository"
)

type LoginInput struct {
	UID         string
	Provider    string
	DisplayName *string
	Email       *string
	IsAnonymous bool
}

// UserService syncs the identity-provider profile on login and reads profiles.
type UserService struct {
	r repo.Users
}

func NewUserService(r repo.Users) *UserService { return &UserService{r: r} }

// Login upserts the user for the provider-issued uid: existing users get a
// profile sync, unknown uids get a fresh row with a zero balance.
func (s *UserService) Login(ctx context.Context, in LoginInput) (models.User, error) {
	u := models.User{
		UID:         strings.TrimSpace(in.UID),
		Provider:    in.Provider,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		IsAnonymous: in.IsAnonymous,
	}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}

	existing, err := s.r.GetByUID(ctx, u.UID)
	switch {
	case err == nil:
		existing.Provider = u.Provider
		if u.DisplayName != nil {
			existing.DisplayName = u.DisplayName
		}
		if u.Email != nil {
			existing.Email = u.Email
		}
		existing.IsAnonymous = u.IsAnonymous
		return s.r.UpdateProfile(ctx, existing)
	case errors.Is(err, repo.ErrUserNotFound):
		return s.r.Create(ctx, u)
	default:
		return models.User{}, err
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (models.User, error) {
	return s.r.GetByID(ctx, id)
}
