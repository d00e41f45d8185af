package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// Staff roles.
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// UserService manages staff profiles and maps authenticated subjects to the
// actor recorded on timeline and activity rows.
type UserService struct {
	db       *gorm.DB
	userInfo UserInfoProvider
	log      zerolog.Logger
}

func NewUserService(db *gorm.DB, userInfo UserInfoProvider, log zerolog.Logger) *UserService {
	return &UserService{db: db, userInfo: userInfo, log: log}
}

// Provision creates the profile of an authenticated user from their Auth0
// profile.
func (s *UserService) Provision(ctx context.Context, auth0ID, accessToken, role string) (*models.User, error) {
	info, err := s.userInfo.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, ExternalDependency("AUTH0_ERROR", err, "failed to fetch user information from Auth0")
	}
	if info.Email == "" || info.Name == "" {
		return nil, Validation(CodeValidation, "Auth0 profile is missing a name or email")
	}
	if role != RoleOwner {
		role = RoleStaff
	}

	user := models.User{Auth0ID: auth0ID, Name: info.Name, Email: strings.ToLower(info.Email), Role: role}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("auth0_id = ? OR email = ?", user.Auth0ID, user.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if count > 0 {
			return ConstraintViolation("USER_EXISTS", "a user with this Auth0 ID or email already exists")
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user provisioned")
	return &user, nil
}

func (s *UserService) GetByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "user", auth0ID)
	}
	return &user, nil
}

type UpdateUserRequest struct {
	Name  *string
	Email *string
}

func (s *UserService) UpdateProfile(ctx context.Context, auth0ID string, req UpdateUserRequest) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
			return notFoundOr(err, "user", auth0ID)
		}
		updates := map[string]interface{}{}
		if req.Name != nil && *req.Name != "" {
			updates["name"] = *req.Name
		}
		if req.Email != nil && *req.Email != "" {
			email := strings.ToLower(*req.Email)
			var count int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check email: %w", err)
			}
			if count > 0 {
				return ConstraintViolation("EMAIL_EXISTS", "a user with this email already exists")
			}
			updates["email"] = email
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return tx.First(&user, user.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ActorFor returns the actor for an authenticated subject. Subjects without a
// profile are recorded by the name from their token, or the subject itself.
func (s *UserService) ActorFor(ctx context.Context, auth0ID, tokenName string) models.Actor {
	if auth0ID == "" {
		return models.SystemActor
	}
	user, err := s.GetByAuth0ID(ctx, auth0ID)
	if err == nil {
		return models.ActorFromUser(*user)
	}
	if KindOf(err) != KindNotFound {
		s.log.Warn().Err(err).Str("auth0_id", auth0ID).Msg("failed to resolve actor")
	}
	if tokenName != "" {
		return models.Actor{Name: tokenName}
	}
	return models.Actor{Name: auth0ID}
}
