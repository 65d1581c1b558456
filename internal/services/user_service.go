package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/common"
	"marketplace/internal/models"
	"marketplace/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	Register(ctx context.Context, input models.UserInput) (*models.User, error)
	Principal(ctx context.Context, userID int64) (models.Principal, error)
}

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

type userService struct {
	store      repositories.Store
	validator  *common.Validator
	logger     *zap.Logger
	bcryptCost int
}

func NewUserService(store repositories.Store, validator *common.Validator, logger *zap.Logger) UserService {
	return &userService{
		store:      store,
		validator:  validator,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Register creates a buyer or seller account. Admins are provisioned directly in the database.
func (s *userService) Register(ctx context.Context, input models.UserInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, common.Validation("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	role, err := models.ParseRole(input.Role)
	if err != nil {
		return nil, common.Validation("role", err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	err = s.store.WithTx(ctx, func(r *repositories.Repos) error {
		return r.Users.Create(ctx, user)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return nil, common.Conflict("email")
	}
	if err != nil {
		return nil, entityErr(err, "user")
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", role.String()))
	return user, nil
}

// Principal resolves an authenticated user id. Unknown or inactive users are Unauthorized.
func (s *userService) Principal(ctx context.Context, userID int64) (models.Principal, error) {
	var user *models.User
	err := s.store.WithTx(ctx, func(r *repositories.Repos) error {
		var err error
		user, err = r.Users.GetByID(ctx, userID)
		return err
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Principal{}, common.Unauthorized("unknown user")
	}
	if err != nil {
		return models.Principal{}, entityErr(err, "user")
	}
	if !user.IsActive {
		return models.Principal{}, common.Unauthorized("inactive user")
	}
	return user.Principal(), nil
}
