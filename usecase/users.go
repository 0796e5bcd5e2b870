package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/repository"
	"github.com/devboard/devboard/services"
	"github.com/devboard/devboard/utils"
)

type UserService struct {
	UsersRepo *repository.UserRepo
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	if !utils.ValidatePassword(password) {
		return nil, fmt.Errorf("password does not meet complexity requirements")
	}

	hashed, err := services.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		UserID:    utils.GenerateUserID(),
		Username:  username,
		Email:     email,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.UsersRepo.AddUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate verifies a username/password pair and returns the user.
// Returns model.ErrUserNotFound for unknown users; an incorrect password
// is reported as (nil, false, nil) so callers can respond uniformly.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*model.User, bool, error) {
	user, err := s.UsersRepo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}

	ok, err := services.VerifyPassword(user.Password, password)
	if err != nil {
		return nil, false, fmt.Errorf("password verification failed: %w", err)
	}

	return user, ok, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.UsersRepo.FindUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := services.VerifyPassword(user.Password, oldPassword)
	if err != nil {
		return fmt.Errorf("password verification failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("incorrect password")
	}

	if !utils.ValidatePassword(newPassword) {
		return fmt.Errorf("password does not meet complexity requirements")
	}

	hashed, err := services.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.UsersRepo.UpdateUserPassword(ctx, userID, hashed)
}
