package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"englishtutor/internal/auth"

	"github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidLevel       = errors.New("level must be between 1 and 8")
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	existingUser, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logrus.Errorf("Failed to check existing user '%s': %v", username, err)
		return nil, fmt.Errorf("internal error while checking user")
	}
	if existingUser != nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		logrus.Errorf("Failed to hash password for user '%s': %v", username, err)
		return nil, fmt.Errorf("internal error while hashing password")
	}

	user, err := s.repo.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		logrus.Errorf("Failed to create user '%s': %v", username, err)
		return nil, fmt.Errorf("internal error while creating user")
	}
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		logrus.Errorf("Failed to get user '%s' for authentication: %v", username, err)
		return nil, fmt.Errorf("internal error during authentication")
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		logrus.Errorf("Failed to get user by id %d: %v", id, err)
		return nil, fmt.Errorf("internal error")
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) UpdateCurrentLevel(ctx context.Context, id int64, level int) error {
	if level < 1 || level > 8 {
		return ErrInvalidLevel
	}
	err := s.repo.UpdateCurrentLevel(ctx, id, level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		logrus.Errorf("Failed to update level for user %d: %v", id, err)
		return fmt.Errorf("internal error")
	}
	return nil
}
