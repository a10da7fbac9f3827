package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/password"
	"campuswallet/backend/services/campus-service/internal/repository"
)

// AuthService authenticates admins and students.
type AuthService struct {
	store     repository.Store
	hasher    password.Hasher
	tokenizer *TokenService
	logger    *zap.Logger
}

// NewAuthService builds AuthService.
func NewAuthService(store repository.Store, hasher password.Hasher, tokenizer *TokenService, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:     store,
		hasher:    hasher,
		tokenizer: tokenizer,
		logger:    logger,
	}
}

// EnsureAdmin creates the bootstrap admin when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, plain string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plain == "" {
		return nil
	}

	admins := s.store.Repos().Admins
	if _, err := admins.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return err
	}
	admin := &models.Admin{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	if err := admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return err
	}

	s.logger.Info("bootstrap admin created", zap.String("email", email))
	return nil
}

// LoginAdmin authenticates an operator and produces a JWT.
func (s *AuthService) LoginAdmin(ctx context.Context, email, plain string) (string, *models.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plain == "" {
		return "", nil, ErrInvalidCredentials
	}

	admin, err := s.store.Repos().Admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.hasher.Compare(admin.PasswordHash, plain); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(admin.ID, models.RoleAdmin)
	if err != nil {
		return "", nil, err
	}
	return token, admin, nil
}

// LoginStudent authenticates a student by roll number.
func (s *AuthService) LoginStudent(ctx context.Context, rollNo, plain string) (string, *models.Student, error) {
	rollNo = strings.TrimSpace(rollNo)
	if rollNo == "" || plain == "" {
		return "", nil, ErrInvalidCredentials
	}

	student, err := s.store.Repos().Students.GetByRollNo(ctx, rollNo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !student.Active {
		return "", nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(student.PasswordHash, plain); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokenizer.GenerateToken(student.ID, models.RoleStudent)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("student logged in", zap.String("student_id", student.ID))
	return token, student, nil
}

// SetStudentPassword stores a new login password for a student.
func (s *AuthService) SetStudentPassword(ctx context.Context, studentID, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return err
	}
	if err := s.store.Repos().Students.SetPasswordHash(ctx, studentID, hash); err != nil {
		return studentErr(err)
	}
	return nil
}
