package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/password"
	"campuswallet/backend/services/campus-service/internal/repository"
)

// StudentService manages card holders. Balances change only through WalletService.
type StudentService struct {
	store  repository.Store
	wallet *WalletService
	hasher password.Hasher
	logger *zap.Logger
}

// NewStudentService builds the student service.
func NewStudentService(store repository.Store, wallet *WalletService, hasher password.Hasher, logger *zap.Logger) *StudentService {
	return &StudentService{store: store, wallet: wallet, hasher: hasher, logger: logger}
}

// CreateStudentInput describes a new student.
type CreateStudentInput struct {
	Name       string
	RollNo     string
	Email      string
	RFIDUID    string
	LegacyRFID string
	Modules    []models.Module
	Password   string
	// InitialBalance is credited through a regular deposit so the ledger stays complete.
	InitialBalance money.Amount
}

// UpdateStudentInput carries the editable profile fields. Nil fields are left alone.
type UpdateStudentInput struct {
	Name       *string
	RollNo     *string
	Email      *string
	RFIDUID    *string
	LegacyRFID *string
	Modules    []models.Module
	Active     *bool
}

// BulkResult reports the outcome of one row of a bulk import.
type BulkResult struct {
	Index   int             `json:"index"`
	RollNo  string          `json:"rollNo"`
	Student *models.Student `json:"student,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Create registers a student.
func (s *StudentService) Create(ctx context.Context, in CreateStudentInput) (*models.Student, error) {
	student := &models.Student{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.Name),
		RollNo:     strings.TrimSpace(in.RollNo),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		RFIDUID:    strings.TrimSpace(in.RFIDUID),
		LegacyRFID: strings.TrimSpace(in.LegacyRFID),
		Modules:    in.Modules,
		Active:     true,
	}
	if len(student.Modules) == 0 {
		student.Modules = []models.Module{models.ModuleLibrary, models.ModuleFood, models.ModuleStore}
	}
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	if in.InitialBalance < 0 {
		return nil, ErrInvalidAmount
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		student.PasswordHash = hash
	}

	if err := s.store.Repos().Students.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: roll number, email or rfid uid already registered", ErrConflict)
		}
		return nil, err
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("roll_no", student.RollNo))

	if in.InitialBalance.Positive() {
		result, err := s.wallet.Deposit(ctx, student.ID, in.InitialBalance)
		if err != nil {
			return nil, err
		}
		student.WalletBalance = result.Balance
	}
	return student, nil
}

// BulkCreate registers every row it can and reports each row's outcome.
func (s *StudentService) BulkCreate(ctx context.Context, rows []CreateStudentInput) []BulkResult {
	results := make([]BulkResult, 0, len(rows))
	for i, row := range rows {
		result := BulkResult{Index: i, RollNo: strings.TrimSpace(row.RollNo)}
		student, err := s.Create(ctx, row)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Student = student
		}
		results = append(results, result)
	}
	return results
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	return loadStudent(ctx, s.store.Repos(), id)
}

// List returns students ordered by roll number.
func (s *StudentService) List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, error) {
	if filter.Module != "" && !filter.Module.Valid() {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidInput, filter.Module)
	}
	return s.store.Repos().Students.List(ctx, filter)
}

// Update edits profile fields.
func (s *StudentService) Update(ctx context.Context, id string, in UpdateStudentInput) (*models.Student, error) {
	var student *models.Student
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		if student, err = loadStudent(ctx, repos, id); err != nil {
			return err
		}
		applyStudentUpdate(student, in)
		if err := validateStudent(student); err != nil {
			return err
		}
		if err := repos.Students.UpdateProfile(ctx, student); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: roll number, email or rfid uid already registered", ErrConflict)
			}
			return studentErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("student updated", zap.String("student_id", id))
	return student, nil
}

// Deactivate soft-deletes a student. Their history and balance are kept.
func (s *StudentService) Deactivate(ctx context.Context, id string) (*models.Student, error) {
	inactive := false
	return s.Update(ctx, id, UpdateStudentInput{Active: &inactive})
}

func applyStudentUpdate(student *models.Student, in UpdateStudentInput) {
	if in.Name != nil {
		student.Name = strings.TrimSpace(*in.Name)
	}
	if in.RollNo != nil {
		student.RollNo = strings.TrimSpace(*in.RollNo)
	}
	if in.Email != nil {
		student.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.RFIDUID != nil {
		student.RFIDUID = strings.TrimSpace(*in.RFIDUID)
	}
	if in.LegacyRFID != nil {
		student.LegacyRFID = strings.TrimSpace(*in.LegacyRFID)
	}
	if in.Modules != nil {
		student.Modules = in.Modules
	}
	if in.Active != nil {
		student.Active = *in.Active
	}
}

func validateStudent(student *models.Student) error {
	switch {
	case student.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case student.RollNo == "":
		return fmt.Errorf("%w: rollNo is required", ErrInvalidInput)
	case student.RFIDUID == "":
		return fmt.Errorf("%w: rfid_uid is required", ErrInvalidInput)
	}
	for _, m := range student.Modules {
		if !m.Valid() {
			return fmt.Errorf("%w: unknown module %q", ErrInvalidInput, m)
		}
	}
	return nil
}
