package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	libdb "campuswallet/backend/libs/db"
	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

const studentColumns = `id, name, roll_no, email, rfid_uid, legacy_rfid, wallet_balance, modules, active, password_hash, created_at, updated_at`

// StudentRepo handles the students table.
type StudentRepo struct {
	q querier
}

// Create inserts a new student.
func (r *StudentRepo) Create(ctx context.Context, s *models.Student) error {
	const query = `
		INSERT INTO students (id, name, roll_no, email, rfid_uid, legacy_rfid, wallet_balance, modules, active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		s.ID,
		s.Name,
		s.RollNo,
		nullable(s.Email),
		s.RFIDUID,
		nullable(s.LegacyRFID),
		int64(s.WalletBalance),
		models.JoinModules(s.Modules),
		s.Active,
		s.PasswordHash,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return duplicate(err)
}

// GetByID fetches a student by id.
func (r *StudentRepo) GetByID(ctx context.Context, id string) (*models.Student, error) {
	return r.getBy(ctx, "id", id)
}

// GetByRollNo fetches a student by roll number.
func (r *StudentRepo) GetByRollNo(ctx context.Context, rollNo string) (*models.Student, error) {
	return r.getBy(ctx, "roll_no", strings.TrimSpace(rollNo))
}

// GetByRFID fetches a student by card uid.
func (r *StudentRepo) GetByRFID(ctx context.Context, rfidUID string) (*models.Student, error) {
	return r.getBy(ctx, "rfid_uid", strings.TrimSpace(rfidUID))
}

// GetByLegacyRFID fetches a student by the card number used before uids were stored.
func (r *StudentRepo) GetByLegacyRFID(ctx context.Context, legacy string) (*models.Student, error) {
	return r.getBy(ctx, "legacy_rfid", strings.TrimSpace(legacy))
}

func (r *StudentRepo) getBy(ctx context.Context, column, value string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE ` + column + ` = $1 LIMIT 1`
	s, err := scanStudent(r.q.QueryRowContext(ctx, query, value))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// List returns students ordered by roll number.
func (r *StudentRepo) List(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE ($1 = FALSE OR active = TRUE) ORDER BY roll_no`
	rows, err := r.q.QueryContext(ctx, query, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		if filter.Module != "" && !s.HasModule(filter.Module) {
			continue
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return students, nil
}

// UpdateProfile writes everything but the balance and password.
func (r *StudentRepo) UpdateProfile(ctx context.Context, s *models.Student) error {
	const query = `
		UPDATE students
		SET name = $2,
		    roll_no = $3,
		    email = $4,
		    rfid_uid = $5,
		    legacy_rfid = $6,
		    modules = $7,
		    active = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		s.ID,
		s.Name,
		s.RollNo,
		nullable(s.Email),
		s.RFIDUID,
		nullable(s.LegacyRFID),
		models.JoinModules(s.Modules),
		s.Active,
	).Scan(&s.UpdatedAt)
	return duplicate(notFound(err))
}

// SetPasswordHash stores the login hash for a student.
func (r *StudentRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	const query = `UPDATE students SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query, id, hash)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// Credit adds to the balance unconditionally. A sum past BIGINT returns money.ErrOverflow.
func (r *StudentRepo) Credit(ctx context.Context, id string, amount money.Amount) (money.Amount, error) {
	const query = `
		UPDATE students
		SET wallet_balance = wallet_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING wallet_balance
	`
	var balance int64
	if err := r.q.QueryRowContext(ctx, query, id, int64(amount)).Scan(&balance); err != nil {
		if libdb.IsOutOfRange(err) {
			return 0, money.ErrOverflow
		}
		return 0, notFound(err)
	}
	return money.Amount(balance), nil
}

// DebitIfSufficient filters on the balance and decrements it in the same statement.
func (r *StudentRepo) DebitIfSufficient(ctx context.Context, id string, amount money.Amount) (money.Amount, error) {
	const query = `
		UPDATE students
		SET wallet_balance = wallet_balance - $2, updated_at = NOW()
		WHERE id = $1 AND wallet_balance >= $2
		RETURNING wallet_balance
	`
	var balance int64
	if err := r.q.QueryRowContext(ctx, query, id, int64(amount)).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrConditionFailed
		}
		return 0, err
	}
	return money.Amount(balance), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*models.Student, error) {
	var (
		s       models.Student
		email   sql.NullString
		legacy  sql.NullString
		balance int64
		modules string
	)
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&s.RollNo,
		&email,
		&s.RFIDUID,
		&legacy,
		&balance,
		&modules,
		&s.Active,
		&s.PasswordHash,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Email = email.String
	s.LegacyRFID = legacy.String
	s.WalletBalance = money.Amount(balance)
	s.Modules = models.SplitModules(modules)
	return &s, nil
}
