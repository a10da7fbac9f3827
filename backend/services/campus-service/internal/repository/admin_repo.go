package repository

import (
	"context"
	"strings"

	"campuswallet/backend/services/campus-service/internal/models"
)

// AdminRepo handles operator accounts.
type AdminRepo struct {
	q querier
}

// Create inserts a new admin.
func (r *AdminRepo) Create(ctx context.Context, admin *models.Admin) error {
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	const query = `
		INSERT INTO admins (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`
	err := r.q.QueryRowContext(ctx, query, admin.ID, admin.Email, admin.PasswordHash).Scan(&admin.CreatedAt)
	return duplicate(err)
}

// GetByEmail fetches an admin by email.
func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM admins
		WHERE email = $1
		LIMIT 1
	`
	var admin models.Admin
	err := r.q.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))).
		Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &admin, nil
}
