package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

const transactionColumns = `t.id, t.student_id, t.item_id, t.module, t.action, t.amount, t.status, t.notes, t.due_date, t.receipt_id, t.wallet_debited, t.created_at, t.updated_at`

// TransactionRepo handles the transactions table.
type TransactionRepo struct {
	q querier
}

// Create inserts a transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx *models.Transaction) error {
	const query = `
		INSERT INTO transactions (id, student_id, item_id, module, action, amount, status, notes, due_date, receipt_id, wallet_debited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return r.q.QueryRowContext(ctx, query,
		tx.ID,
		tx.StudentID,
		nullable(tx.ItemID),
		string(tx.Module),
		string(tx.Action),
		nullableAmount(tx.Amount),
		string(tx.Status),
		tx.Notes,
		tx.DueDate,
		tx.ReceiptID,
		tx.WalletDebited,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
}

// GetByID fetches one transaction.
func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = $1`
	tx, err := scanTransaction(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return tx, nil
}

// TransitionStatus updates the status only from the expected previous state.
func (r *TransactionRepo) TransitionStatus(ctx context.Context, id string, from, to models.Status) (*models.Transaction, error) {
	query := `
		UPDATE transactions t
		SET status = $3, updated_at = NOW()
		WHERE t.id = $1 AND t.status = $2
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(r.q.QueryRowContext(ctx, query, id, string(from), string(to)))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConditionFailed
}

// MarkWalletDebited records that the wallet was charged for this transaction.
func (r *TransactionRepo) MarkWalletDebited(ctx context.Context, id string, amount money.Amount) error {
	const query = `
		UPDATE transactions
		SET wallet_debited = TRUE, amount = $2, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.q.ExecContext(ctx, query, id, int64(amount))
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// UpdateNotes replaces the free-text notes.
func (r *TransactionRepo) UpdateNotes(ctx context.Context, id, notes string) (*models.Transaction, error) {
	query := `
		UPDATE transactions t
		SET notes = $2, updated_at = NOW()
		WHERE t.id = $1
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(r.q.QueryRowContext(ctx, query, id, notes))
	if err != nil {
		return nil, notFound(err)
	}
	return tx, nil
}

// Delete removes a transaction record.
func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// List returns transactions newest first with student and item joined in.
func (r *TransactionRepo) List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.StudentID != "" {
		add("t.student_id = $%d", filter.StudentID)
	}
	if filter.Module != "" {
		add("t.module = $%d", string(filter.Module))
	}
	if filter.Status != "" {
		add("t.status = $%d", string(filter.Status))
	}
	if filter.Action != "" {
		add("t.action = $%d", string(filter.Action))
	}
	if filter.ReceiptID != "" {
		add("t.receipt_id = $%d", filter.ReceiptID)
	}

	query := `
		SELECT ` + transactionColumns + `,
		       s.name, s.roll_no, s.rfid_uid,
		       i.type, i.name, i.price, i.author
		FROM transactions t
		JOIN students s ON s.id = t.student_id
		LEFT JOIN items i ON i.id = t.item_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY t.created_at DESC, t.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []models.TransactionDetail
	for rows.Next() {
		var (
			d          models.TransactionDetail
			student    models.StudentSummary
			itemType   sql.NullString
			itemName   sql.NullString
			itemPrice  sql.NullInt64
			itemAuthor sql.NullString
		)
		tx, err := scanTransaction(rows,
			&student.Name, &student.RollNo, &student.RFIDUID,
			&itemType, &itemName, &itemPrice, &itemAuthor,
		)
		if err != nil {
			return nil, err
		}
		d.Transaction = *tx
		student.ID = tx.StudentID
		d.Student = &student
		if tx.ItemID != "" && itemName.Valid {
			d.Item = &models.ItemSummary{
				ID:     tx.ItemID,
				Type:   models.Module(itemType.String),
				Name:   itemName.String,
				Price:  money.Amount(itemPrice.Int64),
				Author: itemAuthor.String,
			}
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func nullableAmount(a *money.Amount) any {
	if a == nil {
		return nil
	}
	return int64(*a)
}

func scanTransaction(row rowScanner, extra ...any) (*models.Transaction, error) {
	var (
		tx      models.Transaction
		itemID  sql.NullString
		module  string
		action  string
		amount  sql.NullInt64
		status  string
		dueDate sql.NullTime
	)
	dest := []any{
		&tx.ID,
		&tx.StudentID,
		&itemID,
		&module,
		&action,
		&amount,
		&status,
		&tx.Notes,
		&dueDate,
		&tx.ReceiptID,
		&tx.WalletDebited,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	tx.ItemID = itemID.String
	tx.Module = models.Module(module)
	tx.Action = models.Action(action)
	tx.Status = models.Status(status)
	if amount.Valid {
		a := money.Amount(amount.Int64)
		tx.Amount = &a
	}
	if dueDate.Valid {
		due := dueDate.Time.UTC()
		tx.DueDate = &due
	}
	return &tx, nil
}
