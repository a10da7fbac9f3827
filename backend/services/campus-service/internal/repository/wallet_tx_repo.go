package repository

import (
	"context"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

// WalletTransactionRepo handles the wallet_transactions ledger.
type WalletTransactionRepo struct {
	q querier
}

// Create appends a ledger entry.
func (r *WalletTransactionRepo) Create(ctx context.Context, e *models.WalletTransaction) error {
	const query = `
		INSERT INTO wallet_transactions (id, student_id, rfid_uid, amount, type, payment_id, receipt_id, module, item_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err := r.q.QueryRowContext(ctx, query,
		e.ID,
		e.StudentID,
		e.RFIDUID,
		int64(e.Amount),
		string(e.Type),
		nullable(e.PaymentID),
		e.ReceiptID,
		string(e.Module),
		e.ItemName,
	).Scan(&e.CreatedAt)
	return duplicate(err)
}

// ExistsByPaymentID reports whether a gateway payment was already credited.
func (r *WalletTransactionRepo) ExistsByPaymentID(ctx context.Context, paymentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE payment_id = $1)`
	var exists bool
	if err := r.q.QueryRowContext(ctx, query, paymentID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListByStudent returns the latest ledger entries for a student.
func (r *WalletTransactionRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, student_id, rfid_uid, amount, type, COALESCE(payment_id, ''), receipt_id, module, item_name, created_at
		FROM wallet_transactions
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.WalletTransaction
	for rows.Next() {
		var (
			e      models.WalletTransaction
			amount int64
			txType string
			module string
		)
		if err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.RFIDUID,
			&amount,
			&txType,
			&e.PaymentID,
			&e.ReceiptID,
			&module,
			&e.ItemName,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Amount = money.Amount(amount)
		e.Type = models.WalletTxType(txType)
		e.Module = models.Module(module)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Totals sums credits and debits for a student.
func (r *WalletTransactionRepo) Totals(ctx context.Context, studentID string) (models.LedgerTotals, error) {
	const query = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
		FROM wallet_transactions
		WHERE student_id = $1
	`
	var credits, debits int64
	if err := r.q.QueryRowContext(ctx, query, studentID).Scan(&credits, &debits); err != nil {
		return models.LedgerTotals{}, err
	}
	return models.LedgerTotals{Credits: money.Amount(credits), Debits: money.Amount(debits)}, nil
}
