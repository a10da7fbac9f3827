package models

import (
	"time"

	"campuswallet/backend/libs/money"
)

// WalletTransaction is an audit entry for a wallet balance change.
type WalletTransaction struct {
	ID        string       `json:"id"`
	StudentID string       `json:"studentId"`
	RFIDUID   string       `json:"rfid_uid"`
	Amount    money.Amount `json:"amount"`
	Type      WalletTxType `json:"type"`
	PaymentID string       `json:"razorpay_payment_id,omitempty"`
	ReceiptID string       `json:"receiptId,omitempty"`
	Module    Module       `json:"module,omitempty"`
	ItemName  string       `json:"itemName,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LedgerTotals sums a student's wallet ledger.
type LedgerTotals struct {
	Credits money.Amount
	Debits  money.Amount
}

// Net is credits minus debits.
func (t LedgerTotals) Net() money.Amount {
	return t.Credits - t.Debits
}

// Admin is an operator account allowed to manage the campus wallet.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
