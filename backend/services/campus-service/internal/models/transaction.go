package models

import (
	"time"

	"campuswallet/backend/libs/money"
)

// Transaction records an action a student took on an item.
type Transaction struct {
	ID            string        `json:"id"`
	StudentID     string        `json:"studentId"`
	ItemID        string        `json:"itemId,omitempty"`
	Module        Module        `json:"module"`
	Action        Action        `json:"action"`
	Amount        *money.Amount `json:"amount,omitempty"`
	Status        Status        `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	DueDate       *time.Time    `json:"dueDate,omitempty"`
	ReceiptID     string        `json:"receiptId,omitempty"`
	WalletDebited bool          `json:"walletDebited"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// TransactionDetail is a transaction with its student and item populated.
type TransactionDetail struct {
	Transaction
	Student *StudentSummary `json:"student,omitempty"`
	Item    *ItemSummary    `json:"item,omitempty"`
}

// TransactionFilter narrows transaction listings. Zero values match everything.
type TransactionFilter struct {
	StudentID string
	Module    Module
	Status    Status
	Action    Action
	ReceiptID string
	Limit     int
}

// ActiveBorrow is a library item currently held by a student.
type ActiveBorrow struct {
	StudentID      string          `json:"studentId"`
	Student        *StudentSummary `json:"student,omitempty"`
	Item           *ItemSummary    `json:"item"`
	Count          int             `json:"count"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	LastActivityAt time.Time       `json:"lastActivityAt"`
}
