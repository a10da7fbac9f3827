package models

import "campuswallet/backend/libs/money"

// PaymentOrder is a top-up order at the payment gateway. Notes carry the student the
// order was created for and are read back when the payment is verified.
type PaymentOrder struct {
	ID       string            `json:"id"`
	Amount   money.Amount      `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Status   string            `json:"status,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
	// KeyID is the public gateway key the checkout widget needs.
	KeyID string `json:"key_id,omitempty"`
}

// Payment order note keys.
const (
	NoteStudentID = "studentId"
	NoteRFIDUID   = "rfid_uid"
)
