package service

import "errors"

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("wallet: amount must be a positive number")
	// ErrInsufficientFunds is returned when a conditional debit finds too little balance.
	ErrInsufficientFunds = errors.New("wallet: insufficient wallet balance")
	// ErrStudentNotFound is returned when no student matches the reference.
	ErrStudentNotFound = errors.New("student not found")
	// ErrInactiveStudent is returned when a deactivated student tries to transact.
	ErrInactiveStudent = errors.New("student is inactive")
	// ErrItemNotFound is returned when no item matches the reference.
	ErrItemNotFound = errors.New("item not found")
	// ErrOutOfStock is returned when a purchase cannot reserve stock.
	ErrOutOfStock = errors.New("item out of stock")
	// ErrTransactionNotFound is returned when no transaction matches the reference.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrStaleApproval is returned when a transaction is no longer pending.
	ErrStaleApproval = errors.New("transaction is not pending")
	// ErrRFIDMismatch is returned when a payment names a card that is not the student's.
	ErrRFIDMismatch = errors.New("rfid does not belong to student")
	// ErrInvalidInput is wrapped by request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidSignature is returned when a payment signature does not verify.
	ErrInvalidSignature = errors.New("payment: invalid signature")
	// ErrForbidden is returned when a caller acts on another student's resources.
	ErrForbidden = errors.New("forbidden")
	// ErrPaymentUnavailable is returned when the payment gateway is not configured or unreachable.
	ErrPaymentUnavailable = errors.New("payment: gateway unavailable")
)
