package repository

import (
	"context"
	"errors"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

// Sentinel errors shared by every storage backend.
var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConditionFailed is returned when a conditional update matched no row.
	ErrConditionFailed = errors.New("repository: condition not met")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("repository: duplicate")
)

// StudentFilter narrows student listings.
type StudentFilter struct {
	ActiveOnly bool
	Module     models.Module
}

// StudentRepository persists students and owns the only balance mutations.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByRollNo(ctx context.Context, rollNo string) (*models.Student, error)
	GetByRFID(ctx context.Context, rfidUID string) (*models.Student, error)
	GetByLegacyRFID(ctx context.Context, legacy string) (*models.Student, error)
	List(ctx context.Context, filter StudentFilter) ([]models.Student, error)
	// UpdateProfile writes every field except the wallet balance and password hash.
	UpdateProfile(ctx context.Context, student *models.Student) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	// Credit adds amount to the balance and returns the new balance.
	Credit(ctx context.Context, id string, amount money.Amount) (money.Amount, error)
	// DebitIfSufficient subtracts amount only when balance >= amount, in one atomic
	// statement. It returns ErrConditionFailed when no row matched.
	DebitIfSufficient(ctx context.Context, id string, amount money.Amount) (money.Amount, error)
}

// ItemRepository persists catalog items and owns stock mutations.
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id string) (*models.Item, error)
	List(ctx context.Context, itemType models.Module) ([]models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id string) error
	// Reserve subtracts n only when quantity >= n and returns the new quantity.
	// It returns ErrConditionFailed when no row matched.
	Reserve(ctx context.Context, id string, n int) (int, error)
	// Release adds n to the quantity.
	Release(ctx context.Context, id string, n int) (int, error)
	// DecrementFloor subtracts one, never going below zero.
	DecrementFloor(ctx context.Context, id string) (int, error)
}

// TransactionRepository persists transactions. Status is the only field with a state machine.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	// TransitionStatus moves the status only if it currently equals from.
	// It returns ErrConditionFailed when the row exists but is in another state.
	TransitionStatus(ctx context.Context, id string, from, to models.Status) (*models.Transaction, error)
	MarkWalletDebited(ctx context.Context, id string, amount money.Amount) error
	UpdateNotes(ctx context.Context, id, notes string) (*models.Transaction, error)
	Delete(ctx context.Context, id string) error
	// List returns matching transactions newest first with student and item populated.
	List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error)
}

// WalletTransactionRepository persists the append-only wallet ledger.
type WalletTransactionRepository interface {
	// Create returns ErrDuplicate when the payment id has already been recorded.
	Create(ctx context.Context, entry *models.WalletTransaction) error
	ExistsByPaymentID(ctx context.Context, paymentID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.WalletTransaction, error)
	Totals(ctx context.Context, studentID string) (models.LedgerTotals, error)
}

// AdminRepository persists operator accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Students           StudentRepository
	Items              ItemRepository
	Transactions       TransactionRepository
	WalletTransactions WalletTransactionRepository
	Admins             AdminRepository
}

// Store is a storage backend that can run work atomically.
type Store interface {
	Repos() Repositories
	// WithinTx runs fn against repositories bound to a single storage transaction.
	// Any error returned by fn rolls every write back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}
