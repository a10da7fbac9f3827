package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
)

// DefaultLoanPeriod is applied to library borrows created without a due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// TransactionService records transactions and drives the approval state machine.
type TransactionService struct {
	store      repository.Store
	wallet     *WalletService
	publisher  events.Publisher
	logger     *zap.Logger
	now        func() time.Time
	loanPeriod time.Duration
}

// NewTransactionService builds the transaction service.
func NewTransactionService(store repository.Store, wallet *WalletService, publisher events.Publisher, logger *zap.Logger) *TransactionService {
	if publisher == nil {
		publisher = events.Nop
	}
	return &TransactionService{
		store:      store,
		wallet:     wallet,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		loanPeriod: DefaultLoanPeriod,
	}
}

// CreateTransactionInput describes a new transaction.
type CreateTransactionInput struct {
	StudentID string
	ItemID    string
	Module    models.Module
	Action    models.Action
	Amount    *money.Amount
	// Status defaults to approved.
	Status    models.Status
	Notes     string
	DueDate   *time.Time
	ReceiptID string
}

// UpdateTransactionInput carries the mutable fields of a transaction.
type UpdateTransactionInput struct {
	Status *models.Status
	Notes  *string
}

// Create validates and records a transaction. Approved purchases are charged through
// the wallet engine, approved library actions move stock immediately, and pending
// records wait for approval.
func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	if in.Status == "" {
		in.Status = models.StatusApproved
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	if in.Action == models.ActionPurchase && in.Status == models.StatusApproved {
		result, err := s.wallet.PurchaseDebit(ctx, PurchaseInput{
			StudentID: in.StudentID,
			ItemID:    in.ItemID,
			Module:    in.Module,
			Amount:    in.Amount,
			ReceiptID: in.ReceiptID,
			Notes:     in.Notes,
		})
		if err != nil {
			return nil, err
		}
		s.publish(ctx, events.TransactionNew, result.Transaction)
		return result.Transaction, nil
	}

	tx := &models.Transaction{
		ID:        uuid.NewString(),
		StudentID: in.StudentID,
		ItemID:    in.ItemID,
		Module:    in.Module,
		Action:    in.Action,
		Amount:    in.Amount,
		Status:    in.Status,
		Notes:     in.Notes,
		DueDate:   in.DueDate,
		ReceiptID: in.ReceiptID,
	}
	if tx.Action == models.ActionBorrow && tx.DueDate == nil {
		due := s.now().Add(s.loanPeriod).UTC()
		tx.DueDate = &due
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		student, err := loadStudent(ctx, repos, tx.StudentID)
		if err != nil {
			return err
		}
		if !student.Active {
			return ErrInactiveStudent
		}
		if tx.ItemID != "" {
			item, err := loadItem(ctx, repos, tx.ItemID)
			if err != nil {
				return err
			}
			if item.Type != tx.Module {
				return fmt.Errorf("%w: item %s belongs to %s", ErrInvalidInput, item.ID, item.Type)
			}
			if tx.Action == models.ActionPurchase && tx.Amount == nil {
				price := item.Price
				tx.Amount = &price
			}
		}
		if tx.Status == models.StatusApproved {
			if _, err := s.applyEffects(ctx, repos, tx); err != nil {
				return err
			}
		}
		return repos.Transactions.Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("student_id", tx.StudentID),
		zap.String("module", string(tx.Module)),
		zap.String("action", string(tx.Action)),
		zap.String("status", string(tx.Status)),
	)
	s.publish(ctx, events.TransactionNew, tx)
	return tx, nil
}

// Get returns one transaction.
func (s *TransactionService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.store.Repos().Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, transactionErr(err)
	}
	return tx, nil
}

// Update changes notes and moves the status. Status edges are applied through Transition.
func (s *TransactionService) Update(ctx context.Context, id string, in UpdateTransactionInput) (*models.Transaction, error) {
	if in.Status == nil && in.Notes == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}

	var (
		updated *models.Transaction
		charged *balanceChange
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Transactions.GetByID(ctx, id)
		if err != nil {
			return transactionErr(err)
		}
		updated = current
		if in.Notes != nil {
			if updated, err = repos.Transactions.UpdateNotes(ctx, id, *in.Notes); err != nil {
				return transactionErr(err)
			}
		}
		if in.Status != nil && *in.Status != current.Status {
			updated, charged, err = s.transition(ctx, repos, current, *in.Status)
			return err
		}
		if in.Status != nil && in.Notes == nil {
			// Same status again is a re-approval or re-rejection.
			return ErrStaleApproval
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, updated, charged)
	return updated, nil
}

// Transition moves a pending transaction to approved or rejected. Approval effects are
// applied in the same storage transaction as the conditional status update, so a
// transaction that already left pending returns ErrStaleApproval and changes nothing.
func (s *TransactionService) Transition(ctx context.Context, id string, to models.Status) (*models.Transaction, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	var (
		updated *models.Transaction
		charged *balanceChange
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Transactions.GetByID(ctx, id)
		if err != nil {
			return transactionErr(err)
		}
		updated, charged, err = s.transition(ctx, repos, current, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, updated, charged)
	return updated, nil
}

// Delete removes a transaction record. Effects that were already applied stay applied.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	repos := s.store.Repos()
	tx, err := repos.Transactions.GetByID(ctx, id)
	if err != nil {
		return transactionErr(err)
	}
	if err := repos.Transactions.Delete(ctx, id); err != nil {
		return transactionErr(err)
	}
	s.logger.Info("transaction deleted", zap.String("transaction_id", id))
	s.publisher.Publish(ctx, events.Event{
		Type:      events.TransactionDelete,
		StudentID: tx.StudentID,
		Payload:   map[string]string{"id": id},
	})
	return nil
}

// List returns transactions matching filter, newest first.
func (s *TransactionService) List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error) {
	if filter.Module != "" && !filter.Module.Valid() {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidInput, filter.Module)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	return s.store.Repos().Transactions.List(ctx, filter)
}

// ListPending returns transactions waiting for approval.
func (s *TransactionService) ListPending(ctx context.Context) ([]models.TransactionDetail, error) {
	return s.List(ctx, models.TransactionFilter{Status: models.StatusPending})
}

// balanceChange records a balance change made while applying approval effects.
type balanceChange struct {
	StudentID string
	Balance   money.Amount
}

func (s *TransactionService) transition(ctx context.Context, repos repository.Repositories, current *models.Transaction, to models.Status) (*models.Transaction, *balanceChange, error) {
	if !models.CanTransition(current.Status, to) {
		return nil, nil, ErrStaleApproval
	}
	updated, err := repos.Transactions.TransitionStatus(ctx, current.ID, current.Status, to)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, nil, ErrStaleApproval
		}
		return nil, nil, transactionErr(err)
	}
	if to != models.StatusApproved {
		return updated, nil, nil
	}
	charged, err := s.applyEffects(ctx, repos, updated)
	if err != nil {
		return nil, nil, err
	}
	return updated, charged, nil
}

// applyEffects performs the inventory and wallet side effects of entering approved.
// Callers guarantee it runs once per transaction.
func (s *TransactionService) applyEffects(ctx context.Context, repos repository.Repositories, tx *models.Transaction) (*balanceChange, error) {
	if tx.ItemID == "" {
		return nil, nil
	}

	var err error
	switch {
	case tx.Module == models.ModuleLibrary && tx.Action == models.ActionBorrow:
		_, err = repos.Items.DecrementFloor(ctx, tx.ItemID)
	case tx.Module == models.ModuleLibrary && tx.Action == models.ActionReturn:
		_, err = repos.Items.Release(ctx, tx.ItemID, 1)
	case tx.Module.Commerce() && tx.Action == models.ActionPurchase:
		return s.approvePurchase(ctx, repos, tx)
	default:
		return nil, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("approval effect skipped, item missing",
			zap.String("transaction_id", tx.ID),
			zap.String("item_id", tx.ItemID),
		)
		return nil, nil
	}
	return nil, err
}

func (s *TransactionService) approvePurchase(ctx context.Context, repos repository.Repositories, tx *models.Transaction) (*balanceChange, error) {
	item, err := repos.Items.GetByID(ctx, tx.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	if _, err := repos.Items.Reserve(ctx, item.ID, 1); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrOutOfStock
		}
		return nil, err
	}
	if tx.WalletDebited {
		return nil, nil
	}

	amount := item.Price
	if tx.Amount != nil {
		amount = *tx.Amount
	}
	if !amount.Positive() {
		return nil, repos.Transactions.MarkWalletDebited(ctx, tx.ID, amount)
	}
	student, err := loadStudent(ctx, repos, tx.StudentID)
	if err != nil {
		return nil, err
	}
	balance, _, err := s.wallet.charge(ctx, repos, student, amount, chargeMeta{
		ReceiptID: tx.ReceiptID,
		Module:    tx.Module,
		ItemName:  item.Name,
	})
	if err != nil {
		return nil, err
	}
	if err := repos.Transactions.MarkWalletDebited(ctx, tx.ID, amount); err != nil {
		return nil, err
	}
	tx.WalletDebited = true
	tx.Amount = &amount
	return &balanceChange{StudentID: student.ID, Balance: balance}, nil
}

func (s *TransactionService) afterTransition(ctx context.Context, tx *models.Transaction, charged *balanceChange) {
	s.logger.Info("transaction updated",
		zap.String("transaction_id", tx.ID),
		zap.String("status", string(tx.Status)),
	)
	if charged != nil {
		s.wallet.walletUpdated(ctx, charged.StudentID, charged.Balance)
	}
	s.publish(ctx, events.TransactionUpdate, tx)
}

func (s *TransactionService) publish(ctx context.Context, eventType string, tx *models.Transaction) {
	s.publisher.Publish(ctx, events.Event{
		Type:      eventType,
		StudentID: tx.StudentID,
		Payload:   tx,
	})
}

func validateCreate(in CreateTransactionInput) error {
	if strings.TrimSpace(in.StudentID) == "" {
		return fmt.Errorf("%w: studentId is required", ErrInvalidInput)
	}
	if !in.Module.Valid() {
		return fmt.Errorf("%w: unknown module %q", ErrInvalidInput, in.Module)
	}
	if !in.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, in.Action)
	}
	if !in.Action.AllowedIn(in.Module) {
		return fmt.Errorf("%w: action %s is not allowed in %s", ErrInvalidInput, in.Action, in.Module)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	if in.Action != models.ActionApprove && in.ItemID == "" {
		return fmt.Errorf("%w: itemId is required for %s", ErrInvalidInput, in.Action)
	}
	if in.Amount != nil && !in.Amount.Positive() {
		return ErrInvalidAmount
	}
	return nil
}

func transactionErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTransactionNotFound
	}
	return err
}
