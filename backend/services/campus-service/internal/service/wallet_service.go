package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
)

var errDuplicatePayment = errors.New("wallet: payment already credited")

// WalletService owns every balance mutation. Each operation is one storage transaction
// built around a single conditional update of the balance.
type WalletService struct {
	store     repository.Store
	publisher events.Publisher
	logger    *zap.Logger
}

// NewWalletService builds the wallet engine.
func NewWalletService(store repository.Store, publisher events.Publisher, logger *zap.Logger) *WalletService {
	if publisher == nil {
		publisher = events.Nop
	}
	return &WalletService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// WalletResult is the outcome of a deposit or withdrawal.
type WalletResult struct {
	StudentID string                    `json:"studentId"`
	Balance   money.Amount              `json:"balance"`
	Entry     *models.WalletTransaction `json:"transaction"`
}

// CreditResult is the outcome of crediting a gateway payment.
type CreditResult struct {
	StudentID string                    `json:"studentId"`
	Balance   money.Amount              `json:"balance"`
	Duplicate bool                      `json:"duplicate"`
	Entry     *models.WalletTransaction `json:"transaction,omitempty"`
}

// PaymentCredit identifies a captured gateway payment.
type PaymentCredit struct {
	PaymentID string
	StudentID string
	RFIDUID   string
	Amount    money.Amount
}

// PurchaseInput describes a single direct purchase.
type PurchaseInput struct {
	StudentID string
	ItemID    string
	Module    models.Module
	// Amount overrides the item price when set.
	Amount    *money.Amount
	ReceiptID string
	Notes     string
}

// PurchaseResult is the outcome of a purchase.
type PurchaseResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Balance     money.Amount        `json:"balance"`
	Quantity    int                 `json:"quantity"`
}

// CheckoutLine is one item of a multi-item checkout.
type CheckoutLine struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// CheckoutInput describes a receipt with several purchase lines.
type CheckoutInput struct {
	StudentID string
	Module    models.Module
	Lines     []CheckoutLine
	// ReceiptID is generated when the client does not supply one.
	ReceiptID string
	Notes     string
}

// CheckoutResult is the outcome of a checkout.
type CheckoutResult struct {
	ReceiptID    string               `json:"receiptId"`
	Transactions []models.Transaction `json:"transactions"`
	Total        money.Amount         `json:"total"`
	Balance      money.Amount         `json:"balance"`
}

// Reconciliation compares a student's balance with the ledger.
type Reconciliation struct {
	StudentID  string       `json:"studentId"`
	RollNo     string       `json:"rollNo"`
	Balance    money.Amount `json:"balance"`
	LedgerNet  money.Amount `json:"ledgerNet"`
	Drift      money.Amount `json:"drift"`
	Consistent bool         `json:"consistent"`
}

// Deposit credits a student's wallet.
func (s *WalletService) Deposit(ctx context.Context, studentID string, amount money.Amount) (*WalletResult, error) {
	if !amount.Positive() {
		return nil, ErrInvalidAmount
	}

	var result *WalletResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		student, err := loadStudent(ctx, repos, studentID)
		if err != nil {
			return err
		}
		balance, err := repos.Students.Credit(ctx, student.ID, amount)
		if err != nil {
			return studentErr(err)
		}
		entry := &models.WalletTransaction{
			ID:        uuid.NewString(),
			StudentID: student.ID,
			RFIDUID:   student.RFIDUID,
			Amount:    amount,
			Type:      models.WalletCredit,
		}
		if err := repos.WalletTransactions.Create(ctx, entry); err != nil {
			return fmt.Errorf("wallet: record credit: %w", err)
		}
		result = &WalletResult{StudentID: student.ID, Balance: balance, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet deposit",
		zap.String("student_id", result.StudentID),
		zap.String("amount", amount.String()),
		zap.String("balance", result.Balance.String()),
	)
	s.walletUpdated(ctx, result.StudentID, result.Balance)
	return result, nil
}

// Withdraw debits a student's wallet only if the balance covers the amount.
func (s *WalletService) Withdraw(ctx context.Context, studentID string, amount money.Amount) (*WalletResult, error) {
	if !amount.Positive() {
		return nil, ErrInvalidAmount
	}

	var result *WalletResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		student, err := loadStudent(ctx, repos, studentID)
		if err != nil {
			return err
		}
		balance, entry, err := s.charge(ctx, repos, student, amount, chargeMeta{})
		if err != nil {
			return err
		}
		result = &WalletResult{StudentID: student.ID, Balance: balance, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet withdrawal",
		zap.String("student_id", result.StudentID),
		zap.String("amount", amount.String()),
		zap.String("balance", result.Balance.String()),
	)
	s.walletUpdated(ctx, result.StudentID, result.Balance)
	return result, nil
}

// PurchaseDebit reserves one unit of stock and charges the wallet in one storage
// transaction, recording an approved purchase. Either both happen or neither does.
func (s *WalletService) PurchaseDebit(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	if in.Amount != nil && !in.Amount.Positive() {
		return nil, ErrInvalidAmount
	}

	var result *PurchaseResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		student, err := loadStudent(ctx, repos, in.StudentID)
		if err != nil {
			return err
		}
		if !student.Active {
			return ErrInactiveStudent
		}
		item, err := loadItem(ctx, repos, in.ItemID)
		if err != nil {
			return err
		}
		if in.Module != "" && item.Type != in.Module {
			return fmt.Errorf("%w: item %s belongs to %s", ErrInvalidInput, item.ID, item.Type)
		}
		result, err = s.purchase(ctx, repos, student, item, in.Amount, in.ReceiptID, in.Notes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase recorded",
		zap.String("student_id", in.StudentID),
		zap.String("item_id", in.ItemID),
		zap.String("transaction_id", result.Transaction.ID),
		zap.Int("quantity_left", result.Quantity),
	)
	s.walletUpdated(ctx, in.StudentID, result.Balance)
	return result, nil
}

// Checkout records every unit of every line as one purchase under a shared receipt id.
// The whole receipt fails if any unit cannot be reserved or paid for.
func (s *WalletService) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if !in.Module.Commerce() {
		return nil, fmt.Errorf("%w: checkout module must be food or store", ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: checkout needs at least one line", ErrInvalidInput)
	}
	for _, line := range in.Lines {
		if strings.TrimSpace(line.ItemID) == "" || line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: every line needs an item and a positive quantity", ErrInvalidInput)
		}
	}

	result := &CheckoutResult{ReceiptID: strings.TrimSpace(in.ReceiptID)}
	if result.ReceiptID == "" {
		result.ReceiptID = uuid.NewString()
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		student, err := loadStudent(ctx, repos, in.StudentID)
		if err != nil {
			return err
		}
		if !student.Active {
			return ErrInactiveStudent
		}
		result.Balance = student.WalletBalance
		for _, line := range in.Lines {
			item, err := loadItem(ctx, repos, line.ItemID)
			if err != nil {
				return err
			}
			if item.Type != in.Module {
				return fmt.Errorf("%w: item %s belongs to %s", ErrInvalidInput, item.ID, item.Type)
			}
			for i := 0; i < line.Quantity; i++ {
				purchase, err := s.purchase(ctx, repos, student, item, nil, result.ReceiptID, in.Notes)
				if err != nil {
					return err
				}
				result.Transactions = append(result.Transactions, *purchase.Transaction)
				result.Total += item.Price
				result.Balance = purchase.Balance
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout completed",
		zap.String("student_id", in.StudentID),
		zap.String("receipt_id", result.ReceiptID),
		zap.Int("lines", len(result.Transactions)),
		zap.String("total", result.Total.String()),
	)
	s.walletUpdated(ctx, in.StudentID, result.Balance)
	return result, nil
}

// CreditFromPayment credits a captured gateway payment exactly once per payment id.
// A repeated payment id is reported as Duplicate and changes nothing.
func (s *WalletService) CreditFromPayment(ctx context.Context, in PaymentCredit) (*CreditResult, error) {
	if !in.Amount.Positive() {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(in.PaymentID) == "" {
		return nil, fmt.Errorf("%w: payment id required", ErrInvalidInput)
	}

	var result *CreditResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		exists, err := repos.WalletTransactions.ExistsByPaymentID(ctx, in.PaymentID)
		if err != nil {
			return err
		}
		if exists {
			return errDuplicatePayment
		}
		student, err := loadStudent(ctx, repos, in.StudentID)
		if err != nil {
			return err
		}
		if student.RFIDUID != strings.TrimSpace(in.RFIDUID) {
			return ErrRFIDMismatch
		}
		entry := &models.WalletTransaction{
			ID:        uuid.NewString(),
			StudentID: student.ID,
			RFIDUID:   student.RFIDUID,
			Amount:    in.Amount,
			Type:      models.WalletCredit,
			PaymentID: in.PaymentID,
		}
		if err := repos.WalletTransactions.Create(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errDuplicatePayment
			}
			return fmt.Errorf("wallet: record payment: %w", err)
		}
		balance, err := repos.Students.Credit(ctx, student.ID, in.Amount)
		if err != nil {
			return studentErr(err)
		}
		result = &CreditResult{StudentID: student.ID, Balance: balance, Entry: entry}
		return nil
	})
	if errors.Is(err, errDuplicatePayment) {
		s.logger.Info("payment already credited", zap.String("payment_id", in.PaymentID))
		balance, balErr := s.Balance(ctx, in.StudentID)
		if balErr != nil {
			balance = 0
		}
		return &CreditResult{StudentID: in.StudentID, Balance: balance, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment credited",
		zap.String("payment_id", in.PaymentID),
		zap.String("student_id", result.StudentID),
		zap.String("amount", in.Amount.String()),
	)
	s.walletUpdated(ctx, result.StudentID, result.Balance)
	return result, nil
}

// Balance returns the current wallet balance.
func (s *WalletService) Balance(ctx context.Context, studentID string) (money.Amount, error) {
	student, err := loadStudent(ctx, s.store.Repos(), studentID)
	if err != nil {
		return 0, err
	}
	return student.WalletBalance, nil
}

// History returns the latest ledger entries for a student.
func (s *WalletService) History(ctx context.Context, studentID string, limit int) ([]models.WalletTransaction, error) {
	repos := s.store.Repos()
	if _, err := loadStudent(ctx, repos, studentID); err != nil {
		return nil, err
	}
	return repos.WalletTransactions.ListByStudent(ctx, studentID, limit)
}

// Reconcile compares one student's balance with the sum of their ledger.
func (s *WalletService) Reconcile(ctx context.Context, studentID string) (*Reconciliation, error) {
	repos := s.store.Repos()
	student, err := loadStudent(ctx, repos, studentID)
	if err != nil {
		return nil, err
	}
	return reconcileStudent(ctx, repos, student)
}

// ReconcileAll returns every student whose balance disagrees with the ledger.
func (s *WalletService) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	repos := s.store.Repos()
	students, err := repos.Students.List(ctx, repository.StudentFilter{})
	if err != nil {
		return nil, err
	}
	var drifted []Reconciliation
	for i := range students {
		rec, err := reconcileStudent(ctx, repos, &students[i])
		if err != nil {
			return nil, err
		}
		if !rec.Consistent {
			drifted = append(drifted, *rec)
		}
	}
	return drifted, nil
}

func reconcileStudent(ctx context.Context, repos repository.Repositories, student *models.Student) (*Reconciliation, error) {
	totals, err := repos.WalletTransactions.Totals(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	net := totals.Net()
	return &Reconciliation{
		StudentID:  student.ID,
		RollNo:     student.RollNo,
		Balance:    student.WalletBalance,
		LedgerNet:  net,
		Drift:      student.WalletBalance - net,
		Consistent: student.WalletBalance == net,
	}, nil
}

type chargeMeta struct {
	ReceiptID string
	Module    models.Module
	ItemName  string
}

// charge debits the wallet and appends the ledger entry. It must run inside WithinTx.
func (s *WalletService) charge(ctx context.Context, repos repository.Repositories, student *models.Student, amount money.Amount, meta chargeMeta) (money.Amount, *models.WalletTransaction, error) {
	balance, err := repos.Students.DebitIfSufficient(ctx, student.ID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return 0, nil, ErrInsufficientFunds
		}
		return 0, nil, err
	}
	entry := &models.WalletTransaction{
		ID:        uuid.NewString(),
		StudentID: student.ID,
		RFIDUID:   student.RFIDUID,
		Amount:    amount,
		Type:      models.WalletDebit,
		ReceiptID: meta.ReceiptID,
		Module:    meta.Module,
		ItemName:  meta.ItemName,
	}
	if err := repos.WalletTransactions.Create(ctx, entry); err != nil {
		return 0, nil, fmt.Errorf("wallet: record debit: %w", err)
	}
	return balance, entry, nil
}

// purchase reserves stock first, then charges, then records the approved transaction.
// It must run inside WithinTx so a failed charge releases the reservation.
func (s *WalletService) purchase(ctx context.Context, repos repository.Repositories, student *models.Student, item *models.Item, override *money.Amount, receiptID, notes string) (*PurchaseResult, error) {
	amount := item.Price
	if override != nil {
		amount = *override
	}

	quantity, err := repos.Items.Reserve(ctx, item.ID, 1)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrOutOfStock
		}
		return nil, err
	}

	balance := student.WalletBalance
	if amount.Positive() {
		balance, _, err = s.charge(ctx, repos, student, amount, chargeMeta{
			ReceiptID: receiptID,
			Module:    item.Type,
			ItemName:  item.Name,
		})
		if err != nil {
			return nil, err
		}
		student.WalletBalance = balance
	}

	tx := &models.Transaction{
		ID:            uuid.NewString(),
		StudentID:     student.ID,
		ItemID:        item.ID,
		Module:        item.Type,
		Action:        models.ActionPurchase,
		Amount:        &amount,
		Status:        models.StatusApproved,
		Notes:         notes,
		ReceiptID:     receiptID,
		WalletDebited: true,
	}
	if err := repos.Transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("wallet: record purchase: %w", err)
	}
	return &PurchaseResult{Transaction: tx, Balance: balance, Quantity: quantity}, nil
}

func (s *WalletService) walletUpdated(ctx context.Context, studentID string, balance money.Amount) {
	s.publisher.Publish(ctx, events.Event{
		Type:      events.WalletUpdated,
		StudentID: studentID,
		Payload:   events.WalletPayload{StudentID: studentID, Balance: balance},
	})
}

func loadStudent(ctx context.Context, repos repository.Repositories, id string) (*models.Student, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrStudentNotFound
	}
	student, err := repos.Students.GetByID(ctx, id)
	if err != nil {
		return nil, studentErr(err)
	}
	return student, nil
}

func loadItem(ctx context.Context, repos repository.Repositories, id string) (*models.Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrItemNotFound
	}
	item, err := repos.Items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func studentErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrStudentNotFound
	case errors.Is(err, money.ErrOverflow):
		return fmt.Errorf("%w: balance would exceed the supported range", ErrInvalidAmount)
	}
	return err
}
