package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events/eventstest"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/password"
	"campuswallet/backend/services/campus-service/internal/repository/memory"
)

type fixture struct {
	store        *memory.Store
	recorder     *eventstest.Recorder
	wallet       *WalletService
	transactions *TransactionService
	commerce     *CommerceService
	students     *StudentService
	items        *ItemService
	auth         *AuthService
	tokens       *TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	recorder := &eventstest.Recorder{}
	logger := zap.NewNop()
	hasher := password.NewBcryptHasher(bcrypt.MinCost)

	wallet := NewWalletService(store, recorder, logger)
	tokens := NewTokenService("test-secret", time.Hour)
	return &fixture{
		store:        store,
		recorder:     recorder,
		wallet:       wallet,
		transactions: NewTransactionService(store, wallet, recorder, logger),
		commerce:     NewCommerceService(store),
		students:     NewStudentService(store, wallet, hasher, logger),
		items:        NewItemService(store, recorder, logger),
		auth:         NewAuthService(store, hasher, tokens, logger),
		tokens:       tokens,
	}
}

func (f *fixture) student(t *testing.T, rollNo string, balance money.Amount) *models.Student {
	t.Helper()
	s, err := f.students.Create(context.Background(), CreateStudentInput{
		Name:           "Student " + rollNo,
		RollNo:         rollNo,
		RFIDUID:        "UID-" + rollNo,
		InitialBalance: balance,
	})
	if err != nil {
		t.Fatalf("create student %s: %v", rollNo, err)
	}
	return s
}

func (f *fixture) item(t *testing.T, module models.Module, name string, price money.Amount, quantity int) *models.Item {
	t.Helper()
	item, err := f.items.Create(context.Background(), &models.Item{
		Type:     module,
		Name:     name,
		Price:    price,
		Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return item
}

func (f *fixture) balance(t *testing.T, studentID string) money.Amount {
	t.Helper()
	b, err := f.wallet.Balance(context.Background(), studentID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (f *fixture) quantity(t *testing.T, itemID string) int {
	t.Helper()
	item, err := f.items.Get(context.Background(), itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return item.Quantity
}

func (f *fixture) assertReconciled(t *testing.T) {
	t.Helper()
	drifted, err := f.wallet.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drifted) != 0 {
		t.Fatalf("expected ledger to match balances, got drift %+v", drifted)
	}
}
