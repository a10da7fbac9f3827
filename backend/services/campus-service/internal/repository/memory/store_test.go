package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
)

var errAbort = errors.New("abort")

func seed(t *testing.T, store *Store) (models.Student, models.Item) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repos()
	student := models.Student{ID: "s1", Name: "Asha", RollNo: "CS01", RFIDUID: "U1", WalletBalance: 5000, Active: true}
	if err := repos.Students.Create(ctx, &student); err != nil {
		t.Fatalf("create student: %v", err)
	}
	item := models.Item{ID: "i1", Type: models.ModuleLibrary, Name: "Atlas", Quantity: 3}
	if err := repos.Items.Create(ctx, &item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	for _, id := range []string{"t1", "t2"} {
		tx := models.Transaction{ID: id, StudentID: student.ID, ItemID: item.ID, Module: models.ModuleLibrary,
			Action: models.ActionBorrow, Status: models.StatusPending}
		if err := repos.Transactions.Create(ctx, &tx); err != nil {
			t.Fatalf("create transaction %s: %v", id, err)
		}
	}
	return student, item
}

func TestWithinTxRollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	student, item := seed(t, store)
	pool := store.Repos()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Items.Reserve(ctx, item.ID, 1); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if _, err := repos.Transactions.TransitionStatus(ctx, "t2", models.StatusPending, models.StatusApproved); err != nil {
			t.Fatalf("transition: %v", err)
		}
		if _, err := repos.Students.DebitIfSufficient(ctx, student.ID, 1000); err != nil {
			t.Fatalf("debit: %v", err)
		}
		if err := repos.WalletTransactions.Create(ctx, &models.WalletTransaction{ID: "w-tx", StudentID: student.ID, Amount: 1000, Type: models.WalletDebit}); err != nil {
			t.Fatalf("ledger in tx: %v", err)
		}

		// Another request writes through the pool while this transaction is open.
		if err := pool.Transactions.Delete(ctx, "t1"); err != nil {
			t.Fatalf("delete outside tx: %v", err)
		}
		if err := pool.WalletTransactions.Create(ctx, &models.WalletTransaction{ID: "w-pool", StudentID: student.ID, Amount: 200, Type: models.WalletCredit}); err != nil {
			t.Fatalf("ledger outside tx: %v", err)
		}
		if err := pool.Students.SetPasswordHash(ctx, student.ID, "hash"); err != nil {
			t.Fatalf("password outside tx: %v", err)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	if _, err := pool.Transactions.GetByID(ctx, "t1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("transaction deleted outside the tx came back: %v", err)
	}
	t2, err := pool.Transactions.GetByID(ctx, "t2")
	if err != nil || t2.Status != models.StatusPending {
		t.Fatalf("expected t2 back to pending, got %+v err=%v", t2, err)
	}
	gotItem, _ := pool.Items.GetByID(ctx, item.ID)
	if gotItem.Quantity != 3 {
		t.Fatalf("expected reservation undone, quantity %d", gotItem.Quantity)
	}
	gotStudent, _ := pool.Students.GetByID(ctx, student.ID)
	if gotStudent.WalletBalance != 5000 || gotStudent.PasswordHash != "hash" {
		t.Fatalf("expected balance restored and password kept, got balance=%s hash=%q", gotStudent.WalletBalance, gotStudent.PasswordHash)
	}
	ledger, _ := pool.WalletTransactions.ListByStudent(ctx, student.ID, 10)
	if len(ledger) != 1 || ledger[0].ID != "w-pool" {
		t.Fatalf("expected only the ledger row written outside the tx, got %+v", ledger)
	}
}

func TestWithinTxRollbackRemovesCreatedRows(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	student, item := seed(t, store)

	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		tx := models.Transaction{ID: "t3", StudentID: student.ID, ItemID: item.ID, Module: models.ModuleLibrary,
			Action: models.ActionReturn, Status: models.StatusApproved}
		if err := repos.Transactions.Create(ctx, &tx); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repos.Items.Delete(ctx, item.ID); err != nil {
			t.Fatalf("delete item: %v", err)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	pool := store.Repos()
	if _, err := pool.Transactions.GetByID(ctx, "t3"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected created transaction to be rolled back, got %v", err)
	}
	if _, err := pool.Items.GetByID(ctx, item.ID); err != nil {
		t.Fatalf("expected deleted item to be restored: %v", err)
	}
	t1, _ := pool.Transactions.GetByID(ctx, "t1")
	if t1.ItemID != item.ID {
		t.Fatalf("expected item reference restored on t1, got %q", t1.ItemID)
	}
}

func TestCreditRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	student, _ := seed(t, store)
	repos := store.Repos()

	if _, err := repos.Students.Credit(ctx, student.ID, money.Amount(math.MaxInt64-100)); !errors.Is(err, money.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	got, _ := repos.Students.GetByID(ctx, student.ID)
	if got.WalletBalance != 5000 {
		t.Fatalf("balance must be unchanged after a rejected credit, got %s", got.WalletBalance)
	}
}
