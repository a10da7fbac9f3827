package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
)

func TestBorrowAndReturnApprovalsMoveStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB001", 0)
	book := f.item(t, models.ModuleLibrary, "Operating Systems", 0, 3)

	borrow, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create borrow: %v", err)
	}
	if got := f.quantity(t, book.ID); got != 3 {
		t.Fatalf("pending borrow must not move stock, got %d", got)
	}
	if _, err := f.transactions.Transition(ctx, borrow.ID, models.StatusApproved); err != nil {
		t.Fatalf("approve borrow: %v", err)
	}
	if got := f.quantity(t, book.ID); got != 2 {
		t.Fatalf("expected 2 copies after borrow, got %d", got)
	}

	ret, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionReturn, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if _, err := f.transactions.Transition(ctx, ret.ID, models.StatusApproved); err != nil {
		t.Fatalf("approve return: %v", err)
	}
	if got := f.quantity(t, book.ID); got != 3 {
		t.Fatalf("expected 3 copies after return, got %d", got)
	}
}

func TestReapprovalIsStaleAndAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB002", 0)
	book := f.item(t, models.ModuleLibrary, "Compilers", 0, 3)

	borrow, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.transactions.Transition(ctx, borrow.ID, models.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	approved := models.StatusApproved
	rejected := models.StatusRejected
	if _, err := f.transactions.Transition(ctx, borrow.ID, models.StatusApproved); !errors.Is(err, ErrStaleApproval) {
		t.Fatalf("expected ErrStaleApproval on re-approve, got %v", err)
	}
	if _, err := f.transactions.Update(ctx, borrow.ID, UpdateTransactionInput{Status: &approved}); !errors.Is(err, ErrStaleApproval) {
		t.Fatalf("expected ErrStaleApproval on update re-approve, got %v", err)
	}
	if _, err := f.transactions.Update(ctx, borrow.ID, UpdateTransactionInput{Status: &rejected}); !errors.Is(err, ErrStaleApproval) {
		t.Fatalf("expected ErrStaleApproval leaving approved, got %v", err)
	}
	if got := f.quantity(t, book.ID); got != 2 {
		t.Fatalf("effects must apply once, got quantity %d", got)
	}
}

func TestConcurrentApprovalsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB003", 0)
	book := f.item(t, models.ModuleLibrary, "Networks", 0, 5)

	borrow, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		stale int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transactions.Transition(ctx, borrow.ID, models.StatusApproved)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrStaleApproval):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || stale != 9 {
		t.Fatalf("expected 1 approval and 9 stale, got %d and %d", wins, stale)
	}
	if got := f.quantity(t, book.ID); got != 4 {
		t.Fatalf("expected quantity 4, got %d", got)
	}
}

func TestRejectionHasNoEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB004", money.FromMajor(100))
	chips := f.item(t, models.ModuleFood, "Chips", money.FromMajor(20), 4)

	pending, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: chips.ID, Module: models.ModuleFood, Action: models.ActionPurchase, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.transactions.Transition(ctx, pending.ID, models.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.transactions.Transition(ctx, pending.ID, models.StatusApproved); !errors.Is(err, ErrStaleApproval) {
		t.Fatalf("expected ErrStaleApproval approving a rejected transaction, got %v", err)
	}
	if got := f.quantity(t, chips.ID); got != 4 {
		t.Fatalf("stock must stay 4, got %d", got)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(100) {
		t.Fatalf("balance must stay 100.00, got %s", got)
	}
}

func TestPendingPurchaseChargedOnApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB005", money.FromMajor(100))
	juice := f.item(t, models.ModuleFood, "Juice", money.FromMajor(35), 2)

	pending, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: juice.ID, Module: models.ModuleFood, Action: models.ActionPurchase, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pending.WalletDebited || pending.Amount == nil || *pending.Amount != money.FromMajor(35) {
		t.Fatalf("pending purchase should carry the price and no charge, got %+v", pending)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(100) {
		t.Fatalf("pending purchase must not charge, got %s", got)
	}

	approved, err := f.transactions.Transition(ctx, pending.ID, models.StatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.WalletDebited {
		t.Fatalf("approved purchase must be marked debited")
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(65) {
		t.Fatalf("expected 65.00 after approval, got %s", got)
	}
	if got := f.quantity(t, juice.ID); got != 1 {
		t.Fatalf("expected stock 1, got %d", got)
	}
	if n := len(f.recorder.OfType(events.TransactionUpdate)); n != 1 {
		t.Fatalf("expected one transaction:update, got %d", n)
	}
	f.assertReconciled(t)
}

func TestPendingPurchaseApprovalFailsWithoutFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB006", money.FromMajor(10))
	meal := f.item(t, models.ModuleFood, "Biryani", money.FromMajor(90), 3)

	pending, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: meal.ID, Module: models.ModuleFood, Action: models.ActionPurchase, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.transactions.Transition(ctx, pending.ID, models.StatusApproved); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	current, err := f.transactions.Get(ctx, pending.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != models.StatusPending {
		t.Fatalf("failed approval must leave the transaction pending, got %s", current.Status)
	}
	if got := f.quantity(t, meal.ID); got != 3 {
		t.Fatalf("stock must be released, got %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB007", 0)
	book := f.item(t, models.ModuleLibrary, "Databases", 0, 1)
	zero := money.Amount(0)

	cases := []CreateTransactionInput{
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleFood, Action: models.ActionBorrow},
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionPurchase},
		{StudentID: s.ID, ItemID: book.ID, Module: "gym", Action: models.ActionBorrow},
		{StudentID: s.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow},
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow, Status: "done"},
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleStore, Action: models.ActionPurchase, Amount: &zero},
		{ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow},
	}
	for i, in := range cases {
		_, err := f.transactions.Create(ctx, in)
		if !errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}

	if _, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: "missing", Module: models.ModuleLibrary, Action: models.ActionBorrow,
	}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestBorrowDefaultsDueDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fixed := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	f.transactions.now = func() time.Time { return fixed }
	s := f.student(t, "LB008", 0)
	book := f.item(t, models.ModuleLibrary, "Graphics", 0, 2)

	tx, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.Status != models.StatusApproved {
		t.Fatalf("expected default status approved, got %s", tx.Status)
	}
	if tx.DueDate == nil || !tx.DueDate.Equal(fixed.Add(DefaultLoanPeriod)) {
		t.Fatalf("expected due date 14 days out, got %v", tx.DueDate)
	}
	if got := f.quantity(t, book.ID); got != 1 {
		t.Fatalf("approved borrow must take a copy, got %d", got)
	}
}

func TestBorrowOfLastCopyFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB009", 0)
	book := f.item(t, models.ModuleLibrary, "Rare manuscript", 0, 0)

	if _, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.quantity(t, book.ID); got != 0 {
		t.Fatalf("quantity must not go negative, got %d", got)
	}
}

func TestUpdateNotesAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "LB010", 0)
	book := f.item(t, models.ModuleLibrary, "Logic", 0, 1)

	tx, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow, Status: models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	notes := "reserved at desk"
	updated, err := f.transactions.Update(ctx, tx.ID, UpdateTransactionInput{Notes: &notes})
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if updated.Notes != notes || updated.Status != models.StatusPending {
		t.Fatalf("unexpected update %+v", updated)
	}

	if err := f.transactions.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.transactions.Get(ctx, tx.ID); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if n := len(f.recorder.OfType(events.TransactionDelete)); n != 1 {
		t.Fatalf("expected one transaction:delete, got %d", n)
	}
}
