package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
)

func TestDepositCreditsBalanceAndLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS001", 0)

	result, err := f.wallet.Deposit(ctx, s.ID, money.FromMajor(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if result.Balance != money.FromMajor(100) {
		t.Fatalf("expected balance 100.00, got %s", result.Balance)
	}

	history, err := f.wallet.History(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Type != models.WalletCredit || history[0].Amount != money.FromMajor(100) {
		t.Fatalf("expected one credit of 100.00, got %+v", history)
	}

	updates := f.recorder.OfType(events.WalletUpdated)
	if len(updates) != 1 {
		t.Fatalf("expected one wallet:updated event, got %d", len(updates))
	}
	payload, ok := updates[0].Payload.(events.WalletPayload)
	if !ok || payload.StudentID != s.ID || payload.Balance != money.FromMajor(100) {
		t.Fatalf("unexpected wallet payload %+v", updates[0].Payload)
	}
	f.assertReconciled(t)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS002", 0)

	for _, amount := range []money.Amount{0, -100} {
		if _, err := f.wallet.Deposit(ctx, s.ID, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if _, err := f.wallet.Deposit(ctx, "missing", 100); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
	if len(f.recorder.Events()) != 0 {
		t.Fatalf("failed deposits must not emit events")
	}
}

func TestDepositRejectsBalanceOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS009", money.FromMajor(10))

	_, err := f.wallet.Deposit(ctx, s.ID, money.Amount(math.MaxInt64-10))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for a wrapping credit, got %v", err)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(10) {
		t.Fatalf("balance must be unchanged, got %s", got)
	}
	f.assertReconciled(t)
}

func TestWithdrawSeparatesNotFoundFromInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS003", money.FromMajor(50))

	if _, err := f.wallet.Withdraw(ctx, s.ID, money.FromMajor(60)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := f.wallet.Withdraw(ctx, "missing", money.FromMajor(1)); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(50) {
		t.Fatalf("balance must stay 50.00, got %s", got)
	}

	result, err := f.wallet.Withdraw(ctx, s.ID, money.FromMajor(50))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if result.Balance != 0 || result.Entry.Type != models.WalletDebit {
		t.Fatalf("unexpected withdraw result %+v", result)
	}
	f.assertReconciled(t)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS004", money.FromMajor(100))
	snack := f.item(t, models.ModuleFood, "Samosa", money.FromMajor(10), 100)

	const workers = 30
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.wallet.Withdraw(ctx, s.ID, money.FromMajor(10))
			} else {
				_, err = f.wallet.PurchaseDebit(ctx, PurchaseInput{StudentID: s.ID, ItemID: snack.ID})
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 debits to succeed, got %d", succeeded)
	}
	if got := f.balance(t, s.ID); got != 0 {
		t.Fatalf("expected balance 0.00, got %s", got)
	}
	f.assertReconciled(t)
}

func TestPurchaseWithInsufficientFundsChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS005", money.FromMajor(50))
	meal := f.item(t, models.ModuleFood, "Thali", money.FromMajor(60), 5)

	_, err := f.transactions.Create(ctx, CreateTransactionInput{
		StudentID: s.ID,
		ItemID:    meal.ID,
		Module:    models.ModuleFood,
		Action:    models.ActionPurchase,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(50) {
		t.Fatalf("balance must stay 50.00, got %s", got)
	}
	if got := f.quantity(t, meal.ID); got != 5 {
		t.Fatalf("stock must stay 5, got %d", got)
	}
	txs, err := f.transactions.List(ctx, models.TransactionFilter{StudentID: s.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no recorded purchase, got %+v", txs)
	}
}

func TestConcurrentPurchasesOfLastUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS006", money.FromMajor(1000))
	pen := f.item(t, models.ModuleStore, "Fountain pen", money.FromMajor(120), 1)

	const buyers = 12
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.wallet.PurchaseDebit(ctx, PurchaseInput{StudentID: s.ID, ItemID: pen.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, outOfStock int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || outOfStock != buyers-1 {
		t.Fatalf("expected 1 sale and %d out of stock, got %d and %d", buyers-1, ok, outOfStock)
	}
	if got := f.quantity(t, pen.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(880) {
		t.Fatalf("expected one charge leaving 880.00, got %s", got)
	}
	f.assertReconciled(t)
}

func TestPurchaseOverrideAmountAndModuleCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS007", money.FromMajor(100))
	book := f.item(t, models.ModuleLibrary, "Algorithms", money.FromMajor(30), 2)
	notebook := f.item(t, models.ModuleStore, "Notebook", money.FromMajor(40), 2)

	if _, err := f.wallet.PurchaseDebit(ctx, PurchaseInput{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleStore}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for library item sold in store, got %v", err)
	}

	discounted := money.FromMajor(25)
	result, err := f.wallet.PurchaseDebit(ctx, PurchaseInput{StudentID: s.ID, ItemID: notebook.ID, Amount: &discounted})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if result.Balance != money.FromMajor(75) || *result.Transaction.Amount != discounted {
		t.Fatalf("expected charge of 25.00, got %+v", result)
	}
	if !result.Transaction.WalletDebited || result.Transaction.Status != models.StatusApproved {
		t.Fatalf("direct purchase must be approved and debited, got %+v", result.Transaction)
	}
}

func TestCreditFromPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS008", 0)

	credit := PaymentCredit{PaymentID: "pay_123", StudentID: s.ID, RFIDUID: s.RFIDUID, Amount: money.FromMajor(200)}
	first, err := f.wallet.CreditFromPayment(ctx, credit)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if first.Duplicate || first.Balance != money.FromMajor(200) {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := f.wallet.CreditFromPayment(ctx, credit)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !second.Duplicate || second.Balance != money.FromMajor(200) {
		t.Fatalf("expected duplicate with unchanged balance, got %+v", second)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(200) {
		t.Fatalf("expected balance 200.00, got %s", got)
	}
	if n := len(f.recorder.OfType(events.WalletUpdated)); n != 1 {
		t.Fatalf("expected one wallet:updated, got %d", n)
	}
	f.assertReconciled(t)
}

func TestConcurrentPaymentDeliveriesCreditOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS009", 0)

	credit := PaymentCredit{PaymentID: "pay_race", StudentID: s.ID, RFIDUID: s.RFIDUID, Amount: money.FromMajor(75)}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.wallet.CreditFromPayment(ctx, credit); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.balance(t, s.ID); got != money.FromMajor(75) {
		t.Fatalf("expected a single credit of 75.00, got %s", got)
	}
}

func TestCreditFromPaymentRejectsForeignCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS010", 0)

	_, err := f.wallet.CreditFromPayment(ctx, PaymentCredit{
		PaymentID: "pay_x",
		StudentID: s.ID,
		RFIDUID:   "UID-someone-else",
		Amount:    money.FromMajor(10),
	})
	if !errors.Is(err, ErrRFIDMismatch) {
		t.Fatalf("expected ErrRFIDMismatch, got %v", err)
	}
	if got := f.balance(t, s.ID); got != 0 {
		t.Fatalf("balance must stay 0.00, got %s", got)
	}

	// The rejected attempt must not burn the payment id.
	result, err := f.wallet.CreditFromPayment(ctx, PaymentCredit{PaymentID: "pay_x", StudentID: s.ID, RFIDUID: s.RFIDUID, Amount: money.FromMajor(10)})
	if err != nil || result.Duplicate {
		t.Fatalf("expected a fresh credit, got %+v, %v", result, err)
	}
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS011", money.FromMajor(500))
	tea := f.item(t, models.ModuleFood, "Tea", money.FromMajor(10), 10)
	cake := f.item(t, models.ModuleFood, "Cake", money.FromMajor(50), 1)

	_, err := f.wallet.Checkout(ctx, CheckoutInput{
		StudentID: s.ID,
		Module:    models.ModuleFood,
		Lines:     []CheckoutLine{{ItemID: tea.ID, Quantity: 2}, {ItemID: cake.ID, Quantity: 2}},
	})
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if got := f.quantity(t, tea.ID); got != 10 {
		t.Fatalf("tea stock must be restored, got %d", got)
	}
	if got := f.balance(t, s.ID); got != money.FromMajor(500) {
		t.Fatalf("balance must stay 500.00, got %s", got)
	}

	result, err := f.wallet.Checkout(ctx, CheckoutInput{
		StudentID: s.ID,
		Module:    models.ModuleFood,
		Lines:     []CheckoutLine{{ItemID: tea.ID, Quantity: 2}, {ItemID: cake.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(result.Transactions) != 3 || result.Total != money.FromMajor(70) || result.Balance != money.FromMajor(430) {
		t.Fatalf("unexpected checkout result %+v", result)
	}
	for _, tx := range result.Transactions {
		if tx.ReceiptID != result.ReceiptID {
			t.Fatalf("transaction %s not grouped under receipt %s", tx.ID, result.ReceiptID)
		}
	}
	grouped, err := f.transactions.List(ctx, models.TransactionFilter{ReceiptID: result.ReceiptID})
	if err != nil {
		t.Fatalf("list receipt: %v", err)
	}
	if len(grouped) != 3 {
		t.Fatalf("expected 3 receipt lines, got %d", len(grouped))
	}
	f.assertReconciled(t)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS012", money.FromMajor(10))

	cases := []CheckoutInput{
		{StudentID: s.ID, Module: models.ModuleLibrary, Lines: []CheckoutLine{{ItemID: "x", Quantity: 1}}},
		{StudentID: s.ID, Module: models.ModuleFood},
		{StudentID: s.ID, Module: models.ModuleFood, Lines: []CheckoutLine{{ItemID: "x", Quantity: 0}}},
	}
	for i, in := range cases {
		if _, err := f.wallet.Checkout(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestReconcileReportsConsistentLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CS013", money.FromMajor(80))
	if _, err := f.wallet.Withdraw(ctx, s.ID, money.FromMajor(30)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	rec, err := f.wallet.Reconcile(ctx, s.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent || rec.LedgerNet != money.FromMajor(50) || rec.Drift != 0 {
		t.Fatalf("unexpected reconciliation %+v", rec)
	}
}
