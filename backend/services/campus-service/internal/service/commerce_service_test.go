package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

func libraryTx(id, studentID, itemID string, action models.Action, at time.Time, due *time.Time) models.TransactionDetail {
	return models.TransactionDetail{
		Transaction: models.Transaction{
			ID:        id,
			StudentID: studentID,
			ItemID:    itemID,
			Module:    models.ModuleLibrary,
			Action:    action,
			Status:    models.StatusApproved,
			DueDate:   due,
			CreatedAt: at,
		},
		Item: &models.ItemSummary{ID: itemID, Type: models.ModuleLibrary, Name: "Book " + itemID},
	}
}

func TestAggregateActiveBorrowsCountsNetHoldings(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	firstDue := base.Add(14 * 24 * time.Hour)
	secondDue := base.Add(15 * 24 * time.Hour)

	history := []models.TransactionDetail{
		libraryTx("t1", "s1", "A", models.ActionBorrow, base, &firstDue),
		libraryTx("t2", "s1", "A", models.ActionBorrow, base.Add(24*time.Hour), &secondDue),
		libraryTx("t3", "s1", "A", models.ActionReturn, base.Add(48*time.Hour), nil),
	}

	active := AggregateActiveBorrows(history)
	if len(active) != 1 {
		t.Fatalf("expected one active item, got %+v", active)
	}
	if active[0].Item.ID != "A" || active[0].Count != 1 {
		t.Fatalf("expected book A with count 1, got %+v", active[0])
	}
	if active[0].DueDate == nil || !active[0].DueDate.Equal(secondDue) {
		t.Fatalf("expected due date of latest borrow, got %v", active[0].DueDate)
	}
	if !active[0].LastActivityAt.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("expected last activity at the return, got %v", active[0].LastActivityAt)
	}
}

func TestAggregateActiveBorrowsOrderAndFiltering(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rejected := libraryTx("t9", "s1", "D", models.ActionBorrow, base.Add(9*time.Hour), nil)
	rejected.Status = models.StatusRejected

	// Newest-first input, as the repositories return it.
	history := []models.TransactionDetail{
		rejected,
		libraryTx("t5", "s1", "C", models.ActionBorrow, base.Add(5*time.Hour), nil),
		libraryTx("t4", "s1", "B", models.ActionReturn, base.Add(4*time.Hour), nil),
		libraryTx("t3", "s1", "A", models.ActionBorrow, base.Add(3*time.Hour), nil),
		libraryTx("t2", "s1", "B", models.ActionBorrow, base.Add(2*time.Hour), nil),
		libraryTx("t1", "s1", "", models.ActionBorrow, base.Add(1*time.Hour), nil),
	}

	active := AggregateActiveBorrows(history)
	if len(active) != 2 {
		t.Fatalf("expected A and C active, got %+v", active)
	}
	if active[0].Item.ID != "C" || active[1].Item.ID != "A" {
		t.Fatalf("expected order C, A by last activity, got %s, %s", active[0].Item.ID, active[1].Item.ID)
	}
}

func TestActiveBorrowsThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "CM001", 0)
	other := f.student(t, "CM002", 0)
	book := f.item(t, models.ModuleLibrary, "Distributed Systems", 0, 5)

	for _, in := range []CreateTransactionInput{
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow},
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow},
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionReturn},
		{StudentID: other.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow},
		{StudentID: s.ID, ItemID: book.ID, Module: models.ModuleLibrary, Action: models.ActionBorrow, Status: models.StatusPending},
	} {
		if _, err := f.transactions.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	active, err := f.commerce.ActiveBorrows(ctx, s.ID)
	if err != nil {
		t.Fatalf("active borrows: %v", err)
	}
	if len(active) != 1 || active[0].Count != 1 || active[0].Item.Name != "Distributed Systems" {
		t.Fatalf("expected one copy held, got %+v", active)
	}

	all, err := f.commerce.ActiveBorrowsAll(ctx)
	if err != nil {
		t.Fatalf("all active borrows: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected holdings for two students, got %+v", all)
	}
	if all[0].StudentID != other.ID {
		t.Fatalf("expected the latest borrower first, got %s", all[0].StudentID)
	}

	if _, err := f.commerce.ActiveBorrows(ctx, "missing"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestResolveStudentPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.student(t, "RS001", 0)
	second := f.student(t, "RS002", 0)
	legacy, err := f.students.Create(ctx, CreateStudentInput{Name: "Legacy", RollNo: "RS003", RFIDUID: "NEW-UID", LegacyRFID: "0042"})
	if err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	cases := []struct {
		name   string
		lookup StudentLookup
		want   string
	}{
		{"id wins over roll number", StudentLookup{StudentID: first.ID, RollNo: second.RollNo}, first.ID},
		{"roll number wins over rfid", StudentLookup{RollNo: second.RollNo, RFIDUID: first.RFIDUID}, second.ID},
		{"missing id falls through", StudentLookup{StudentID: "nope", RFIDUID: second.RFIDUID}, second.ID},
		{"legacy card number", StudentLookup{LegacyRFID: "0042"}, legacy.ID},
	}
	for _, tc := range cases {
		got, err := f.commerce.ResolveStudent(ctx, tc.lookup)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.ID != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got.ID)
		}
	}

	if _, err := f.commerce.ResolveStudent(ctx, StudentLookup{RollNo: "none"}); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestCommerceHistoryOnlyApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.student(t, "HS001", money.FromMajor(100))
	tea := f.item(t, models.ModuleFood, "Tea", money.FromMajor(10), 10)

	for _, status := range []models.Status{models.StatusApproved, models.StatusPending, models.StatusApproved} {
		if _, err := f.transactions.Create(ctx, CreateTransactionInput{
			StudentID: s.ID, ItemID: tea.ID, Module: models.ModuleFood, Action: models.ActionPurchase, Status: status,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	history, err := f.commerce.History(ctx, models.ModuleFood, s.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 approved purchases, got %d", len(history))
	}
	if !history[0].CreatedAt.After(history[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}
	if history[0].Student == nil || history[0].Item == nil || history[0].Item.Name != "Tea" {
		t.Fatalf("expected populated student and item, got %+v", history[0])
	}

	storeHistory, err := f.commerce.HistoryAll(ctx, models.ModuleStore)
	if err != nil {
		t.Fatalf("store history: %v", err)
	}
	if len(storeHistory) != 0 {
		t.Fatalf("expected empty store history, got %d", len(storeHistory))
	}
}
