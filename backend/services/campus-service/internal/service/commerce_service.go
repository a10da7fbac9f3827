package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
)

// StudentLookup carries any of the identifiers a form or reader may supply.
type StudentLookup struct {
	StudentID  string
	RollNo     string
	RFIDUID    string
	LegacyRFID string
}

// Empty reports whether no identifier was supplied.
func (l StudentLookup) Empty() bool {
	return strings.TrimSpace(l.StudentID) == "" && strings.TrimSpace(l.RollNo) == "" &&
		strings.TrimSpace(l.RFIDUID) == "" && strings.TrimSpace(l.LegacyRFID) == ""
}

// CommerceService resolves students and builds read-only commerce views.
type CommerceService struct {
	store repository.Store
}

// NewCommerceService builds the commerce resolution service.
func NewCommerceService(store repository.Store) *CommerceService {
	return &CommerceService{store: store}
}

// ResolveStudent tries the identifiers in priority order: id, roll number, rfid uid,
// then the legacy card number. The first match wins; a miss falls through to the next
// identifier. ErrStudentNotFound is returned when nothing matches.
func (s *CommerceService) ResolveStudent(ctx context.Context, lookup StudentLookup) (*models.Student, error) {
	return resolveStudent(ctx, s.store.Repos(), lookup)
}

func resolveStudent(ctx context.Context, repos repository.Repositories, lookup StudentLookup) (*models.Student, error) {
	attempts := []struct {
		key  string
		find func(context.Context, string) (*models.Student, error)
	}{
		{lookup.StudentID, repos.Students.GetByID},
		{lookup.RollNo, repos.Students.GetByRollNo},
		{lookup.RFIDUID, repos.Students.GetByRFID},
		{lookup.LegacyRFID, repos.Students.GetByLegacyRFID},
	}
	for _, attempt := range attempts {
		key := strings.TrimSpace(attempt.key)
		if key == "" {
			continue
		}
		student, err := attempt.find(ctx, key)
		if err == nil {
			return student, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrStudentNotFound
}

// History returns approved transactions of one student in module, newest first.
func (s *CommerceService) History(ctx context.Context, module models.Module, studentID string) ([]models.TransactionDetail, error) {
	if !module.Valid() {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidInput, module)
	}
	repos := s.store.Repos()
	if _, err := loadStudent(ctx, repos, studentID); err != nil {
		return nil, err
	}
	return repos.Transactions.List(ctx, models.TransactionFilter{
		StudentID: studentID,
		Module:    module,
		Status:    models.StatusApproved,
	})
}

// HistoryAll returns approved transactions of every student in module, newest first.
func (s *CommerceService) HistoryAll(ctx context.Context, module models.Module) ([]models.TransactionDetail, error) {
	if !module.Valid() {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidInput, module)
	}
	return s.store.Repos().Transactions.List(ctx, models.TransactionFilter{
		Module: module,
		Status: models.StatusApproved,
	})
}

// ActiveBorrows returns the library items a student currently holds.
func (s *CommerceService) ActiveBorrows(ctx context.Context, studentID string) ([]models.ActiveBorrow, error) {
	repos := s.store.Repos()
	if _, err := loadStudent(ctx, repos, studentID); err != nil {
		return nil, err
	}
	history, err := repos.Transactions.List(ctx, models.TransactionFilter{
		StudentID: studentID,
		Module:    models.ModuleLibrary,
		Status:    models.StatusApproved,
	})
	if err != nil {
		return nil, err
	}
	return AggregateActiveBorrows(history), nil
}

// ActiveBorrowsAll returns every held library item across students.
func (s *CommerceService) ActiveBorrowsAll(ctx context.Context) ([]models.ActiveBorrow, error) {
	history, err := s.store.Repos().Transactions.List(ctx, models.TransactionFilter{
		Module: models.ModuleLibrary,
		Status: models.StatusApproved,
	})
	if err != nil {
		return nil, err
	}
	return AggregateActiveBorrows(history), nil
}

type borrowKey struct {
	studentID string
	itemID    string
}

type borrowCounter struct {
	borrow     models.ActiveBorrow
	lastBorrow time.Time
}

// AggregateActiveBorrows reduces approved library transactions into per (student, item)
// counters: borrows minus returns. Only positive counts are reported, with the due date
// of the most recent borrow, sorted by latest activity descending. Input order does not
// matter and transactions without an item are ignored.
func AggregateActiveBorrows(history []models.TransactionDetail) []models.ActiveBorrow {
	counters := make(map[borrowKey]*borrowCounter)
	for i := range history {
		tx := &history[i]
		if tx.Module != models.ModuleLibrary || tx.Status != models.StatusApproved || tx.ItemID == "" {
			continue
		}
		if tx.Action != models.ActionBorrow && tx.Action != models.ActionReturn {
			continue
		}

		key := borrowKey{studentID: tx.StudentID, itemID: tx.ItemID}
		c, ok := counters[key]
		if !ok {
			c = &borrowCounter{borrow: models.ActiveBorrow{StudentID: tx.StudentID}}
			counters[key] = c
		}
		if tx.Student != nil {
			c.borrow.Student = tx.Student
		}
		if tx.Item != nil {
			c.borrow.Item = tx.Item
		}

		switch tx.Action {
		case models.ActionBorrow:
			c.borrow.Count++
			if c.lastBorrow.IsZero() || tx.CreatedAt.After(c.lastBorrow) {
				c.lastBorrow = tx.CreatedAt
				c.borrow.DueDate = tx.DueDate
			}
		case models.ActionReturn:
			c.borrow.Count--
		}
		if tx.CreatedAt.After(c.borrow.LastActivityAt) {
			c.borrow.LastActivityAt = tx.CreatedAt
		}
	}

	active := make([]models.ActiveBorrow, 0, len(counters))
	for key, c := range counters {
		if c.borrow.Count <= 0 {
			continue
		}
		if c.borrow.Item == nil {
			c.borrow.Item = &models.ItemSummary{ID: key.itemID, Type: models.ModuleLibrary}
		}
		active = append(active, c.borrow)
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].LastActivityAt.Equal(active[j].LastActivityAt) {
			return active[i].LastActivityAt.After(active[j].LastActivityAt)
		}
		if active[i].StudentID != active[j].StudentID {
			return active[i].StudentID < active[j].StudentID
		}
		return active[i].Item.ID < active[j].Item.ID
	})
	return active
}
