// Package memory is an in-process Store used for local development and tests.
// It mirrors the conditional-update semantics of the postgres repositories.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
)

type state struct {
	students     map[string]models.Student
	items        map[string]models.Item
	transactions map[string]models.Transaction
	wallet       []models.WalletTransaction
	admins       map[string]models.Admin
}

// undoLog records how to revert each write made through transaction-bound repositories.
// Rolling back replays only those entries, so writes made outside the transaction survive.
type undoLog struct {
	ops []func(*state)
}

func (l *undoLog) add(op func(*state)) {
	if l != nil {
		l.ops = append(l.ops, op)
	}
}

func (l *undoLog) rollback(d *state) {
	for i := len(l.ops) - 1; i >= 0; i-- {
		l.ops[i](d)
	}
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *state
	now  func() time.Time
	last time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			students:     make(map[string]models.Student),
			items:        make(map[string]models.Item),
			transactions: make(map[string]models.Transaction),
			admins:       make(map[string]models.Admin),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repos returns repositories operating directly on the store.
func (s *Store) Repos() repository.Repositories {
	return s.repos(nil)
}

func (s *Store) repos(undo *undoLog) repository.Repositories {
	return repository.Repositories{
		Students:           &studentRepo{s: s, undo: undo},
		Items:              &itemRepo{s: s, undo: undo},
		Transactions:       &transactionRepo{s: s, undo: undo},
		WalletTransactions: &walletRepo{s: s, undo: undo},
		Admins:             &adminRepo{s: s, undo: undo},
	}
}

// WithinTx serializes transactional work and reverts the writes fn made when it fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{}
	if err := fn(ctx, s.repos(undo)); err != nil {
		s.mu.Lock()
		undo.rollback(s.data)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// stamp returns strictly increasing times so insertion order survives equal clock readings.
func (s *Store) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// The save helpers run under mu, before the write they guard.

func (s *Store) saveStudent(undo *undoLog, id string) {
	if undo == nil {
		return
	}
	prev, existed := s.data.students[id]
	undo.add(func(d *state) {
		if existed {
			d.students[id] = prev
		} else {
			delete(d.students, id)
		}
	})
}

func (s *Store) saveItem(undo *undoLog, id string) {
	if undo == nil {
		return
	}
	prev, existed := s.data.items[id]
	undo.add(func(d *state) {
		if existed {
			d.items[id] = prev
		} else {
			delete(d.items, id)
		}
	})
}

func (s *Store) saveTransaction(undo *undoLog, id string) {
	if undo == nil {
		return
	}
	prev, existed := s.data.transactions[id]
	undo.add(func(d *state) {
		if existed {
			d.transactions[id] = prev
		} else {
			delete(d.transactions, id)
		}
	})
}

func (s *Store) saveAdmin(undo *undoLog, email string) {
	if undo == nil {
		return
	}
	prev, existed := s.data.admins[email]
	undo.add(func(d *state) {
		if existed {
			d.admins[email] = prev
		} else {
			delete(d.admins, email)
		}
	})
}

func (s *Store) saveWalletAppend(undo *undoLog, id string) {
	undo.add(func(d *state) {
		for i := range d.wallet {
			if d.wallet[i].ID == id {
				d.wallet = append(d.wallet[:i], d.wallet[i+1:]...)
				return
			}
		}
	})
}

type studentRepo struct {
	s    *Store
	undo *undoLog
}

func (r *studentRepo) Create(_ context.Context, student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.students {
		if studentConflicts(existing, *student) {
			return repository.ErrDuplicate
		}
	}
	now := r.s.stamp()
	student.CreatedAt, student.UpdatedAt = now, now
	r.s.saveStudent(r.undo, student.ID)
	r.s.data.students[student.ID] = *student
	return nil
}

func studentConflicts(existing, candidate models.Student) bool {
	if existing.ID == candidate.ID {
		return true
	}
	if existing.RollNo == candidate.RollNo || existing.RFIDUID == candidate.RFIDUID {
		return true
	}
	return candidate.Email != "" && strings.EqualFold(existing.Email, candidate.Email)
}

func (r *studentRepo) GetByID(_ context.Context, id string) (*models.Student, error) {
	return r.find(func(s models.Student) bool { return s.ID == id })
}

func (r *studentRepo) GetByRollNo(_ context.Context, rollNo string) (*models.Student, error) {
	rollNo = strings.TrimSpace(rollNo)
	return r.find(func(s models.Student) bool { return s.RollNo == rollNo })
}

func (r *studentRepo) GetByRFID(_ context.Context, rfidUID string) (*models.Student, error) {
	rfidUID = strings.TrimSpace(rfidUID)
	return r.find(func(s models.Student) bool { return s.RFIDUID == rfidUID })
}

func (r *studentRepo) GetByLegacyRFID(_ context.Context, legacy string) (*models.Student, error) {
	legacy = strings.TrimSpace(legacy)
	return r.find(func(s models.Student) bool { return legacy != "" && s.LegacyRFID == legacy })
}

func (r *studentRepo) find(match func(models.Student) bool) (*models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.data.students {
		if match(s) {
			out := s
			out.Modules = append([]models.Module(nil), s.Modules...)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *studentRepo) List(_ context.Context, filter repository.StudentFilter) ([]models.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Student
	for _, s := range r.s.data.students {
		if filter.ActiveOnly && !s.Active {
			continue
		}
		if filter.Module != "" && !s.HasModule(filter.Module) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RollNo < out[j].RollNo })
	return out, nil
}

func (r *studentRepo) UpdateProfile(_ context.Context, student *models.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.students[student.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.data.students {
		if id != student.ID && studentConflicts(existing, *student) {
			return repository.ErrDuplicate
		}
	}
	current.Name = student.Name
	current.RollNo = student.RollNo
	current.Email = student.Email
	current.RFIDUID = student.RFIDUID
	current.LegacyRFID = student.LegacyRFID
	current.Modules = append([]models.Module(nil), student.Modules...)
	current.Active = student.Active
	current.UpdatedAt = r.s.stamp()
	r.s.saveStudent(r.undo, student.ID)
	r.s.data.students[student.ID] = current
	student.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *studentRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.students[id]
	if !ok {
		return repository.ErrNotFound
	}
	current.PasswordHash = hash
	current.UpdatedAt = r.s.stamp()
	r.s.saveStudent(r.undo, id)
	r.s.data.students[id] = current
	return nil
}

func (r *studentRepo) Credit(_ context.Context, id string, amount money.Amount) (money.Amount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.students[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	balance, err := money.Add(current.WalletBalance, amount)
	if err != nil {
		return 0, err
	}
	current.WalletBalance = balance
	current.UpdatedAt = r.s.stamp()
	r.s.saveStudent(r.undo, id)
	r.s.data.students[id] = current
	return current.WalletBalance, nil
}

func (r *studentRepo) DebitIfSufficient(_ context.Context, id string, amount money.Amount) (money.Amount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.students[id]
	if !ok || current.WalletBalance < amount {
		return 0, repository.ErrConditionFailed
	}
	current.WalletBalance -= amount
	current.UpdatedAt = r.s.stamp()
	r.s.saveStudent(r.undo, id)
	r.s.data.students[id] = current
	return current.WalletBalance, nil
}

type itemRepo struct {
	s    *Store
	undo *undoLog
}

func (r *itemRepo) Create(_ context.Context, item *models.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.items[item.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.stamp()
	item.CreatedAt, item.UpdatedAt = now, now
	r.s.saveItem(r.undo, item.ID)
	r.s.data.items[item.ID] = *item
	return nil
}

func (r *itemRepo) GetByID(_ context.Context, id string) (*models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (r *itemRepo) List(_ context.Context, itemType models.Module) ([]models.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Item
	for _, item := range r.s.data.items {
		if itemType == "" || item.Type == itemType {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *itemRepo) Update(_ context.Context, item *models.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.items[item.ID]
	if !ok {
		return repository.ErrNotFound
	}
	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = r.s.stamp()
	r.s.saveItem(r.undo, item.ID)
	r.s.data.items[item.ID] = *item
	return nil
}

func (r *itemRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.items[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.saveItem(r.undo, id)
	delete(r.s.data.items, id)
	for txID, tx := range r.s.data.transactions {
		if tx.ItemID == id {
			tx.ItemID = ""
			r.s.saveTransaction(r.undo, txID)
			r.s.data.transactions[txID] = tx
		}
	}
	return nil
}

func (r *itemRepo) Reserve(_ context.Context, id string, n int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.items[id]
	if !ok || item.Quantity < n {
		return 0, repository.ErrConditionFailed
	}
	item.Quantity -= n
	item.UpdatedAt = r.s.stamp()
	r.s.saveItem(r.undo, id)
	r.s.data.items[id] = item
	return item.Quantity, nil
}

func (r *itemRepo) Release(_ context.Context, id string, n int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.items[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	item.Quantity += n
	item.UpdatedAt = r.s.stamp()
	r.s.saveItem(r.undo, id)
	r.s.data.items[id] = item
	return item.Quantity, nil
}

func (r *itemRepo) DecrementFloor(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.items[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if item.Quantity > 0 {
		item.Quantity--
	}
	item.UpdatedAt = r.s.stamp()
	r.s.saveItem(r.undo, id)
	r.s.data.items[id] = item
	return item.Quantity, nil
}

type transactionRepo struct {
	s    *Store
	undo *undoLog
}

func (r *transactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.transactions[tx.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.stamp()
	tx.CreatedAt, tx.UpdatedAt = now, now
	r.s.saveTransaction(r.undo, tx.ID)
	r.s.data.transactions[tx.ID] = *tx
	return nil
}

func (r *transactionRepo) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.data.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tx, nil
}

func (r *transactionRepo) TransitionStatus(_ context.Context, id string, from, to models.Status) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.data.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if tx.Status != from {
		return nil, repository.ErrConditionFailed
	}
	tx.Status = to
	tx.UpdatedAt = r.s.stamp()
	r.s.saveTransaction(r.undo, id)
	r.s.data.transactions[id] = tx
	return &tx, nil
}

func (r *transactionRepo) MarkWalletDebited(_ context.Context, id string, amount money.Amount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.data.transactions[id]
	if !ok {
		return repository.ErrNotFound
	}
	tx.WalletDebited = true
	tx.Amount = &amount
	tx.UpdatedAt = r.s.stamp()
	r.s.saveTransaction(r.undo, id)
	r.s.data.transactions[id] = tx
	return nil
}

func (r *transactionRepo) UpdateNotes(_ context.Context, id, notes string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.data.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	tx.Notes = notes
	tx.UpdatedAt = r.s.stamp()
	r.s.saveTransaction(r.undo, id)
	r.s.data.transactions[id] = tx
	return &tx, nil
}

func (r *transactionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.transactions[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.saveTransaction(r.undo, id)
	delete(r.s.data.transactions, id)
	return nil
}

func (r *transactionRepo) List(_ context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TransactionDetail
	for _, tx := range r.s.data.transactions {
		if !matches(tx, filter) {
			continue
		}
		student, ok := r.s.data.students[tx.StudentID]
		if !ok {
			continue
		}
		d := models.TransactionDetail{Transaction: tx, Student: student.Summary()}
		if item, ok := r.s.data.items[tx.ItemID]; ok && tx.ItemID != "" {
			d.Item = item.Summary()
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(tx models.Transaction, f models.TransactionFilter) bool {
	switch {
	case f.StudentID != "" && tx.StudentID != f.StudentID:
		return false
	case f.Module != "" && tx.Module != f.Module:
		return false
	case f.Status != "" && tx.Status != f.Status:
		return false
	case f.Action != "" && tx.Action != f.Action:
		return false
	case f.ReceiptID != "" && tx.ReceiptID != f.ReceiptID:
		return false
	}
	return true
}

type walletRepo struct {
	s    *Store
	undo *undoLog
}

func (r *walletRepo) Create(_ context.Context, e *models.WalletTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.PaymentID != "" {
		for _, existing := range r.s.data.wallet {
			if existing.PaymentID == e.PaymentID {
				return repository.ErrDuplicate
			}
		}
	}
	e.CreatedAt = r.s.stamp()
	r.s.saveWalletAppend(r.undo, e.ID)
	r.s.data.wallet = append(r.s.data.wallet, *e)
	return nil
}

func (r *walletRepo) ExistsByPaymentID(_ context.Context, paymentID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.data.wallet {
		if e.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *walletRepo) ListByStudent(_ context.Context, studentID string, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.WalletTransaction
	for i := len(r.s.data.wallet) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.s.data.wallet[i]; e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *walletRepo) Totals(_ context.Context, studentID string) (models.LedgerTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var totals models.LedgerTotals
	for _, e := range r.s.data.wallet {
		if e.StudentID != studentID {
			continue
		}
		switch e.Type {
		case models.WalletCredit:
			totals.Credits += e.Amount
		case models.WalletDebit:
			totals.Debits += e.Amount
		}
	}
	return totals, nil
}

type adminRepo struct {
	s    *Store
	undo *undoLog
}

func (r *adminRepo) Create(_ context.Context, admin *models.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	if _, ok := r.s.data.admins[admin.Email]; ok {
		return repository.ErrDuplicate
	}
	admin.CreatedAt = r.s.stamp()
	r.s.saveAdmin(r.undo, admin.Email)
	r.s.data.admins[admin.Email] = *admin
	return nil
}

func (r *adminRepo) GetByEmail(_ context.Context, email string) (*models.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	admin, ok := r.s.data.admins[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &admin, nil
}
