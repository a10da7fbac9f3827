package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
)

// ErrNoScan is returned when no card has been scanned recently.
var ErrNoScan = errors.New("rfid: no recent scan")

// ScanRecord is the last resolved card scan, served by the pull query.
type ScanRecord struct {
	Student       models.StudentSummary `json:"student"`
	WalletBalance money.Amount          `json:"walletBalance"`
	Modules       []models.Module       `json:"modules"`
	DeviceID      string                `json:"deviceId,omitempty"`
	TransactionID string                `json:"transactionId,omitempty"`
	ScannedAt     time.Time             `json:"scannedAt"`
}

// ScanCache keeps the most recent scan for a limited time.
type ScanCache interface {
	Save(ctx context.Context, record ScanRecord) error
	// Current returns ErrNoScan when nothing is cached.
	Current(ctx context.Context) (*ScanRecord, error)
}

// MemoryScanCache is a process-local ScanCache.
type MemoryScanCache struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	record *ScanRecord
	expiry time.Time
}

// NewMemoryScanCache returns a cache that forgets scans after ttl.
func NewMemoryScanCache(ttl time.Duration) *MemoryScanCache {
	return &MemoryScanCache{ttl: ttl, now: time.Now}
}

// Save replaces the cached scan.
func (c *MemoryScanCache) Save(_ context.Context, record ScanRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = &record
	c.expiry = c.now().Add(c.ttl)
	return nil
}

// Current returns the cached scan if it has not expired.
func (c *MemoryScanCache) Current(_ context.Context) (*ScanRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record == nil || (c.ttl > 0 && !c.now().Before(c.expiry)) {
		return nil, ErrNoScan
	}
	record := *c.record
	return &record, nil
}

// ScanInput is what a reader reports. Module and Action are optional; when set a pending
// transaction is opened for an admin to approve.
type ScanInput struct {
	RFIDUID  string
	DeviceID string
	Module   models.Module
	Action   models.Action
	ItemID   string
	Notes    string
}

// ScanResult is the outcome of a scan.
type ScanResult struct {
	Student     *models.Student     `json:"student"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
}

// ScanService handles card scans and the approval queue they feed.
type ScanService struct {
	commerce     *CommerceService
	transactions *TransactionService
	cache        ScanCache
	publisher    events.Publisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewScanService builds the scan service.
func NewScanService(commerce *CommerceService, transactions *TransactionService, cache ScanCache, publisher events.Publisher, logger *zap.Logger) *ScanService {
	if publisher == nil {
		publisher = events.Nop
	}
	return &ScanService{
		commerce:     commerce,
		transactions: transactions,
		cache:        cache,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// Scan resolves the card, remembers it for the pull query and announces it.
func (s *ScanService) Scan(ctx context.Context, in ScanInput) (*ScanResult, error) {
	uid := strings.TrimSpace(in.RFIDUID)
	if uid == "" {
		return nil, fmt.Errorf("%w: rfid_uid is required", ErrInvalidInput)
	}
	student, err := s.commerce.ResolveStudent(ctx, StudentLookup{RFIDUID: uid, LegacyRFID: uid})
	if err != nil {
		s.logger.Warn("unknown card scanned", zap.String("rfid_uid", uid), zap.String("device_id", in.DeviceID))
		return nil, err
	}
	if !student.Active {
		return nil, ErrInactiveStudent
	}

	result := &ScanResult{Student: student}
	if in.Module != "" || in.Action != "" {
		tx, err := s.transactions.Create(ctx, CreateTransactionInput{
			StudentID: student.ID,
			ItemID:    in.ItemID,
			Module:    in.Module,
			Action:    in.Action,
			Status:    models.StatusPending,
			Notes:     in.Notes,
		})
		if err != nil {
			return nil, err
		}
		result.Transaction = tx
	}

	record := ScanRecord{
		Student:       *student.Summary(),
		WalletBalance: student.WalletBalance,
		Modules:       student.Modules,
		DeviceID:      in.DeviceID,
		ScannedAt:     s.now().UTC(),
	}
	if result.Transaction != nil {
		record.TransactionID = result.Transaction.ID
	}
	if err := s.cache.Save(ctx, record); err != nil {
		s.logger.Warn("scan cache write failed", zap.Error(err))
	}

	s.logger.Info("card scanned",
		zap.String("student_id", student.ID),
		zap.String("device_id", in.DeviceID),
	)
	s.publisher.Publish(ctx, events.Event{Type: events.RFIDPending, StudentID: student.ID, Payload: record})
	return result, nil
}

// Current returns the most recently scanned student.
func (s *ScanService) Current(ctx context.Context) (*ScanRecord, error) {
	return s.cache.Current(ctx)
}

// Pending lists transactions waiting for approval.
func (s *ScanService) Pending(ctx context.Context) ([]models.TransactionDetail, error) {
	return s.transactions.ListPending(ctx)
}

// Approve approves a pending transaction and announces it.
func (s *ScanService) Approve(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.transactions.Transition(ctx, id, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.Event{Type: events.RFIDApproved, StudentID: tx.StudentID, Payload: tx})
	return tx, nil
}

// Reject rejects a pending transaction.
func (s *ScanService) Reject(ctx context.Context, id string) (*models.Transaction, error) {
	return s.transactions.Transition(ctx, id, models.StatusRejected)
}
