package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"campuswallet/backend/libs/money"
	"campuswallet/backend/services/campus-service/internal/models"
)

// PaymentCapturedEvent is the only webhook event that credits a wallet.
const PaymentCapturedEvent = "payment.captured"

// PaymentGateway creates and looks up top-up orders.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount money.Amount, receipt string, notes map[string]string) (*models.PaymentOrder, error)
	FetchOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error)
}

// PaymentService turns gateway payments into wallet credits.
type PaymentService struct {
	gateway       PaymentGateway
	wallet        *WalletService
	keySecret     string
	webhookSecret string
	logger        *zap.Logger
}

// NewPaymentService builds the payment service. A nil gateway disables order creation
// and client-side verification; webhooks still work when webhookSecret is set.
func NewPaymentService(gateway PaymentGateway, wallet *WalletService, keySecret, webhookSecret string, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		gateway:       gateway,
		wallet:        wallet,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// VerifyInput is what the checkout widget hands back after a successful payment.
type VerifyInput struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string            `json:"id"`
				OrderID string            `json:"order_id"`
				Amount  int64             `json:"amount"`
				Status  string            `json:"status"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// CreateOrder opens a gateway order for topping up the student's wallet.
func (s *PaymentService) CreateOrder(ctx context.Context, studentID string, amount money.Amount) (*models.PaymentOrder, error) {
	if s.gateway == nil {
		return nil, ErrPaymentUnavailable
	}
	if !amount.Positive() {
		return nil, ErrInvalidAmount
	}
	student, err := loadStudent(ctx, s.wallet.store.Repos(), studentID)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, ErrInactiveStudent
	}

	notes := map[string]string{
		models.NoteStudentID: student.ID,
		models.NoteRFIDUID:   student.RFIDUID,
	}
	receipt := "wallet_" + strings.ReplaceAll(student.ID, "-", "")
	if len(receipt) > 40 {
		receipt = receipt[:40]
	}
	order, err := s.gateway.CreateOrder(ctx, amount, receipt, notes)
	if err != nil {
		s.logger.Warn("payment order failed", zap.String("student_id", student.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	s.logger.Info("payment order created",
		zap.String("student_id", student.ID),
		zap.String("order_id", order.ID),
		zap.String("amount", amount.String()),
	)
	return order, nil
}

// HandleWebhook verifies and applies a gateway webhook. Events other than a captured
// payment are acknowledged with a nil result.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*CreditResult, error) {
	if s.webhookSecret == "" {
		return nil, ErrPaymentUnavailable
	}
	if !VerifySignature(s.webhookSecret, body, signature) {
		return nil, ErrInvalidSignature
	}

	var hook webhookBody
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if hook.Event != PaymentCapturedEvent {
		s.logger.Debug("webhook ignored", zap.String("event", hook.Event))
		return nil, nil
	}

	payment := hook.Payload.Payment.Entity
	return s.wallet.CreditFromPayment(ctx, PaymentCredit{
		PaymentID: payment.ID,
		StudentID: payment.Notes[models.NoteStudentID],
		RFIDUID:   payment.Notes[models.NoteRFIDUID],
		Amount:    money.Amount(payment.Amount),
	})
}

// Verify is the client-side fallback for a missed webhook. The order is fetched from the
// gateway so the amount and owner come from the gateway, not from the client.
func (s *PaymentService) Verify(ctx context.Context, studentID string, in VerifyInput) (*CreditResult, error) {
	if s.gateway == nil || s.keySecret == "" {
		return nil, ErrPaymentUnavailable
	}
	if in.OrderID == "" || in.PaymentID == "" {
		return nil, fmt.Errorf("%w: order and payment ids are required", ErrInvalidInput)
	}
	if !VerifySignature(s.keySecret, []byte(in.OrderID+"|"+in.PaymentID), in.Signature) {
		return nil, ErrInvalidSignature
	}

	order, err := s.gateway.FetchOrder(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	if order.Notes[models.NoteStudentID] != studentID {
		return nil, ErrForbidden
	}
	return s.wallet.CreditFromPayment(ctx, PaymentCredit{
		PaymentID: in.PaymentID,
		StudentID: studentID,
		RFIDUID:   order.Notes[models.NoteRFIDUID],
		Amount:    order.Amount,
	})
}

// Sign returns the hex HMAC-SHA256 of payload, the scheme the gateway uses for both
// webhook bodies and checkout callbacks.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected HMAC in constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	expected, err := hex.DecodeString(Sign(secret, payload))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
