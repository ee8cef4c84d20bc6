// Package payment captures payments through an external gateway and records
// each successful capture as a Transaction.
package payment

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/pkg/common"
)

const (
	defaultDescription = "No description provided"
	maxDescriptionLen  = 255
	maxAmount          = "99999999.99"
	maxPageSize        = 500
)

// statuses after which the money is secured
var capturedStatuses = map[string]bool{
	"succeeded":        true,
	"requires_capture": true,
}

// CaptureRequest is the client-supplied part of a charge. The owner, the
// timestamp, the charge id and the paid flag are always set by the server.
type CaptureRequest struct {
	Amount      decimal.Decimal
	Description string
	Token       string
	ReturnURL   string
}

type Filter struct {
	Page     int
	PageSize int
}

func (f *Filter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
}

type Service struct {
	db      *gorm.DB
	gateway Gateway
}

func NewService(db *gorm.DB, gateway Gateway) *Service {
	return &Service{db: db, gateway: gateway}
}

// MinorUnits converts a dollar amount to cents. Amounts with sub-cent
// precision are rejected rather than rounded.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperr.Validation("amount", "ensure this value is greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return 0, apperr.Validation("amount", "ensure that there are no more than 2 decimal places")
	}
	if amount.GreaterThan(decimal.RequireFromString(maxAmount)) {
		return 0, apperr.Validation("amount", "ensure this value is less than or equal to "+maxAmount)
	}
	return amount.Shift(2).IntPart(), nil
}

// Capture charges the gateway and, only when the charge is secured, stores a
// paid Transaction owned by actor. Nothing is stored on failure.
func (s *Service) Capture(ctx context.Context, actor *access.Actor, req CaptureRequest) (*domain.Transaction, error) {
	if err := access.Require(actor, access.OpCapture, access.On(access.Transaction)); err != nil {
		return nil, err
	}
	minor, err := MinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, apperr.Validation("token", "this field is required")
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = defaultDescription
	}
	if len(desc) > maxDescriptionLen {
		return nil, apperr.Validation("description", "ensure this field has no more than 255 characters")
	}

	charge, err := s.gateway.CreateCharge(ctx, ChargeRequest{
		Token:       token,
		AmountMinor: minor,
		Currency:    Currency,
		Description: desc,
		ReturnURL:   strings.TrimSpace(req.ReturnURL),
	})
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			zap.L().Warn("payment declined by provider",
				zap.Int64("user_id", actor.UserID),
				zap.String("code", pe.Code),
				zap.String("message", pe.Message))
			return nil, apperr.Gateway(pe.Message, err)
		}
		zap.L().Error("payment gateway failure", zap.Int64("user_id", actor.UserID), zap.Error(err))
		return nil, apperr.Gateway("payment failed: "+err.Error(), err)
	}
	if !capturedStatuses[charge.Status] {
		zap.L().Warn("payment not captured",
			zap.Int64("user_id", actor.UserID),
			zap.String("charge_id", charge.ID),
			zap.String("status", charge.Status))
		return nil, apperr.Gateway("payment failed: status "+charge.Status, nil)
	}

	txn := domain.Transaction{
		ID:             common.UUIDint64(),
		UserID:         actor.UserID,
		Amount:         domain.NewMoney(req.Amount),
		Timestamp:      time.Now(),
		StripeChargeID: charge.ID,
		Description:    desc,
		Paid:           true,
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		// the charge went through, keep enough to reconcile by hand
		zap.L().Error("captured payment not recorded",
			zap.Int64("user_id", actor.UserID),
			zap.String("charge_id", charge.ID),
			zap.String("amount", txn.Amount.String()),
			zap.Error(err))
		return nil, apperr.Internal("payment captured but not recorded", err)
	}
	zap.L().Info("payment captured",
		zap.Int64("transaction_id", txn.ID),
		zap.Int64("user_id", txn.UserID),
		zap.String("charge_id", txn.StripeChargeID),
		zap.String("amount", txn.Amount.String()))
	return &txn, nil
}

// ListTransactions returns the actor's transactions, all of them for a privileged actor.
func (s *Service) ListTransactions(ctx context.Context, actor *access.Actor, f Filter) ([]domain.Transaction, int64, error) {
	if err := access.Require(actor, access.OpList, access.On(access.Transaction)); err != nil {
		return nil, 0, err
	}
	f.normalize()
	q := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if !actor.Privileged {
		q = q.Where("user_id = ?", actor.UserID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "transaction")
	}
	var rows []domain.Transaction
	err := q.Order("timestamp DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStore(err, "transaction")
	}
	return rows, total, nil
}

type transactionRow struct {
	ID             int64  `csv:"id"`
	Username       string `csv:"user"`
	Amount         string `csv:"amount"`
	Timestamp      string `csv:"timestamp"`
	StripeChargeID string `csv:"stripe_charge_id"`
	Description    string `csv:"description"`
	Paid           bool   `csv:"paid"`
}

// ExportCSV writes every transaction, oldest first, as CSV to w and returns
// the number of rows written.
func (s *Service) ExportCSV(ctx context.Context, actor *access.Actor, w io.Writer) (int, error) {
	if err := access.Require(actor, access.OpExport, access.On(access.Transaction)); err != nil {
		return 0, err
	}
	var txns []domain.Transaction
	if err := s.db.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&txns).Error; err != nil {
		return 0, apperr.FromStore(err, "transaction")
	}

	userIDs := make([]int64, 0, len(txns))
	for _, t := range txns {
		userIDs = append(userIDs, t.UserID)
	}
	names := make(map[int64]string)
	if len(userIDs) > 0 {
		var users []domain.User
		if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return 0, apperr.FromStore(err, "user")
		}
		for _, u := range users {
			names[u.ID] = u.Username
		}
	}

	rows := make([]*transactionRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, &transactionRow{
			ID:             t.ID,
			Username:       names[t.UserID],
			Amount:         t.Amount.String(),
			Timestamp:      t.Timestamp.UTC().Format(time.RFC3339),
			StripeChargeID: t.StripeChargeID,
			Description:    t.Description,
			Paid:           t.Paid,
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return 0, errors.Wrap(err, "write transactions csv")
	}
	return len(rows), nil
}
