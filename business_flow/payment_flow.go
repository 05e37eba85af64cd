// Package businessflow contains the core business logic and use cases for payment transitions
package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/credfix/commission-engine/models"
	"github.com/credfix/commission-engine/repository"
	"github.com/credfix/commission-engine/utils"
	"gorm.io/gorm"
)

// PaymentFlow marks payable events as paid and triggers commission processing.
// It is the single entry point for the paid transition; nothing runs off save
// hooks, so every commission computation is traceable to an explicit call.
type PaymentFlow interface {
	// MarkEventPaid transitions the event to paid and processes its
	// commissions inside one transaction. Calling it again for an
	// already-paid event re-runs processing, which is idempotent.
	MarkEventPaid(ctx context.Context, eventID uint, paidAt *time.Time) (map[models.RoleKind]*Outcome, error)
}

// PaymentFlowImpl implements PaymentFlow
type PaymentFlowImpl struct {
	eventRepo      repository.PayableEventRepository
	commissionFlow CommissionFlow
	db             *gorm.DB
	logger         *log.Logger
}

// NewPaymentFlow constructs a PaymentFlow
func NewPaymentFlow(
	eventRepo repository.PayableEventRepository,
	commissionFlow CommissionFlow,
	db *gorm.DB,
	logger *log.Logger,
) PaymentFlow {
	return &PaymentFlowImpl{
		eventRepo:      eventRepo,
		commissionFlow: commissionFlow,
		db:             db,
		logger:         logger,
	}
}

// MarkEventPaid marks the event paid and computes its commissions. The status
// update and the ledger inserts share one transaction: a rollback leaves the
// event unpaid and the ledger untouched.
func (p *PaymentFlowImpl) MarkEventPaid(ctx context.Context, eventID uint, paidAt *time.Time) (map[models.RoleKind]*Outcome, error) {
	var outcomes map[models.RoleKind]*Outcome

	err := repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
		event, err := p.eventRepo.ByID(txCtx, eventID)
		if err != nil {
			return NewBusinessError(CodePersistenceError, "Failed to load payable event", err)
		}
		if event == nil {
			return NewBusinessError(CodeEventNotFound, fmt.Sprintf("Payable event %d not found", eventID), ErrEventNotFound)
		}
		if event.Status == models.EventStatusCancelled {
			return NewBusinessError(CodeEventNotPayable, fmt.Sprintf("Payable event %d is cancelled", eventID), ErrEventCancelled)
		}

		if !event.IsPaid() {
			when := utils.UTCNow()
			if paidAt != nil {
				when = paidAt.UTC()
			}
			if err := p.eventRepo.MarkPaid(txCtx, eventID, when); err != nil {
				return NewBusinessError(CodePersistenceError, "Failed to mark event paid", err)
			}
			p.logger.Printf("event paid: event=%d kind=%s amount=%s paid_at=%s", event.ID, event.Kind, event.Amount, when.Format(time.RFC3339))
		}

		outcomes, err = p.commissionFlow.ProcessEvent(txCtx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return outcomes, nil
}
