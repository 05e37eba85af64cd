// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"fmt"

	"github.com/credfix/commission-engine/models"
	"github.com/credfix/commission-engine/repository"
	"github.com/credfix/commission-engine/utils"
	"github.com/shopspring/decimal"
)

// roleHolderID resolves which agent (if any) holds the role side of the role
// kind on the event.
func roleHolderID(event *models.PayableEvent, roleKind models.RoleKind) *uint {
	if roleKind.Role() == models.RoleConsultant {
		return event.ConsultantID
	}
	return event.ReferrerID
}

// monthlyRevenueFor aggregates the agent's paid revenue for the calendar month
// (UTC) of the event's paid timestamp. The triggering event counts toward the
// aggregate since it is already paid when commissions are computed.
func monthlyRevenueFor(ctx context.Context, eventRepo repository.PayableEventRepository, event *models.PayableEvent, role models.CommissionRole, agentID uint) (decimal.Decimal, error) {
	from, to := utils.MonthWindow(event.PaidMonth(utils.UTCNow()))
	revenue, err := eventRepo.SumPaidAmountForAgent(ctx, agentID, role, from, to)
	if err != nil {
		return decimal.Zero, NewBusinessError(CodePersistenceError,
			fmt.Sprintf("Failed to aggregate monthly revenue for agent %d", agentID), err)
	}
	return revenue, nil
}

// getPaidEvent loads an event and checks it is in the paid state
func getPaidEvent(ctx context.Context, eventRepo repository.PayableEventRepository, eventID uint) (*models.PayableEvent, error) {
	event, err := eventRepo.ByID(ctx, eventID)
	if err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to load payable event", err)
	}
	if event == nil {
		return nil, NewBusinessError(CodeEventNotFound, fmt.Sprintf("Payable event %d not found", eventID), ErrEventNotFound)
	}
	if !event.IsPaid() {
		return nil, NewBusinessError(CodeEventNotPayable, fmt.Sprintf("Payable event %d is not paid", eventID), ErrEventNotPaid)
	}
	return event, nil
}
