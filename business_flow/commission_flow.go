// Package businessflow contains the core business logic and use cases for commission processing
package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/credfix/commission-engine/metrics"
	"github.com/credfix/commission-engine/models"
	"github.com/credfix/commission-engine/repository"
	"github.com/credfix/commission-engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OutcomeStatus classifies the result of processing one (event, role kind) pair
type OutcomeStatus string

const (
	OutcomeCreated           OutcomeStatus = "created"
	OutcomeSkippedDuplicate  OutcomeStatus = "skipped_duplicate"
	OutcomeSkippedIneligible OutcomeStatus = "skipped_ineligible"
	OutcomeFailed            OutcomeStatus = "failed"
)

// Outcome is the per-role-kind result of ProcessEvent
type Outcome struct {
	Status OutcomeStatus           `json:"status"`
	Entry  *models.CommissionEntry `json:"entry,omitempty"`
	Err    error                   `json:"-"`
}

// LedgerStatistics aggregates the ledger per entry status
type LedgerStatistics struct {
	PendingCount   int64           `json:"pending_count"`
	PendingTotal   decimal.Decimal `json:"pending_total"`
	PaidCount      int64           `json:"paid_count"`
	PaidTotal      decimal.Decimal `json:"paid_total"`
	CancelledCount int64           `json:"cancelled_count"`
	CancelledTotal decimal.Decimal `json:"cancelled_total"`
	TotalCount     int64           `json:"total_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// CommissionFlow defines operations on the commission ledger
type CommissionFlow interface {
	// ProcessEvent computes and persists commissions for every role kind the
	// paid event maps to. Failures are isolated per role kind; the returned
	// map always covers all applicable role kinds.
	ProcessEvent(ctx context.Context, eventID uint) (map[models.RoleKind]*Outcome, error)
	MarkEntryPaid(ctx context.Context, entryID uint, notes string) (*models.CommissionEntry, error)
	CancelEntry(ctx context.Context, entryID uint, notes string) (*models.CommissionEntry, error)
	ListEntriesForAgent(ctx context.Context, agentID uint, limit, offset int) ([]*models.CommissionEntry, error)
	Statistics(ctx context.Context) (*LedgerStatistics, error)
}

// CommissionFlowImpl implements CommissionFlow
type CommissionFlowImpl struct {
	eventRepo repository.PayableEventRepository
	entryRepo repository.CommissionEntryRepository
	agentRepo repository.AgentRepository
	evaluator *CommissionEvaluator
	rates     RateTable
	db        *gorm.DB
	logger    *log.Logger
}

// NewCommissionFlow constructs a CommissionFlow
func NewCommissionFlow(
	eventRepo repository.PayableEventRepository,
	entryRepo repository.CommissionEntryRepository,
	agentRepo repository.AgentRepository,
	rates RateTable,
	db *gorm.DB,
	logger *log.Logger,
) CommissionFlow {
	return &CommissionFlowImpl{
		eventRepo: eventRepo,
		entryRepo: entryRepo,
		agentRepo: agentRepo,
		evaluator: NewCommissionEvaluator(rates),
		rates:     rates,
		db:        db,
		logger:    logger,
	}
}

// ProcessEvent computes commissions for a paid event. One role kind failing
// never blocks the others; duplicate entries are suppressed by the ledger's
// unique index and reported as skipped, not errors.
func (c *CommissionFlowImpl) ProcessEvent(ctx context.Context, eventID uint) (map[models.RoleKind]*Outcome, error) {
	event, err := getPaidEvent(ctx, c.eventRepo, eventID)
	if err != nil {
		return nil, err
	}

	roleKinds := models.RoleKindsForEvent(event.Kind)
	if len(roleKinds) == 0 {
		return nil, NewBusinessError(CodeConfigurationError,
			fmt.Sprintf("No role kinds map to event kind %q", event.Kind), ErrUnknownEventKind)
	}

	outcomes := make(map[models.RoleKind]*Outcome, len(roleKinds))
	for _, rk := range roleKinds {
		outcome := c.processRoleKind(ctx, event, rk)
		outcomes[rk] = outcome

		switch outcome.Status {
		case OutcomeCreated:
			metrics.EntriesCreated.WithLabelValues(string(rk)).Inc()
			c.logger.Printf("commission created: event=%d role_kind=%s amount=%s", event.ID, rk, outcome.Entry.Amount)
		case OutcomeSkippedDuplicate:
			metrics.DuplicatesSkipped.WithLabelValues(string(rk)).Inc()
		case OutcomeSkippedIneligible:
			metrics.IneligibleSkipped.WithLabelValues(string(rk)).Inc()
		case OutcomeFailed:
			metrics.ProcessingFailures.WithLabelValues(string(rk)).Inc()
			c.logger.Printf("commission failed: event=%d role_kind=%s err=%v", event.ID, rk, outcome.Err)
		}
	}

	return outcomes, nil
}

// processRoleKind handles one (event, role kind) pair end to end
func (c *CommissionFlowImpl) processRoleKind(ctx context.Context, event *models.PayableEvent, roleKind models.RoleKind) *Outcome {
	beneficiaryID := roleHolderID(event, roleKind)
	if beneficiaryID == nil {
		return &Outcome{Status: OutcomeSkippedIneligible}
	}

	// Cheap pre-check; the unique index still guards against races.
	existing, err := c.entryRepo.ByEventAndRoleKind(ctx, event.ID, roleKind)
	if err != nil {
		return &Outcome{Status: OutcomeFailed, Err: NewBusinessError(CodePersistenceError, "Failed to check ledger for existing entry", err)}
	}
	if existing != nil {
		return &Outcome{Status: OutcomeSkippedDuplicate, Entry: existing}
	}

	revenue, err := monthlyRevenueFor(ctx, c.eventRepo, event, roleKind.Role(), *beneficiaryID)
	if err != nil {
		return &Outcome{Status: OutcomeFailed, Err: err}
	}

	eval, err := c.evaluator.Evaluate(event, roleKind, beneficiaryID, revenue)
	if err != nil {
		return &Outcome{Status: OutcomeFailed, Err: err}
	}
	if eval == nil {
		return &Outcome{Status: OutcomeSkippedIneligible}
	}

	entry := &models.CommissionEntry{
		EventID:       event.ID,
		RoleKind:      roleKind,
		BeneficiaryID: *beneficiaryID,
		Amount:        eval.Amount,
		Percentage:    eval.Percentage,
		RevenueUsed:   eval.RevenueUsed,
		ComputedAt:    utils.UTCNow(),
		Status:        models.EntryStatusPending,
		Notes: fmt.Sprintf("rules=%s rate=%s%% monthly_revenue=%s event_amount=%s",
			c.rates.Version(), eval.Percentage, eval.RevenueUsed, event.Amount),
	}

	created, err := c.entryRepo.SaveIdempotent(ctx, entry)
	if err != nil {
		return &Outcome{Status: OutcomeFailed, Err: NewBusinessError(CodePersistenceError, "Failed to save commission entry", err)}
	}
	if !created {
		// A concurrent writer won the race; fetch what it wrote.
		existing, err := c.entryRepo.ByEventAndRoleKind(ctx, event.ID, roleKind)
		if err != nil {
			return &Outcome{Status: OutcomeFailed, Err: NewBusinessError(CodePersistenceError, "Failed to load entry after conflict", err)}
		}
		return &Outcome{Status: OutcomeSkippedDuplicate, Entry: existing}
	}

	return &Outcome{Status: OutcomeCreated, Entry: entry}
}

// MarkEntryPaid transitions a pending entry to paid
func (c *CommissionFlowImpl) MarkEntryPaid(ctx context.Context, entryID uint, notes string) (*models.CommissionEntry, error) {
	entry, err := c.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsPaid() {
		return nil, NewBusinessError(CodeEntryNotUpdatable, fmt.Sprintf("Commission entry %d is already paid", entryID), ErrEntryAlreadyPaid)
	}
	if !entry.IsPending() {
		return nil, NewBusinessError(CodeEntryNotUpdatable, fmt.Sprintf("Commission entry %d is not pending", entryID), ErrEntryNotPending)
	}

	if err := c.entryRepo.UpdateStatus(ctx, entryID, models.EntryStatusPaid, utils.UTCNowPtr(), notes); err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to mark entry paid", err)
	}

	c.logger.Printf("commission entry paid: entry=%d amount=%s beneficiary=%d", entry.ID, entry.Amount, entry.BeneficiaryID)
	return c.getEntry(ctx, entryID)
}

// CancelEntry transitions a pending entry to cancelled. The computation is
// never re-triggered: the entry keeps blocking re-creation through the unique
// index.
func (c *CommissionFlowImpl) CancelEntry(ctx context.Context, entryID uint, notes string) (*models.CommissionEntry, error) {
	entry, err := c.getEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.CanBeCancelled() {
		return nil, NewBusinessError(CodeEntryNotUpdatable, fmt.Sprintf("Commission entry %d cannot be cancelled", entryID), ErrEntryNotCancellable)
	}

	if err := c.entryRepo.UpdateStatus(ctx, entryID, models.EntryStatusCancelled, nil, notes); err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to cancel entry", err)
	}

	c.logger.Printf("commission entry cancelled: entry=%d", entry.ID)
	return c.getEntry(ctx, entryID)
}

// ListEntriesForAgent lists ledger entries owed to an agent
func (c *CommissionFlowImpl) ListEntriesForAgent(ctx context.Context, agentID uint, limit, offset int) ([]*models.CommissionEntry, error) {
	agent, err := c.agentRepo.ByID(ctx, agentID)
	if err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to load agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError(CodeEntryNotFound, fmt.Sprintf("Agent %d not found", agentID), ErrAgentNotFound)
	}

	entries, err := c.entryRepo.ListByBeneficiary(ctx, agentID, limit, offset)
	if err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to list entries", err)
	}
	return entries, nil
}

// Statistics aggregates ledger totals per status
func (c *CommissionFlowImpl) Statistics(ctx context.Context) (*LedgerStatistics, error) {
	rows, err := c.entryRepo.AggregateByStatus(ctx)
	if err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to aggregate ledger", err)
	}

	stats := &LedgerStatistics{
		PendingTotal:   decimal.Zero,
		PaidTotal:      decimal.Zero,
		CancelledTotal: decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
	for _, row := range rows {
		switch row.Status {
		case models.EntryStatusPending:
			stats.PendingCount = row.Count
			stats.PendingTotal = row.Total
		case models.EntryStatusPaid:
			stats.PaidCount = row.Count
			stats.PaidTotal = row.Total
		case models.EntryStatusCancelled:
			stats.CancelledCount = row.Count
			stats.CancelledTotal = row.Total
		}
		stats.TotalCount += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.Total)
	}
	return stats, nil
}

func (c *CommissionFlowImpl) getEntry(ctx context.Context, entryID uint) (*models.CommissionEntry, error) {
	entry, err := c.entryRepo.ByID(ctx, entryID)
	if err != nil {
		return nil, NewBusinessError(CodePersistenceError, "Failed to load commission entry", err)
	}
	if entry == nil {
		return nil, NewBusinessError(CodeEntryNotFound, fmt.Sprintf("Commission entry %d not found", entryID), ErrEntryNotFound)
	}
	return entry, nil
}
