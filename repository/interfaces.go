// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/credfix/commission-engine/models"
	"github.com/shopspring/decimal"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AgentRepository defines operations for commission-earning agents
type AgentRepository interface {
	Repository[models.Agent, models.AgentFilter]
	ByEmail(ctx context.Context, email string) (*models.Agent, error)
	ByUUID(ctx context.Context, uuid string) (*models.Agent, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.Agent, error)
}

// PayableEventRepository defines operations for commission-triggering events
type PayableEventRepository interface {
	Repository[models.PayableEvent, models.PayableEventFilter]
	ByUUID(ctx context.Context, uuid string) (*models.PayableEvent, error)
	ListPaid(ctx context.Context, limit, offset int) ([]*models.PayableEvent, error)
	ListPaidBySale(ctx context.Context, saleID uint) ([]*models.PayableEvent, error)
	MarkPaid(ctx context.Context, eventID uint, paidAt time.Time) error
	// SumPaidAmountForAgent returns the total paid amount attributed to the
	// given agent in the given role over [from, to).
	SumPaidAmountForAgent(ctx context.Context, agentID uint, role models.CommissionRole, from, to time.Time) (decimal.Decimal, error)
}

// EntryStatusAggregate is a report row of ledger totals per status
type EntryStatusAggregate struct {
	Status models.CommissionEntryStatus `json:"status"`
	Count  int64                        `json:"count"`
	Total  decimal.Decimal              `json:"total"`
}

// CommissionEntryRepository defines operations for the commission ledger
type CommissionEntryRepository interface {
	Repository[models.CommissionEntry, models.CommissionEntryFilter]
	ByUUID(ctx context.Context, uuid string) (*models.CommissionEntry, error)
	ByEventAndRoleKind(ctx context.Context, eventID uint, roleKind models.RoleKind) (*models.CommissionEntry, error)
	ListByEvent(ctx context.Context, eventID uint) ([]*models.CommissionEntry, error)
	ListByBeneficiary(ctx context.Context, beneficiaryID uint, limit, offset int) ([]*models.CommissionEntry, error)
	// SaveIdempotent inserts the entry unless one already exists for its
	// (event, role kind) pair. Returns false without error when the insert
	// was suppressed by the unique index.
	SaveIdempotent(ctx context.Context, entry *models.CommissionEntry) (bool, error)
	UpdateStatus(ctx context.Context, entryID uint, status models.CommissionEntryStatus, paidAt *time.Time, notes string) error
	AggregateByStatus(ctx context.Context) ([]*EntryStatusAggregate, error)
}
