package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionRole represents the sales role earning a commission
type CommissionRole string

const (
	RoleReferrer   CommissionRole = "referrer"   // Captador: originates the lead
	RoleConsultant CommissionRole = "consultant" // Closes and manages the sale
)

// RoleKind identifies one (role, event kind) commission policy. Together with
// the source event it forms the idempotency key of the ledger.
type RoleKind string

const (
	RoleKindReferrerOnAcquisitionFee RoleKind = "referrer_on_acquisition_fee"
	RoleKindReferrerOnDownPayment    RoleKind = "referrer_on_down_payment"
	RoleKindReferrerOnInstallment    RoleKind = "referrer_on_installment"
	RoleKindConsultantOnDownPayment  RoleKind = "consultant_on_down_payment"
	RoleKindConsultantOnInstallment  RoleKind = "consultant_on_installment"
)

// Role returns the sales role side of the role kind.
func (rk RoleKind) Role() CommissionRole {
	switch rk {
	case RoleKindConsultantOnDownPayment, RoleKindConsultantOnInstallment:
		return RoleConsultant
	default:
		return RoleReferrer
	}
}

// RoleKindsForEvent returns the (role, kind) pairs a paid event of the given
// kind is expected to produce, in processing order.
func RoleKindsForEvent(kind PayableEventKind) []RoleKind {
	switch kind {
	case EventKindAcquisitionFee:
		return []RoleKind{RoleKindReferrerOnAcquisitionFee}
	case EventKindDownPayment:
		return []RoleKind{RoleKindReferrerOnDownPayment, RoleKindConsultantOnDownPayment}
	case EventKindInstallment:
		return []RoleKind{RoleKindReferrerOnInstallment, RoleKindConsultantOnInstallment}
	default:
		return nil
	}
}

// CommissionEntryStatus represents the lifecycle status of a ledger entry
type CommissionEntryStatus string

const (
	EntryStatusPending   CommissionEntryStatus = "pending"   // Computed, waiting for payout
	EntryStatusPaid      CommissionEntryStatus = "paid"      // Paid to the beneficiary
	EntryStatusCancelled CommissionEntryStatus = "cancelled" // Cancelled before payout
)

// CommissionEntry is the persisted record of a computed commission. At most one
// entry exists per (source event, role kind); the composite unique index is the
// storage-level guarantee behind that contract. Amount, Percentage and
// RevenueUsed are captured at computation time and never recomputed.
type CommissionEntry struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	// Idempotency key
	EventID  uint     `gorm:"not null;uniqueIndex:idx_commission_entries_event_role" json:"event_id"`
	RoleKind RoleKind `gorm:"type:varchar(40);not null;uniqueIndex:idx_commission_entries_event_role" json:"role_kind"`

	// Beneficiary
	BeneficiaryID uint `gorm:"not null;index" json:"beneficiary_id"`

	// Computation snapshot
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Percentage  decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percentage"`
	RevenueUsed decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"revenue_used"`
	ComputedAt  time.Time       `gorm:"not null" json:"computed_at"`

	// Lifecycle
	Status CommissionEntryStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaidAt *time.Time            `gorm:"index" json:"paid_at"`
	Notes  string                `gorm:"type:text" json:"notes"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Event       PayableEvent `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"event,omitempty"`
	Beneficiary Agent        `gorm:"foreignKey:BeneficiaryID;constraint:OnDelete:CASCADE" json:"beneficiary,omitempty"`
}

// BeforeCreate ensures UUID is set
func (ce *CommissionEntry) BeforeCreate(tx *gorm.DB) error {
	if ce.UUID == uuid.Nil {
		ce.UUID = uuid.New()
	}
	return nil
}

// IsPending returns true if the entry is waiting for payout
func (ce *CommissionEntry) IsPending() bool {
	return ce.Status == EntryStatusPending
}

// IsPaid returns true if the entry has been paid out
func (ce *CommissionEntry) IsPaid() bool {
	return ce.Status == EntryStatusPaid
}

// CanBeCancelled returns true if the entry may still be cancelled
func (ce *CommissionEntry) CanBeCancelled() bool {
	return ce.Status == EntryStatusPending
}

// TableName specifies the table name for GORM
func (CommissionEntry) TableName() string {
	return "commission_entries"
}

// CommissionEntryFilter represents filter criteria for ledger queries
type CommissionEntryFilter struct {
	ID            *uint                  `json:"id,omitempty"`
	UUID          *uuid.UUID             `json:"uuid,omitempty"`
	EventID       *uint                  `json:"event_id,omitempty"`
	RoleKind      *RoleKind              `json:"role_kind,omitempty"`
	BeneficiaryID *uint                  `json:"beneficiary_id,omitempty"`
	Status        *CommissionEntryStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time             `json:"created_after,omitempty"`
	CreatedBefore *time.Time             `json:"created_before,omitempty"`
}
