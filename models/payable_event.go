package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayableEventKind represents the kind of transaction that can trigger commission
type PayableEventKind string

const (
	EventKindAcquisitionFee PayableEventKind = "acquisition_fee" // Lead-acquisition fee payment
	EventKindDownPayment    PayableEventKind = "down_payment"    // Initial payment of a sale
	EventKindInstallment    PayableEventKind = "installment"     // Later installment of a sale
)

// PayableEventStatus represents the payment state of a payable event
type PayableEventStatus string

const (
	EventStatusPending   PayableEventStatus = "pending"
	EventStatusPaid      PayableEventStatus = "paid"
	EventStatusCancelled PayableEventStatus = "cancelled"
)

// PayableEvent represents a transaction that can trigger commission once paid:
// a lead-acquisition fee, a sale down-payment, or a sale installment.
type PayableEvent struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	// Event details
	Kind   PayableEventKind   `gorm:"type:varchar(20);not null;index" json:"kind"`
	Status PayableEventStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Amount decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaidAt *time.Time         `gorm:"index" json:"paid_at"`

	// Sale linkage (nil for acquisition-fee events)
	SaleID            *uint `gorm:"index" json:"sale_id"`
	InstallmentNumber *int  `json:"installment_number"`

	// Payer identity
	DebtorName     string `gorm:"type:varchar(255);not null" json:"debtor_name"`
	DebtorDocument string `gorm:"type:varchar(20)" json:"debtor_document"`

	// Role-holders. The referrer is optional; sale-derived events carry a consultant.
	ReferrerID   *uint `gorm:"index" json:"referrer_id"`
	ConsultantID *uint `gorm:"index" json:"consultant_id"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Referrer   *Agent `gorm:"foreignKey:ReferrerID;constraint:OnDelete:SET NULL" json:"referrer,omitempty"`
	Consultant *Agent `gorm:"foreignKey:ConsultantID;constraint:OnDelete:SET NULL" json:"consultant,omitempty"`
}

// BeforeCreate ensures UUID is set
func (e *PayableEvent) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	return nil
}

// IsPaid returns true if the event has been paid
func (e *PayableEvent) IsPaid() bool {
	return e.Status == EventStatusPaid
}

// PaidMonth returns the reference time for the calendar-month revenue window:
// the moment the event was paid, or now if PaidAt was never recorded.
func (e *PayableEvent) PaidMonth(now time.Time) time.Time {
	if e.PaidAt != nil {
		return *e.PaidAt
	}
	return now
}

// TableName specifies the table name for GORM
func (PayableEvent) TableName() string {
	return "payable_events"
}

// PayableEventFilter represents filter criteria for payable event queries
type PayableEventFilter struct {
	ID           *uint               `json:"id,omitempty"`
	UUID         *uuid.UUID          `json:"uuid,omitempty"`
	Kind         *PayableEventKind   `json:"kind,omitempty"`
	Status       *PayableEventStatus `json:"status,omitempty"`
	SaleID       *uint               `json:"sale_id,omitempty"`
	ReferrerID   *uint               `json:"referrer_id,omitempty"`
	ConsultantID *uint               `json:"consultant_id,omitempty"`
	PaidAfter    *time.Time          `json:"paid_after,omitempty"`
	PaidBefore   *time.Time          `json:"paid_before,omitempty"`
}
