// Package testing provides test utilities and database setup for testing the commission engine
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/credfix/commission-engine/models"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAgent creates an active agent with a unique email
func (tf *TestFixtures) CreateTestAgent(fullName string) (*models.Agent, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	agent := &models.Agent{
		FullName: fullName,
		Email:    fmt.Sprintf("agent.%s@example.com", randomDigits),
		IsActive: true,
	}

	if err := tf.DB.DB.Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create test agent: %w", err)
	}

	return agent, nil
}

// CreatePaidEvent creates a paid event of the given kind and amount for the
// given role-holders (either may be nil)
func (tf *TestFixtures) CreatePaidEvent(kind models.PayableEventKind, amount string, paidAt time.Time, referrerID, consultantID *uint) (*models.PayableEvent, error) {
	event := &models.PayableEvent{
		Kind:           kind,
		Status:         models.EventStatusPaid,
		Amount:         decimal.RequireFromString(amount),
		PaidAt:         &paidAt,
		DebtorName:     "Test Debtor",
		DebtorDocument: fmt.Sprintf("%011d", rand.Intn(900000000)+100000000),
		ReferrerID:     referrerID,
		ConsultantID:   consultantID,
	}

	if kind != models.EventKindAcquisitionFee {
		saleID := uint(rand.Intn(100000) + 1)
		event.SaleID = &saleID
		if kind == models.EventKindInstallment {
			n := rand.Intn(12) + 1
			event.InstallmentNumber = &n
		}
	}

	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test event: %w", err)
	}

	return event, nil
}

// CreatePendingEvent creates an event that has not been paid yet
func (tf *TestFixtures) CreatePendingEvent(kind models.PayableEventKind, amount string, referrerID, consultantID *uint) (*models.PayableEvent, error) {
	event := &models.PayableEvent{
		Kind:         kind,
		Status:       models.EventStatusPending,
		Amount:       decimal.RequireFromString(amount),
		DebtorName:   "Test Debtor",
		ReferrerID:   referrerID,
		ConsultantID: consultantID,
	}

	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test event: %w", err)
	}

	return event, nil
}

// CreateCommissionEntry creates a pending ledger entry for an (event, role kind) pair
func (tf *TestFixtures) CreateCommissionEntry(eventID, beneficiaryID uint, roleKind models.RoleKind, amount string) (*models.CommissionEntry, error) {
	entry := &models.CommissionEntry{
		EventID:       eventID,
		RoleKind:      roleKind,
		BeneficiaryID: beneficiaryID,
		Amount:        decimal.RequireFromString(amount),
		Percentage:    decimal.RequireFromString("3"),
		RevenueUsed:   decimal.RequireFromString("25000"),
		ComputedAt:    time.Now().UTC(),
		Status:        models.EntryStatusPending,
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test commission entry: %w", err)
	}

	return entry, nil
}
