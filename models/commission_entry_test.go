package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleKindsForEvent(t *testing.T) {
	assert.Equal(t,
		[]RoleKind{RoleKindReferrerOnAcquisitionFee},
		RoleKindsForEvent(EventKindAcquisitionFee))

	assert.Equal(t,
		[]RoleKind{RoleKindReferrerOnDownPayment, RoleKindConsultantOnDownPayment},
		RoleKindsForEvent(EventKindDownPayment))

	assert.Equal(t,
		[]RoleKind{RoleKindReferrerOnInstallment, RoleKindConsultantOnInstallment},
		RoleKindsForEvent(EventKindInstallment))

	assert.Nil(t, RoleKindsForEvent(PayableEventKind("refund")))
}

func TestRoleKind_Role(t *testing.T) {
	assert.Equal(t, RoleReferrer, RoleKindReferrerOnAcquisitionFee.Role())
	assert.Equal(t, RoleReferrer, RoleKindReferrerOnDownPayment.Role())
	assert.Equal(t, RoleReferrer, RoleKindReferrerOnInstallment.Role())
	assert.Equal(t, RoleConsultant, RoleKindConsultantOnDownPayment.Role())
	assert.Equal(t, RoleConsultant, RoleKindConsultantOnInstallment.Role())
}

func TestCommissionEntry_StatusHelpers(t *testing.T) {
	entry := &CommissionEntry{Status: EntryStatusPending}
	assert.True(t, entry.IsPending())
	assert.False(t, entry.IsPaid())
	assert.True(t, entry.CanBeCancelled())

	entry.Status = EntryStatusPaid
	assert.False(t, entry.IsPending())
	assert.True(t, entry.IsPaid())
	assert.False(t, entry.CanBeCancelled())

	entry.Status = EntryStatusCancelled
	assert.False(t, entry.CanBeCancelled())
}
