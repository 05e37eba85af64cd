package businessflow

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/credfix/commission-engine/models"
	"github.com/credfix/commission-engine/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowTestEnv struct {
	eventRepo *fakeEventRepo
	entryRepo *fakeEntryRepo
	agentRepo *fakeAgentRepo
	flow      CommissionFlow
}

func newFlowTestEnv(t *testing.T) *flowTestEnv {
	t.Helper()
	env := &flowTestEnv{
		eventRepo: newFakeEventRepo(),
		entryRepo: newFakeEntryRepo(),
		agentRepo: newFakeAgentRepo(),
	}
	env.flow = NewCommissionFlow(
		env.eventRepo, env.entryRepo, env.agentRepo,
		newTestRateTable(t), nil, log.New(io.Discard, "", 0),
	)
	return env
}

func (env *flowTestEnv) addAgent(name string) *models.Agent {
	return env.agentRepo.add(&models.Agent{FullName: name, Email: name + "@example.com", IsActive: true})
}

func (env *flowTestEnv) addPaidEvent(kind models.PayableEventKind, amount string, paidAt time.Time, referrerID, consultantID *uint) *models.PayableEvent {
	return env.eventRepo.add(&models.PayableEvent{
		Kind:         kind,
		Status:       models.EventStatusPaid,
		Amount:       decimal.RequireFromString(amount),
		PaidAt:       &paidAt,
		DebtorName:   "Debtor",
		ReferrerID:   referrerID,
		ConsultantID: consultantID,
	})
}

var october = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

func TestProcessEvent_CreatesEntriesForBothRoles(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")

	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	// Referrer: 25000 monthly revenue -> 2% band -> 500.00
	ref := outcomes[models.RoleKindReferrerOnDownPayment]
	require.NotNil(t, ref)
	assert.Equal(t, OutcomeCreated, ref.Status)
	require.NotNil(t, ref.Entry)
	assert.Equal(t, "500.00", ref.Entry.Amount.StringFixed(2))
	assert.Equal(t, referrer.ID, ref.Entry.BeneficiaryID)
	assert.Equal(t, "25000", ref.Entry.RevenueUsed.String())
	assert.Equal(t, models.EntryStatusPending, ref.Entry.Status)

	// Consultant: 25000 clears the 20000 floor -> flat 3% -> 750.00
	con := outcomes[models.RoleKindConsultantOnDownPayment]
	require.NotNil(t, con)
	assert.Equal(t, OutcomeCreated, con.Status)
	require.NotNil(t, con.Entry)
	assert.Equal(t, "750.00", con.Entry.Amount.StringFixed(2))
	assert.Equal(t, consultant.ID, con.Entry.BeneficiaryID)
}

func TestProcessEvent_SecondRunSkipsDuplicates(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	_, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	for rk, outcome := range outcomes {
		assert.Equal(t, OutcomeSkippedDuplicate, outcome.Status, "role kind %s", rk)
		require.NotNil(t, outcome.Entry, "role kind %s", rk)
	}

	// The ledger still holds exactly one entry per role kind
	entries, err := env.entryRepo.ListByEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestProcessEvent_FailureIsolatedPerRoleKind(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	env.entryRepo.failOn = models.RoleKindConsultantOnDownPayment

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcomes[models.RoleKindReferrerOnDownPayment].Status)

	failed := outcomes[models.RoleKindConsultantOnDownPayment]
	assert.Equal(t, OutcomeFailed, failed.Status)
	require.Error(t, failed.Err)
	assert.True(t, IsPersistenceError(failed.Err))
}

func TestProcessEvent_AcquisitionFeeOnlyPaysReferrer(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")

	// Boost the referrer's monthly revenue into the 10% band
	env.addPaidEvent(models.EventKindDownPayment, "85000", october.Add(-24*time.Hour), &referrer.ID, nil)
	event := env.addPaidEvent(models.EventKindAcquisitionFee, "500", october, &referrer.ID, nil)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	ref := outcomes[models.RoleKindReferrerOnAcquisitionFee]
	require.NotNil(t, ref)
	assert.Equal(t, OutcomeCreated, ref.Status)
	// 85500 monthly revenue -> 10% of 500 = 50.00
	assert.Equal(t, "50.00", ref.Entry.Amount.StringFixed(2))
	assert.Equal(t, "85500", ref.Entry.RevenueUsed.String())
}

func TestProcessEvent_MissingRoleHolderIsIneligible(t *testing.T) {
	env := newFlowTestEnv(t)
	consultant := env.addAgent("consultant")

	// High enough revenue that the consultant earns; no referrer on the event
	env.addPaidEvent(models.EventKindInstallment, "30000", october.Add(-time.Hour), nil, &consultant.ID)
	event := env.addPaidEvent(models.EventKindInstallment, "1000", october, nil, &consultant.ID)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkippedIneligible, outcomes[models.RoleKindReferrerOnInstallment].Status)
	assert.Equal(t, OutcomeCreated, outcomes[models.RoleKindConsultantOnInstallment].Status)
}

func TestProcessEvent_RevenueWindowIsCalendarMonth(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")

	// 50000 paid in September must not count toward October's aggregate
	september := time.Date(2025, 9, 30, 23, 59, 0, 0, time.UTC)
	env.addPaidEvent(models.EventKindDownPayment, "50000", september, &referrer.ID, nil)

	event := env.addPaidEvent(models.EventKindDownPayment, "10000", october, &referrer.ID, nil)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	// October revenue is just 10000, which sits in the 0% band
	assert.Equal(t, OutcomeSkippedIneligible, outcomes[models.RoleKindReferrerOnDownPayment].Status)
}

func TestProcessEvent_RejectsUnpaidEvent(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")

	event := env.eventRepo.add(&models.PayableEvent{
		Kind:       models.EventKindDownPayment,
		Status:     models.EventStatusPending,
		Amount:     decimal.RequireFromString("25000"),
		DebtorName: "Debtor",
		ReferrerID: &referrer.ID,
	})

	_, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventNotPaid)
}

func TestProcessEvent_UnknownEvent(t *testing.T) {
	env := newFlowTestEnv(t)

	_, err := env.flow.ProcessEvent(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestMarkEntryPaid_Lifecycle(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)
	entryID := outcomes[models.RoleKindReferrerOnDownPayment].Entry.ID

	paid, err := env.flow.MarkEntryPaid(context.Background(), entryID, "payout batch 42")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Contains(t, paid.Notes, "payout batch 42")

	// Paying twice is rejected
	_, err = env.flow.MarkEntryPaid(context.Background(), entryID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryAlreadyPaid)

	// A paid entry cannot be cancelled
	_, err = env.flow.CancelEntry(context.Background(), entryID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotCancellable)
}

func TestCancelEntry_PendingOnly(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)
	entryID := outcomes[models.RoleKindConsultantOnDownPayment].Entry.ID

	cancelled, err := env.flow.CancelEntry(context.Background(), entryID, "clawback")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "clawback")

	// The cancelled entry still blocks re-creation through the unique key
	again, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedDuplicate, again[models.RoleKindConsultantOnDownPayment].Status)
}

func TestStatistics_AggregatesPerStatus(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	_, err = env.flow.MarkEntryPaid(context.Background(), outcomes[models.RoleKindReferrerOnDownPayment].Entry.ID, "")
	require.NoError(t, err)

	stats, err := env.flow.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.PaidCount)
	assert.Equal(t, "500.00", stats.PaidTotal.StringFixed(2))
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, "750.00", stats.PendingTotal.StringFixed(2))
	assert.Equal(t, int64(2), stats.TotalCount)
	assert.Equal(t, "1250.00", stats.TotalAmount.StringFixed(2))
}

func TestListEntriesForAgent(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	_, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	entries, err := env.flow.ListEntriesForAgent(context.Background(), referrer.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.RoleKindReferrerOnDownPayment, entries[0].RoleKind)

	_, err = env.flow.ListEntriesForAgent(context.Background(), 999, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestOutcome_ComputedAtIsUTC(t *testing.T) {
	env := newFlowTestEnv(t)
	referrer := env.addAgent("referrer")
	consultant := env.addAgent("consultant")
	event := env.addPaidEvent(models.EventKindDownPayment, "25000", october, &referrer.ID, &consultant.ID)

	before := utils.UTCNow()
	outcomes, err := env.flow.ProcessEvent(context.Background(), event.ID)
	require.NoError(t, err)

	entry := outcomes[models.RoleKindReferrerOnDownPayment].Entry
	assert.Equal(t, time.UTC, entry.ComputedAt.Location())
	assert.False(t, entry.ComputedAt.Before(before))
}
