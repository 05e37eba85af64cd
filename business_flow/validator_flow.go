// Package businessflow contains the core business logic and use cases for ledger validation
package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/credfix/commission-engine/metrics"
	"github.com/credfix/commission-engine/models"
	"github.com/credfix/commission-engine/repository"
	"github.com/credfix/commission-engine/utils"
	"github.com/redis/go-redis/v9"
)

const (
	validatorLockKey = "commission:validator:lock"
	validatorLockTTL = 30 * time.Minute
	scanBatchSize    = 500
)

// Gap is one missing ledger entry: a paid event that should have produced a
// commission for a role kind but has no entry.
type Gap struct {
	EventID       uint                    `json:"event_id"`
	EventKind     models.PayableEventKind `json:"event_kind"`
	RoleKind      models.RoleKind         `json:"role_kind"`
	BeneficiaryID uint                    `json:"beneficiary_id"`
}

// GapReport is the result of a read-only ledger scan
type GapReport struct {
	GeneratedAt   time.Time                         `json:"generated_at"`
	EventsScanned int                               `json:"events_scanned"`
	TotalGaps     int                               `json:"total_gaps"`
	ByCategory    map[models.PayableEventKind][]Gap `json:"by_category"`
}

// BackfillStats tallies a backfill run
type BackfillStats struct {
	EventsProcessed int      `json:"events_processed"`
	EntriesCreated  int      `json:"entries_created"`
	Duplicates      int      `json:"duplicates"`
	Ineligible      int      `json:"ineligible"`
	Failures        int      `json:"failures"`
	Errors          []string `json:"errors,omitempty"`
}

// ValidatorFlow finds and repairs commission entries the live path missed.
// It is safe to run concurrently with live processing: creation goes through
// the same idempotent path, so the worst case is a skipped duplicate.
type ValidatorFlow interface {
	// ScanForGaps reports missing ledger entries without creating anything.
	ScanForGaps(ctx context.Context) (*GapReport, error)
	// Backfill re-runs commission processing for every event with a gap.
	Backfill(ctx context.Context) (*BackfillStats, error)
}

// ValidatorFlowImpl implements ValidatorFlow
type ValidatorFlowImpl struct {
	eventRepo      repository.PayableEventRepository
	entryRepo      repository.CommissionEntryRepository
	commissionFlow CommissionFlow
	evaluator      *CommissionEvaluator
	rc             *redis.Client
	mu             sync.Mutex
	logger         *log.Logger
}

// NewValidatorFlow constructs a ValidatorFlow. rc may be nil; the run lock
// then degrades to an in-process mutex.
func NewValidatorFlow(
	eventRepo repository.PayableEventRepository,
	entryRepo repository.CommissionEntryRepository,
	commissionFlow CommissionFlow,
	rates RateTable,
	rc *redis.Client,
	logger *log.Logger,
) ValidatorFlow {
	return &ValidatorFlowImpl{
		eventRepo:      eventRepo,
		entryRepo:      entryRepo,
		commissionFlow: commissionFlow,
		evaluator:      NewCommissionEvaluator(rates),
		rc:             rc,
		logger:         logger,
	}
}

// acquireRunLock serializes batch runs across processes when Redis is
// configured, within the process otherwise. Returns the release func.
func (v *ValidatorFlowImpl) acquireRunLock(ctx context.Context) (func(), error) {
	if v.rc != nil {
		ok, err := v.rc.SetNX(ctx, validatorLockKey, utils.UTCNow().Format(time.RFC3339Nano), validatorLockTTL).Result()
		if err != nil {
			return nil, NewBusinessError(CodePersistenceError, "Failed to acquire validation lock", err)
		}
		if !ok {
			return nil, NewBusinessError(CodeValidationLocked, "Another validation run holds the lock", ErrValidationAlreadyRunning)
		}
		return func() { v.rc.Del(context.WithoutCancel(ctx), validatorLockKey) }, nil
	}

	if !v.mu.TryLock() {
		return nil, NewBusinessError(CodeValidationLocked, "Another validation run is in progress", ErrValidationAlreadyRunning)
	}
	return v.mu.Unlock, nil
}

// ScanForGaps walks all paid events and diffs their expected role kinds
// against the ledger. Eligibility is checked with the same evaluator the live
// path uses, so events that legitimately produce no commission are not
// reported as gaps.
func (v *ValidatorFlowImpl) ScanForGaps(ctx context.Context) (*GapReport, error) {
	release, err := v.acquireRunLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	report, err := v.scan(ctx)
	if err != nil {
		return nil, err
	}

	metrics.ValidationGaps.Set(float64(report.TotalGaps))
	v.logger.Printf("validation scan: events=%d gaps=%d", report.EventsScanned, report.TotalGaps)
	return report, nil
}

func (v *ValidatorFlowImpl) scan(ctx context.Context) (*GapReport, error) {
	report := &GapReport{
		GeneratedAt: utils.UTCNow(),
		ByCategory:  make(map[models.PayableEventKind][]Gap),
	}

	for offset := 0; ; offset += scanBatchSize {
		events, err := v.eventRepo.ListPaid(ctx, scanBatchSize, offset)
		if err != nil {
			return nil, NewBusinessError(CodePersistenceError, "Failed to list paid events", err)
		}
		if len(events) == 0 {
			break
		}

		for _, event := range events {
			report.EventsScanned++
			gaps, err := v.gapsForEvent(ctx, event)
			if err != nil {
				return nil, err
			}
			for _, gap := range gaps {
				report.ByCategory[event.Kind] = append(report.ByCategory[event.Kind], gap)
				report.TotalGaps++
			}
		}

		if len(events) < scanBatchSize {
			break
		}
	}

	return report, nil
}

// gapsForEvent returns the role kinds of the event that should have a ledger
// entry but don't.
func (v *ValidatorFlowImpl) gapsForEvent(ctx context.Context, event *models.PayableEvent) ([]Gap, error) {
	var gaps []Gap
	for _, rk := range models.RoleKindsForEvent(event.Kind) {
		beneficiaryID := roleHolderID(event, rk)
		if beneficiaryID == nil {
			continue
		}

		existing, err := v.entryRepo.ByEventAndRoleKind(ctx, event.ID, rk)
		if err != nil {
			return nil, NewBusinessError(CodePersistenceError, "Failed to check ledger entry", err)
		}
		if existing != nil {
			continue
		}

		// Dry-run the evaluation so ineligible pairs don't count as gaps.
		revenue, err := monthlyRevenueFor(ctx, v.eventRepo, event, rk.Role(), *beneficiaryID)
		if err != nil {
			return nil, err
		}
		eval, err := v.evaluator.Evaluate(event, rk, beneficiaryID, revenue)
		if err != nil {
			return nil, err
		}
		if eval == nil {
			continue
		}

		gaps = append(gaps, Gap{
			EventID:       event.ID,
			EventKind:     event.Kind,
			RoleKind:      rk,
			BeneficiaryID: *beneficiaryID,
		})
	}
	return gaps, nil
}

// Backfill scans for gaps and re-runs commission processing for each affected
// event. Per-event failures are tallied and never abort the batch.
func (v *ValidatorFlowImpl) Backfill(ctx context.Context) (*BackfillStats, error) {
	release, err := v.acquireRunLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	metrics.ValidationRuns.Inc()

	report, err := v.scan(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ValidationGaps.Set(float64(report.TotalGaps))

	// One ProcessEvent per affected event covers all its gap role kinds.
	eventIDs := make([]uint, 0)
	seen := make(map[uint]bool)
	for _, gaps := range report.ByCategory {
		for _, gap := range gaps {
			if !seen[gap.EventID] {
				seen[gap.EventID] = true
				eventIDs = append(eventIDs, gap.EventID)
			}
		}
	}

	stats := &BackfillStats{}
	for _, eventID := range eventIDs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.EventsProcessed++
		outcomes, err := v.commissionFlow.ProcessEvent(ctx, eventID)
		if err != nil {
			stats.Failures++
			stats.Errors = append(stats.Errors, fmt.Sprintf("event %d: %v", eventID, err))
			v.logger.Printf("backfill failed: event=%d err=%v", eventID, err)
			continue
		}

		for rk, outcome := range outcomes {
			switch outcome.Status {
			case OutcomeCreated:
				stats.EntriesCreated++
			case OutcomeSkippedDuplicate:
				stats.Duplicates++
			case OutcomeSkippedIneligible:
				stats.Ineligible++
			case OutcomeFailed:
				stats.Failures++
				stats.Errors = append(stats.Errors, fmt.Sprintf("event %d role_kind %s: %v", eventID, rk, outcome.Err))
			}
		}
	}

	v.logger.Printf("backfill done: events=%d created=%d duplicates=%d ineligible=%d failures=%d",
		stats.EventsProcessed, stats.EntriesCreated, stats.Duplicates, stats.Ineligible, stats.Failures)
	return stats, nil
}
