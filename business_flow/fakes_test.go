package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/credfix/commission-engine/models"
	"github.com/credfix/commission-engine/repository"
	"github.com/shopspring/decimal"
)

// In-memory repository fakes. They mirror the storage contracts the flows
// rely on, including the (event_id, role_kind) uniqueness of the ledger.

type fakeEventRepo struct {
	mu     sync.Mutex
	nextID uint
	events map[uint]*models.PayableEvent
	sumErr error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[uint]*models.PayableEvent)}
}

func (f *fakeEventRepo) add(event *models.PayableEvent) *models.PayableEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.ID == 0 {
		f.nextID++
		event.ID = f.nextID
	} else if event.ID > f.nextID {
		f.nextID = event.ID
	}
	f.events[event.ID] = event
	return event
}

func (f *fakeEventRepo) ByID(ctx context.Context, id uint) (*models.PayableEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	cp := *event
	return &cp, nil
}

func (f *fakeEventRepo) ByUUID(ctx context.Context, uuid string) (*models.PayableEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.UUID.String() == uuid {
			cp := *event
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEventRepo) ByFilter(ctx context.Context, filter models.PayableEventFilter, orderBy string, limit, offset int) ([]*models.PayableEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEventRepo) Save(ctx context.Context, event *models.PayableEvent) error {
	f.add(event)
	return nil
}

func (f *fakeEventRepo) SaveBatch(ctx context.Context, events []*models.PayableEvent) error {
	for _, event := range events {
		f.add(event)
	}
	return nil
}

func (f *fakeEventRepo) Count(ctx context.Context, filter models.PayableEventFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.events)), nil
}

func (f *fakeEventRepo) Exists(ctx context.Context, filter models.PayableEventFilter) (bool, error) {
	count, err := f.Count(ctx, filter)
	return count > 0, err
}

func (f *fakeEventRepo) ListPaid(ctx context.Context, limit, offset int) ([]*models.PayableEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paid []*models.PayableEvent
	for _, event := range f.events {
		if event.Status == models.EventStatusPaid {
			cp := *event
			paid = append(paid, &cp)
		}
	}
	sort.Slice(paid, func(i, j int) bool { return paid[i].ID < paid[j].ID })

	if offset >= len(paid) {
		return nil, nil
	}
	paid = paid[offset:]
	if limit > 0 && len(paid) > limit {
		paid = paid[:limit]
	}
	return paid, nil
}

func (f *fakeEventRepo) ListPaidBySale(ctx context.Context, saleID uint) ([]*models.PayableEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PayableEvent
	for _, event := range f.events {
		if event.SaleID != nil && *event.SaleID == saleID && event.Status == models.EventStatusPaid {
			cp := *event
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) MarkPaid(ctx context.Context, eventID uint, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return errors.New("event not found")
	}
	event.Status = models.EventStatusPaid
	event.PaidAt = &paidAt
	return nil
}

func (f *fakeEventRepo) SumPaidAmountForAgent(ctx context.Context, agentID uint, role models.CommissionRole, from, to time.Time) (decimal.Decimal, error) {
	if f.sumErr != nil {
		return decimal.Zero, f.sumErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, event := range f.events {
		if event.Status != models.EventStatusPaid || event.PaidAt == nil {
			continue
		}
		holder := event.ReferrerID
		if role == models.RoleConsultant {
			holder = event.ConsultantID
		}
		if holder == nil || *holder != agentID {
			continue
		}
		if event.PaidAt.Before(from) || !event.PaidAt.Before(to) {
			continue
		}
		total = total.Add(event.Amount)
	}
	return total, nil
}

type entryKey struct {
	eventID  uint
	roleKind models.RoleKind
}

type fakeEntryRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries map[entryKey]*models.CommissionEntry
	// failOn makes SaveIdempotent fail for one role kind, to exercise
	// per-role-kind failure isolation
	failOn models.RoleKind
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[entryKey]*models.CommissionEntry)}
}

func (f *fakeEntryRepo) ByID(ctx context.Context, id uint) (*models.CommissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEntryRepo) ByUUID(ctx context.Context, uuid string) (*models.CommissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.UUID.String() == uuid {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEntryRepo) ByFilter(ctx context.Context, filter models.CommissionEntryFilter, orderBy string, limit, offset int) ([]*models.CommissionEntry, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEntryRepo) Save(ctx context.Context, entry *models.CommissionEntry) error {
	created, err := f.SaveIdempotent(ctx, entry)
	if err != nil {
		return err
	}
	if !created {
		return errors.New("duplicate entry")
	}
	return nil
}

func (f *fakeEntryRepo) SaveBatch(ctx context.Context, entries []*models.CommissionEntry) error {
	for _, entry := range entries {
		if err := f.Save(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeEntryRepo) Count(ctx context.Context, filter models.CommissionEntryFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *fakeEntryRepo) Exists(ctx context.Context, filter models.CommissionEntryFilter) (bool, error) {
	count, err := f.Count(ctx, filter)
	return count > 0, err
}

func (f *fakeEntryRepo) ByEventAndRoleKind(ctx context.Context, eventID uint, roleKind models.RoleKind) (*models.CommissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[entryKey{eventID, roleKind}]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (f *fakeEntryRepo) ListByEvent(ctx context.Context, eventID uint) ([]*models.CommissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CommissionEntry
	for key, entry := range f.entries {
		if key.eventID == eventID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEntryRepo) ListByBeneficiary(ctx context.Context, beneficiaryID uint, limit, offset int) ([]*models.CommissionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CommissionEntry
	for _, entry := range f.entries {
		if entry.BeneficiaryID == beneficiaryID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEntryRepo) SaveIdempotent(ctx context.Context, entry *models.CommissionEntry) (bool, error) {
	if f.failOn != "" && entry.RoleKind == f.failOn {
		return false, errors.New("storage failure injected")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := entryKey{entry.EventID, entry.RoleKind}
	if _, exists := f.entries[key]; exists {
		return false, nil
	}
	f.nextID++
	entry.ID = f.nextID
	cp := *entry
	f.entries[key] = &cp
	return true, nil
}

func (f *fakeEntryRepo) UpdateStatus(ctx context.Context, entryID uint, status models.CommissionEntryStatus, paidAt *time.Time, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == entryID {
			entry.Status = status
			if paidAt != nil {
				entry.PaidAt = paidAt
			}
			if notes != "" {
				if entry.Notes == "" {
					entry.Notes = notes
				} else {
					entry.Notes += "\n" + notes
				}
			}
			return nil
		}
	}
	return errors.New("entry not found")
}

func (f *fakeEntryRepo) AggregateByStatus(ctx context.Context) ([]*repository.EntryStatusAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byStatus := make(map[models.CommissionEntryStatus]*repository.EntryStatusAggregate)
	for _, entry := range f.entries {
		agg, ok := byStatus[entry.Status]
		if !ok {
			agg = &repository.EntryStatusAggregate{Status: entry.Status, Total: decimal.Zero}
			byStatus[entry.Status] = agg
		}
		agg.Count++
		agg.Total = agg.Total.Add(entry.Amount)
	}

	out := make([]*repository.EntryStatusAggregate, 0, len(byStatus))
	for _, agg := range byStatus {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

type fakeAgentRepo struct {
	mu     sync.Mutex
	nextID uint
	agents map[uint]*models.Agent
}

func newFakeAgentRepo() *fakeAgentRepo {
	return &fakeAgentRepo{agents: make(map[uint]*models.Agent)}
}

func (f *fakeAgentRepo) add(agent *models.Agent) *models.Agent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if agent.ID == 0 {
		f.nextID++
		agent.ID = f.nextID
	}
	f.agents[agent.ID] = agent
	return agent
}

func (f *fakeAgentRepo) ByID(ctx context.Context, id uint) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agent, ok := f.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *agent
	return &cp, nil
}

func (f *fakeAgentRepo) ByUUID(ctx context.Context, uuid string) (*models.Agent, error) {
	return nil, nil
}

func (f *fakeAgentRepo) ByEmail(ctx context.Context, email string) (*models.Agent, error) {
	return nil, nil
}

func (f *fakeAgentRepo) ByFilter(ctx context.Context, filter models.AgentFilter, orderBy string, limit, offset int) ([]*models.Agent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAgentRepo) Save(ctx context.Context, agent *models.Agent) error {
	f.add(agent)
	return nil
}

func (f *fakeAgentRepo) SaveBatch(ctx context.Context, agents []*models.Agent) error {
	for _, agent := range agents {
		f.add(agent)
	}
	return nil
}

func (f *fakeAgentRepo) Count(ctx context.Context, filter models.AgentFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.agents)), nil
}

func (f *fakeAgentRepo) Exists(ctx context.Context, filter models.AgentFilter) (bool, error) {
	count, err := f.Count(ctx, filter)
	return count > 0, err
}

func (f *fakeAgentRepo) ListActive(ctx context.Context, limit, offset int) ([]*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Agent
	for _, agent := range f.agents {
		if agent.IsActive {
			cp := *agent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Interface conformance
var (
	_ repository.PayableEventRepository    = (*fakeEventRepo)(nil)
	_ repository.CommissionEntryRepository = (*fakeEntryRepo)(nil)
	_ repository.AgentRepository           = (*fakeAgentRepo)(nil)
)
