package repository

import (
	"context"
	"errors"
	"time"

	"github.com/credfix/commission-engine/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionEntryRepositoryImpl implements CommissionEntryRepository interface
type CommissionEntryRepositoryImpl struct {
	*BaseRepository[models.CommissionEntry, models.CommissionEntryFilter]
}

// NewCommissionEntryRepository creates a new commission entry repository
func NewCommissionEntryRepository(db *gorm.DB) CommissionEntryRepository {
	return &CommissionEntryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommissionEntry, models.CommissionEntryFilter](db),
	}
}

// ByUUID finds a commission entry by UUID
func (r *CommissionEntryRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.CommissionEntry, error) {
	db := r.getDB(ctx)
	var entry models.CommissionEntry
	err := db.Where("uuid = ?", uuid).Last(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ByEventAndRoleKind finds the ledger entry for an (event, role kind) pair
func (r *CommissionEntryRepositoryImpl) ByEventAndRoleKind(ctx context.Context, eventID uint, roleKind models.RoleKind) (*models.CommissionEntry, error) {
	db := r.getDB(ctx)
	var entry models.CommissionEntry
	err := db.Where("event_id = ? AND role_kind = ?", eventID, roleKind).Last(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByEvent lists all ledger entries produced by an event
func (r *CommissionEntryRepositoryImpl) ListByEvent(ctx context.Context, eventID uint) ([]*models.CommissionEntry, error) {
	db := r.getDB(ctx)
	var entries []*models.CommissionEntry
	err := db.Where("event_id = ?", eventID).Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByBeneficiary lists ledger entries owed to an agent
func (r *CommissionEntryRepositoryImpl) ListByBeneficiary(ctx context.Context, beneficiaryID uint, limit, offset int) ([]*models.CommissionEntry, error) {
	db := r.getDB(ctx)
	var entries []*models.CommissionEntry

	query := db.Where("beneficiary_id = ?", beneficiaryID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveIdempotent inserts an entry guarded by the (event_id, role_kind) unique
// index. A conflicting row suppresses the insert via ON CONFLICT DO NOTHING;
// the caller learns about it through the false return, not an error, so a
// concurrent duplicate is indistinguishable from a pre-existing one.
func (r *CommissionEntryRepositoryImpl) SaveIdempotent(ctx context.Context, entry *models.CommissionEntry) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "role_kind"}},
		DoNothing: true,
	}).Create(entry)
	if result.Error != nil {
		err = result.Error
		return false, err
	}

	return result.RowsAffected > 0, nil
}

// UpdateStatus transitions an entry's lifecycle status
func (r *CommissionEntryRepositoryImpl) UpdateStatus(ctx context.Context, entryID uint, status models.CommissionEntryStatus, paidAt *time.Time, notes string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	if notes != "" {
		updates["notes"] = gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || E'\\n' || ? END", notes, notes)
	}

	err = db.Model(&models.CommissionEntry{}).
		Where("id = ?", entryID).
		Updates(updates).Error
	if err != nil {
		return err
	}

	return nil
}

// AggregateByStatus returns count and total amount of ledger entries per status
func (r *CommissionEntryRepositoryImpl) AggregateByStatus(ctx context.Context) ([]*EntryStatusAggregate, error) {
	db := r.getDB(ctx)
	rows := make([]*EntryStatusAggregate, 0)

	err := db.Model(&models.CommissionEntry{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ByFilter retrieves commission entries based on filter criteria
func (r *CommissionEntryRepositoryImpl) ByFilter(ctx context.Context, filter models.CommissionEntryFilter, orderBy string, limit, offset int) ([]*models.CommissionEntry, error) {
	db := r.getDB(ctx)
	var entries []*models.CommissionEntry

	query := db.Model(&models.CommissionEntry{})
	query = r.applyFilter(query, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	} else {
		query = query.Order("created_at DESC")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of commission entries matching the filter
func (r *CommissionEntryRepositoryImpl) Count(ctx context.Context, filter models.CommissionEntryFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.CommissionEntry{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any commission entry matching the filter exists
func (r *CommissionEntryRepositoryImpl) Exists(ctx context.Context, filter models.CommissionEntryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *CommissionEntryRepositoryImpl) applyFilter(query *gorm.DB, filter models.CommissionEntryFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.RoleKind != nil {
		query = query.Where("role_kind = ?", *filter.RoleKind)
	}
	if filter.BeneficiaryID != nil {
		query = query.Where("beneficiary_id = ?", *filter.BeneficiaryID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}

	return query
}
