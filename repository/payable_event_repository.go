package repository

import (
	"context"
	"errors"
	"time"

	"github.com/credfix/commission-engine/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayableEventRepositoryImpl implements PayableEventRepository interface
type PayableEventRepositoryImpl struct {
	*BaseRepository[models.PayableEvent, models.PayableEventFilter]
}

// NewPayableEventRepository creates a new payable event repository
func NewPayableEventRepository(db *gorm.DB) PayableEventRepository {
	return &PayableEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PayableEvent, models.PayableEventFilter](db),
	}
}

// ByUUID finds a payable event by UUID
func (r *PayableEventRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.PayableEvent, error) {
	db := r.getDB(ctx)
	var event models.PayableEvent
	err := db.Where("uuid = ?", uuid).Last(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// ListPaid lists paid events ordered by paid time
func (r *PayableEventRepositoryImpl) ListPaid(ctx context.Context, limit, offset int) ([]*models.PayableEvent, error) {
	db := r.getDB(ctx)
	var events []*models.PayableEvent

	query := db.Where("status = ?", models.EventStatusPaid).Order("paid_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListPaidBySale lists paid events belonging to a sale
func (r *PayableEventRepositoryImpl) ListPaidBySale(ctx context.Context, saleID uint) ([]*models.PayableEvent, error) {
	db := r.getDB(ctx)
	var events []*models.PayableEvent
	err := db.Where("sale_id = ? AND status = ?", saleID, models.EventStatusPaid).
		Order("paid_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MarkPaid transitions an event to paid with the given timestamp
func (r *PayableEventRepositoryImpl) MarkPaid(ctx context.Context, eventID uint, paidAt time.Time) error {
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

	err = db.Model(&models.PayableEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]any{
			"status":     models.EventStatusPaid,
			"paid_at":    paidAt,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}

	return nil
}

// SumPaidAmountForAgent sums paid event amounts attributed to an agent in a
// role over [from, to). The role decides which foreign key attributes the
// event to the agent.
func (r *PayableEventRepositoryImpl) SumPaidAmountForAgent(ctx context.Context, agentID uint, role models.CommissionRole, from, to time.Time) (decimal.Decimal, error) {
	db := r.getDB(ctx)

	column := "referrer_id"
	if role == models.RoleConsultant {
		column = "consultant_id"
	}

	var row struct {
		Total decimal.Decimal
	}
	err := db.Model(&models.PayableEvent{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where(column+" = ?", agentID).
		Where("status = ?", models.EventStatusPaid).
		Where("paid_at >= ? AND paid_at < ?", from, to).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

// ByFilter retrieves payable events based on filter criteria
func (r *PayableEventRepositoryImpl) ByFilter(ctx context.Context, filter models.PayableEventFilter, orderBy string, limit, offset int) ([]*models.PayableEvent, error) {
	db := r.getDB(ctx)
	var events []*models.PayableEvent

	query := db.Model(&models.PayableEvent{})
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

	err := query.Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of payable events matching the filter
func (r *PayableEventRepositoryImpl) Count(ctx context.Context, filter models.PayableEventFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.PayableEvent{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any payable event matching the filter exists
func (r *PayableEventRepositoryImpl) Exists(ctx context.Context, filter models.PayableEventFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *PayableEventRepositoryImpl) applyFilter(query *gorm.DB, filter models.PayableEventFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SaleID != nil {
		query = query.Where("sale_id = ?", *filter.SaleID)
	}
	if filter.ReferrerID != nil {
		query = query.Where("referrer_id = ?", *filter.ReferrerID)
	}
	if filter.ConsultantID != nil {
		query = query.Where("consultant_id = ?", *filter.ConsultantID)
	}
	if filter.PaidAfter != nil {
		query = query.Where("paid_at >= ?", *filter.PaidAfter)
	}
	if filter.PaidBefore != nil {
		query = query.Where("paid_at < ?", *filter.PaidBefore)
	}

	return query
}
