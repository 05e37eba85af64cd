package repository

import (
	"context"
	"errors"

	"github.com/credfix/commission-engine/models"
	"gorm.io/gorm"
)

// AgentRepositoryImpl implements AgentRepository interface
type AgentRepositoryImpl struct {
	*BaseRepository[models.Agent, models.AgentFilter]
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &AgentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Agent, models.AgentFilter](db),
	}
}

// ByEmail finds an agent by email
func (r *AgentRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Agent, error) {
	db := r.getDB(ctx)
	var agent models.Agent
	err := db.Where("email = ?", email).Last(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// ByUUID finds an agent by UUID
func (r *AgentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Agent, error) {
	db := r.getDB(ctx)
	var agent models.Agent
	err := db.Where("uuid = ?", uuid).Last(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// ListActive lists active agents
func (r *AgentRepositoryImpl) ListActive(ctx context.Context, limit, offset int) ([]*models.Agent, error) {
	db := r.getDB(ctx)
	var agents []*models.Agent

	query := db.Where("is_active = ?", true).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// ByFilter retrieves agents based on filter criteria
func (r *AgentRepositoryImpl) ByFilter(ctx context.Context, filter models.AgentFilter, orderBy string, limit, offset int) ([]*models.Agent, error) {
	db := r.getDB(ctx)
	var agents []*models.Agent

	query := db.Model(&models.Agent{})
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

	err := query.Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// Count returns the number of agents matching the filter
func (r *AgentRepositoryImpl) Count(ctx context.Context, filter models.AgentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64

	query := db.Model(&models.Agent{})
	query = r.applyFilter(query, filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any agent matching the filter exists
func (r *AgentRepositoryImpl) Exists(ctx context.Context, filter models.AgentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *AgentRepositoryImpl) applyFilter(query *gorm.DB, filter models.AgentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	return query
}
