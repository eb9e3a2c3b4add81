package repository

import (
	"context"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"gorm.io/gorm/clause"
)

type AlertRepository struct {
	*pg.DB
}

func NewAlertRepository(db *pg.DB) *AlertRepository {
	return &AlertRepository{
		db,
	}
}

// CreateBatch inserts alerts, skipping any (event_id, reading_id) pair that is
// already stored, so redelivered events do not duplicate alerts. gpu_index is
// chosen by the agent and may repeat within one batch.
func (r *AlertRepository) CreateBatch(ctx context.Context, alerts []*model.IdleAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	entities := make([]*IdleAlertEntity, len(alerts))
	for i, a := range alerts {
		entities[i] = toIdleAlertEntity(a)
	}
	return r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "reading_id"}},
			DoNothing: true,
		}).
		Create(&entities).Error
}

func (r *AlertRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]*model.IdleAlert, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var entities []*IdleAlertEntity
	err := r.Read(ctx).
		Where("customer_id = ?", customerID).
		Order("id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.IdleAlert, len(entities))
	for i, e := range entities {
		out[i] = toIdleAlertModel(e)
	}
	return out, nil
}
