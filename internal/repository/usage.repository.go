package repository

import (
	"context"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"gorm.io/gorm"
)

const insertBatchSize = 100

type UsageRepository struct {
	*pg.DB
}

func NewUsageRepository(db *pg.DB) *UsageRepository {
	return &UsageRepository{
		db,
	}
}

// RecordBatch appends readings and adds batchSavings to the owner's running
// total in one transaction. On any error nothing is persisted. On success the
// readings get their ids and creation times.
func (r *UsageRepository) RecordBatch(ctx context.Context, customerID int64, readings []*model.GPUReading, batchSavings float64) error {
	entities := make([]*GPUReadingEntity, len(readings))
	for i, m := range readings {
		entities[i] = toGPUReadingEntity(m)
		entities[i].CustomerID = customerID
	}

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		if len(entities) > 0 {
			if err := r.Write(ctx).CreateInBatches(entities, insertBatchSize).Error; err != nil {
				return err
			}
		}

		result := r.Write(ctx).
			Model(&CustomerEntity{}).
			Where("id = ?", customerID).
			Updates(map[string]any{
				"total_savings": gorm.Expr("total_savings + ?", batchSavings),
				"gpu_count":     len(readings),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCustomerNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, e := range entities {
		readings[i].ID = e.ID
		readings[i].CustomerID = customerID
		readings[i].CreatedAt = e.CreatedAt
	}
	return nil
}

func (r *UsageRepository) List(ctx context.Context, f model.UsageFilter) ([]*model.GPUReading, int64, error) {
	q := r.Read(ctx).Model(&GPUReadingEntity{}).Where("customer_id = ?", f.CustomerID)

	if f.Classification != nil {
		q = q.Where("classification = ?", string(*f.Classification))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at ASC, id ASC"
	if f.Desc {
		order = "created_at DESC, id DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*GPUReadingEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toGPUReadingModels(entities), total, nil
}

func (r *UsageRepository) CountByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var n int64
	err := r.Read(ctx).Model(&GPUReadingEntity{}).Where("customer_id = ?", customerID).Count(&n).Error
	return n, err
}
