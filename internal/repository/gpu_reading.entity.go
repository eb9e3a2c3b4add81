package repository

import (
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
)

type GPUReadingEntity struct {
	ID               int64     `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID       int64     `db:"customer_id"       gorm:"column:customer_id;not null;index:idx_gpu_usage_logs_customer_created,priority:1"`
	GPUIndex         int       `db:"gpu_index"         gorm:"column:gpu_index;not null"`
	GPUName          string    `db:"gpu_name"          gorm:"column:gpu_name;not null"`
	GPUUtil          float64   `db:"gpu_util"          gorm:"column:gpu_util;not null"`
	MemUsed          float64   `db:"mem_used"          gorm:"column:mem_used;not null"`
	MemTotal         float64   `db:"mem_total"         gorm:"column:mem_total;not null"`
	Temperature      *float64  `db:"temperature"       gorm:"column:temperature"`
	CostPerHour      float64   `db:"cost_per_hour"     gorm:"column:cost_per_hour;not null"`
	PotentialSavings float64   `db:"potential_savings" gorm:"column:potential_savings;not null;default:0"`
	Classification   string    `db:"classification"    gorm:"column:classification;not null"`
	CreatedAt        time.Time `db:"created_at"        gorm:"column:created_at;autoCreateTime;index:idx_gpu_usage_logs_customer_created,priority:2"`
}

func (GPUReadingEntity) TableName() string {
	return "gpu_usage_logs"
}

func toGPUReadingEntity(m *model.GPUReading) *GPUReadingEntity {
	if m == nil {
		return nil
	}
	return &GPUReadingEntity{
		ID:               m.ID,
		CustomerID:       m.CustomerID,
		GPUIndex:         m.GPUIndex,
		GPUName:          m.GPUName,
		GPUUtil:          m.GPUUtil,
		MemUsed:          m.MemUsed,
		MemTotal:         m.MemTotal,
		Temperature:      m.Temperature,
		CostPerHour:      m.CostPerHour,
		PotentialSavings: m.PotentialSavings,
		Classification:   string(m.Classification),
		CreatedAt:        m.CreatedAt,
	}
}

func toGPUReadingModel(e *GPUReadingEntity) *model.GPUReading {
	if e == nil {
		return nil
	}
	return &model.GPUReading{
		ID:               e.ID,
		CustomerID:       e.CustomerID,
		GPUIndex:         e.GPUIndex,
		GPUName:          e.GPUName,
		GPUUtil:          e.GPUUtil,
		MemUsed:          e.MemUsed,
		MemTotal:         e.MemTotal,
		Temperature:      e.Temperature,
		CostPerHour:      e.CostPerHour,
		PotentialSavings: e.PotentialSavings,
		Classification:   model.Classification(e.Classification),
		CreatedAt:        e.CreatedAt,
	}
}

func toGPUReadingModels(entities []*GPUReadingEntity) []*model.GPUReading {
	if entities == nil {
		return nil
	}
	models := make([]*model.GPUReading, len(entities))
	for i, e := range entities {
		models[i] = toGPUReadingModel(e)
	}
	return models
}
