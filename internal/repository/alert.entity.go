package repository

import (
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
)

type IdleAlertEntity struct {
	ID               int64     `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	EventID          string    `db:"event_id"          gorm:"column:event_id;not null;uniqueIndex:idx_idle_alerts_event_reading,priority:1"`
	ReadingID        int64     `db:"reading_id"        gorm:"column:reading_id;not null;uniqueIndex:idx_idle_alerts_event_reading,priority:2"`
	CustomerID       int64     `db:"customer_id"       gorm:"column:customer_id;not null;index"`
	GPUIndex         int       `db:"gpu_index"         gorm:"column:gpu_index;not null"`
	GPUName          string    `db:"gpu_name"          gorm:"column:gpu_name;not null"`
	GPUUtil          float64   `db:"gpu_util"          gorm:"column:gpu_util;not null"`
	PotentialSavings float64   `db:"potential_savings" gorm:"column:potential_savings;not null"`
	CreatedAt        time.Time `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (IdleAlertEntity) TableName() string {
	return "idle_alerts"
}

func toIdleAlertEntity(m *model.IdleAlert) *IdleAlertEntity {
	if m == nil {
		return nil
	}
	return &IdleAlertEntity{
		ID:               m.ID,
		EventID:          m.EventID,
		ReadingID:        m.ReadingID,
		CustomerID:       m.CustomerID,
		GPUIndex:         m.GPUIndex,
		GPUName:          m.GPUName,
		GPUUtil:          m.GPUUtil,
		PotentialSavings: m.PotentialSavings,
		CreatedAt:        m.CreatedAt,
	}
}

func toIdleAlertModel(e *IdleAlertEntity) *model.IdleAlert {
	if e == nil {
		return nil
	}
	return &model.IdleAlert{
		ID:               e.ID,
		EventID:          e.EventID,
		ReadingID:        e.ReadingID,
		CustomerID:       e.CustomerID,
		GPUIndex:         e.GPUIndex,
		GPUName:          e.GPUName,
		GPUUtil:          e.GPUUtil,
		PotentialSavings: e.PotentialSavings,
		CreatedAt:        e.CreatedAt,
	}
}
