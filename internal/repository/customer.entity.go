package repository

import (
	"time"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
)

type CustomerEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Email        string    `db:"email"         gorm:"column:email;not null;uniqueIndex"`
	APIKey       string    `db:"api_key"       gorm:"column:api_key;not null;uniqueIndex"`
	Tier         string    `db:"tier"          gorm:"column:tier;not null;default:free;index"`
	TotalSavings float64   `db:"total_savings" gorm:"column:total_savings;not null;default:0"`
	GPUCount     int       `db:"gpu_count"     gorm:"column:gpu_count;not null;default:0"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		ID:           m.ID,
		Email:        m.Email,
		APIKey:       m.APIKey,
		Tier:         string(m.Tier),
		TotalSavings: m.TotalSavings,
		GPUCount:     m.GPUCount,
		CreatedAt:    m.CreatedAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:           e.ID,
		Email:        e.Email,
		APIKey:       e.APIKey,
		Tier:         model.Tier(e.Tier),
		TotalSavings: e.TotalSavings,
		GPUCount:     e.GPUCount,
		CreatedAt:    e.CreatedAt,
	}
}
