package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrDuplicate        = errors.New("customer with the same email or api key already exists")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return toCustomerModel(entity), nil
}

// GetByAPIKey returns the single customer owning apiKey.
func (r *CustomerRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.Customer, error) {
	return r.first(ctx, "api_key = ?", apiKey)
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *CustomerRepository) first(ctx context.Context, cond string, arg any) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).Where(cond, arg).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) APIKeyExists(ctx context.Context, apiKey string) (bool, error) {
	var n int64
	err := r.Read(ctx).Model(&CustomerEntity{}).Where("api_key = ?", apiKey).Count(&n).Error
	return n > 0, err
}

func (r *CustomerRepository) CountByTier(ctx context.Context) (map[model.Tier]int64, error) {
	var rows []struct {
		Tier  string
		Count int64
	}
	err := r.Read(ctx).Model(&CustomerEntity{}).
		Select("tier, COUNT(*) AS count").
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[model.Tier]int64, len(rows))
	for _, row := range rows {
		out[model.Tier(row.Tier)] = row.Count
	}
	return out, nil
}

// SumSavings returns the cumulative potential savings over all customers.
func (r *CustomerRepository) SumSavings(ctx context.Context) (float64, error) {
	var total float64
	err := r.Read(ctx).Model(&CustomerEntity{}).
		Select("COALESCE(SUM(total_savings), 0)").
		Scan(&total).Error
	return total, err
}
