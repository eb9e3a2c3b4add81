package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/nimasrn/gpu-savings-gateway/internal/auth"
	"github.com/nimasrn/gpu-savings-gateway/internal/model"
	"github.com/nimasrn/gpu-savings-gateway/internal/repository"
	"github.com/nimasrn/gpu-savings-gateway/pkg/logger"
	"github.com/pkg/errors"
)

var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrCustomerExists   = errors.New("customer already exists")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidTier      = errors.New("invalid tier")
	ErrKeyExhausted     = errors.New("could not allocate a unique api key")
)

const (
	maxEmailLength = 255
	keyAttempts    = 5
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type CustomerStore interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	GetByEmail(ctx context.Context, email string) (*model.Customer, error)
	APIKeyExists(ctx context.Context, apiKey string) (bool, error)
	CountByTier(ctx context.Context) (map[model.Tier]int64, error)
	SumSavings(ctx context.Context) (float64, error)
}

type CustomerService struct {
	store  CustomerStore
	newKey func() (string, error)
}

func NewCustomerService(store CustomerStore) *CustomerService {
	return &CustomerService{
		store:  store,
		newKey: auth.GenerateAPIKey,
	}
}

// Signup registers a free tier customer.
func (s *CustomerService) Signup(ctx context.Context, email string) (*model.Customer, error) {
	return s.Create(ctx, email, model.TierFree)
}

// Create registers a customer on tier with a fresh api key.
func (s *CustomerService) Create(ctx context.Context, email string, tier model.Tier) (*model.Customer, error) {
	email, ok := NormalizeEmail(email)
	if !ok {
		return nil, ErrInvalidEmail
	}
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, ErrCustomerExists
	} else if !errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, errors.Wrap(err, "lookup customer by email")
	}

	key, err := s.uniqueKey(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Create(ctx, &model.Customer{Email: email, Tier: tier, APIKey: key})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCustomerExists
		}
		return nil, errors.Wrap(err, "create customer")
	}
	logger.Info("customer created", "customer_id", c.ID, "tier", c.Tier)
	return c, nil
}

func (s *CustomerService) uniqueKey(ctx context.Context) (string, error) {
	for i := 0; i < keyAttempts; i++ {
		key, err := s.newKey()
		if err != nil {
			return "", errors.Wrap(err, "generate api key")
		}
		exists, err := s.store.APIKeyExists(ctx, key)
		if err != nil {
			return "", errors.Wrap(err, "check api key")
		}
		if !exists {
			return key, nil
		}
		logger.Warn("api key collision, regenerating", "attempt", i+1)
	}
	return "", ErrKeyExhausted
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*model.Customer, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

// Stats aggregates customers by tier, recurring revenue from tier prices,
// cumulative savings and the share of paying customers in percent.
func (s *CustomerService) Stats(ctx context.Context) (*model.RevenueStats, error) {
	counts, err := s.store.CountByTier(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count customers by tier")
	}
	savings, err := s.store.SumSavings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "sum customer savings")
	}

	stats := &model.RevenueStats{
		CustomersByTier:      make(map[model.Tier]int64, len(model.TierTable)),
		TotalCustomerSavings: savings,
	}
	var total, paid int64
	for _, t := range model.Tiers() {
		n := counts[t]
		stats.CustomersByTier[t] = n
		stats.MonthlyRecurringRevenue += float64(n) * model.LimitsFor(t).MonthlyPriceUSD
		total += n
		if model.LimitsFor(t).MonthlyPriceUSD > 0 {
			paid += n
		}
	}
	if total > 0 {
		stats.ConversionRate = float64(paid) / float64(total) * 100
	}
	return stats, nil
}

// NormalizeEmail lowercases and trims email and reports whether it is acceptable.
func NormalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > maxEmailLength {
		return "", false
	}
	if strings.Contains(email, "..") || strings.HasPrefix(email, ".") || strings.HasSuffix(email, ".") {
		return "", false
	}
	if !emailPattern.MatchString(email) {
		return "", false
	}
	return email, true
}
