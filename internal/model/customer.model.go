package model

import "time"

type Customer struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Tier         Tier      `json:"tier"`
	APIKey       string    `json:"-"`
	TotalSavings float64   `json:"total_savings"`
	GPUCount     int       `json:"gpu_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

// RevenueStats is the aggregate view over all customers.
type RevenueStats struct {
	CustomersByTier         map[Tier]int64 `json:"customers_by_tier"`
	MonthlyRecurringRevenue float64        `json:"monthly_recurring_revenue"`
	TotalCustomerSavings    float64        `json:"total_customer_savings"`
	ConversionRate          float64        `json:"conversion_rate"`
}
