package model

import "time"

// UsageEvent is published after a batch with idle readings is committed.
type UsageEvent struct {
	EventID      string        `json:"event_id"`
	CustomerID   int64         `json:"customer_id"`
	Tier         Tier          `json:"tier"`
	IdleReadings []*GPUReading `json:"idle_readings"`
	CreatedAt    time.Time     `json:"created_at"`
}

type IdleAlert struct {
	ID               int64     `json:"id"`
	EventID          string    `json:"event_id"`
	ReadingID        int64     `json:"reading_id"`
	CustomerID       int64     `json:"customer_id"`
	GPUIndex         int       `json:"gpu_index"`
	GPUName          string    `json:"gpu_name"`
	GPUUtil          float64   `json:"gpu_util"`
	PotentialSavings float64   `json:"potential_savings"`
	CreatedAt        time.Time `json:"created_at"`
}

func (IdleAlert) TableName() string { return "idle_alerts" }
