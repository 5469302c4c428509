package models

import (
	"time"
)

// Product is an item sold at a point of sale. Stock is the single
// mutable counter and never goes below zero.
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"`
	Stock     int       `json:"stock" db:"stock"`
	EventID   string    `json:"event_id" db:"event_id"`
	Active    bool      `json:"active" db:"active"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
