package model

import "time"

// Base contains the identity and timestamp fields every stored record
// carries. Documents are keyed by string IDs and timestamped by the
// store on write.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}
