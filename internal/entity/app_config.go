package entity

import "time"

// AppConfig is a runtime setting override stored by key.
type AppConfig struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
