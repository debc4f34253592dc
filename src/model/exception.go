package model

import "time"

// Exception is a captured runtime error kept for auditing.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "orchestrator"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "BTCUSDT:RSI:1h"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "flush"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
