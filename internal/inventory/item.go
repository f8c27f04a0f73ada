package inventory

import (
	"time"

	"github.com/pantrylog/pantrylog/internal/pipeline"
)

// ExpirationSource records whether an item's expiration date came from the
// pipeline estimate or a user edit
type ExpirationSource string

const (
	SourceAuto   ExpirationSource = "auto"
	SourceManual ExpirationSource = "manual"
)

// Item is one inventory record. AutoExpirationDate always holds the
// original pipeline estimate; once a user sets ManualExpirationDate the
// source flips to manual and the manual date takes precedence everywhere
// the effective expiration is read.
type Item struct {
	ID                   string                `json:"id"`
	ReceiptID            string                `json:"receipt_id,omitempty"`
	Name                 string                `json:"name"`
	Quantity             string                `json:"quantity,omitempty"` // opaque token, empty = none stated
	Category             pipeline.FoodCategory `json:"category"`
	IsFood               bool                  `json:"is_food"`
	PurchaseDate         time.Time             `json:"purchase_date"`
	AutoExpirationDate   time.Time             `json:"auto_expiration_date"`
	ManualExpirationDate *time.Time            `json:"manual_expiration_date,omitempty"`
	ExpirationSource     ExpirationSource      `json:"expiration_source"`
	Confidence           pipeline.Confidence   `json:"confidence,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// EffectiveExpiration is the date used for display, sorting, and
// filtering: the manual override if present, else the estimate.
func (i *Item) EffectiveExpiration() time.Time {
	if i.ManualExpirationDate != nil {
		return *i.ManualExpirationDate
	}
	return i.AutoExpirationDate
}

// Receipt groups the items produced by one pipeline run
type Receipt struct {
	ID           string    `json:"id"`
	PurchaseDate time.Time `json:"purchase_date"`
	CreatedAt    time.Time `json:"created_at"`
}
