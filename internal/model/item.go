package model

import "time"

// Item is a catalog entry representing a pool of identical physical
// units that can be lent out (a camera model, a sports kit, a lab set).
//
// Fields:
//  ID                – items.id
//  Name              – human readable name shown in the catalog.
//  Category          – free-form grouping used for filtering.
//  ConditionNote     – operator remarks about wear and missing parts.
//  TotalQuantity     – fixed capacity of the pool (>= 0).
//  AvailableQuantity – units not currently handed out; always kept in
//                      the range [0, TotalQuantity] by the ledger.
type Item struct {
	ID                uint64    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	ConditionNote     string    `json:"condition_note"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ClampAvailable pulls AvailableQuantity back into [0, TotalQuantity].
func (it *Item) ClampAvailable() {
	if it.AvailableQuantity > it.TotalQuantity {
		it.AvailableQuantity = it.TotalQuantity
	}
	if it.AvailableQuantity < 0 {
		it.AvailableQuantity = 0
	}
}

// ItemFilter narrows catalog listings. Category matching is
// case-insensitive. An empty filter returns every item.
type ItemFilter struct {
	Category      string
	AvailableOnly bool
}
