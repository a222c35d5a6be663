package models

// Listing is one marketplace product offer, flattened from the marketplace response
type Listing struct {
	ID            int64  `json:"id"`
	BlueprintID   int64  `json:"blueprintId"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PriceCents    int64  `json:"priceCents"`
	Currency      string `json:"currency"`
	Condition     string `json:"condition"`
	HubAvailable  bool   `json:"hubAvailable"`
	ExpansionCode string `json:"expansionCode,omitempty"`
	ExpansionName string `json:"expansionName,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
}

// Price returns the listing price in major currency units
func (l Listing) Price() float64 {
	return float64(l.PriceCents) / 100
}

// MarketplaceCardRequest is the card payload accepted by the marketplace endpoints
type MarketplaceCardRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" binding:"required"`
	Expansion string   `json:"expansion" binding:"required"`
	Type      CardType `json:"type"`
}
