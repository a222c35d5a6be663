package models

import "time"

// StatsTypeExpansionTotals keys the cached per-expansion catalog totals
const StatsTypeExpansionTotals = "expansion_totals"

// Stats is a cached aggregate, recomputed when older than StatsTTL
type Stats struct {
	Type        string         `json:"type" gorm:"primaryKey"`
	TotalCount  int            `json:"totalCount"`
	Counts      map[string]int `json:"counts" gorm:"serializer:json"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// ExpansionStat is the per-user completion view of one expansion
type ExpansionStat struct {
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Collected  int    `json:"collected"`
	Percentage int    `json:"percentage"`
}
