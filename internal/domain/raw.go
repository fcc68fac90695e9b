package domain

import (
	"strings"
	"time"
)

// RawRecord is a scraped hotel row as stored by the backend. It is
// display-only; nothing in this client mutates it.
type RawRecord struct {
	ID              int64     `json:"id"`
	HotelName       string    `json:"hotel_name"`
	Location        string    `json:"location"`
	DiscountedPrice string    `json:"discounted_price"`
	OriginalPrice   string    `json:"original_price"`
	DealBadge       string    `json:"deal_badge"`
	Rating          string    `json:"rating"`
	RatingText      string    `json:"rating_text"`
	ReviewCount     string    `json:"review_count"`
	Amenities       string    `json:"amenities"`
	IsProcessed     bool      `json:"is_processed"`
	CreatedAt       time.Time `json:"created_at"`
}

// FilterRecords returns the records whose hotel name or location contains
// term, ignoring case. An empty term matches everything.
func FilterRecords(records []RawRecord, term string) []RawRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}

	filtered := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.HotelName), term) ||
			strings.Contains(strings.ToLower(r.Location), term) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
