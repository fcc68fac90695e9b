package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackmichael/agent-manager/internal/domain"
)

// botStatusResponse is the body of GET /bot/status. The pointer makes a
// missing field a decode failure rather than a silent false.
type botStatusResponse struct {
	IsRunning *bool `json:"is_running"`
}

// commandResponse is the body of the mutating endpoints. Extra fields such as
// new_hotels_saved are ignored.
type commandResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is a non-2xx body. The backend uses message for its own
// failures and detail for framework errors (e.g. 404 "Konten tidak
// ditemukan"); detail may also be a validation array.
type errorResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func (e errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	var detail string
	if len(e.Detail) > 0 && json.Unmarshal(e.Detail, &detail) == nil {
		return detail
	}
	return ""
}

// postRecord is one element of GET /posts.
type postRecord struct {
	PostID    int64  `json:"post_id"`
	HotelName string `json:"hotel_name"`
	ImageURL  string `json:"image_url"`
	Caption   string `json:"caption"`
	Hashtags  string `json:"hashtags"`
	Status    string `json:"status"`
}

func (r postRecord) toDomain() (domain.Post, error) {
	if r.PostID == 0 {
		return domain.Post{}, fmt.Errorf("post without post_id")
	}
	status, err := domain.ParsePostStatus(r.Status)
	if err != nil {
		return domain.Post{}, fmt.Errorf("post %d: %w", r.PostID, err)
	}
	return domain.Post{
		ID:        r.PostID,
		HotelName: r.HotelName,
		ImageURL:  r.ImageURL,
		Caption:   r.Caption,
		Hashtags:  r.Hashtags,
		Status:    status,
	}, nil
}

// hotelRecord is one element of GET /hotels/raw. Most scraped columns are
// nullable.
type hotelRecord struct {
	ID              int64   `json:"id"`
	HotelName       string  `json:"hotel_name"`
	Location        string  `json:"location"`
	DiscountedPrice *string `json:"discounted_price"`
	OriginalPrice   *string `json:"original_price"`
	DealBadge       *string `json:"deal_badge"`
	Rating          *string `json:"rating"`
	RatingText      *string `json:"rating_text"`
	ReviewCount     *string `json:"review_count"`
	Amenities       *string `json:"amenities"`
	IsProcessed     bool    `json:"is_processed"`
	CreatedAt       string  `json:"created_at"`
}

// timestampLayouts covers RFC 3339 and the zone-less ISO form the backend
// emits for naive UTC datetimes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (r hotelRecord) toDomain() (domain.RawRecord, error) {
	rec := domain.RawRecord{
		ID:              r.ID,
		HotelName:       r.HotelName,
		Location:        r.Location,
		DiscountedPrice: deref(r.DiscountedPrice),
		OriginalPrice:   deref(r.OriginalPrice),
		DealBadge:       deref(r.DealBadge),
		Rating:          deref(r.Rating),
		RatingText:      deref(r.RatingText),
		ReviewCount:     deref(r.ReviewCount),
		Amenities:       deref(r.Amenities),
		IsProcessed:     r.IsProcessed,
	}

	if r.CreatedAt != "" {
		t, err := parseTimestamp(r.CreatedAt)
		if err != nil {
			return domain.RawRecord{}, fmt.Errorf("hotel %d: %w", r.ID, err)
		}
		rec.CreatedAt = t
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid created_at %q", s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
