package domain

import "fmt"

// PostStatus is the publication state of a generated post.
type PostStatus string

const (
	PostStatusPending    PostStatus = "pending"
	PostStatusReady      PostStatus = "ready"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

// ParsePostStatus maps a backend status string onto a PostStatus. The backend
// historically reports freshly generated posts as "generated", which is the
// same state as ready.
func ParsePostStatus(s string) (PostStatus, error) {
	switch s {
	case "pending", "pending_generation":
		return PostStatusPending, nil
	case "ready", "generated":
		return PostStatusReady, nil
	case "publishing":
		return PostStatusPublishing, nil
	case "published":
		return PostStatusPublished, nil
	case "failed":
		return PostStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown post status %q", s)
	}
}

// Post is a generated content item as reported by the backend.
type Post struct {
	// ID is the backend's stable post identifier. Zero is never a valid ID.
	ID int64 `json:"id"`

	// HotelName is the listing the post was generated for.
	HotelName string `json:"hotel_name"`

	// ImageURL references the listing image used for the post.
	ImageURL string `json:"image_url"`

	// Caption is the generated caption, hook included.
	Caption string `json:"caption"`

	// Hashtags is the generated hashtag text.
	Hashtags string `json:"hashtags"`

	Status PostStatus `json:"status"`
}

// Publishable reports whether the operator may issue a publish for the post.
func (p Post) Publishable() bool {
	return p.Status == PostStatusReady || p.Status == PostStatusFailed
}
