package store

import (
	"strings"
	"time"
)

// Category tags a request with the kind of creative help wanted.
type Category string

const (
	CategoryWriting   Category = "writing"
	CategoryDesign    Category = "design"
	CategoryCode      Category = "code"
	CategoryMusic     Category = "music"
	CategoryMarketing Category = "marketing"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryWriting, CategoryDesign, CategoryCode, CategoryMusic, CategoryMarketing}

// Known reports whether c is one of the predefined categories.
func (c Category) Known() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// AnonymousUserID is stored for every record until accounts exist.
const AnonymousUserID = "anonymous"

type GeneratedResponse struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// MissingRequiredFields reports whether any field a stored record must carry is blank.
func (r *GeneratedResponse) MissingRequiredFields() bool {
	return strings.TrimSpace(r.ID) == "" ||
		strings.TrimSpace(r.Prompt) == "" ||
		strings.TrimSpace(r.Response) == "" ||
		strings.TrimSpace(string(r.Category)) == ""
}
