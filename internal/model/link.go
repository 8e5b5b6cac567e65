package model

import (
	"time"

	"github.com/google/uuid"
)

// Visibility values for a short link.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// ShortLink represents a persisted mapping from a slug to a destination URL.
// RequirePasscode is true exactly when Visibility is private, and a private
// link always carries a non-empty plaintext passcode.
type ShortLink struct {
	ID              uuid.UUID  `json:"id"`
	Slug            string     `json:"slug"`
	DestinationURL  string     `json:"destination_url"`
	Visibility      string     `json:"visibility"`
	RequirePasscode bool       `json:"require_passcode"`
	Passcode        *string    `json:"-"`
	OwnerID         *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the link's expiry timestamp has passed.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Visit is an immutable audit record of one resolution attempt.
// PasscodeSuccess is nil when the link required no passcode.
type Visit struct {
	ID              int64     `json:"id,omitempty"`
	ShortLinkID     uuid.UUID `json:"short_link_id"`
	VisitedAt       time.Time `json:"visited_at"`
	IPAddress       *string   `json:"ip_address,omitempty"`
	Location        *string   `json:"location,omitempty"`
	DeviceType      string    `json:"device_type"`
	Browser         string    `json:"browser"`
	PasscodeSuccess *bool     `json:"passcode_success"`
}

// CreateLinkRequest represents the request body for creating a short link
type CreateLinkRequest struct {
	URL           string `json:"url" binding:"required"`
	Slug          string `json:"slug,omitempty"`
	ExpiresInDays int    `json:"expires_in_days,omitempty"`
	Visibility    string `json:"visibility,omitempty"`
	Passcode      string `json:"passcode,omitempty"`
	OwnerID       string `json:"owner_id,omitempty"`
}

// CreateLinkResponse represents the response for a created short link
type CreateLinkResponse struct {
	Slug           string `json:"slug"`
	ShortURL       string `json:"short_url"`
	DestinationURL string `json:"destination_url"`
	Visibility     string `json:"visibility"`
	ExpiresAt      string `json:"expires_at,omitempty"`
}

// LinkResponse represents full short-link metadata
type LinkResponse struct {
	Slug            string `json:"slug"`
	ShortURL        string `json:"short_url"`
	DestinationURL  string `json:"destination_url"`
	Visibility      string `json:"visibility"`
	RequirePasscode bool   `json:"require_passcode"`
	CreatedAt       string `json:"created_at"`
	ExpiresAt       string `json:"expires_at,omitempty"`
}

// VisitResponse represents one logged visit in API responses
type VisitResponse struct {
	VisitedAt       string  `json:"visited_at"`
	IPAddress       string  `json:"ip_address,omitempty"`
	Location        string  `json:"location,omitempty"`
	DeviceType      string  `json:"device_type"`
	Browser         string  `json:"browser"`
	PasscodeSuccess *bool   `json:"passcode_success"`
}

// LinkStatsResponse summarizes visit analytics for one link
type LinkStatsResponse struct {
	Slug             string           `json:"slug"`
	TotalVisits      int64            `json:"total_visits"`
	PasscodeAccepted int64            `json:"passcode_accepted"`
	PasscodeRejected int64            `json:"passcode_rejected"`
	Devices          map[string]int64 `json:"devices"`
	Browsers         map[string]int64 `json:"browsers"`
	LastVisitAt      string           `json:"last_visit_at,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
