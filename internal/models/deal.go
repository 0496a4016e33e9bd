package models

import (
	"errors"
	"time"
)

// ErrDealExists is returned when attempting to create a deal that already exists.
var ErrDealExists = errors.New("deal already exists")

// ErrDealNotFound is returned when a ledger append targets a postId that was never stored.
var ErrDealNotFound = errors.New("deal not found")

// DealRecord represents one listing entry on a source.
type DealRecord struct {
	PostID    string  `firestore:"postId" json:"postId" validate:"required"`
	Title     string  `firestore:"title" json:"title" validate:"required"`
	Price     float64 `firestore:"price" json:"price" validate:"gte=0"`
	DealScore *int    `firestore:"dealScore" json:"dealScore"` // nil when the page carries no score
	Link      string  `firestore:"link" json:"link" validate:"required,url"`
	Image     string  `firestore:"image" json:"image" validate:"required,url"`

	Notifications []NotificationEntry `firestore:"notifications" json:"notifications"`

	FirstSeen   time.Time `firestore:"firstSeen" json:"firstSeen"`
	LastUpdated time.Time `firestore:"lastUpdated" json:"lastUpdated"`
}

// NotificationEntry is one live message representing a deal in one destination.
type NotificationEntry struct {
	ChannelID string `firestore:"channelId" json:"channelId"`
	MessageID string `firestore:"messageId" json:"messageId"`
}

// ContentEqual reports whether two records carry the same listing content.
// Notifications and bookkeeping timestamps are not compared.
func (d DealRecord) ContentEqual(o DealRecord) bool {
	if d.PostID != o.PostID ||
		d.Title != o.Title ||
		d.Price != o.Price ||
		d.Link != o.Link ||
		d.Image != o.Image {
		return false
	}
	switch {
	case d.DealScore == nil && o.DealScore == nil:
		return true
	case d.DealScore == nil || o.DealScore == nil:
		return false
	default:
		return *d.DealScore == *o.DealScore
	}
}

// HasDestination reports whether any notification entry lives in channelID.
func (d DealRecord) HasDestination(channelID string) bool {
	for _, n := range d.Notifications {
		if n.ChannelID == channelID {
			return true
		}
	}
	return false
}

// Score returns a pointer to v, for building records with a known deal score.
func Score(v int) *int {
	return &v
}
