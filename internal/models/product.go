package models

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidArticle is returned when a product article fails format validation.
var ErrInvalidArticle = errors.New("article must be a 7-9 digit number")

var articleRegex = regexp.MustCompile(`^[0-9]{7,9}$`)

// ValidateArticle checks that the article is a 7-9 digit numeric string.
func ValidateArticle(article string) error {
	if !articleRegex.MatchString(article) {
		return ErrInvalidArticle
	}
	return nil
}

// Buckets derives the volume and part shard buckets from an article.
// Wildberries shards product content by vol = id/100000 and part = id/1000.
func Buckets(article string) (vol, part int) {
	nm, _ := strconv.Atoi(article)
	return nm / 100000, nm / 1000
}

// HistoryEntry is one observed price/stock point for a tracked product.
type HistoryEntry struct {
	Date     time.Time `bson:"date"`
	Price    float64   `bson:"price" validate:"gte=0"`
	Quantity int       `bson:"quantity" validate:"gte=0"`
}

// TrackedProduct is the persisted record of a product being monitored for one chat.
// History is append-only and chronologically ordered; a new entry is appended only
// when price or quantity actually changed, or unconditionally on the initial add.
type TrackedProduct struct {
	Name         string         `bson:"name" validate:"required"`
	Brand        string         `bson:"brand"`
	CurrentPrice float64        `bson:"current_price" validate:"gte=0"`
	Quantity     int            `bson:"quantity" validate:"gte=0"`
	Rating       float64        `bson:"rating" validate:"gte=0,lte=5"`
	ImageURL     string         `bson:"imageUrl,omitempty" validate:"omitempty,url"`
	AddedDate    time.Time      `bson:"added_date"`
	History      []HistoryEntry `bson:"history" validate:"min=1,dive"`
}

// ResolvedProduct is the normalized result of a single resolution call.
// It is transient: fields are copied into a TrackedProduct, never persisted as-is.
type ResolvedProduct struct {
	Name     string
	Brand    string
	Price    float64
	Rating   float64
	Quantity int
	ImageURL string
	Warnings []string
}
