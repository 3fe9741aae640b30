package models

import (
	"encoding/json"
	"time"
)

// CatalogSnapshot is one time-series point of price and rating for an item.
// Every successful fetch produces exactly one.
type CatalogSnapshot struct {
	ID            string          `json:"id" db:"id"`
	ProductName   string          `json:"product_name" db:"product_name"`
	ASIN          string          `json:"asin" db:"asin"`
	Price         *float64        `json:"price" db:"price"`
	OriginalPrice *float64        `json:"original_price" db:"original_price"`
	Currency      string          `json:"currency" db:"currency"`
	Rating        *float64        `json:"rating" db:"rating"`
	ReviewCount   *int64          `json:"review_count" db:"review_count"`
	URL           string          `json:"url" db:"url"`
	ImageURL      string          `json:"image_url" db:"image_url"`
	Availability  string          `json:"availability" db:"availability"`
	SalesVolume   string          `json:"sales_volume" db:"sales_volume"`
	CapturedAt    time.Time       `json:"date" db:"captured_at"`
	RawData       json.RawMessage `json:"raw_data" db:"raw_data"`
}

// DetailSnapshot holds the serialized descriptive blocks of an item.
// The four serialized fields are compared byte for byte.
type DetailSnapshot struct {
	ID          string    `json:"id" db:"id"`
	ASIN        string    `json:"asin" db:"asin"`
	Title       string    `json:"product_title" db:"product_title"`
	Details     string    `json:"product_details" db:"product_details"`
	Information string    `json:"product_information" db:"product_information"`
	Photos      string    `json:"product_photos" db:"product_photos"`
	Videos      string    `json:"product_videos" db:"product_videos"`
	CapturedAt  time.Time `json:"date" db:"captured_at"`
}

// SameContent reports whether d and other carry identical serialized blocks.
// Title and capture time are ignored.
func (d *DetailSnapshot) SameContent(other *DetailSnapshot) bool {
	if d == nil || other == nil {
		return false
	}
	return d.Details == other.Details &&
		d.Information == other.Information &&
		d.Photos == other.Photos &&
		d.Videos == other.Videos
}

// Review is a stored customer review, unique per (ASIN, ReviewID) unless ReviewID is empty
type Review struct {
	ID               string    `json:"id" db:"id"`
	ASIN             string    `json:"asin" db:"asin"`
	ReviewID         string    `json:"review_id" db:"review_id"`
	Title            string    `json:"review_title" db:"review_title"`
	Comment          string    `json:"review_comment" db:"review_comment"`
	StarRating       *float64  `json:"review_star_rating" db:"review_star_rating"`
	Link             string    `json:"review_link" db:"review_link"`
	Author           string    `json:"review_author" db:"review_author"`
	Date             string    `json:"review_date" db:"review_date"`
	VerifiedPurchase bool      `json:"is_verified_purchase" db:"is_verified_purchase"`
	HelpfulVotes     string    `json:"helpful_vote_statement" db:"helpful_vote_statement"`
	Images           string    `json:"review_images" db:"review_images"`
	CapturedAt       time.Time `json:"date" db:"captured_at"`
}
