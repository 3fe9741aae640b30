package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CatalogItem is one tracked marketplace product
type CatalogItem struct {
	Name string `yaml:"name" json:"name"`
	ASIN string `yaml:"asin" json:"asin"`
}

// ProductData is the nested "data" object of a product-details response.
// Fields whose type varies between responses are kept raw and normalized later.
// top_reviews is decoded separately by DecodeTopReviews.
type ProductData struct {
	Title         Text            `json:"product_title"`
	Price         json.RawMessage `json:"product_price"`
	OriginalPrice json.RawMessage `json:"product_original_price"`
	Currency      Text            `json:"currency"`
	StarRating    json.RawMessage `json:"product_star_rating"`
	NumRatings    json.RawMessage `json:"product_num_ratings"`
	URL           Text            `json:"product_url"`
	Photo         Text            `json:"product_photo"`
	Availability  Text            `json:"product_availability"`
	SalesVolume   Text            `json:"sales_volume"`

	Details     json.RawMessage `json:"product_details"`
	Information json.RawMessage `json:"product_information"`
	Photos      json.RawMessage `json:"product_photos"`
	Videos      json.RawMessage `json:"product_videos"`
}

// ReviewData is one entry of data.top_reviews
type ReviewData struct {
	ReviewID             Text            `json:"review_id"`
	Title                Text            `json:"review_title"`
	Comment              Text            `json:"review_comment"`
	StarRating           json.RawMessage `json:"review_star_rating"`
	Link                 Text            `json:"review_link"`
	Author               Text            `json:"review_author"`
	Date                 Text            `json:"review_date"`
	IsVerifiedPurchase   json.RawMessage `json:"is_verified_purchase"`
	HelpfulVoteStatement Text            `json:"helpful_vote_statement"`
	Images               json.RawMessage `json:"review_images"`
}

// Text is a string field that tolerates other JSON types. Numbers, booleans
// and nested values keep their compact JSON text; null decodes to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*t = ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return err
		}
		*t = Text(buf.String())
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// DecodeProductData extracts the nested data object from a raw response.
// Returns nil without error when the object is absent, null or empty.
func DecodeProductData(payload json.RawMessage) (*ProductData, error) {
	data, err := dataObject(payload)
	if err != nil || data == nil {
		return nil, err
	}

	var product ProductData
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DecodeTopReviews returns the entries of data.top_reviews undecoded, so a
// malformed review can be skipped without losing the rest of the batch.
// Returns nil without error when the list is absent or empty.
func DecodeTopReviews(payload json.RawMessage) ([]json.RawMessage, error) {
	data, err := dataObject(payload)
	if err != nil || data == nil {
		return nil, err
	}

	var holder struct {
		TopReviews json.RawMessage `json:"top_reviews"`
	}
	if err := json.Unmarshal(data, &holder); err != nil {
		return nil, err
	}
	if IsEmptyJSON(holder.TopReviews) {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(holder.TopReviews, &entries); err != nil {
		return nil, fmt.Errorf("top_reviews: %w", err)
	}
	return entries, nil
}

func dataObject(payload json.RawMessage) (json.RawMessage, error) {
	if IsEmptyJSON(payload) {
		return nil, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	if IsEmptyJSON(envelope.Data) {
		return nil, nil
	}
	return envelope.Data, nil
}

// IsEmptyJSON reports whether raw is missing or holds a falsy JSON value
// (null, {}, [], "", false, 0).
func IsEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return false
	}
	switch buf.String() {
	case "null", "{}", "[]", `""`, "false", "0":
		return true
	}
	return false
}
