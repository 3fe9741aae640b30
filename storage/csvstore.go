package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"catalog_tracker/identity"
	"catalog_tracker/models"
)

const (
	ProductDataFile    = "amazon_product_data.csv"
	ProductDetailsFile = "amazon_product_details.csv"
	ProductReviewsFile = "amazon_product_reviews.csv"
)

var (
	ProductDataHeader = []string{
		"id", "product_name", "asin", "price", "original_price", "currency",
		"rating", "review_count", "url", "image_url", "availability",
		"sales_volume", "date", "raw_data",
	}
	ProductDetailsHeader = []string{
		"id", "asin", "product_title", "product_details", "product_information",
		"product_photos", "product_videos", "date",
	}
	ProductReviewsHeader = []string{
		"id", "asin", "review_id", "review_title", "review_comment",
		"review_star_rating", "review_link", "review_author", "review_date",
		"is_verified_purchase", "helpful_vote_statement", "review_images", "date",
	}
)

// legacyTimeLayout matches capture times written without a zone offset
const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

// CSVStore owns the three append-only product tables.
// It assumes a single writer process; reads and appends are not locked.
type CSVStore struct {
	dir      string
	products *Table
	details  *Table
	reviews  *Table
}

// OpenCSVStore opens (creating when absent) the product tables inside dir
func OpenCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	products, err := OpenTable(filepath.Join(dir, ProductDataFile), ProductDataHeader)
	if err != nil {
		return nil, err
	}
	details, err := OpenTable(filepath.Join(dir, ProductDetailsFile), ProductDetailsHeader)
	if err != nil {
		return nil, err
	}
	reviews, err := OpenTable(filepath.Join(dir, ProductReviewsFile), ProductReviewsHeader)
	if err != nil {
		return nil, err
	}

	return &CSVStore{
		dir:      dir,
		products: products,
		details:  details,
		reviews:  reviews,
	}, nil
}

func (s *CSVStore) Dir() string {
	return s.dir
}

// =============================================================================
// Catalog snapshots
// =============================================================================

func (s *CSVStore) AppendCatalogSnapshot(snap *models.CatalogSnapshot) error {
	return s.products.Append([]string{
		snap.ID,
		snap.ProductName,
		snap.ASIN,
		formatFloat(snap.Price),
		formatFloat(snap.OriginalPrice),
		snap.Currency,
		formatFloat(snap.Rating),
		formatInt(snap.ReviewCount),
		snap.URL,
		snap.ImageURL,
		snap.Availability,
		snap.SalesVolume,
		formatTime(snap.CapturedAt),
		string(snap.RawData),
	})
}

func (s *CSVStore) CatalogSnapshots() ([]models.CatalogSnapshot, error) {
	rows, err := s.products.Rows()
	if err != nil {
		return nil, err
	}

	snaps := make([]models.CatalogSnapshot, 0, len(rows))
	for _, r := range rows {
		snap := models.CatalogSnapshot{
			ID:            r["id"],
			ProductName:   r["product_name"],
			ASIN:          identity.CleanASIN(r["asin"]),
			Price:         parseFloat(r["price"]),
			OriginalPrice: parseFloat(r["original_price"]),
			Currency:      r["currency"],
			Rating:        parseFloat(r["rating"]),
			ReviewCount:   parseInt(r["review_count"]),
			URL:           r["url"],
			ImageURL:      r["image_url"],
			Availability:  r["availability"],
			SalesVolume:   r["sales_volume"],
			CapturedAt:    parseTime(r["date"]),
		}
		if raw := r["raw_data"]; raw != "" {
			snap.RawData = json.RawMessage(raw)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// =============================================================================
// Detail snapshots
// =============================================================================

func (s *CSVStore) AppendDetailSnapshot(snap *models.DetailSnapshot) error {
	return s.details.Append([]string{
		snap.ID,
		snap.ASIN,
		snap.Title,
		snap.Details,
		snap.Information,
		snap.Photos,
		snap.Videos,
		formatTime(snap.CapturedAt),
	})
}

// LatestDetailSnapshot returns the most recently appended detail row for asin,
// or nil when none exists.
func (s *CSVStore) LatestDetailSnapshot(asin string) (*models.DetailSnapshot, error) {
	var latest *models.DetailSnapshot
	err := s.details.scan(func(r Record) bool {
		if identity.SameASIN(r["asin"], asin) {
			snap := detailFromRecord(r)
			latest = &snap
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func (s *CSVStore) DetailSnapshots() ([]models.DetailSnapshot, error) {
	rows, err := s.details.Rows()
	if err != nil {
		return nil, err
	}

	snaps := make([]models.DetailSnapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, detailFromRecord(r))
	}
	return snaps, nil
}

func detailFromRecord(r Record) models.DetailSnapshot {
	return models.DetailSnapshot{
		ID:          r["id"],
		ASIN:        identity.CleanASIN(r["asin"]),
		Title:       r["product_title"],
		Details:     r["product_details"],
		Information: r["product_information"],
		Photos:      r["product_photos"],
		Videos:      r["product_videos"],
		CapturedAt:  parseTime(r["date"]),
	}
}

// =============================================================================
// Reviews
// =============================================================================

// ReviewIDs returns the review ids already stored for asin
func (s *CSVStore) ReviewIDs(asin string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := s.reviews.scan(func(r Record) bool {
		if identity.SameASIN(r["asin"], asin) {
			ids[r["review_id"]] = struct{}{}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendReviews writes all reviews in a single append
func (s *CSVStore) AppendReviews(reviews []models.Review) error {
	records := make([][]string, 0, len(reviews))
	for _, rv := range reviews {
		verified := "0"
		if rv.VerifiedPurchase {
			verified = "1"
		}
		records = append(records, []string{
			rv.ID,
			rv.ASIN,
			rv.ReviewID,
			rv.Title,
			rv.Comment,
			formatFloat(rv.StarRating),
			rv.Link,
			rv.Author,
			rv.Date,
			verified,
			rv.HelpfulVotes,
			rv.Images,
			formatTime(rv.CapturedAt),
		})
	}
	return s.reviews.Append(records...)
}

func (s *CSVStore) Reviews() ([]models.Review, error) {
	rows, err := s.reviews.Rows()
	if err != nil {
		return nil, err
	}

	reviews := make([]models.Review, 0, len(rows))
	for _, r := range rows {
		reviews = append(reviews, models.Review{
			ID:               r["id"],
			ASIN:             identity.CleanASIN(r["asin"]),
			ReviewID:         r["review_id"],
			Title:            r["review_title"],
			Comment:          r["review_comment"],
			StarRating:       parseFloat(r["review_star_rating"]),
			Link:             r["review_link"],
			Author:           r["review_author"],
			Date:             r["review_date"],
			VerifiedPurchase: parseBool(r["is_verified_purchase"]),
			HelpfulVotes:     r["helpful_vote_statement"],
			Images:           r["review_images"],
			CapturedAt:       parseTime(r["date"]),
		})
	}
	return reviews, nil
}

// =============================================================================
// Cell encoding
// =============================================================================

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// parseFloat reads a numeric cell; empty or unparsable cells are null
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int64 {
	v := parseFloat(s)
	if v == nil || math.Abs(*v) >= 1<<63 {
		return nil
	}
	n := int64(*v)
	return &n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true
	}
	return false
}

// parseTime accepts RFC 3339 and the zone-less ISO layout of older files.
// Unparsable values yield the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
