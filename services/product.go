package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"catalog_tracker/identity"
	"catalog_tracker/logging"
	"catalog_tracker/models"
	"catalog_tracker/normalize"
	"catalog_tracker/storage"
)

var (
	ErrNoData    = errors.New("no product data in response")
	ErrNoReviews = errors.New("no reviews in response")
)

// Table names used in log lines and ProcessResult.Errors
const (
	TableProductData    = "product_data"
	TableProductDetails = "product_details"
	TableProductReviews = "product_reviews"
)

// PayloadArchiver keeps a copy of each raw response
type PayloadArchiver interface {
	ArchivePayload(ctx context.Context, asin string, capturedAt time.Time, payload []byte) (string, error)
}

// Mirror receives every row after it has been appended to the CSV tables
type Mirror interface {
	MirrorCatalogSnapshot(ctx context.Context, snap *models.CatalogSnapshot) error
	MirrorDetailSnapshot(ctx context.Context, snap *models.DetailSnapshot) error
	MirrorReviews(ctx context.Context, reviews []models.Review) error
}

// ProductService turns one product-details response into rows of the three
// tables. Each writer consults only its own table before appending.
type ProductService struct {
	store    *storage.CSVStore
	logf     logging.LogFunc
	archiver PayloadArchiver
	mirror   Mirror
	now      func() time.Time
}

func NewProductService(store *storage.CSVStore, logf logging.LogFunc) *ProductService {
	if logf == nil {
		logf = logging.NoOp
	}
	return &ProductService{
		store: store,
		logf:  logf,
		now:   time.Now,
	}
}

func (s *ProductService) SetArchiver(a PayloadArchiver) {
	s.archiver = a
}

func (s *ProductService) SetMirror(m Mirror) {
	s.mirror = m
}

// ProcessResult contains the outcome of processing one payload
type ProcessResult struct {
	ASIN         string
	CatalogSaved bool
	DetailSaved  bool
	ReviewsSaved int
	NoData       bool
	NoReviews    bool
	Errors       map[string]error
}

// Failed reports whether any table writer returned an error
func (r *ProcessResult) Failed() bool {
	return len(r.Errors) > 0
}

// Empty reports whether the payload carried no data object at all
func (r *ProcessResult) Empty() bool {
	return r.NoData
}

// ProcessPayload runs the three writers in order. A failure in one is
// recorded and logged; the others still run.
func (s *ProductService) ProcessPayload(ctx context.Context, item models.CatalogItem, payload json.RawMessage) *ProcessResult {
	asin := identity.CleanASIN(item.ASIN)
	result := &ProcessResult{ASIN: asin, Errors: make(map[string]error)}

	var (
		catalog *models.CatalogSnapshot
		detail  *models.DetailSnapshot
		reviews []models.Review
	)

	s.guard(result, TableProductData, func() error {
		var err error
		catalog, err = s.saveCatalogSnapshot(item, payload)
		result.CatalogSaved = catalog != nil
		return err
	})
	s.guard(result, TableProductDetails, func() error {
		var err error
		detail, err = s.saveDetailSnapshot(asin, payload)
		result.DetailSaved = detail != nil
		return err
	})
	s.guard(result, TableProductReviews, func() error {
		var err error
		reviews, err = s.saveReviews(asin, payload)
		result.ReviewsSaved = len(reviews)
		return err
	})

	s.archive(ctx, asin, payload)
	s.mirrorRows(ctx, asin, catalog, detail, reviews)

	return result
}

// guard runs one table writer, turning errors and panics into result entries.
// The data-absence sentinels are recorded as flags, not failures.
func (s *ProductService) guard(result *ProcessResult, table string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()

	switch {
	case err == nil:
	case errors.Is(err, ErrNoData):
		result.NoData = true
	case errors.Is(err, ErrNoReviews):
		result.NoReviews = true
	default:
		result.Errors[table] = err
		s.logf(models.LogLevelError, result.ASIN, fmt.Sprintf("CSV error (%s): %v", table, err))
	}
}

func (s *ProductService) archive(ctx context.Context, asin string, payload json.RawMessage) {
	if s.archiver == nil || len(bytes.TrimSpace(payload)) == 0 {
		return
	}
	key, err := s.archiver.ArchivePayload(ctx, asin, s.now(), compact(payload))
	if err != nil {
		s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Archive failed: %v", err))
		return
	}
	s.logf(models.LogLevelInfo, asin, fmt.Sprintf("Archived raw payload to %s", key))
}

func (s *ProductService) mirrorRows(ctx context.Context, asin string, catalog *models.CatalogSnapshot, detail *models.DetailSnapshot, reviews []models.Review) {
	if s.mirror == nil {
		return
	}
	if catalog != nil {
		if err := s.mirror.MirrorCatalogSnapshot(ctx, catalog); err != nil {
			s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Mirror error (%s): %v", TableProductData, err))
		}
	}
	if detail != nil {
		if err := s.mirror.MirrorDetailSnapshot(ctx, detail); err != nil {
			s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Mirror error (%s): %v", TableProductDetails, err))
		}
	}
	if len(reviews) > 0 {
		if err := s.mirror.MirrorReviews(ctx, reviews); err != nil {
			s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Mirror error (%s): %v", TableProductReviews, err))
		}
	}
}

// =============================================================================
// Catalog snapshots
// =============================================================================

// SaveCatalogSnapshot appends one time-series row per response that carries data
func (s *ProductService) SaveCatalogSnapshot(item models.CatalogItem, payload json.RawMessage) (bool, error) {
	snap, err := s.saveCatalogSnapshot(item, payload)
	return snap != nil, err
}

func (s *ProductService) saveCatalogSnapshot(item models.CatalogItem, payload json.RawMessage) (*models.CatalogSnapshot, error) {
	asin := identity.CleanASIN(item.ASIN)
	data, err := s.decode(asin, TableProductData, payload)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("row id: %w", err)
	}

	snap := &models.CatalogSnapshot{
		ID:            id.String(),
		ProductName:   item.Name,
		ASIN:          asin,
		Price:         s.float(asin, "product_price", data.Price, normalize.PriceJSON),
		OriginalPrice: s.float(asin, "product_original_price", data.OriginalPrice, normalize.PriceJSON),
		Currency:      data.Currency.String(),
		Rating:        s.float(asin, "product_star_rating", data.StarRating, normalize.Number),
		URL:           data.URL.String(),
		ImageURL:      data.Photo.String(),
		Availability:  data.Availability.String(),
		SalesVolume:   data.SalesVolume.String(),
		CapturedAt:    s.now(),
		RawData:       compact(payload),
	}
	count, err := normalize.Count(data.NumRatings)
	if err != nil {
		s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Malformed product_num_ratings, storing null: %v", err))
	}
	snap.ReviewCount = count

	if err := s.store.AppendCatalogSnapshot(snap); err != nil {
		return nil, err
	}

	s.logf(models.LogLevelInfo, asin, fmt.Sprintf("Saved to %s: %s at %s %s, Rating: %s, Reviews: %s",
		TableProductData, item.Name, showFloat(snap.Price), snap.Currency, showFloat(snap.Rating), showInt(snap.ReviewCount)))
	return snap, nil
}

// float normalizes one numeric field; malformed values are logged and stored as null
func (s *ProductService) float(asin, field string, raw json.RawMessage, parse func(json.RawMessage) (*float64, error)) *float64 {
	v, err := parse(raw)
	if err != nil {
		s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Malformed %s, storing null: %v", field, err))
		return nil
	}
	return v
}

// =============================================================================
// Detail snapshots
// =============================================================================

// SaveDetailSnapshot appends a row only when the serialized detail blocks
// differ from the most recent row stored for the ASIN.
func (s *ProductService) SaveDetailSnapshot(asin string, payload json.RawMessage) (bool, error) {
	snap, err := s.saveDetailSnapshot(identity.CleanASIN(asin), payload)
	return snap != nil, err
}

func (s *ProductService) saveDetailSnapshot(asin string, payload json.RawMessage) (*models.DetailSnapshot, error) {
	data, err := s.decode(asin, TableProductDetails, payload)
	if err != nil {
		return nil, err
	}

	snap := &models.DetailSnapshot{
		ASIN:        asin,
		Title:       data.Title.String(),
		Details:     serialize(data.Details, "{}"),
		Information: serialize(data.Information, "{}"),
		Photos:      serialize(data.Photos, "[]"),
		Videos:      serialize(data.Videos, "[]"),
	}

	latest, err := s.store.LatestDetailSnapshot(asin)
	if err != nil {
		return nil, fmt.Errorf("load latest details: %w", err)
	}
	if snap.SameContent(latest) {
		s.logf(models.LogLevelInfo, asin, fmt.Sprintf("Product details for ASIN %s are unchanged, skipping", asin))
		return nil, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("row id: %w", err)
	}
	snap.ID = id.String()
	snap.CapturedAt = s.now()

	if err := s.store.AppendDetailSnapshot(snap); err != nil {
		return nil, err
	}

	s.logf(models.LogLevelInfo, asin, fmt.Sprintf("Saved to %s: %s", TableProductDetails, snap.Title))
	return snap, nil
}

// =============================================================================
// Reviews
// =============================================================================

// SaveReviews appends reviews whose id has not been stored for the ASIN and
// returns how many were written. Reviews without an id are always written.
func (s *ProductService) SaveReviews(asin string, payload json.RawMessage) (int, error) {
	reviews, err := s.saveReviews(identity.CleanASIN(asin), payload)
	return len(reviews), err
}

func (s *ProductService) saveReviews(asin string, payload json.RawMessage) ([]models.Review, error) {
	entries, err := models.DecodeTopReviews(payload)
	if err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	if len(entries) == 0 {
		s.logf(models.LogLevelInfo, asin, fmt.Sprintf("No reviews found for ASIN %s", asin))
		return nil, ErrNoReviews
	}

	seen, err := s.store.ReviewIDs(asin)
	if err != nil {
		return nil, fmt.Errorf("load review ids: %w", err)
	}

	captured := s.now()
	var fresh []models.Review
	for i, entry := range entries {
		var rv models.ReviewData
		if err := json.Unmarshal(entry, &rv); err != nil {
			s.logf(models.LogLevelWarn, asin, fmt.Sprintf("Skipping malformed review %d for ASIN %s: %v", i, asin, err))
			continue
		}

		reviewID := rv.ReviewID.String()
		if reviewID != "" {
			if _, ok := seen[reviewID]; ok {
				continue
			}
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("row id: %w", err)
		}
		fresh = append(fresh, models.Review{
			ID:               id.String(),
			ASIN:             asin,
			ReviewID:         reviewID,
			Title:            rv.Title.String(),
			Comment:          rv.Comment.String(),
			StarRating:       s.float(asin, "review_star_rating", rv.StarRating, normalize.Number),
			Link:             rv.Link.String(),
			Author:           rv.Author.String(),
			Date:             rv.Date.String(),
			VerifiedPurchase: normalize.Truthy(rv.IsVerifiedPurchase),
			HelpfulVotes:     rv.HelpfulVoteStatement.String(),
			Images:           serialize(rv.Images, "[]"),
			CapturedAt:       captured,
		})
		if reviewID != "" {
			seen[reviewID] = struct{}{}
		}
	}

	if len(fresh) > 0 {
		if err := s.store.AppendReviews(fresh); err != nil {
			return nil, err
		}
	}

	s.logf(models.LogLevelInfo, asin, fmt.Sprintf("Saved %d new reviews for ASIN %s", len(fresh), asin))
	return fresh, nil
}

// =============================================================================
// Helpers
// =============================================================================

// decode extracts the data object, reporting ErrNoData when it is absent
func (s *ProductService) decode(asin, table string, payload json.RawMessage) (*models.ProductData, error) {
	data, err := models.DecodeProductData(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if data == nil {
		s.logf(models.LogLevelWarn, asin, fmt.Sprintf("No data found in API response for ASIN %s (%s)", asin, table))
		return nil, ErrNoData
	}
	return data, nil
}

// serialize renders a payload block as compact JSON, using def when it is absent or null
func serialize(raw json.RawMessage, def string) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return def
	}
	return string(compact(trimmed))
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func showFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *v)
}

func showInt(v *int64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *v)
}
