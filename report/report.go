// Package report joins the product tables into a competitive dashboard:
// the latest snapshot per ASIN with its brand and display label, market KPIs,
// and the recent price and review-count trend of each ASIN.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"catalog_tracker/identity"
	"catalog_tracker/models"
	"catalog_tracker/storage"
)

const (
	displayNameLimit = 35
	maxTrendPoints   = 24
	defaultBrand     = "D2C Brand"
	unknownBrand     = "D2C Player"
)

// ItemSummary is the latest view of one tracked ASIN
type ItemSummary struct {
	ASIN          string
	DisplayName   string
	Brand         string
	Price         *float64
	Rating        *float64
	ReviewCount   *int64
	PriceGap      *float64
	PriceMin      *float64
	PriceMax      *float64
	Snapshots     int
	StoredReviews int
	CapturedAt    time.Time
	Trend         []TrendPoint
}

// TrendPoint is one catalog snapshot of an ASIN, oldest first in ItemSummary.Trend
type TrendPoint struct {
	CapturedAt  time.Time
	Price       *float64
	ReviewCount *int64
}

// Dashboard holds the selected items and the KPIs computed over their latest snapshots
type Dashboard struct {
	Items          []ItemSummary
	CompetitiveSet int
	AvgPrice       *float64
	MeanRating     *float64
	TotalReviews   int64
	LatestCapture  time.Time
}

// Load reads all three tables from store and builds the dashboard
func Load(store *storage.CSVStore, selected []string) (*Dashboard, error) {
	catalog, err := store.CatalogSnapshots()
	if err != nil {
		return nil, fmt.Errorf("load catalog snapshots: %w", err)
	}
	details, err := store.DetailSnapshots()
	if err != nil {
		return nil, fmt.Errorf("load detail snapshots: %w", err)
	}
	reviews, err := store.Reviews()
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return Build(catalog, details, reviews, selected), nil
}

// Build computes the dashboard. selected filters by ASIN; empty means all.
func Build(catalog []models.CatalogSnapshot, details []models.DetailSnapshot, reviews []models.Review, selected []string) *Dashboard {
	filter := make(map[string]bool, len(selected))
	for _, asin := range selected {
		if asin = identity.CleanASIN(asin); asin != "" {
			filter[asin] = true
		}
	}

	brands := make(map[string]string)
	for _, d := range details {
		asin := identity.CleanASIN(d.ASIN)
		if _, ok := brands[asin]; !ok {
			brands[asin] = Brand(d.Details)
		}
	}

	stored := make(map[string]int)
	for _, rv := range reviews {
		stored[identity.CleanASIN(rv.ASIN)]++
	}

	// names come from the most recent snapshot of every ASIN, selected or not
	items := make(map[string]*ItemSummary)
	var order []string
	for _, snap := range catalog {
		asin := identity.CleanASIN(snap.ASIN)
		if asin == "" {
			continue
		}
		item, ok := items[asin]
		if !ok {
			item = &ItemSummary{ASIN: asin}
			items[asin] = item
			order = append(order, asin)
		}
		item.Snapshots++
		item.Trend = append(item.Trend, TrendPoint{CapturedAt: snap.CapturedAt, Price: snap.Price, ReviewCount: snap.ReviewCount})
		item.PriceMin = minPtr(item.PriceMin, snap.Price)
		item.PriceMax = maxPtr(item.PriceMax, snap.Price)
		if item.Snapshots == 1 || !snap.CapturedAt.Before(item.CapturedAt) {
			item.DisplayName = DisplayName(snap.ProductName)
			item.Price = snap.Price
			item.Rating = snap.Rating
			item.ReviewCount = snap.ReviewCount
			item.CapturedAt = snap.CapturedAt
		}
	}

	d := &Dashboard{}
	for _, asin := range order {
		if len(filter) > 0 && !filter[asin] {
			continue
		}
		item := items[asin]
		item.Brand = unknownBrand
		if b, ok := brands[asin]; ok {
			item.Brand = b
		}
		item.StoredReviews = stored[asin]
		sort.SliceStable(item.Trend, func(i, j int) bool {
			return item.Trend[i].CapturedAt.Before(item.Trend[j].CapturedAt)
		})
		if len(item.Trend) > maxTrendPoints {
			item.Trend = item.Trend[len(item.Trend)-maxTrendPoints:]
		}
		d.Items = append(d.Items, *item)
	}
	d.CompetitiveSet = len(d.Items)

	var priceSum, ratingSum float64
	var priceN, ratingN int
	for _, item := range d.Items {
		if item.Price != nil {
			priceSum += *item.Price
			priceN++
		}
		if item.Rating != nil {
			ratingSum += *item.Rating
			ratingN++
		}
		if item.ReviewCount != nil {
			d.TotalReviews += *item.ReviewCount
		}
		if item.CapturedAt.After(d.LatestCapture) {
			d.LatestCapture = item.CapturedAt
		}
	}
	if priceN > 0 {
		avg := priceSum / float64(priceN)
		d.AvgPrice = &avg
		for i := range d.Items {
			if p := d.Items[i].Price; p != nil {
				gap := *p - avg
				d.Items[i].PriceGap = &gap
			}
		}
	}
	if ratingN > 0 {
		mean := ratingSum / float64(ratingN)
		d.MeanRating = &mean
	}

	sort.SliceStable(d.Items, func(i, j int) bool {
		return lessPrice(d.Items[i].Price, d.Items[j].Price)
	})
	return d
}

// DisplayName shortens long product names for table output
func DisplayName(name string) string {
	runes := []rune(name)
	if len(runes) > displayNameLimit {
		return string(runes[:displayNameLimit]) + ".."
	}
	return name
}

// Brand reads the Brand key of a stored product_details JSON object.
// Cells exported through spreadsheets sometimes carry doubled quotes,
// so a second parse is attempted with those collapsed.
func Brand(details string) string {
	if strings.TrimSpace(details) == "" {
		return defaultBrand
	}

	for _, candidate := range []string{details, strings.ReplaceAll(details, `""`, `"`)} {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			continue
		}
		switch b := obj["Brand"].(type) {
		case string:
			if b = strings.TrimSpace(b); b != "" {
				return b
			}
		case nil:
		default:
			return fmt.Sprint(b)
		}
		return defaultBrand
	}
	return defaultBrand
}

// lessPrice orders known prices ascending, unknown prices last
func lessPrice(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return *a < *b
}

func minPtr(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v < *cur {
		x := *v
		return &x
	}
	return cur
}

func maxPtr(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v > *cur {
		x := *v
		return &x
	}
	return cur
}
