package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog_tracker/models"
)

// PostgresStore mirrors appended rows into Postgres. The CSV tables stay the
// source of truth; rows are keyed by the same UUIDv7 ids.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_snapshots (
		id UUID PRIMARY KEY,
		product_name TEXT,
		asin TEXT NOT NULL,
		price DOUBLE PRECISION,
		original_price DOUBLE PRECISION,
		currency TEXT,
		rating DOUBLE PRECISION,
		review_count BIGINT,
		url TEXT,
		image_url TEXT,
		availability TEXT,
		sales_volume TEXT,
		captured_at TIMESTAMPTZ NOT NULL,
		raw_data JSONB
	);

	CREATE TABLE IF NOT EXISTS detail_snapshots (
		id UUID PRIMARY KEY,
		asin TEXT NOT NULL,
		product_title TEXT,
		product_details JSONB,
		product_information JSONB,
		product_photos JSONB,
		product_videos JSONB,
		captured_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS product_reviews (
		id UUID PRIMARY KEY,
		asin TEXT NOT NULL,
		review_id TEXT,
		review_title TEXT,
		review_comment TEXT,
		review_star_rating DOUBLE PRECISION,
		review_link TEXT,
		review_author TEXT,
		review_date TEXT,
		is_verified_purchase BOOLEAN,
		helpful_vote_statement TEXT,
		review_images JSONB,
		captured_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_asin ON catalog_snapshots(asin, captured_at);
	CREATE INDEX IF NOT EXISTS idx_detail_asin ON detail_snapshots(asin, captured_at);
	CREATE INDEX IF NOT EXISTS idx_reviews_asin ON product_reviews(asin, review_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Mirror writes
// =============================================================================

func (s *PostgresStore) MirrorCatalogSnapshot(ctx context.Context, snap *models.CatalogSnapshot) error {
	query := `
		INSERT INTO catalog_snapshots (
			id, product_name, asin, price, original_price, currency, rating,
			review_count, url, image_url, availability, sales_volume, captured_at, raw_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`

	id, err := rowID(snap.ID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query,
		id, snap.ProductName, snap.ASIN, snap.Price, snap.OriginalPrice, snap.Currency,
		snap.Rating, snap.ReviewCount, snap.URL, snap.ImageURL, snap.Availability,
		snap.SalesVolume, snap.CapturedAt, jsonbOrNil(string(snap.RawData)))
	return err
}

func (s *PostgresStore) MirrorDetailSnapshot(ctx context.Context, snap *models.DetailSnapshot) error {
	query := `
		INSERT INTO detail_snapshots (
			id, asin, product_title, product_details, product_information,
			product_photos, product_videos, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	id, err := rowID(snap.ID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query,
		id, snap.ASIN, snap.Title, jsonbOrNil(snap.Details), jsonbOrNil(snap.Information),
		jsonbOrNil(snap.Photos), jsonbOrNil(snap.Videos), snap.CapturedAt)
	return err
}

// MirrorReviews sends all reviews in one batch
func (s *PostgresStore) MirrorReviews(ctx context.Context, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	query := `
		INSERT INTO product_reviews (
			id, asin, review_id, review_title, review_comment, review_star_rating,
			review_link, review_author, review_date, is_verified_purchase,
			helpful_vote_statement, review_images, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, rv := range reviews {
		id, err := rowID(rv.ID)
		if err != nil {
			return err
		}
		batch.Queue(query,
			id, rv.ASIN, rv.ReviewID, rv.Title, rv.Comment, rv.StarRating,
			rv.Link, rv.Author, rv.Date, rv.VerifiedPurchase,
			rv.HelpfulVotes, jsonbOrNil(rv.Images), rv.CapturedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range reviews {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("mirror review: %w", err)
		}
	}
	return nil
}

// =============================================================================
// Reads
// =============================================================================

// CountRows returns the number of mirrored rows per table
func (s *PostgresStore) CountRows(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	for _, table := range []string{"catalog_snapshots", "detail_snapshots", "product_reviews"} {
		var n int64
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func rowID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("row id %q: %w", id, err)
	}
	return u, nil
}

func jsonbOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
