package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ItemState tracks one catalog item through a batch:
// pending -> fetched -> persisted | skipped_empty | persist_error.
// fetch_error replaces fetched when the source call itself fails.
type ItemState string

const (
	ItemPending      ItemState = "pending"
	ItemFetched      ItemState = "fetched"
	ItemPersisted    ItemState = "persisted"
	ItemSkippedEmpty ItemState = "skipped_empty"
	ItemPersistError ItemState = "persist_error"
	ItemFetchError   ItemState = "fetch_error"
)

// Terminal reports whether no further transition follows s
func (s ItemState) Terminal() bool {
	switch s {
	case ItemPersisted, ItemSkippedEmpty, ItemPersistError, ItemFetchError:
		return true
	}
	return false
}

type FetchRun struct {
	ID             int64      `json:"id" db:"id"`
	Key            string     `json:"run_key" db:"run_key"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	ItemsTotal     int        `json:"items_total" db:"items_total"`
	ItemsPersisted int        `json:"items_persisted" db:"items_persisted"`
	ItemsSkipped   int        `json:"items_skipped" db:"items_skipped"`
	ItemsFailed    int        `json:"items_failed" db:"items_failed"`
	CatalogRows    int        `json:"catalog_rows" db:"catalog_rows"`
	DetailRows     int        `json:"detail_rows" db:"detail_rows"`
	ReviewRows     int        `json:"review_rows" db:"review_rows"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}

type ItemFetch struct {
	RunID     int64     `json:"run_id" db:"run_id"`
	ASIN      string    `json:"asin" db:"asin"`
	Name      string    `json:"name" db:"name"`
	State     ItemState `json:"state" db:"state"`
	Error     string    `json:"error" db:"error"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
