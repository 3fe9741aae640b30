package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"catalog_tracker/config"
	"catalog_tracker/httputil"
	"catalog_tracker/logging"
	"catalog_tracker/models"
)

const productDetailsPath = "/product-details"

// APIHandler fetches product details from the RapidAPI real-time product data API
type APIHandler struct {
	cfg     *config.APIConfig
	clients *httputil.Clients
	logf    logging.LogFunc
}

func NewAPIHandler(cfg *config.APIConfig, clients *httputil.Clients, logf logging.LogFunc) *APIHandler {
	if logf == nil {
		logf = logging.NoOp
	}
	return &APIHandler{
		cfg:     cfg,
		clients: clients,
		logf:    logf,
	}
}

// Fetch requests one ASIN. A timed-out request is retried once with the
// longer retry client.
func (h *APIHandler) Fetch(ctx context.Context, asin string) (json.RawMessage, error) {
	payload, err := h.fetch(ctx, h.clients.API, asin)
	if err == nil || !isTimeout(err) || ctx.Err() != nil {
		return payload, err
	}

	h.logf(models.LogLevelWarn, asin, fmt.Sprintf("Timeout for ASIN %s, retrying with longer timeout", asin))
	payload, err = h.fetch(ctx, h.clients.Retry, asin)
	if err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}
	return payload, nil
}

func (h *APIHandler) fetch(ctx context.Context, client *http.Client, asin string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", h.endpoint(asin), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-key", h.cfg.Key)
	req.Header.Set("x-rapidapi-host", h.cfg.Host)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("product API returned invalid JSON (%d bytes)", len(body))
	}
	return json.RawMessage(body), nil
}

func (h *APIHandler) endpoint(asin string) string {
	q := url.Values{}
	q.Set("asin", asin)
	q.Set("country", h.cfg.Country)
	q.Set("language", h.cfg.Language)
	return strings.TrimRight(h.cfg.BaseURL, "/") + productDetailsPath + "?" + q.Encode()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
