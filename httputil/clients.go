package httputil

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	APITimeout   = 30 * time.Second
	RetryTimeout = 60 * time.Second
)

type Clients struct {
	API   *http.Client // first attempt
	Retry *http.Client // single retry after a timeout
}

// NewClients builds the product API clients, routed through proxyURL when set
func NewClients(proxyURL string) (*Clients, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Clients{
		API:   &http.Client{Timeout: APITimeout, Transport: transport},
		Retry: &http.Client{Timeout: RetryTimeout, Transport: transport},
	}, nil
}
