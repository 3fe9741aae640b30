package httputil

import (
	"net/http"
	"testing"
)

func TestNewClients_Timeouts(t *testing.T) {
	clients, err := NewClients("")
	if err != nil {
		t.Fatalf("new clients: %v", err)
	}
	if clients.API.Timeout != APITimeout || clients.Retry.Timeout != RetryTimeout {
		t.Fatalf("unexpected timeouts %s / %s", clients.API.Timeout, clients.Retry.Timeout)
	}
}

func TestNewClients_Proxy(t *testing.T) {
	clients, err := NewClients("http://127.0.0.1:8888")
	if err != nil {
		t.Fatalf("new clients: %v", err)
	}
	transport := clients.API.Transport.(*http.Transport)
	req, _ := http.NewRequest("GET", "https://example.com", nil)
	proxy, err := transport.Proxy(req)
	if err != nil || proxy == nil || proxy.Host != "127.0.0.1:8888" {
		t.Fatalf("expected proxy to be used, got %v (%v)", proxy, err)
	}

	if _, err := NewClients("://bad"); err == nil {
		t.Fatalf("expected parse error for malformed proxy url")
	}
}
