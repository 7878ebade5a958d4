package scraper

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	return NewRegistry(RegistryOptions{FetchTimeout: 5 * time.Second, MaxResults: 20})
}

func TestRegistryMemoizesAdapters(t *testing.T) {
	r := newTestRegistry()

	first, err := r.Adapter("souqdirect-sa")
	if err != nil {
		t.Fatalf("Adapter returned error: %v", err)
	}
	second, err := r.Adapter("souqdirect-sa")
	if err != nil {
		t.Fatalf("Adapter returned error: %v", err)
	}
	if first != second {
		t.Error("expected the same adapter instance on repeated lookups")
	}
}

func TestRegistryRejectsUnknownRetailer(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Adapter("unknown-shop")
	if !errors.Is(err, ErrUnsupportedRetailer) {
		t.Errorf("Adapter(unknown) = %v; want ErrUnsupportedRetailer", err)
	}
}

func TestResolveURL(t *testing.T) {
	r := newTestRegistry()

	retailer, err := r.ResolveURL("https://www.souqdirect-sa.example.com/p/123")
	if err != nil {
		t.Fatalf("ResolveURL returned error: %v", err)
	}
	if retailer.ID != "souqdirect-sa" {
		t.Errorf("resolved retailer %q; want souqdirect-sa", retailer.ID)
	}
}

func TestResolveURLFailsClosed(t *testing.T) {
	r := newTestRegistry()

	bad := []string{
		"https://evil.internal/p/1",
		"ftp://souqdirect-sa.example.com/p/1",
		"https://169.254.169.254/latest/meta-data",
	}
	for _, raw := range bad {
		if _, err := r.ResolveURL(raw); !errors.Is(err, ErrUnsupportedRetailer) {
			t.Errorf("ResolveURL(%q) = %v; want ErrUnsupportedRetailer", raw, err)
		}
	}
}
