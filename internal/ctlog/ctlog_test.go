package ctlog

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewInstrumentedClient_SetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewInstrumentedClient("ctoidscan-test/1.0")
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if gotUA != "ctoidscan-test/1.0" {
		t.Fatalf("expected custom User-Agent, got %q", gotUA)
	}
}

func TestNewInstrumentedClient_DefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewInstrumentedClient("")
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if gotUA != DefaultUserAgent {
		t.Fatalf("expected default User-Agent, got %q", gotUA)
	}
}
