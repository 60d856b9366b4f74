package downloader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ctoidscan.dev/internal/ctwire"
)

type fakeEntry struct {
	LeafInput string `json:"leaf_input"`
	ExtraData string `json:"extra_data"`
}

type fakeGetEntriesResponse struct {
	Entries []fakeEntry `json:"entries"`
}

func writeEntries(w http.ResponseWriter, n int) {
	resp := fakeGetEntriesResponse{}
	for i := 0; i < n; i++ {
		resp.Entries = append(resp.Entries, fakeEntry{
			LeafInput: base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("leaf-%d", i))),
			ExtraData: base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("extra-%d", i))),
		})
	}
	json.NewEncoder(w).Encode(resp)
}

// TestDownloadRange_SucceedsOnExactRange mirrors scenario S5: a log that
// returns 30, then 30, then 0 entries for requests sized exactly to a
// 60-entry range completes without error and delivers every entry.
func TestDownloadRange_SucceedsOnExactRange(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		switch requestCount {
		case 1, 2:
			writeEntries(w, 30)
		default:
			writeEntries(w, 0)
		}
	}))
	defer srv.Close()

	var totalSeen int64
	var batchStarts []int64
	err := DownloadRange(context.Background(), srv.Client(), srv.URL, 0, 59, func(batchStart int64, entries []ctwire.RawEntry) error {
		batchStarts = append(batchStarts, batchStart)
		totalSeen += int64(len(entries))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totalSeen != 60 {
		t.Fatalf("expected 60 entries total, got %d", totalSeen)
	}
	if len(batchStarts) != 2 || batchStarts[0] != 0 || batchStarts[1] != 30 {
		t.Fatalf("unexpected batch starts: %v", batchStarts)
	}
}

// TestDownloadRange_EmptyBatchBeforeRangeExhausted mirrors the failing half
// of S5: a log that stops returning entries before [0,179] is exhausted
// surfaces ErrEmptyBatch instead of looping forever.
func TestDownloadRange_EmptyBatchBeforeRangeExhausted(t *testing.T) {
	var requestCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		switch requestCount {
		case 1, 2, 3:
			writeEntries(w, 30)
		default:
			writeEntries(w, 0)
		}
	}))
	defer srv.Close()

	err := DownloadRange(context.Background(), srv.Client(), srv.URL, 0, 179, func(batchStart int64, entries []ctwire.RawEntry) error {
		return nil
	})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestDownloadRange_EmptyInputRangeIsNoop(t *testing.T) {
	called := false
	err := DownloadRange(context.Background(), http.DefaultClient, "http://unused.invalid", 10, 9, func(int64, []ctwire.RawEntry) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("sink should not be called for an empty range")
	}
}

func TestDownloadRange_HTTPErrorIsNotRetriedForever(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	err := DownloadRange(context.Background(), srv.Client(), srv.URL, 0, 29, func(int64, []ctwire.RawEntry) error {
		return nil
	})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", httpErr.Status)
	}
}
