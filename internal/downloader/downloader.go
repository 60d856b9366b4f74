// Package downloader implements the ranged, adaptively-batched walk over a
// CT log's get-entries endpoint, grounded on the step-size-30 algorithm of
// the tool this module descends from and on the fetch/parse separation
// other CT scanners in the ecosystem use.
package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	ct "github.com/google/certificate-transparency-go"

	"ctoidscan.dev/internal/ctwire"
)

// STEP_SIZE is the maximum batch size requested from get-entries (and the
// initial one for ranges of at least STEP_SIZE entries), matching the
// ground-truth algorithm's constant.
const STEP_SIZE int64 = 30

// ErrEmptyBatch is returned when a get-entries request legitimately
// returns zero entries before the requested range is exhausted. Since a
// well-behaved log never returns an empty batch before reaching the tree
// size, this is treated as a terminal condition for the walk rather than
// something to retry.
var ErrEmptyBatch = fmt.Errorf("downloader: get-entries returned no entries")

// HTTPError wraps a non-200 get-entries response.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("downloader: get-entries returned status %d: %s", e.Status, e.Body)
}

// ErrTransport wraps a lower-level network/transport failure that survived
// retrying.
var ErrTransport = fmt.Errorf("downloader: transport error")

// Sink receives each successfully fetched batch, in order, as it becomes
// available. batchStart is the log index of entries[0].
type Sink func(batchStart int64, entries []ctwire.RawEntry) error

// DownloadRange walks [start, end] (both inclusive, matching the ground-truth
// algorithm's `..=` range) of baseURL's get-entries endpoint with adaptive
// batching: it starts by requesting min(STEP_SIZE, end-start+1) entries, and after each response
// narrows its next request size to min(STEP_SIZE, count) entries actually
// returned, since a log MAY return fewer entries than requested. A response
// with zero entries before the range is exhausted is reported as
// ErrEmptyBatch; DownloadRange never retries past that point itself, leaving
// the forward-progress contract to the caller.
func DownloadRange(ctx context.Context, client *http.Client, baseURL string, start, end int64, sink Sink) error {
	if end < start {
		return nil
	}

	cur := start
	batchHint := min64(STEP_SIZE, end-start+1)

	for cur <= end {
		batchEnd := cur + batchHint - 1
		if batchEnd > end {
			batchEnd = end
		}

		entries, err := fetchEntries(ctx, client, baseURL, cur, batchEnd)
		if err != nil {
			return err
		}

		count := int64(len(entries))
		if count == 0 {
			return fmt.Errorf("%w: requested [%d,%d]", ErrEmptyBatch, cur, batchEnd)
		}

		if err := sink(cur, entries); err != nil {
			return fmt.Errorf("downloader: sink rejected batch starting at %d: %w", cur, err)
		}

		cur += count
		batchHint = min64(STEP_SIZE, count)
	}

	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// fetchEntries performs one get-entries HTTP round trip, retried via
// retry-go to absorb transient 5xx/connection failures. Retrying happens
// strictly within this single call: it never masks a legitimate
// zero-entry response, which is returned to the caller as-is for
// DownloadRange to turn into ErrEmptyBatch.
func fetchEntries(ctx context.Context, client *http.Client, baseURL string, start, end int64) ([]ctwire.RawEntry, error) {
	url := fmt.Sprintf("%s/ct/v1/get-entries?start=%d&end=%d", baseURL, start, end)

	var entries []ctwire.RawEntry
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("%w: %v", ErrTransport, err))
			}

			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransport, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransport, err)
			}

			if resp.StatusCode != http.StatusOK {
				httpErr := &HTTPError{Status: resp.StatusCode, Body: body}
				if resp.StatusCode >= 500 {
					return httpErr
				}
				return retry.Unrecoverable(httpErr)
			}

			var parsed ct.GetEntriesResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return retry.Unrecoverable(fmt.Errorf("%w: decoding get-entries response: %v", ErrTransport, err))
			}

			entries = make([]ctwire.RawEntry, len(parsed.Entries))
			for i, e := range parsed.Entries {
				entries[i] = ctwire.RawEntry{LeafInput: e.LeafInput, ExtraData: e.ExtraData}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
