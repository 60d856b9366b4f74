// Package logdir resolves a CT log's submission URL against one of the
// well-known CT log directory JSON documents, returning the log's
// description and its 32-byte LogID (the SHA-256 hash of its SPKI DER).
package logdir

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Well-known CT log directory URLs, grounded in the original tool's two
// trust-level-specific fetches.
const (
	AllLogsURL     = "https://www.gstatic.com/ct/log_list/v3/all_logs_list.json"
	TrustedLogsURL = "https://www.gstatic.com/ct/log_list/v3/log_list.json"
)

// ErrUnknownLog means no log in the fetched directory has a URL matching
// the one requested.
var ErrUnknownLog = fmt.Errorf("logdir: log not found in directory")

// ErrDirectoryFetch wraps a failure to fetch or decode the directory JSON
// itself.
var ErrDirectoryFetch = fmt.Errorf("logdir: could not fetch log directory")

// LogDescriptor is one log's directory entry.
type LogDescriptor struct {
	Description string
	SPKIDER     []byte
	URL         string
}

// LogID is the SHA-256 hash of a log's SPKI DER, used as its cache/storage
// key.
type LogID [32]byte

type operatorList struct {
	Operators []struct {
		Name string `json:"name"`
		Logs []struct {
			Description string `json:"description"`
			Key         string `json:"key"`
			URL         string `json:"url"`
		} `json:"logs"`
	} `json:"operators"`
}

// directoryCache caches a fully-decoded operatorList per directoryURL
// within one process lifetime: the directory rarely changes, and
// dl/filter/scan each call Resolve once at startup.
var directoryCache, _ = lru.New[string, operatorList](8)

// Resolve fetches directoryURL (unless already cached from a prior call in
// this process), finds the entry whose url field equals logURL exactly,
// and returns its LogDescriptor and LogID.
func Resolve(ctx context.Context, client *http.Client, directoryURL, logURL string) (LogDescriptor, LogID, error) {
	list, err := fetchDirectory(ctx, client, directoryURL)
	if err != nil {
		return LogDescriptor{}, LogID{}, err
	}

	for _, op := range list.Operators {
		for _, l := range op.Logs {
			if l.URL != logURL {
				continue
			}
			spki, err := base64.StdEncoding.DecodeString(l.Key)
			if err != nil {
				return LogDescriptor{}, LogID{}, fmt.Errorf("%w: log %q has invalid base64 key: %v", ErrDirectoryFetch, logURL, err)
			}
			desc := LogDescriptor{
				Description: l.Description,
				SPKIDER:     spki,
				URL:         l.URL,
			}
			return desc, LogID(sha256.Sum256(spki)), nil
		}
	}

	return LogDescriptor{}, LogID{}, fmt.Errorf("%w: %q", ErrUnknownLog, logURL)
}

func fetchDirectory(ctx context.Context, client *http.Client, directoryURL string) (operatorList, error) {
	if list, ok := directoryCache.Get(directoryURL); ok {
		return list, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directoryURL, nil)
	if err != nil {
		return operatorList{}, fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return operatorList{}, fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return operatorList{}, fmt.Errorf("%w: %s returned status %d", ErrDirectoryFetch, directoryURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return operatorList{}, fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}

	var list operatorList
	if err := json.Unmarshal(body, &list); err != nil {
		return operatorList{}, fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}

	directoryCache.Add(directoryURL, list)
	return list, nil
}
