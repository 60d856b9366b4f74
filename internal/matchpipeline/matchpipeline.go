// Package matchpipeline composes the log directory resolver, downloader,
// entry cache, CT binary decoder, and DER extractor into the four
// operator-facing modes: Download (populate the cache only), Filter (scan
// already-cached entries), Scan (download and filter in one pass, without
// persisting to the cache), and LiveStream (tail new leaves as they're
// sequenced).
package matchpipeline

import (
	"context"
	"fmt"
	"net/http"

	"ctoidscan.dev/internal/ctlive"
	"ctoidscan.dev/internal/ctoid"
	"ctoidscan.dev/internal/ctwire"
	"ctoidscan.dev/internal/derext"
	"ctoidscan.dev/internal/downloader"
	"ctoidscan.dev/internal/entrycache"
	"ctoidscan.dev/internal/logdir"
)

// Match is one matching download/filter/scan-mode result: the index of the
// entry in the log, the raw certificate or TBSCertificate DER that
// matched, and its issuer chain.
type Match struct {
	Index     uint64
	CertOrTBS []byte
	Chain     [][]byte
}

// LiveMatch is one matching live-stream result.
type LiveMatch struct {
	LeafDER []byte
	Chain   [][]byte
}

// CacheMissing is a non-fatal, sweep-halting signal raised by Filter when
// it encounters an index with no cached entry: the caller is expected to
// log it at Warn and stop the sweep, per the error handling design.
type CacheMissing struct {
	Index uint64
}

func (e *CacheMissing) Error() string {
	return fmt.Sprintf("matchpipeline: no cached entry at index %d", e.Index)
}

// Download fetches [start, end] (inclusive) from the log identified by
// logURL via directoryURL and stores every entry in the cache. It never
// matches anything; its only effect is populating cache.
func Download(ctx context.Context, client *http.Client, directoryURL, logURL string, start, end int64, cache *entrycache.Cache) error {
	_, _, err := logdir.Resolve(ctx, client, directoryURL, logURL)
	if err != nil {
		return err
	}

	return downloader.DownloadRange(ctx, client, logURL, start, end, func(batchStart int64, entries []ctwire.RawEntry) error {
		return cache.PutBatch(ctx, uint64(batchStart), entries)
	})
}

// Filter scans [start, end] (inclusive) of already-cached entries for
// extension OIDs in oids, without contacting the log. It stops at the first
// index with no cached entry and returns a *CacheMissing error.
func Filter(ctx context.Context, cache *entrycache.Cache, oids *ctoid.Set, start, end uint64) ([]Match, error) {
	var matches []Match

	for index := start; index <= end; index++ {
		raw, found, err := cache.Get(ctx, index)
		if err != nil {
			return matches, err
		}
		if !found {
			return matches, &CacheMissing{Index: index}
		}

		match, matched, err := evaluateEntry(index, raw)
		if err != nil {
			return matches, fmt.Errorf("matchpipeline: decoding cached entry %d: %w", index, err)
		}
		if matched && oids.Intersects(match.oids) {
			matches = append(matches, match.toMatch())
		}
	}

	return matches, nil
}

// Scan downloads [start, end] (inclusive) from the log and evaluates each
// entry in-flight against oids, without ever persisting entries to a cache.
func Scan(ctx context.Context, client *http.Client, directoryURL, logURL string, oids *ctoid.Set, start, end int64) ([]Match, error) {
	_, _, err := logdir.Resolve(ctx, client, directoryURL, logURL)
	if err != nil {
		return nil, err
	}

	var matches []Match
	err = downloader.DownloadRange(ctx, client, logURL, start, end, func(batchStart int64, entries []ctwire.RawEntry) error {
		for i, raw := range entries {
			index := uint64(batchStart) + uint64(i)
			match, matched, err := evaluateEntry(index, raw)
			if err != nil {
				return fmt.Errorf("decoding entry %d: %w", index, err)
			}
			if matched && oids.Intersects(match.oids) {
				matches = append(matches, match.toMatch())
			}
		}
		return nil
	})
	if err != nil {
		return matches, err
	}
	return matches, nil
}

// LiveStream tails client for new leaves, evaluating each against oids and
// invoking onMatch for every match. It logs its own progress externally:
// every 1000th leaf processed is reported through onProgress (nil-safe) so
// the CLI can print the "Reached N many certs" style counter without
// matchpipeline depending on a particular logger.
func LiveStream(ctx context.Context, tail ctlive.Client, oids *ctoid.Set, onMatch func(LiveMatch), onProgress func(count int64)) error {
	var count int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := tail.Next(ctx)
		if err != nil {
			return err
		}

		for _, leaf := range batch.Certs {
			count++
			if onProgress != nil && count%1000 == 0 {
				onProgress(count)
			}

			oidsFound, err := derext.ExtractFromCertificate(leaf.LeafDER)
			if err != nil {
				// A cert the extractor can't parse can't be evaluated; skip
				// it rather than aborting the whole tail.
				continue
			}
			if oids.Intersects(oidsFound) {
				onMatch(LiveMatch{LeafDER: leaf.LeafDER, Chain: leaf.Chain})
			}
		}
	}
}

type evaluatedEntry struct {
	index     uint64
	certOrTBS []byte
	chain     [][]byte
	oids      []ctoid.OID
}

func (e evaluatedEntry) toMatch() Match {
	return Match{Index: e.index, CertOrTBS: e.certOrTBS, Chain: e.chain}
}

// evaluateEntry decodes a raw cache/download entry's leaf_input and
// extra_data and, for the entry types this decoder understands, extracts
// its extension OIDs and issuer chain. matched is false (not an error) for
// widened/unsupported entry types, since spec.md's forward-compatible
// widening means an unrecognized leaf type is skipped, not fatal.
func evaluateEntry(index uint64, raw ctwire.RawEntry) (evaluatedEntry, bool, error) {
	te, err := ctwire.DecodeTimestampedEntry(raw.LeafInput)
	if err != nil {
		return evaluatedEntry{}, false, err
	}

	switch signed := te.Signed.(type) {
	case ctwire.X509Entry:
		oids, err := derext.ExtractFromCertificate(signed.CertDER)
		if err != nil {
			return evaluatedEntry{}, false, err
		}
		decoded, err := ctwire.DecodeExtraData(te.EntryType, raw.ExtraData)
		if err != nil {
			return evaluatedEntry{}, false, err
		}
		x509Chain, ok := decoded.(*ctwire.X509Chain)
		if !ok {
			return evaluatedEntry{}, false, fmt.Errorf("matchpipeline: extra_data for X509 entry decoded as %T", decoded)
		}
		return evaluatedEntry{index: index, certOrTBS: signed.CertDER, chain: x509Chain.Certs, oids: oids}, true, nil
	case ctwire.PreCertEntry:
		oids, err := derext.ExtractFromPreCertTBS(signed.TBSDER)
		if err != nil {
			return evaluatedEntry{}, false, err
		}
		decoded, err := ctwire.DecodeExtraData(te.EntryType, raw.ExtraData)
		if err != nil {
			return evaluatedEntry{}, false, err
		}
		preCertChain, ok := decoded.(*ctwire.PreCertChainEntry)
		if !ok {
			return evaluatedEntry{}, false, fmt.Errorf("matchpipeline: extra_data for PreCert entry decoded as %T", decoded)
		}
		return evaluatedEntry{index: index, certOrTBS: signed.TBSDER, chain: preCertChain.Chain, oids: oids}, true, nil
	default:
		return evaluatedEntry{}, false, nil
	}
}
