// Package ctwire decodes the RFC 6962 `leaf_input`/`extra_data` binary
// framing returned by a CT log's `get-entries` endpoint, continuing the
// cryptobyte idiom used elsewhere in this module for fixed wire formats.
package ctwire

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// ErrTruncated means the buffer ended before a fixed-size or
// length-prefixed field could be fully read.
var ErrTruncated = fmt.Errorf("ctwire: truncated input")

// ErrOverlongField means a length-delimited sub-structure had bytes left
// over after all of its expected fields were read.
var ErrOverlongField = fmt.Errorf("ctwire: overlong field")

// ErrUnsupportedLeaf means the MerkleTreeLeaf version or leaf_type was not
// the RFC 6962 v1 timestamped_entry this decoder understands.
var ErrUnsupportedLeaf = fmt.Errorf("ctwire: unsupported leaf version or type")

// ErrUnknownEntryType is returned by DecodeExtraData when asked to decode
// extra_data for an entry type this decoder has no chain grammar for.
type ErrUnknownEntryType struct {
	Type LogEntryType
}

func (e *ErrUnknownEntryType) Error() string {
	return fmt.Sprintf("ctwire: unknown entry type %d", uint16(e.Type))
}

// LogEntryType is the CT LogEntryType enum (RFC 6962 §3.1), widened to
// tolerate values this decoder doesn't recognize rather than rejecting the
// whole leaf: unknown values decode into OtherEntry.
type LogEntryType uint16

const (
	EntryTypeX509    LogEntryType = 0
	EntryTypePreCert LogEntryType = 1
)

// SignedEntry is the select(entry_type) variant of TimestampedEntry's
// signed_entry field. It is implemented by X509Entry, PreCertEntry, and
// OtherEntry.
type SignedEntry interface {
	isSignedEntry()
}

// X509Entry is the signed_entry variant for entry_type == x509_entry: the
// full leaf certificate DER, despite RFC 6962 calling its length field
// tbs_cert_len.
type X509Entry struct {
	CertDER []byte
}

func (X509Entry) isSignedEntry() {}

// PreCertEntry is the signed_entry variant for entry_type == precert_entry.
// TBSDER holds the DER TBSCertificate of the pre-certificate (RFC 6962's
// tbs_certificate field), not a full certificate.
type PreCertEntry struct {
	IssuerKeyHash [32]byte
	TBSDER        []byte
}

func (PreCertEntry) isSignedEntry() {}

// OtherEntry is the fallback signed_entry variant for any entry_type this
// decoder does not have a dedicated grammar for. Raw holds the remaining
// leaf_input bytes after the timestamp and entry_type, undecoded.
type OtherEntry struct {
	Type LogEntryType
	Raw  []byte
}

func (OtherEntry) isSignedEntry() {}

// TimestampedEntry is RFC 6962's TimestampedEntry, decoded from a
// get-entries leaf_input.
type TimestampedEntry struct {
	Timestamp    uint64
	EntryType    LogEntryType
	Signed       SignedEntry
	CTExtensions []byte

	// TrailingBytes holds any bytes left in leaf_input past the end of the
	// MerkleTreeLeaf structure. Tolerated, never an error: informational
	// only.
	TrailingBytes []byte
}

// X509Chain is extra_data's X509ChainEntry: the issuer chain submitted
// alongside an x509_entry leaf. The leaf certificate itself is not
// repeated here; it lives in TimestampedEntry.Signed.
type X509Chain struct {
	Certs [][]byte
}

// PreCertChainEntry is extra_data's PrecertChainEntry: the actual
// pre-certificate (as submitted, poison extension and all) plus its issuer
// chain.
type PreCertChainEntry struct {
	PreCertDER []byte
	Chain      [][]byte
}

// RawEntry is one get-entries array element before wire decoding.
type RawEntry struct {
	LeafInput []byte
	ExtraData []byte
}

// DecodeTimestampedEntry decodes a get-entries leaf_input: the RFC 6962
// MerkleTreeLeaf version(1)/leaf_type(1) header followed by a
// TimestampedEntry.
func DecodeTimestampedEntry(leafInput []byte) (*TimestampedEntry, error) {
	s := cryptobyte.String(leafInput)

	var version, leafType uint8
	if !s.ReadUint8(&version) || !s.ReadUint8(&leafType) {
		return nil, ErrTruncated
	}
	if version != 0 || leafType != 0 {
		return nil, ErrUnsupportedLeaf
	}

	var timestamp uint64
	var entryTypeRaw uint16
	if !s.ReadUint64(&timestamp) || !s.ReadUint16(&entryTypeRaw) {
		return nil, ErrTruncated
	}
	entryType := LogEntryType(entryTypeRaw)

	te := &TimestampedEntry{
		Timestamp: timestamp,
		EntryType: entryType,
	}

	switch entryType {
	case EntryTypeX509:
		var certDER cryptobyte.String
		if !s.ReadUint24LengthPrefixed(&certDER) {
			return nil, ErrTruncated
		}
		te.Signed = X509Entry{CertDER: []byte(certDER)}
	case EntryTypePreCert:
		var issuerKeyHash [32]byte
		var tbsDER cryptobyte.String
		if !s.CopyBytes(issuerKeyHash[:]) || !s.ReadUint24LengthPrefixed(&tbsDER) {
			return nil, ErrTruncated
		}
		te.Signed = PreCertEntry{IssuerKeyHash: issuerKeyHash, TBSDER: []byte(tbsDER)}
	default:
		// OtherEntry carries whatever is left of leaf_input undecoded: we
		// cannot know the select(entry_type) shape for an entry type we
		// don't recognize, so the CTExtensions field below is skipped and
		// the rest of the buffer is handed back verbatim.
		te.Signed = OtherEntry{Type: entryType, Raw: []byte(s)}
		te.TrailingBytes = nil
		return te, nil
	}

	var ctExtensions cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&ctExtensions) {
		return nil, ErrTruncated
	}
	te.CTExtensions = []byte(ctExtensions)
	te.TrailingBytes = []byte(s)

	return te, nil
}

// DecodeExtraData decodes a get-entries extra_data blob according to the
// select(entry_type) grammar RFC 6962 §3.4 defines for it, returning
// *X509Chain for EntryTypeX509 or *PreCertChainEntry for EntryTypePreCert.
// Trailing bytes after the chain vector, at the outermost extra_data
// boundary, are tolerated and ignored.
func DecodeExtraData(entryType LogEntryType, extraData []byte) (any, error) {
	switch entryType {
	case EntryTypeX509:
		chain, _, err := readASN1CertVector(cryptobyte.String(extraData))
		if err != nil {
			return nil, err
		}
		return &X509Chain{Certs: chain}, nil
	case EntryTypePreCert:
		s := cryptobyte.String(extraData)
		var preCertDER cryptobyte.String
		if !s.ReadUint24LengthPrefixed(&preCertDER) {
			return nil, ErrTruncated
		}
		chain, _, err := readASN1CertVector(s)
		if err != nil {
			return nil, err
		}
		return &PreCertChainEntry{PreCertDER: []byte(preCertDER), Chain: chain}, nil
	default:
		return nil, &ErrUnknownEntryType{Type: entryType}
	}
}

// readASN1CertVector reads a `ASN1Cert chain<0..2^24-1>` vector: an outer
// uint24 length prefix bounding a run of individually uint24-length-prefixed
// certificate DER blobs.
func readASN1CertVector(s cryptobyte.String) ([][]byte, cryptobyte.String, error) {
	var vector cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&vector) {
		return nil, s, ErrTruncated
	}

	var certs [][]byte
	for !vector.Empty() {
		var cert cryptobyte.String
		if !vector.ReadUint24LengthPrefixed(&cert) {
			return nil, s, ErrTruncated
		}
		certs = append(certs, []byte(cert))
	}
	return certs, s, nil
}
