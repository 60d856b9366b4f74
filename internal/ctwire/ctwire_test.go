package ctwire

import (
	"errors"
	"testing"
)

func uint24(n int) []byte {
	return []byte{byte(n >> 16), byte(n >> 8), byte(n)}
}

func buildX509LeafInput(timestamp uint64, cert []byte, ctExt []byte) []byte {
	buf := []byte{0, 0} // version v1, leaf_type timestamped_entry
	ts := make([]byte, 8)
	for i := 0; i < 8; i++ {
		ts[i] = byte(timestamp >> (8 * (7 - i)))
	}
	buf = append(buf, ts...)
	buf = append(buf, 0, 0) // entry_type = x509_entry
	buf = append(buf, uint24(len(cert))...)
	buf = append(buf, cert...)
	buf = append(buf, byte(len(ctExt)>>8), byte(len(ctExt)))
	buf = append(buf, ctExt...)
	return buf
}

func TestDecodeTimestampedEntry_X509(t *testing.T) {
	cert := []byte("fake-cert-der")
	leaf := buildX509LeafInput(12345, cert, nil)

	te, err := DecodeTimestampedEntry(leaf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if te.Timestamp != 12345 {
		t.Fatalf("timestamp mismatch: got %d", te.Timestamp)
	}
	if te.EntryType != EntryTypeX509 {
		t.Fatalf("entry type mismatch: got %d", te.EntryType)
	}
	x509e, ok := te.Signed.(X509Entry)
	if !ok {
		t.Fatalf("expected X509Entry, got %T", te.Signed)
	}
	if string(x509e.CertDER) != string(cert) {
		t.Fatalf("cert mismatch: got %q", x509e.CertDER)
	}
	if len(te.TrailingBytes) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(te.TrailingBytes))
	}
}

func TestDecodeTimestampedEntry_PreCert(t *testing.T) {
	var issuerKeyHash [32]byte
	for i := range issuerKeyHash {
		issuerKeyHash[i] = byte(i)
	}
	tbs := []byte("fake-tbs-der")

	buf := []byte{0, 0}
	ts := make([]byte, 8)
	buf = append(buf, ts...)
	buf = append(buf, 0, 1) // entry_type = precert_entry
	buf = append(buf, issuerKeyHash[:]...)
	buf = append(buf, uint24(len(tbs))...)
	buf = append(buf, tbs...)
	buf = append(buf, 0, 0) // empty ct extensions
	buf = append(buf, 0xAA, 0xBB) // trailing bytes, tolerated

	te, err := DecodeTimestampedEntry(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc, ok := te.Signed.(PreCertEntry)
	if !ok {
		t.Fatalf("expected PreCertEntry, got %T", te.Signed)
	}
	if pc.IssuerKeyHash != issuerKeyHash {
		t.Fatalf("issuer key hash mismatch")
	}
	if string(pc.TBSDER) != string(tbs) {
		t.Fatalf("tbs mismatch: got %q", pc.TBSDER)
	}
	if len(te.TrailingBytes) != 2 {
		t.Fatalf("expected 2 trailing bytes, got %d", len(te.TrailingBytes))
	}
}

func TestDecodeTimestampedEntry_UnknownEntryTypeWidens(t *testing.T) {
	buf := []byte{0, 0}
	buf = append(buf, make([]byte, 8)...)
	buf = append(buf, 0, 99) // unrecognized entry_type
	buf = append(buf, 1, 2, 3, 4)

	te, err := DecodeTimestampedEntry(buf)
	if err != nil {
		t.Fatalf("unexpected error for unknown entry type: %v", err)
	}
	other, ok := te.Signed.(OtherEntry)
	if !ok {
		t.Fatalf("expected OtherEntry, got %T", te.Signed)
	}
	if other.Type != 99 {
		t.Fatalf("expected type 99, got %d", other.Type)
	}
}

func TestDecodeTimestampedEntry_Truncated(t *testing.T) {
	_, err := DecodeTimestampedEntry([]byte{0, 0, 1, 2, 3})
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeTimestampedEntry_UnsupportedVersion(t *testing.T) {
	buf := []byte{1, 0}
	buf = append(buf, make([]byte, 16)...)
	_, err := DecodeTimestampedEntry(buf)
	if !errors.Is(err, ErrUnsupportedLeaf) {
		t.Fatalf("expected ErrUnsupportedLeaf, got %v", err)
	}
}

func TestDecodeExtraData_X509Chain(t *testing.T) {
	issuer1 := []byte("issuer-one")
	issuer2 := []byte("issuer-two")
	var vector []byte
	vector = append(vector, uint24(len(issuer1))...)
	vector = append(vector, issuer1...)
	vector = append(vector, uint24(len(issuer2))...)
	vector = append(vector, issuer2...)

	extraData := append(uint24(len(vector)), vector...)

	got, err := DecodeExtraData(EntryTypeX509, extraData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chain, ok := got.(*X509Chain)
	if !ok {
		t.Fatalf("expected *X509Chain, got %T", got)
	}
	if len(chain.Certs) != 2 || string(chain.Certs[0]) != "issuer-one" || string(chain.Certs[1]) != "issuer-two" {
		t.Fatalf("chain mismatch: %v", chain.Certs)
	}
}

func TestDecodeExtraData_PreCertChainEntry(t *testing.T) {
	preCert := []byte("precert-der")
	issuer := []byte("issuer-one")
	var vector []byte
	vector = append(vector, uint24(len(issuer))...)
	vector = append(vector, issuer...)

	extraData := append(uint24(len(preCert)), preCert...)
	extraData = append(extraData, uint24(len(vector))...)
	extraData = append(extraData, vector...)

	got, err := DecodeExtraData(EntryTypePreCert, extraData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc, ok := got.(*PreCertChainEntry)
	if !ok {
		t.Fatalf("expected *PreCertChainEntry, got %T", got)
	}
	if string(pc.PreCertDER) != "precert-der" {
		t.Fatalf("precert mismatch: %q", pc.PreCertDER)
	}
	if len(pc.Chain) != 1 || string(pc.Chain[0]) != "issuer-one" {
		t.Fatalf("chain mismatch: %v", pc.Chain)
	}
}

func TestDecodeExtraData_UnknownEntryType(t *testing.T) {
	_, err := DecodeExtraData(LogEntryType(7), []byte{0, 0, 0})
	var unknown *ErrUnknownEntryType
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *ErrUnknownEntryType, got %v", err)
	}
	if unknown.Type != 7 {
		t.Fatalf("expected type 7, got %d", unknown.Type)
	}
}

// TestDecodeTimestampedEntry_MutationsNeverPanic drives a set of short,
// deterministically mutated inputs through the decoder to assert it
// returns an error instead of panicking on truncated or malformed wire
// data.
func TestDecodeTimestampedEntry_MutationsNeverPanic(t *testing.T) {
	base := buildX509LeafInput(1, []byte("cert"), []byte("ext"))
	for n := 0; n <= len(base); n++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("panic at truncation length %d: %v", n, r)
				}
			}()
			_, _ = DecodeTimestampedEntry(base[:n])
		}()
	}
}
