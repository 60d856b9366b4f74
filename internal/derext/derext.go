// Package derext extracts the set of X.509v3 extension OIDs present on a
// certificate or a pre-certificate TBSCertificate, without interpreting any
// extension's value.
//
// The descent order mirrors RFC 5280's TBSCertificate layout: version,
// serialNumber, signature, issuer, validity, subject, subjectPublicKeyInfo,
// the optional issuerUniqueID/subjectUniqueID implicit tags, then the
// explicit [3] extensions wrapper.
package derext

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"ctoidscan.dev/internal/ctoid"
)

// ErrMalformedDER means the input could not be parsed as a well-formed DER
// SEQUENCE at the point a tag was expected.
var ErrMalformedDER = fmt.Errorf("derext: malformed DER")

// ErrUnexpectedTag means a DER element was present but carried a tag other
// than the one the TBSCertificate grammar requires at that position.
var ErrUnexpectedTag = fmt.Errorf("derext: unexpected tag")

// Error wraps one of the sentinel kinds above with positional context.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func malformed(msg string) error {
	return &Error{Kind: ErrMalformedDER, Msg: msg}
}

func unexpectedTag(msg string) error {
	return &Error{Kind: ErrUnexpectedTag, Msg: msg}
}

// ExtractFromCertificate parses a full DER-encoded Certificate (the
// SEQUENCE { tbsCertificate, signatureAlgorithm, signature }) and returns
// the OIDs of its TBSCertificate's extensions, in DER order.
func ExtractFromCertificate(certDER []byte) ([]ctoid.OID, error) {
	input := cryptobyte.String(certDER)
	var cert cryptobyte.String
	if !input.ReadASN1(&cert, asn1.SEQUENCE) {
		return nil, malformed("certificate is not a DER SEQUENCE")
	}

	var tbs cryptobyte.String
	if !cert.ReadASN1Element(&tbs, asn1.SEQUENCE) {
		return nil, malformed("certificate has no tbsCertificate element")
	}

	oids, err := pushCertExtensions(tbs)
	if err != nil {
		return nil, err
	}
	return oids, nil
}

// ExtractFromPreCertTBS parses a bare DER-encoded TBSCertificate, as carried
// by a CT PreCert entry's tbs_certificate field, and returns its extension
// OIDs in DER order.
func ExtractFromPreCertTBS(tbsDER []byte) ([]ctoid.OID, error) {
	return pushCertExtensions(cryptobyte.String(tbsDER))
}

// pushCertExtensions descends one TBSCertificate SEQUENCE, skipping every
// field up to and including subjectPublicKeyInfo, then the optional
// unique-ID tags, then reads the explicit [3] extensions wrapper if present.
func pushCertExtensions(tbsElement cryptobyte.String) ([]ctoid.OID, error) {
	var tbs cryptobyte.String
	if !tbsElement.ReadASN1(&tbs, asn1.SEQUENCE) {
		return nil, malformed("tbsCertificate is not a DER SEQUENCE")
	}

	// version is OPTIONAL, context [0] EXPLICIT when present (DER always
	// encodes it for v2/v3 certs; absence means v1).
	if !tbs.SkipOptionalASN1(asn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, malformed("could not skip version")
	}
	// serialNumber (INTEGER)
	if !tbs.SkipASN1(asn1.INTEGER) {
		return nil, malformed("could not skip serialNumber")
	}
	// signature (AlgorithmIdentifier, SEQUENCE)
	if !tbs.SkipASN1(asn1.SEQUENCE) {
		return nil, malformed("could not skip signature AlgorithmIdentifier")
	}
	// issuer (Name, itself a SEQUENCE/CHOICE encoded as SEQUENCE)
	if !tbs.SkipASN1(asn1.SEQUENCE) {
		return nil, malformed("could not skip issuer")
	}
	// validity (SEQUENCE)
	if !tbs.SkipASN1(asn1.SEQUENCE) {
		return nil, malformed("could not skip validity")
	}
	// subject (SEQUENCE)
	if !tbs.SkipASN1(asn1.SEQUENCE) {
		return nil, malformed("could not skip subject")
	}
	// subjectPublicKeyInfo (SEQUENCE)
	if !tbs.SkipASN1(asn1.SEQUENCE) {
		return nil, malformed("could not skip subjectPublicKeyInfo")
	}

	// issuerUniqueID [1] IMPLICIT, subjectUniqueID [2] IMPLICIT: both
	// optional, both skipped without validation if present.
	if !tbs.SkipOptionalASN1(asn1.Tag(1).ContextSpecific()) {
		return nil, malformed("could not skip issuerUniqueID")
	}
	if !tbs.SkipOptionalASN1(asn1.Tag(2).ContextSpecific()) {
		return nil, malformed("could not skip subjectUniqueID")
	}

	var oids []ctoid.OID

	var hasExtensions bool
	var extWrapper cryptobyte.String
	explicitExtTag := asn1.Tag(3).Constructed().ContextSpecific()
	if !tbs.ReadOptionalASN1(&extWrapper, &hasExtensions, explicitExtTag) {
		return nil, unexpectedTag("malformed [3] extensions wrapper")
	}
	if !hasExtensions {
		return oids, nil
	}

	var extSeq cryptobyte.String
	if !extWrapper.ReadASN1(&extSeq, asn1.SEQUENCE) {
		return nil, unexpectedTag("[3] wrapper does not contain a SEQUENCE OF Extension")
	}

	for !extSeq.Empty() {
		var ext cryptobyte.String
		if !extSeq.ReadASN1(&ext, asn1.SEQUENCE) {
			return nil, unexpectedTag("extension entry is not a SEQUENCE")
		}

		var oidBytes cryptobyte.String
		if !ext.ReadASN1(&oidBytes, asn1.OBJECT_IDENTIFIER) {
			return nil, unexpectedTag("extension is missing its extnID")
		}
		oid, err := decodeOIDArcs(oidBytes)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)

		// critical BOOLEAN is OPTIONAL, DEFAULT FALSE; look ahead and skip
		// it if present, never reading its value.
		if !ext.SkipOptionalASN1(asn1.BOOLEAN) {
			return nil, unexpectedTag("malformed critical BOOLEAN")
		}
		// extnValue (OCTET STRING), never interpreted.
		if !ext.SkipASN1(asn1.OCTET_STRING) {
			return nil, unexpectedTag("extension is missing extnValue")
		}
		if !ext.Empty() {
			return nil, unexpectedTag("extension SEQUENCE has trailing data")
		}
	}

	return oids, nil
}

// decodeOIDArcs decodes the base-128 continuation-encoded arcs of a DER
// OBJECT IDENTIFIER body (the bytes of the OID, tag and length already
// stripped) into a ctoid.OID.
func decodeOIDArcs(body []byte) (ctoid.OID, error) {
	if len(body) == 0 {
		return nil, malformed("empty OBJECT IDENTIFIER body")
	}

	var arcs []uint64
	// The first byte encodes the first two arcs as 40*X + Y.
	first := uint64(body[0])
	arcs = append(arcs, first/40, first%40)

	var current uint64
	inArc := false
	for _, b := range body[1:] {
		current = current<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			arcs = append(arcs, current)
			current = 0
			inArc = false
		} else {
			inArc = true
		}
	}
	if inArc {
		return nil, malformed("OBJECT IDENTIFIER body ends mid-arc")
	}

	return ctoid.OID(arcs), nil
}
