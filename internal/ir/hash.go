package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix allows
// the algorithm to change without colliding with old hashes.
const (
	DomainDocument = "mfnet/document/v1"
	DomainInputs   = "mfnet/inputs/v1"
	DomainOutputs  = "mfnet/outputs/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// removes domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentHash is the content-addressed identity of doc. Two documents hash
// equal exactly when their canonical forms are equal, so node order, link
// order and parameter values all count while map iteration order does not.
func DocumentHash(doc *Document) (string, error) {
	canonical, err := MarshalCanonical(doc.IR())
	if err != nil {
		return "", fmt.Errorf("DocumentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// InputsHash fingerprints the graph inputs of one evaluation, keyed by
// input name.
func InputsHash(inputs IRObject) (string, error) {
	canonical, err := MarshalCanonical(inputs)
	if err != nil {
		return "", fmt.Errorf("InputsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInputs, canonical), nil
}

// OutputsHash fingerprints a set of evaluated outputs, keyed by output name.
func OutputsHash(outputs IRObject) (string, error) {
	canonical, err := MarshalCanonical(outputs)
	if err != nil {
		return "", fmt.Errorf("OutputsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOutputs, canonical), nil
}

// MustDocumentHash is like DocumentHash but panics on error.
// Use only in tests or when the document is known to be valid.
func MustDocumentHash(doc *Document) string {
	h, err := DocumentHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
