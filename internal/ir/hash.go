package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "xform/graph/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content address of a graph.
// Debug info does not contribute; variable ids, avals, primitives, literal
// text and output atoms do.
func Fingerprint(g *Graph) (string, error) {
	obj, err := canonicalGraph(g)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustFingerprint(g *Graph) string {
	fp, err := Fingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}
