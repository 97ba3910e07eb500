package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan     = "querymate/plan/v1"
	DomainDocument = "querymate/document/v1"
)

// namespace is the UUID namespace for all querymate fingerprints.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/querymate"))

// hashWithDomain computes a name-based (SHA-1) UUID with domain separation.
// Format: UUIDv5(namespace, domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	name := make([]byte, 0, len(domain)+1+len(data))
	name = append(name, domain...)
	name = append(name, 0x00)
	name = append(name, data...)
	return uuid.NewSHA1(namespace, name).String()
}

// Fingerprint computes a stable identifier for v under the given domain.
// Equal values (by canonical encoding) always produce the same fingerprint.
func Fingerprint(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, v Value) string {
	id, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return id
}
