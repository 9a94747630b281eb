package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// The version suffix leaves room for a future algorithm migration.
const (
	DomainLibrary = "spark/library/v1"
	DomainEntries = "spark/entries/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the domain-separated SHA-256 of v's canonical JSON form.
func Digest(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// EntriesDigest fingerprints an ordered list of entries.
// Clients use it to tell whether a cached snapshot is stale.
func EntriesDigest(entries []Entry) string {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e.canonical()
	}
	digest, err := Digest(DomainEntries, list)
	if err != nil {
		// Entries only contain integers and booleans.
		panic(fmt.Sprintf("EntriesDigest: %v", err))
	}
	return digest
}

// canonical returns the entry in the value shapes MarshalCanonical accepts.
func (e Entry) canonical() map[string]any {
	return map[string]any{
		"action":      uint32(e.Action),
		"trigger":     uint32(e.Trigger),
		"application": uint32(e.Application),
		"overwrite":   e.Overwrite,
	}
}

// Canonical returns the object in the value shapes MarshalCanonical accepts.
func (o Object) Canonical() map[string]any {
	attrs := make(map[string]any, len(o.Attributes))
	for k, v := range o.Attributes {
		attrs[k] = v
	}
	return map[string]any{
		"kind":       o.Kind,
		"name":       o.Name,
		"attributes": attrs,
	}
}

// CanonicalEntry exposes the canonical shape of an entry to other packages.
func CanonicalEntry(e Entry) map[string]any { return e.canonical() }
