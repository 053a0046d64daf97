// Package itemstore holds what the item store backends share.
package itemstore

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// ContentTag fingerprints content for backends with no native tag.
func ContentTag(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// NormalizeKey returns key in Unicode NFC so keys built from decomposed
// file names sort and compare like the keys other backends report.
func NormalizeKey(key string) string {
	return norm.NFC.String(key)
}

// Keys maps the NFC keys a backend reports to the raw keys it stores, so
// reads address the object under its stored name. Safe for concurrent use.
type Keys struct {
	mu  sync.RWMutex
	raw map[string]string
}

// Listing collects one listing's keys. Add the raw keys in any order, then
// Commit to publish the mapping.
type Listing struct {
	keys  *Keys
	raw   map[string]string
	names []string
}

// NewListing starts a listing that replaces the mapping on Commit.
func (k *Keys) NewListing() *Listing {
	return &Listing{keys: k, raw: make(map[string]string)}
}

// Add records raw and returns its normalized key. A second raw key with the
// same normal form is ignored and reported as not added.
func (l *Listing) Add(raw string) (string, bool) {
	key := NormalizeKey(raw)
	if _, dup := l.raw[key]; dup {
		return key, false
	}
	l.raw[key] = raw
	l.names = append(l.names, key)
	return key, true
}

// Commit publishes the mapping and returns the normalized keys in the order
// they were added.
func (l *Listing) Commit() []string {
	l.keys.mu.Lock()
	defer l.keys.mu.Unlock()
	l.keys.raw = l.raw
	return l.names
}

// Raw returns the stored key for a normalized key. Keys the latest listing
// did not see are returned unchanged.
func (k *Keys) Raw(key string) string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if raw, ok := k.raw[NormalizeKey(key)]; ok {
		return raw
	}
	return key
}
