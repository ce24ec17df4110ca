package httpcore

import (
	"strings"
	"sync"

	"golang.org/x/net/http/httpguts"
)

const (
	maxHeaderKeyLen   = 16384
	maxHeaderValueLen = 32768
)

// NormalizePolicy selects how HeaderCollection rewrites a key on insertion.
type NormalizePolicy int

const (
	// TitleCase rewrites "content-type" to "Content-Type", the HTTP/1.1 wire form.
	TitleCase NormalizePolicy = iota
	// LowerCase rewrites to all-lowercase, the HTTP/2-style form.
	LowerCase
	// NoChange leaves the key exactly as given; used by tests.
	NoChange
)

// Header is a single name/value pair as stored in a HeaderCollection.
type Header struct {
	Key   string
	Value string
}

// HeaderCollection is an ordered, thread-safe multimap of headers. Entries
// preserve insertion order; two sequential Cookie entries merge into one.
type HeaderCollection struct {
	mu     sync.Mutex
	policy NormalizePolicy
	items  []Header
}

// NewHeaderCollection returns an empty collection normalizing keys per policy.
func NewHeaderCollection(policy NormalizePolicy) *HeaderCollection {
	return &HeaderCollection{policy: policy}
}

func normalizeKey(policy NormalizePolicy, key string) string {
	switch policy {
	case LowerCase:
		return strings.ToLower(key)
	case NoChange:
		return key
	default:
		return canonicalTitleCase(key)
	}
}

// canonicalTitleCase title-cases a header name on '-' boundaries, e.g.
// "content-type" -> "Content-Type". It does not rely on net/http's
// unexported canonicalization so policy stays test-overridable.
func canonicalTitleCase(key string) string {
	b := []byte(key)
	upperNext := true
	for i, c := range b {
		switch {
		case upperNext && c >= 'a' && c <= 'z':
			b[i] = c - ('a' - 'A')
			upperNext = false
		case c == '-':
			upperNext = true
		default:
			upperNext = false
		}
	}
	return string(b)
}

func validateHeaderName(name string) error {
	if name == "" {
		return errBadHeader(errEmptyHeaderName)
	}
	if len(name) > maxHeaderKeyLen {
		return errBadHeader(errHeaderNameTooLong)
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return errBadHeader(errInvalidHeaderName)
	}
	return nil
}

func validateHeaderValue(value string) error {
	if len(value) > maxHeaderValueLen {
		return errBadHeader(errHeaderValueTooLong)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errBadHeader(errInvalidHeaderValue)
	}
	return nil
}

// Add normalizes name by policy, validates name and value, and appends.
// A second "Cookie" entry is merged into the first by joining with "; ".
func (h *HeaderCollection) Add(name, value string) error {
	if err := validateHeaderName(name); err != nil {
		return err
	}
	if err := validateHeaderValue(value); err != nil {
		return err
	}
	key := normalizeKey(h.policy, name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if strings.EqualFold(key, "Cookie") {
		for i := range h.items {
			if strings.EqualFold(h.items[i].Key, "Cookie") {
				h.items[i].Value = h.items[i].Value + "; " + value
				return nil
			}
		}
	}
	h.items = append(h.items, Header{Key: key, Value: value})
	return nil
}

// addRaw appends without validation or Cookie-merging; used internally by
// the response builder for reserved headers it controls directly.
func (h *HeaderCollection) addRaw(name, value string) {
	key := normalizeKey(h.policy, name)
	h.mu.Lock()
	h.items = append(h.items, Header{Key: key, Value: value})
	h.mu.Unlock()
}

// Merge bulk-inserts every header in other, preserving other's order.
func (h *HeaderCollection) Merge(other *HeaderCollection) error {
	for _, entry := range other.Snapshot() {
		if err := h.Add(entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes every entry with the given name (case-insensitive).
func (h *HeaderCollection) Remove(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.items[:0]
	for _, it := range h.items {
		if !strings.EqualFold(it.Key, name) {
			out = append(out, it)
		}
	}
	h.items = out
}

// Set updates the first occurrence of name in place and removes later
// duplicates; if name is absent it appends. A nil value removes all
// entries with that name.
func (h *HeaderCollection) Set(name string, value *string) error {
	if value == nil {
		h.Remove(name)
		return nil
	}
	if err := validateHeaderName(name); err != nil {
		return err
	}
	if err := validateHeaderValue(*value); err != nil {
		return err
	}
	key := normalizeKey(h.policy, name)

	h.mu.Lock()
	defer h.mu.Unlock()

	found := false
	out := h.items[:0]
	for _, it := range h.items {
		if strings.EqualFold(it.Key, key) {
			if !found {
				it.Value = *value
				it.Key = key
				out = append(out, it)
				found = true
			}
			continue
		}
		out = append(out, it)
	}
	if !found {
		out = append(out, Header{Key: key, Value: *value})
	}
	h.items = out
	return nil
}

// Get returns every matching value joined by ", ", or ("", false) if absent.
func (h *HeaderCollection) Get(name string) (string, bool) {
	all := h.GetAll(name)
	if len(all) == 0 {
		return "", false
	}
	return strings.Join(all, ", "), true
}

// GetAll returns every matching value in insertion order.
func (h *HeaderCollection) GetAll(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, it := range h.items {
		if strings.EqualFold(it.Key, name) {
			out = append(out, it.Value)
		}
	}
	return out
}

// Contains reports whether any entry matches name.
func (h *HeaderCollection) Contains(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, it := range h.items {
		if strings.EqualFold(it.Key, name) {
			return true
		}
	}
	return false
}

// Count returns the total number of entries.
func (h *HeaderCollection) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Snapshot returns a copy of every entry, in insertion order.
func (h *HeaderCollection) Snapshot() []Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Header, len(h.items))
	copy(out, h.items)
	return out
}

// AssignFromLine parses a raw "Name: value" header line (as read off the
// wire, already stripped of its trailing CRLF) and adds it. If the line
// contains no ':', every entry whose raw text matches is removed instead —
// matching the source collection's literal assign-from-line contract.
func (h *HeaderCollection) AssignFromLine(line string) error {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		h.Remove(line)
		return nil
	}
	name := line[:idx]
	value := strings.TrimLeft(line[idx+1:], " ")
	return h.Add(name, value)
}
