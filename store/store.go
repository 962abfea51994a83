// Package store persists the record of previously posted articles across
// runs. The durable state is a single JSON document mapping article URLs to
// records; legacy document shapes from earlier versions are upgraded at load
// time.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/araddon/dateparse"
)

// DocumentVersion is the current on-disk schema version.
const DocumentVersion = 2

// Record describes one previously posted article.
type Record struct {
	PostedAt    time.Time
	Fingerprint string
}

// Store is the in-memory dedup state, keyed by article URL.
type Store struct {
	path       string
	maxRecords int
	records    map[string]Record
}

// document is the persisted envelope.
type document struct {
	Version int                   `json:"version"`
	Records map[string]recordJSON `json:"records"`
}

type recordJSON struct {
	Timestamp string `json:"timestamp"`
	Hash      string `json:"hash"`
}

// Load reads persisted state from path. A missing or malformed file yields
// an empty store: corrupt state is treated as no history, never as an error.
func Load(path string, maxRecords int) *Store {
	s := &Store{
		path:       path,
		maxRecords: maxRecords,
		records:    make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read state file, starting empty", "path", path, "error", err)
		}
		return s
	}

	s.records = decodeDocument(data, time.Now())
	return s
}

// decodeDocument parses any supported document shape. Unrecognized or
// malformed input yields an empty record set.
//
// Supported shapes:
//
//	v2: {"version": 2, "records": {url: {"timestamp": ..., "hash": ...}}}
//	v1: {url: {"timestamp": ..., "hash": ...}}  (no envelope)
//	v0: {url: "timestamp"} or a bare "url" string
func decodeDocument(data []byte, now time.Time) map[string]Record {
	records := make(map[string]Record)

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("state file is not valid JSON, starting empty", "error", err)
		return records
	}

	// v0: a single bare URL string, the oldest format.
	var link string
	if err := json.Unmarshal(raw, &link); err == nil {
		if link != "" {
			records[link] = Record{PostedAt: now}
		}
		return records
	}

	var versioned struct {
		Version int             `json:"version"`
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(raw, &versioned); err != nil {
		slog.Warn("state file has unexpected shape, starting empty", "error", err)
		return records
	}

	if versioned.Version >= DocumentVersion && versioned.Records != nil {
		return decodeRecordMap(versioned.Records, now)
	}

	// No envelope: a legacy top-level map of url -> record or url -> timestamp.
	return decodeRecordMap(raw, now)
}

func decodeRecordMap(data json.RawMessage, now time.Time) map[string]Record {
	records := make(map[string]Record)

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("state records have unexpected shape, starting empty", "error", err)
		return records
	}

	for url, entry := range entries {
		// v0 entries are bare timestamp strings; later versions are objects.
		var ts string
		if err := json.Unmarshal(entry, &ts); err == nil {
			records[url] = Record{PostedAt: parseTimestamp(ts, now)}
			continue
		}

		var rec recordJSON
		if err := json.Unmarshal(entry, &rec); err != nil {
			slog.Warn("skipping malformed state record", "url", url, "error", err)
			continue
		}
		records[url] = Record{
			PostedAt:    parseTimestamp(rec.Timestamp, now),
			Fingerprint: rec.Hash,
		}
	}

	return records
}

// parseTimestamp tolerates the ISO-8601 variants earlier versions wrote,
// including zone-less ones. Unparseable timestamps keep the record but date
// it now, so it survives until evicted by capacity.
func parseTimestamp(s string, now time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t
	}
	return now
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// ContainsURL reports whether url has already been posted.
func (s *Store) ContainsURL(url string) bool {
	_, ok := s.records[url]
	return ok
}

// FindByFingerprint returns the URL of an existing record with the given
// content fingerprint. Empty fingerprints never match: articles whose
// normalized text is empty are excluded from content duplicate detection.
func (s *Store) FindByFingerprint(fp string) (string, bool) {
	if fp == "" {
		return "", false
	}
	for url, rec := range s.records {
		if rec.Fingerprint == fp {
			return url, true
		}
	}
	return "", false
}

// MarkPosted inserts or overwrites the record for url, fingerprinting the
// given title and summary.
func (s *Store) MarkPosted(url, title, summary string, now time.Time) {
	s.records[url] = Record{
		PostedAt:    now,
		Fingerprint: Fingerprint(title, summary),
	}
}

// Save evicts the oldest records beyond capacity and persists the document
// atomically: the state is written to a temp file and renamed over the old
// one, so a crash mid-write leaves the prior file intact.
func (s *Store) Save() error {
	s.prune()

	doc := document{
		Version: DocumentVersion,
		Records: make(map[string]recordJSON, len(s.records)),
	}
	for url, rec := range s.records {
		doc.Records[url] = recordJSON{
			Timestamp: rec.PostedAt.Format(time.RFC3339),
			Hash:      rec.Fingerprint,
		}
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// prune evicts oldest-by-PostedAt records until the store is at capacity.
func (s *Store) prune() {
	if s.maxRecords <= 0 || len(s.records) <= s.maxRecords {
		return
	}

	type entry struct {
		url string
		rec Record
	}
	entries := make([]entry, 0, len(s.records))
	for url, rec := range s.records {
		entries = append(entries, entry{url, rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].rec.PostedAt.Before(entries[j].rec.PostedAt)
	})

	evict := len(entries) - s.maxRecords
	for _, e := range entries[:evict] {
		delete(s.records, e.url)
	}
	slog.Info("evicted old state records", "evicted", evict, "kept", len(s.records))
}
