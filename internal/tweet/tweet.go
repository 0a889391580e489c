// Package tweet decodes raw tweet payloads and massages them into rows
// BigQuery accepts.
package tweet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Payload is a decoded tweet. Numbers are json.Number so that 64-bit IDs
// survive the round trip.
type Payload map[string]any

var (
	// ErrNotObject is returned when a payload is valid JSON but not an object.
	ErrNotObject = errors.New("tweet payload is not a JSON object")
)

const (
	createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"
	// BigQuery TIMESTAMP literal, always UTC
	timestampLayout = "2006-01-02 15:04:05"
)

// Decode parses a single JSON object.
func Decode(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode tweet: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode tweet: unexpected data after object")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Payload(obj), nil
}

// Text returns the tweet text, or "" when it is missing or not a string.
func Text(p Payload) string {
	s, _ := p["text"].(string)
	return s
}

// ID returns id_str, or "" when it is missing.
func ID(p Payload) string {
	s, _ := p["id_str"].(string)
	return s
}

// FormatCreatedAt converts Twitter's created_at format
// ("Tue Oct 18 07:01:50 +0000 2016") to a UTC BigQuery timestamp
// ("2016-10-18 07:01:50").
func FormatCreatedAt(s string) (string, error) {
	t, err := time.Parse(createdAtLayout, s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(timestampLayout), nil
}

// Filter selects tweets for sentiment annotation.
type Filter struct {
	// Keyword must appear in the text, ignoring case. Empty matches all.
	Keyword string
	// Language must equal lang, ignoring case. Empty matches all.
	Language string
}

// Match reports whether p has string text and lang fields that satisfy f.
func (f Filter) Match(p Payload) bool {
	text, ok := p["text"].(string)
	if !ok {
		return false
	}
	lang, ok := p["lang"].(string)
	if !ok {
		return false
	}

	if f.Keyword != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(f.Keyword)) {
		return false
	}
	if f.Language != "" && !strings.EqualFold(lang, f.Language) {
		return false
	}
	return true
}
