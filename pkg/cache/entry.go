package cache

import (
	"net/http"
	"time"
)

// Entry is a stored catalog response body together with its validators.
type Entry struct {
	Body         []byte    `json:"body"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
	StoredAt     time.Time `json:"stored_at"`
}

// NewEntry builds an entry from a successful response and its already-read body.
// It returns nil when the response carries no validator, since such an entry
// could never be revalidated.
func NewEntry(resp *http.Response, body []byte) *Entry {
	if resp == nil {
		return nil
	}

	entry := &Entry{
		Body:     body,
		ETag:     resp.Header.Get("ETag"),
		StoredAt: time.Now(),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if parsed, err := http.ParseTime(lm); err == nil {
			entry.LastModified = parsed
		}
	}

	if !entry.Revalidatable() {
		return nil
	}
	return entry
}

// Revalidatable reports whether a conditional request can be made for the entry.
func (e *Entry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}

// ApplyConditional sets If-None-Match (preferred) or If-Modified-Since on req.
func (e *Entry) ApplyConditional(req *http.Request) {
	if req == nil || !e.Revalidatable() {
		return
	}

	if e.ETag != "" {
		req.Header.Set("If-None-Match", e.ETag)
		return
	}
	req.Header.Set("If-Modified-Since", e.LastModified.UTC().Format(http.TimeFormat))
}
