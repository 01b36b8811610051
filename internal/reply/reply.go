// Package reply decodes the JSON objects models return as their structured replies.
package reply

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"
)

const rawPreviewLen = 200

// MalformedReplyError reports a reply that is not valid JSON. Raw holds the text as received.
type MalformedReplyError struct {
	Raw string
	Err error
}

func (e *MalformedReplyError) Error() string {
	raw := e.Raw
	if len(raw) > rawPreviewLen {
		cut := rawPreviewLen
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	return fmt.Sprintf("malformed reply %q: %v", raw, e.Err)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }

// Parse decodes raw into a T. Only text that is not valid JSON is malformed. Fields
// missing from the reply, or holding a value of the wrong type, are left at their zero
// value; nothing is repaired or guessed.
func Parse[T any](raw string) (T, error) {
	var out T
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, &MalformedReplyError{Raw: raw, Err: errors.New("empty reply")}
	}
	if !json.Valid([]byte(trimmed)) {
		err := json.Unmarshal([]byte(trimmed), new(any))
		return out, &MalformedReplyError{Raw: raw, Err: err}
	}
	// Valid JSON only fails here on type mismatches, and Unmarshal still fills
	// every other field.
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return out, &MalformedReplyError{Raw: raw, Err: err}
		}
		log.Printf("[reply] ignoring %s: %v", fieldName(typeErr), err)
	}
	return out, nil
}

func fieldName(e *json.UnmarshalTypeError) string {
	if e.Field == "" {
		return "reply"
	}
	return "field " + e.Field
}
