package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unauthorized reports whether the API rejected the credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func newAPIError(status int, body []byte, fallback string) *APIError {
	msg := extractMessage(body)
	if msg == "" {
		msg = fallback
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", status)
		}
	}
	return &APIError{StatusCode: status, Message: msg}
}

// extractMessage pulls a human-readable message out of an error payload.
// The well-known keys are checked first, then the first string value in
// document order, which is how field validation errors are reported.
func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if raw, ok := obj[key]; ok {
				if msg := firstString(raw); msg != "" {
					return msg
				}
			}
		}
	}

	return firstString(body)
}

// firstString walks the JSON tokens of data and returns the first string
// value, skipping object keys.
func firstString(data []byte) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []bool
	expectKey := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				objects = append(objects, true)
				expectKey = true
			case '[':
				objects = append(objects, false)
				expectKey = false
			default:
				objects = objects[:len(objects)-1]
				expectKey = len(objects) > 0 && objects[len(objects)-1]
			}
			continue
		case string:
			if expectKey {
				expectKey = false
				continue
			}
			if v != "" {
				return v
			}
		}

		if len(objects) > 0 && objects[len(objects)-1] {
			expectKey = true
		}
	}
}
