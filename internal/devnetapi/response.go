// Package devnetapi decodes responses from the starknet-devnet management
// API. Successful endpoints return their payload as a bare JSON document;
// failures carry an {"error": "..."} object, usually alongside a 4xx/5xx
// status.
package devnetapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// APIError is a devnet-reported failure extracted from a response body.
type APIError struct {
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("devnet: %s", e.Message)
}

// ExtractError returns an *APIError when the body is an error envelope,
// nil otherwise.
func ExtractError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var envelope APIError
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Message == "" {
		return nil
	}
	return &envelope
}

// Decode unmarshals a devnet response into out, surfacing error envelopes
// as *APIError. An empty body decodes as JSON null.
func Decode(body []byte, out any) error {
	if err := ExtractError(body); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("devnetapi: decode response: %w", err)
	}
	return nil
}
