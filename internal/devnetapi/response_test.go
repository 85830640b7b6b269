package devnetapi

import (
	"errors"
	"testing"
)

func TestDecodePayload(t *testing.T) {
	var payload struct {
		NewBalance string `json:"new_balance"`
		Unit       string `json:"unit"`
	}
	body := []byte(`{"new_balance":"1000000000000000000","unit":"WEI","tx_hash":"0x1"}`)
	if err := Decode(body, &payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.NewBalance != "1000000000000000000" || payload.Unit != "WEI" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestDecodeErrorEnvelope(t *testing.T) {
	var out any
	err := Decode([]byte(`{"error":"account not found"}`), &out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "account not found" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	var out *int
	if err := Decode(nil, &out); err != nil {
		t.Fatalf("Decode empty: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}

func TestExtractErrorIgnoresPlainPayloads(t *testing.T) {
	if err := ExtractError([]byte(`{"alive":true}`)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := ExtractError([]byte(`[1,2,3]`)); err != nil {
		t.Fatalf("expected nil for array body, got %v", err)
	}
}
