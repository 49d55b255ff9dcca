package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}

	writeJSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", result["status"])
	}
}

func TestWriteRPCError(t *testing.T) {
	w := httptest.NewRecorder()

	writeRPCError(w, http.StatusInternalServerError, mcpgo.NewRequestId(float64(9)), -32000, "boom")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}

	var result struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Error   struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if result.JSONRPC != "2.0" {
		t.Errorf("Expected jsonrpc 2.0, got %s", result.JSONRPC)
	}
	if result.ID != 9 {
		t.Errorf("Expected id 9, got %d", result.ID)
	}
	if result.Error.Code != -32000 || result.Error.Message != "boom" {
		t.Errorf("Unexpected error body: %+v", result.Error)
	}
}

func TestWriteRPCError_NullID(t *testing.T) {
	w := httptest.NewRecorder()

	writeRPCError(w, http.StatusBadRequest, mcpgo.NewRequestId(nil), -32700, "Parse error")

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	id, present := result["id"]
	if !present || id != nil {
		t.Errorf("Expected id null, got %v (present=%v)", id, present)
	}
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()

	writeAccepted(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
	if w.Body.String() != "Accepted" {
		t.Errorf("Expected body 'Accepted', got %q", w.Body.String())
	}
}
