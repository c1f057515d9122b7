package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/keelerlabs/lenderctl/internal/config"
	"github.com/keelerlabs/lenderctl/internal/model"
)

func sampleEnvelope(data any) model.Envelope {
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
	}
}

func TestRenderJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	env := sampleEnvelope(map[string]any{"tx_digest": "abc", "amount": "100"})
	if err := Render(&buf, env, config.Settings{OutputMode: "json"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["success"] != true {
		t.Fatalf("envelope fields missing: %v", decoded)
	}
}

func TestRenderResultsOnly(t *testing.T) {
	var buf bytes.Buffer
	env := sampleEnvelope(map[string]any{"amount": "100"})
	settings := config.Settings{OutputMode: "json", ResultsOnly: true}
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := decoded["success"]; ok {
		t.Fatalf("results-only output must drop the envelope: %v", decoded)
	}
	if decoded["amount"] != "100" {
		t.Fatalf("data payload lost: %v", decoded)
	}
}

func TestRenderSelectProjection(t *testing.T) {
	var buf bytes.Buffer
	env := sampleEnvelope([]map[string]any{
		{"module": "market", "function": "borrow_entry", "score": 12},
		{"module": "market", "function": "withdraw_collateral_entry", "score": 17},
	})
	settings := config.Settings{OutputMode: "json", ResultsOnly: true, SelectFields: []string{"function"}}
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(decoded))
	}
	for _, item := range decoded {
		if len(item) != 1 {
			t.Fatalf("projection kept extra fields: %v", item)
		}
		if _, ok := item["function"]; !ok {
			t.Fatalf("selected field missing: %v", item)
		}
	}
}

func TestRenderPlainSortedKeyValues(t *testing.T) {
	var buf bytes.Buffer
	env := sampleEnvelope(map[string]any{"b": 2, "a": 1})
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line != "a=1 b=2" {
		t.Fatalf("plain line = %q, want sorted key=value pairs", line)
	}
}

func TestRenderPlainEmptySlice(t *testing.T) {
	var buf bytes.Buffer
	env := sampleEnvelope([]map[string]any{})
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Fatalf("empty slice render = %q", buf.String())
	}
}
