package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

func TestLoggerProviderWritesNamedJSONLines(t *testing.T) {
	var buf bytes.Buffer
	provider := newLoggerProvider(&buf, "warn")

	logger := provider.GetLogger("orders")
	logger.Info("heartbeat accepted", "order_id", "O1")
	logger.Warn("sweep failed", "order_id", "O2")

	var lines []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("expected JSON log line, got %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 1 {
		t.Fatalf("expected info to be filtered at warn level, got %v", lines)
	}
	line := lines[0]
	if line["msg"] != "sweep failed" || line["level"] != "warn" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["logger"] != "orders" || line["order_id"] != "O2" {
		t.Fatalf("expected logger name and fields, got %v", line)
	}
}

func TestLoggerProviderDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	provider := newLoggerProvider(&buf, "  ")

	provider.GetLogger("http").Debug("dropped")
	provider.GetLogger("http").Info("kept")

	if bytes.Contains(buf.Bytes(), []byte("dropped")) {
		t.Fatalf("expected debug to be filtered by default, got %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("kept")) {
		t.Fatalf("expected info line, got %s", buf.String())
	}
}
