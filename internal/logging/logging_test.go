package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestLogstashWriterDropsWhileUnreachable(t *testing.T) {
	w, err := NewLogstashWriter("logstash:5000", WithRetryInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewLogstashWriter: %v", err)
	}
	dials := 0
	w.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	for i := 0; i < 3; i++ {
		n, err := w.Write([]byte("line"))
		if err != nil || n != 4 {
			t.Fatalf("Write = %d, %v", n, err)
		}
	}
	if dials != 1 {
		t.Fatalf("expected a single dial during the cool-down, got %d", dials)
	}
	if w.Dropped() != 3 {
		t.Fatalf("Dropped = %d", w.Dropped())
	}
	stats := w.Stats()
	if stats.Connected || stats.Sent != 0 || stats.Dropped != 3 || stats.LastError != "connection refused" {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLogstashWriterTerminatesLines(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	w, err := NewLogstashWriter("logstash:5000", WithWriteTimeout(0))
	if err != nil {
		t.Fatalf("NewLogstashWriter: %v", err)
	}
	w.dial = func(network, addr string, timeout time.Duration) (net.Conn, error) {
		return client, nil
	}

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		got <- string(buf[:n])
	}()

	if _, err := w.Write([]byte(`{"msg":"hi"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if line := <-got; line != "{\"msg\":\"hi\"}\n" {
		t.Fatalf("unexpected line %q", line)
	}
	if stats := w.Stats(); !stats.Connected || stats.Sent != 1 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Fatalf("expected an error after Close")
	}
}

func TestWithFieldsEnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, slog.LevelInfo, "json")

	ctx := NewContext(context.Background(), base)
	ctx = WithFields(ctx, "run_id", "r-1")
	FromContext(ctx).Info("stage done", "stage", "parse-init")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["run_id"] != "r-1" || entry["stage"] != "parse-init" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if FromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected the default logger without a context logger")
	}
}
