package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// helper to read all JSON objects from buffer
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	s := bufio.NewScanner(buf)
	var out []map[string]any
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line: %s err=%v", line, err)
		}
		out = append(out, m)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}
	return out
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	if err := SetLevel("info"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	Debug("debug message should be filtered")
	Info("info message", "k", 1)

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["msg"].(string) != "info message" {
		t.Fatalf("unexpected message: %+v", records[0])
	}

	buf.Reset()
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	Debug("visible debug", "a", 2)
	records = decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record after debug, got %d", len(records))
	}
	if lvl, ok := records[0]["level"].(string); !ok || lvl != "DEBUG" {
		t.Fatalf("expected DEBUG level, got %v", records[0]["level"])
	}
}

func TestFieldExtractionContainerTrack(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	l := WithTrack(WithContainer(Logger(), "build-1234"), "track-0", "video")
	l.Info("container opened", "extra", 42)

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	required := []string{"build_id", "track_id", "track_kind"}
	for _, k := range required {
		if _, ok := rec[k]; !ok {
			t.Fatalf("missing field %s in record: %+v", k, rec)
		}
	}
	if rec["build_id"].(string) != "build-1234" {
		t.Fatalf("build_id mismatch: %v", rec["build_id"])
	}
	if rec["track_id"].(string) != "track-0" {
		t.Fatalf("track_id mismatch: %v", rec["track_id"])
	}
	if rec["track_kind"].(string) != "video" {
		t.Fatalf("track_kind mismatch: %v", rec["track_kind"])
	}
}

func TestFieldExtractionRatchetBlock(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	l := WithRatchet(Logger(), "H4-LIVING-AESGCM-HKDF-SHA256-v3", 7, 3)
	l.Warn("counter rejected")

	records := decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec["suite"].(string) != "H4-LIVING-AESGCM-HKDF-SHA256-v3" {
		t.Fatalf("suite mismatch: %v", rec["suite"])
	}
	if int(rec["send_counter"].(float64)) != 7 {
		t.Fatalf("send_counter mismatch: %v", rec["send_counter"])
	}
	if int(rec["recv_counter"].(float64)) != 3 {
		t.Fatalf("recv_counter mismatch: %v", rec["recv_counter"])
	}

	buf.Reset()
	bl := WithBlock(Logger(), "track-1", 120000, 42)
	bl.Info("block resolved")
	records = decodeLines(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec = records[0]
	if rec["track_id"].(string) != "track-1" {
		t.Fatalf("track_id mismatch: %v", rec["track_id"])
	}
	if int(rec["pts_us"].(float64)) != 120000 {
		t.Fatalf("pts_us mismatch: %v", rec["pts_us"])
	}
	if int(rec["core_index"].(float64)) != 42 {
		t.Fatalf("core_index mismatch: %v", rec["core_index"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
	}
	for in, expect := range cases {
		if err := SetLevel(in); err != nil {
			t.Fatalf("SetLevel(%s): %v", in, err)
		}
		if got := strings.ToUpper(Level()); !strings.Contains(got, expect) {
			t.Fatalf("expected %s got %s", expect, got)
		}
	}
	if err := SetLevel("bogus"); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
