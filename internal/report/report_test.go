package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"vidfinder/internal/engine"
	"vidfinder/internal/hashcache"
	"vidfinder/internal/mover"
	"vidfinder/internal/pool"
	"vidfinder/internal/preflight"
	"vidfinder/internal/similarity"
	"vidfinder/internal/video"
	"vidfinder/internal/watched"
)

func sampleResult() *engine.FindResult {
	a := video.File{Path: "/videos/a.mp4", Size: 2 << 20, Duration: 95 * time.Second}
	b := video.File{Path: "/videos/sub/b.mp4", Size: 1 << 20, Duration: 95 * time.Second}
	return &engine.FindResult{
		RunID:  "run-1",
		Root:   "/videos",
		Params: engine.Params{Threshold: 90, Frames: 20, HashSize: 8, TotalBits: 1280, MaxDist: 128},
		Stats:  engine.Stats{Discovered: 1234, Cached: 1200, Computed: 30, Failed: 1, Elapsed: 1500 * time.Millisecond},
		Groups: []similarity.Group{{
			Representative: a,
			Members:        []video.File{a, b},
			AvgSimilarity:  97.5,
			MinSimilarity:  97.5,
			MaxSimilarity:  97.5,
			Edges:          1,
		}},
		Unique:         []video.File{{Path: "/videos/c.mp4"}},
		WatchedDB:      "/db/watched.db",
		WatchedRecords: 10,
		WatchedMatches: []watched.Match{{File: video.File{Path: "/videos/w.mp4"}, Watched: "/old/w.mp4", Similarity: 100}},
		Skipped:        []pool.Failure{{File: video.File{Path: "/videos/short.mp4"}, Reason: "too_short", Detail: "5s"}},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, " yaml ": FormatYAML}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWriteScanTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScan(&buf, FormatTable, sampleResult()); err != nil {
		t.Fatalf("WriteScan: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Group 1: 2 videos, similarity avg 97.5%",
		"keep",
		"sub/b.mp4",
		"2.0 MiB",
		"1:35",
		"Too Short",
		"/old/w.mp4",
		"Scanned 1,234 videos",
		"1 group with 1 duplicate, 1 unique.",
		"10 records, 1 matched",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteScanStructured(t *testing.T) {
	var js bytes.Buffer
	if err := WriteScan(&js, FormatJSON, sampleResult()); err != nil {
		t.Fatalf("WriteScan json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["run_id"] != "run-1" {
		t.Fatalf("unexpected run_id %v", decoded["run_id"])
	}
	if groups, ok := decoded["groups"].([]any); !ok || len(groups) != 1 {
		t.Fatalf("expected one group, got %v", decoded["groups"])
	}

	var ym bytes.Buffer
	if err := WriteScan(&ym, FormatYAML, sampleResult()); err != nil {
		t.Fatalf("WriteScan yaml: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(ym.Bytes(), &doc); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if doc["root"] != "/videos" {
		t.Fatalf("unexpected root %v", doc["root"])
	}
}

func TestWriteScanWithoutGroups(t *testing.T) {
	res := &engine.FindResult{RunID: "r", Root: "/v"}
	var buf bytes.Buffer
	if err := WriteScan(&buf, FormatTable, res); err != nil {
		t.Fatalf("WriteScan: %v", err)
	}
	if !strings.Contains(buf.String(), "No similar videos found.") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteInspectionMarksShortRecords(t *testing.T) {
	in := &engine.Inspection{
		Path:   "/db/watched.db",
		Params: watched.Params{Frames: 20, HashSize: 8},
		Count:  2,
		Records: []watched.Record{
			{Path: "/a.mp4", Frames: 20},
			{Path: "/b.mp4", Frames: 12},
		},
	}
	var buf bytes.Buffer
	if err := WriteInspection(&buf, FormatTable, in); err != nil {
		t.Fatalf("WriteInspection: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "1,280 bits") || !strings.Contains(out, "12 short") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestWriteCacheInfoMissing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCacheInfo(&buf, FormatTable, hashcache.Info{Path: "/v/.cache.json"}); err != nil {
		t.Fatalf("WriteCacheInfo: %v", err)
	}
	if !strings.Contains(buf.String(), "not created yet") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteDoctorCountsFailures(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDoctor(&buf, FormatTable, []preflight.Result{
		{Name: "FFmpeg", Passed: true, Detail: "/usr/bin/ffmpeg"},
		{Name: "FFprobe", Detail: "not found"},
	})
	if err != nil {
		t.Fatalf("WriteDoctor: %v", err)
	}
	if !strings.Contains(buf.String(), "1 check failed.") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestWritePlanAndMoves(t *testing.T) {
	plan := mover.Plan{Root: "/v", Moves: []mover.Move{
		{Kind: mover.KindDuplicate, Source: "/v/b.mp4", Dir: "/v/duplicates", Size: 1024},
		{Kind: mover.KindSkipped, Source: "/v/s.mp4", Dir: "/v/skipped", Size: 1024},
	}}
	var buf bytes.Buffer
	if err := WritePlan(&buf, plan); err != nil {
		t.Fatalf("WritePlan: %v", err)
	}
	if !strings.Contains(buf.String(), "About to move 2 files (2.0 KiB)") || !strings.Contains(buf.String(), "1 duplicate -> duplicates") {
		t.Fatalf("unexpected plan output:\n%s", buf.String())
	}

	buf.Reset()
	summary := mover.Summary{
		Moved: []mover.Done{{Move: plan.Moves[0], Dest: "/v/duplicates/b.mp4"}},
		Kept:  []mover.Move{plan.Moves[1]},
		Bytes: 1024,
	}
	if err := WriteMoves(&buf, FormatTable, "/v", summary); err != nil {
		t.Fatalf("WriteMoves: %v", err)
	}
	if !strings.Contains(buf.String(), "Moved 1 file (1.0 KiB), 1 left in place, 0 failed.") {
		t.Fatalf("unexpected moves output:\n%s", buf.String())
	}
}

func TestClock(t *testing.T) {
	cases := map[time.Duration]string{
		0:                         "-",
		59 * time.Second:          "0:59",
		95 * time.Second:          "1:35",
		time.Hour + 2*time.Second: "1:00:02",
		1500 * time.Millisecond:   "0:02",
	}
	for d, want := range cases {
		if got := clock(d); got != want {
			t.Fatalf("clock(%v) = %q, want %q", d, got, want)
		}
	}
}
