package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/internal/config"
	"github.com/EmmaVellard/SolarConflux/internal/export"
	"github.com/EmmaVellard/SolarConflux/internal/storage"
	"github.com/EmmaVellard/SolarConflux/model"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

// writeOfflineConfig describes two co-located spacecraft plus the Sun, so
// the scan needs no network access.
func writeOfflineConfig(t *testing.T, dir string, modes ...string) string {
	t.Helper()
	cfg := config.ScanConfig{
		Bodies:    []string{"ISS-A", "ISS-B", model.SunBody},
		Start:     "2008-09-20 12:00",
		End:       "2008-09-20 14:00",
		Step:      "60m",
		Modes:     modes,
		OutputDir: filepath.Join(dir, "results"),
		TLE: []ephem.TLE{
			{Name: "ISS-A", Line1: issLine1, Line2: issLine2},
			{Name: "ISS-B", Line1: issLine1, Line2: issLine2},
		},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "scan.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRun_OfflineConeScan(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "text")
	dir := t.TempDir()
	cfgPath := writeOfflineConfig(t, dir, "cone")
	archivePath := filepath.Join(dir, "archive.db")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-config", cfgPath, "-archive", archivePath}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run error: %v\nstderr: %s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "cone: 1 matches found.") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	for _, body := range []string{"ISS-A", "ISS-B", model.SunBody} {
		want := `msg="trajectory loaded" body=` + body + " samples=3"
		if !strings.Contains(stderr.String(), want) {
			t.Fatalf("stderr missing %q:\n%s", want, stderr.String())
		}
	}

	folder := filepath.Join(dir, "results", "2008-09-20_to_2008-09-20")
	f, err := os.Open(filepath.Join(folder, "2008-09-20_to_2008-09-20.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := export.ReadCSV(f)
	if err != nil {
		t.Fatalf("ReadCSV error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Mode != model.ModeCone || !rec.Group.Equal(model.NewGroup("ISS-A", "ISS-B")) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if got := rec.Start.Format("15:04"); got != "12:00" {
		t.Fatalf("expected start 12:00, got %s", got)
	}
	if got := rec.End.Format("15:04"); got != "14:00" {
		t.Fatalf("expected end 14:00, got %s", got)
	}

	svgs, err := filepath.Glob(filepath.Join(folder, "cone", "*.svg"))
	if err != nil || len(svgs) != 1 {
		t.Fatalf("expected one cone figure, got %v (err %v)", svgs, err)
	}

	store, err := storage.New(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer store.Close()
	scans, err := store.ListScans(context.Background())
	if err != nil {
		t.Fatalf("ListScans error: %v", err)
	}
	if len(scans) != 1 {
		t.Fatalf("expected 1 archived scan, got %d", len(scans))
	}
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeOfflineConfig(t, dir, "cone")

	var stdout, stderr bytes.Buffer
	args := []string{"-config", cfgPath, "-modes", "opposition,warp", "-no-plots"}
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run error: %v\nstderr: %s", err, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"opposition: no matches.", "warp: skipped", "No entries to save."} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "cone:") {
		t.Fatalf("config modes should be replaced by -modes:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "results")); !os.IsNotExist(err) {
		t.Fatalf("expected no output directory, stat err: %v", err)
	}
}

func TestRun_ListBodies(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-list-bodies"}, &stdout, &stderr); err != nil {
		t.Fatalf("run error: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"- Earth: NA to NA", "- PSP: 2018-08-12 08:30 to 2024-10-16 17:58"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in listing:\n%s", want, out)
		}
	}
}

func TestRun_RejectsMissingBodies(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-start", "2025-01-01", "-end", "2025-01-02", "-modes", "cone"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "no bodies") {
		t.Fatalf("expected missing bodies error, got %v", err)
	}
}
