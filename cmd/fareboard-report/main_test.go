package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/records/memory"
)

func TestParseFlags(t *testing.T) {
	today := core.NewDate(2024, 3, 20)
	tests := []struct {
		name    string
		args    []string
		start   string
		end     string
		g       core.Granularity
		owner   core.OwnerID
		wantErr bool
	}{
		{"defaults", nil, "2024-03-01", "2024-03-20", core.Trip, "default", false},
		{"full", []string{"-start", "2024-01-01", "-end", "2024-01-31", "-granularity", "monthly", "-owner", "acme"}, "2024-01-01", "2024-01-31", core.Monthly, "acme", false},
		{"inverted", []string{"-start", "2024-03-21"}, "", "", "", "", true},
		{"bad granularity", []string{"-granularity", "yearly"}, "", "", "", "", true},
		{"bad owner", []string{"-owner", "../x"}, "", "", "", "", true},
		{"unknown flag", []string{"-format", "csv"}, "", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(tt.args, "default", today)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if opts.start.String() != tt.start || opts.end.String() != tt.end || opts.granularity != tt.g || opts.owner != tt.owner {
				t.Fatalf("opts=%+v", opts)
			}
		})
	}
}

func TestRunWritesTextAndPDF(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	j, err := core.NewJourney("Ada", "+2348012345678", "Lagos", "Ibadan", core.Cents(2500), core.NewDate(2024, 3, 18))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AppendJourney(ctx, "acme", j); err != nil {
		t.Fatal(err)
	}

	pdfPath := filepath.Join(t.TempDir(), "report.pdf")
	opts := options{
		start:       core.NewDate(2024, 3, 1),
		end:         core.NewDate(2024, 3, 31),
		granularity: core.Weekly,
		owner:       "acme",
		pdfPath:     pdfPath,
	}
	var out bytes.Buffer
	if err := run(ctx, store, opts, &out, log.Discard()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "25.00") {
		t.Fatalf("text report missing revenue:\n%s", out.String())
	}
	b, err := os.ReadFile(pdfPath)
	if err != nil || !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatalf("pdf not written: %v", err)
	}
}

func TestRunReportsEmptyRange(t *testing.T) {
	var out bytes.Buffer
	opts := options{start: core.NewDate(2024, 1, 1), end: core.NewDate(2024, 1, 31), granularity: core.Trip, owner: "acme"}
	if err := run(context.Background(), memory.New(), opts, &out, log.Discard()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No journeys in range.") {
		t.Fatalf("output:\n%s", out.String())
	}
}
