package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/volunteermd/internal/config"
	"github.com/david/volunteermd/internal/ingest"
)

func main() {
	mode := flag.String("mode", "", "Opportunity source: remote or sample (defaults to OPPORTUNITY_SOURCE)")
	sources := flag.String("sources", "", "Path to the spreadsheet registry (defaults to OPPORTUNITY_SOURCES_PATH)")
	limit := flag.Int("n", 10, "Number of opportunities to print")
	flag.Parse()

	cfg := config.Load()
	if *mode != "" {
		cfg.OpportunitySource = *mode
	}
	if *sources != "" {
		cfg.SourcesPath = *sources
	}

	strategy := ingest.NewStrategy(cfg, nil)
	cache := ingest.NewCache(strategy, ingest.MinTTL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Printf("Loading opportunities with %s strategy", strategy.Name())
	items, err := cache.Opportunities(ctx, true)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	stats := cache.Stats()
	if stats.LastRun != nil {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Source", "Rows", "Kept", "Rejected", "Duplicates", "Warnings", "Duration", "Error"})
		for _, s := range stats.LastRun.Sources {
			d := (time.Duration(s.DurationMs) * time.Millisecond).String()
			t.AppendRow(table.Row{s.Key, s.Rows, s.Kept, s.Rejected, s.Duplicates, s.Warnings, d, s.Error})
		}
		t.AppendFooter(table.Row{stats.LastRun.Status, "", stats.LastRun.Items, stats.LastRun.Rejected})
		t.Render()
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Organization", "Location", "Time", "Subject"})
	for i, o := range items {
		if i >= *limit {
			break
		}
		t.AppendRow(table.Row{o.ID, o.Title, o.Organization, o.Location, o.TimeCommitment, o.Subject})
	}
	t.Render()
	log.Printf("%d opportunities loaded", len(items))
}
