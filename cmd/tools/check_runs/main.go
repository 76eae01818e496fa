package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/volunteermd/internal/config"
	"github.com/david/volunteermd/internal/db"
	"github.com/david/volunteermd/internal/ingest"
)

func main() {
	limit := flag.Int("limit", 10, "Number of runs to show")
	details := flag.Bool("details", false, "Print the per-source breakdown of the latest run")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	runs, err := store.ListRefreshRuns(ctx, *limit)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Strategy", "Status", "Items", "OK", "Failed", "Rejected", "Duration", "Started At"})
	for _, r := range runs {
		duration := (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Millisecond).String()
		t.AppendRow(table.Row{r.Strategy, r.Status, r.Items, r.SourcesOK, r.SourcesFailed, r.Rejected, duration, r.StartedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.Render()

	if !*details || len(runs) == 0 {
		return
	}

	var sources []ingest.SourceStat
	if err := json.Unmarshal([]byte(runs[0].Details), &sources); err != nil {
		// Failed cycles store the error text instead of a breakdown.
		log.Printf("Latest run: %s", runs[0].Details)
		return
	}
	st := table.NewWriter()
	st.SetOutputMirror(os.Stdout)
	st.AppendHeader(table.Row{"Source", "Rows", "Kept", "Rejected", "Duplicates", "Error"})
	for _, s := range sources {
		st.AppendRow(table.Row{s.Key, s.Rows, s.Kept, s.Rejected, s.Duplicates, s.Error})
	}
	st.Render()
}
