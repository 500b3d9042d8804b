package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/replay"
	"options-position-lab/internal/reporting"
	"options-position-lab/internal/storage/sqlite"
)

func main() {
	day := flag.String("day", "", "Trading day to report on (YYYY-MM-DD, default: most recent)")
	dataDir := flag.String("data-dir", "data", "Directory holding the per-day store files")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	flag.Parse()

	ctx := context.Background()

	store, err := sqlite.New(sqlite.Options{Dir: *dataDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	target := *day
	if target == "" {
		days, err := store.ListDays(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing trading days: %v\n", err)
			os.Exit(1)
		}
		if len(days) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no trading days found; pass -day explicitly")
			os.Exit(1)
		}
		target = days[0]
	} else if _, err := domain.ParseDay(target); err != nil {
		fmt.Fprintln(os.Stderr, "Error: -day must be formatted YYYY-MM-DD")
		os.Exit(1)
	}

	svc := replay.NewService(replay.Options{Store: store})
	written, err := reporting.NewGenerator(svc).Generate(ctx, target, *outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report for %s: %v\n", target, err)
		os.Exit(1)
	}

	fmt.Printf("Report for %s generated successfully:\n", target)
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
}
