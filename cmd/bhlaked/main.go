// bhlaked runs the medallion pipeline over the BH transit feeds.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bhmob/bhlake/internal/pipeline"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "config file path")
	layersFlag := flag.String("layers", "", "comma-separated layers to run (default: bronze,silver,gold)")
	skipBronze := flag.Bool("skip-bronze", false, "reprocess existing raw data without fetching")
	printJSON := flag.Bool("json", false, "print the run result as JSON")
	flag.Parse()

	p, err := pipeline.New(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bhlaked %s: %v\n", Version, err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM cancel in-flight fetches; completed stages keep their
	// written files.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var layers []string
	if *layersFlag != "" {
		for _, layer := range strings.Split(*layersFlag, ",") {
			if layer = strings.TrimSpace(layer); layer != "" {
				layers = append(layers, layer)
			}
		}
	}

	result := p.Run(ctx, layers, *skipBronze)

	if *printJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		}
	} else {
		printSummary(result)
	}

	if !result.Success {
		os.Exit(1)
	}
}

func printSummary(result pipeline.Result) {
	fmt.Printf("execution %s: %s in %.2fs\n",
		result.ExecutionID, result.Status, result.DurationSeconds)
	for _, layer := range []string{pipeline.LayerBronze, pipeline.LayerSilver, pipeline.LayerGold} {
		outcomes, ok := result.Layers[layer]
		if !ok {
			continue
		}
		fmt.Printf("  %s:\n", layer)
		for name, o := range outcomes {
			fmt.Printf("    %-28s %s\n", name, o.String())
		}
	}
}
