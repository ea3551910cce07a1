// bhlakectl is an interactive SQL console over the lake's parquet files.
//
// With a terminal attached it runs a prompt with completion over the lake
// views and common SQL keywords. When stdin is piped it executes each
// input line as a statement and exits, which makes it scriptable:
//
//	echo "SELECT count(*) FROM silver_vehicle_positions" | bhlakectl
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/bhmob/bhlake/internal/config"
	"github.com/bhmob/bhlake/internal/query"
)

// Version is set at build time via ldflags
var Version = "dev"

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT",
	"COUNT", "AVG", "MIN", "MAX", "SUM", "DISTINCT", "DESC", "ASC",
	"JOIN", "LEFT JOIN", "ON", "AS", "HAVING", "BETWEEN",
}

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bhlakectl %s: %v\n", Version, err)
		os.Exit(1)
	}

	svc, err := query.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open query service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		runInteractive(svc)
		return
	}
	if err := runPiped(svc); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runInteractive(svc *query.Service) {
	fmt.Printf("bhlakectl %s. Type \\dt for tables, \\q to quit.\n", Version)

	executor := func(line string) {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		switch {
		case line == "":
			return
		case line == `\q` || strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit"):
			stats := svc.Stats()
			fmt.Printf("%d queries, %d rows\n", stats.QueriesExecuted, stats.RowsReturned)
			os.Exit(0)
		case line == `\dt`:
			printViews(svc)
			return
		}
		execute(svc, line)
	}

	completer := func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		if word == "" {
			return nil
		}
		var suggestions []prompt.Suggest
		for _, v := range svc.Views() {
			suggestions = append(suggestions, prompt.Suggest{Text: v.Name, Description: v.Layer + " table"})
		}
		for _, kw := range sqlKeywords {
			suggestions = append(suggestions, prompt.Suggest{Text: kw})
		}
		return prompt.FilterHasPrefix(suggestions, word, true)
	}

	p := prompt.New(executor, completer,
		prompt.OptionPrefix("lake> "),
		prompt.OptionTitle("bhlakectl"),
	)
	p.Run()
}

func runPiped(svc *query.Service) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(scanner.Text()), ";"))
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		execute(svc, line)
	}
	return scanner.Err()
}

func execute(svc *query.Service, stmt string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	result, err := svc.Execute(ctx, stmt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query error: %v\n", err)
		return
	}
	printResult(result, time.Since(start))
}

func printResult(result *query.Result, elapsed time.Duration) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	fmt.Printf("(%d rows, %s)\n", len(result.Rows), elapsed.Round(time.Millisecond))
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return fmt.Sprintf("%g", val)
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func printViews(svc *query.Service) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "view\tlayer\tfiles")
	for _, v := range svc.Views() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Layer, v.Glob)
	}
	w.Flush()
}
