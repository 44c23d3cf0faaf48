// morph-cli runs a bar stream through the Tanglism morphology pipeline
// (C0-C7, spec.md §4) and prints the final snapshot of every layer as
// JSON. It is a thin wrapper: no morphology logic lives here, only
// input parsing and the configuration string grammar spec.md §6
// describes for forwarding config into the core.
//
// Usage:
//
//	morph-cli -bars ticks.csv -rule indep_k,backtrack=0.5 -granularity 30m
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/pipeline"
	"jupitor/internal/morph/shape"
	"jupitor/internal/morph/stroke"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "morph-cli:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		barsPath = flag.String("bars", "-",
			"path to a CSV bar file (instant,low,high[,...ignored]); '-' reads stdin")
		rule = flag.String("rule", "indep_k",
			"comma-separated stroke rule tokens: indep_k|non_indep_k|gap_opening[=morning|all]|gap_ratio=<d>|backtrack[=<d>]")
		granularity = flag.String("granularity", "1m",
			`target granularity for the sub-trend unifier: one of "1m","5m","30m","1d"`)
		tradeDays = flag.String("trade-days", "",
			"path to a newline-delimited YYYY-MM-DD trading day list")
	)
	flag.Parse()

	cfg, err := buildConfig(*rule, *granularity, *tradeDays)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	bars, err := readBars(*barsPath)
	if err != nil {
		return fmt.Errorf("reading bars: %w", err)
	}

	p := pipeline.New(cfg)
	for _, b := range bars {
		if _, err := p.Step(shape.AddDelta(b)); err != nil {
			return fmt.Errorf("processing bar at %s: %w", b.Timestamp.Format(time.RFC3339), err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p.Snapshot())
}

// buildConfig resolves the CLI's flags into a pipeline.Config: the rule
// string into a stroke.Judge/Backtrack pair, the granularity string
// into a calendar.Granularity, and the trade-days file into the
// calendar.TickSet both the source bars and the sub-trend unifier align
// to.
func buildConfig(rule, granularityStr, tradeDaysPath string) (pipeline.Config, error) {
	judge, backtrack, err := parseRule(rule)
	if err != nil {
		return pipeline.Config{}, err
	}

	gran, err := parseGranularity(granularityStr)
	if err != nil {
		return pipeline.Config{}, err
	}

	days, err := readTradeDays(tradeDaysPath)
	if err != nil {
		return pipeline.Config{}, err
	}
	ticks, err := calendar.NewTickSet(gran, calendar.NewDateSetFromStrings(days))
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		Stroke:      stroke.Config{Judge: judge, Backtrack: backtrack},
		SourceTicks: ticks,
		TargetTicks: ticks,
	}, nil
}

// parseRule implements spec.md §6's configuration string grammar:
// comma-separated tokens, unknown ones ignored rather than faulted.
func parseRule(s string) (stroke.Judge, stroke.Backtrack, error) {
	judge := stroke.Judge{Kind: stroke.JudgeIndepK}
	var backtrack stroke.Backtrack

	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key, val, _ := strings.Cut(tok, "=")
		switch key {
		case "indep_k":
			judge = stroke.Judge{Kind: stroke.JudgeIndepK}
		case "non_indep_k":
			judge = stroke.Judge{Kind: stroke.JudgeNonIndepK}
		case "gap_opening":
			judge = stroke.Judge{Kind: stroke.JudgeGapOpening, IncludeAfternoon: val == "all"}
		case "gap_ratio":
			d, err := decimal.NewFromString(val)
			if err != nil {
				return judge, backtrack, fmt.Errorf("gap_ratio=%q: %w", val, err)
			}
			judge = stroke.Judge{Kind: stroke.JudgeGapRatio, Ratio: d}
		case "backtrack":
			if val == "" {
				backtrack = stroke.Backtrack{Enabled: true}
				continue
			}
			d, err := decimal.NewFromString(val)
			if err != nil {
				return judge, backtrack, fmt.Errorf("backtrack=%q: %w", val, err)
			}
			backtrack = stroke.Backtrack{Enabled: true, Diff: d}
		default:
			// Unknown tokens are ignored, not faulted.
		}
	}
	return judge, backtrack, nil
}

func parseGranularity(s string) (calendar.Granularity, error) {
	switch calendar.Granularity(s) {
	case calendar.Tick1Min, calendar.Tick5Min, calendar.Tick30Min, calendar.Tick1Day:
		return calendar.Granularity(s), nil
	default:
		return "", fmt.Errorf("unsupported granularity %q", s)
	}
}

func readTradeDays(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var days []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			days = append(days, line)
		}
	}
	return days, nil
}

// readBars parses instant,low,high[,...ignored] CSV rows from path ("-"
// for stdin), per spec.md §6's "core ignores fields other than
// (instant, low, high)".
func readBars(path string) ([]shape.Bar, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	var bars []shape.Bar
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("expected at least 3 fields (instant,low,high), got %d", len(rec))
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("parsing instant %q: %w", rec[0], err)
		}
		low, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("parsing low %q: %w", rec[1], err)
		}
		high, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("parsing high %q: %w", rec[2], err)
		}

		bars = append(bars, shape.Bar{Timestamp: ts, Low: low, High: high})
	}
	return bars, nil
}
