package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/pipeline"
	"jupitor/internal/morph/stroke"
)

// MorphConfig configures the Tanglism morphology pipeline (C0-C7): which
// market's calendar to align bars to, the default display granularity,
// the stroke completion/backtrack rule, and where to find the CN
// trading day list the calendar layer is seeded from.
type MorphConfig struct {
	Market              string `yaml:"market"`
	DefaultGranularity  string `yaml:"default_granularity"`
	StrokeJudge         string `yaml:"stroke_judge"`
	StrokeJudgeParam    string `yaml:"stroke_judge_param"`
	StrokeBacktrackDiff string `yaml:"stroke_backtrack_diff"`
	SubTrendTargetTick  string `yaml:"subtrend_target_tick"`
	TradeDaysFile       string `yaml:"trade_days_file"`
}

// Resolve parses a MorphConfig into a ready-to-use pipeline.Config: it
// loads the trading day list from TradeDaysFile, builds the source and
// target tick sets from DefaultGranularity/SubTrendTargetTick, and
// parses the stroke judge/backtrack config strings per the grammar
// StrokeJudge/StrokeJudgeParam/StrokeBacktrackDiff describe.
func (m MorphConfig) Resolve() (pipeline.Config, error) {
	days, err := loadTradeDays(m.TradeDaysFile)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("morph config: trade_days_file: %w", err)
	}
	dateSet := calendar.NewDateSetFromStrings(days)

	sourceGran, err := granularity(m.DefaultGranularity)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("morph config: default_granularity: %w", err)
	}
	sourceTicks, err := calendar.NewTickSet(sourceGran, dateSet)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("morph config: source ticks: %w", err)
	}

	targetGran, err := granularity(m.SubTrendTargetTick)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("morph config: subtrend_target_tick: %w", err)
	}
	targetTicks, err := calendar.NewTickSet(targetGran, dateSet)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("morph config: target ticks: %w", err)
	}

	judge, err := strokeJudge(m.StrokeJudge, m.StrokeJudgeParam)
	if err != nil {
		return pipeline.Config{}, err
	}
	backtrack, err := strokeBacktrack(m.StrokeBacktrackDiff)
	if err != nil {
		return pipeline.Config{}, err
	}

	return pipeline.Config{
		Stroke:      stroke.Config{Judge: judge, Backtrack: backtrack},
		SourceTicks: sourceTicks,
		TargetTicks: targetTicks,
	}, nil
}

func granularity(s string) (calendar.Granularity, error) {
	switch calendar.Granularity(s) {
	case calendar.Tick1Min, calendar.Tick5Min, calendar.Tick30Min, calendar.Tick1Day:
		return calendar.Granularity(s), nil
	default:
		return "", fmt.Errorf("unsupported granularity %q", s)
	}
}

func strokeJudge(kind, param string) (stroke.Judge, error) {
	switch kind {
	case "indep_k":
		return stroke.Judge{Kind: stroke.JudgeIndepK}, nil
	case "nonindep_k":
		return stroke.Judge{Kind: stroke.JudgeNonIndepK}, nil
	case "gap_opening":
		includeAfternoon, _ := strconv.ParseBool(param)
		return stroke.Judge{Kind: stroke.JudgeGapOpening, IncludeAfternoon: includeAfternoon}, nil
	case "gap_ratio":
		ratio, err := decimal.NewFromString(param)
		if err != nil {
			return stroke.Judge{}, fmt.Errorf("stroke_judge_param %q: %w", param, err)
		}
		return stroke.Judge{Kind: stroke.JudgeGapRatio, Ratio: ratio}, nil
	default:
		return stroke.Judge{}, fmt.Errorf("unsupported stroke_judge %q", kind)
	}
}

// strokeBacktrack parses an empty string as "no backtrack rule", matching
// MorphConfig.StrokeBacktrackDiff's documented "empty = None".
func strokeBacktrack(diff string) (stroke.Backtrack, error) {
	if diff == "" {
		return stroke.Backtrack{}, nil
	}
	d, err := decimal.NewFromString(diff)
	if err != nil {
		return stroke.Backtrack{}, fmt.Errorf("stroke_backtrack_diff %q: %w", diff, err)
	}
	return stroke.Backtrack{Enabled: true, Diff: d}, nil
}

// loadTradeDays reads a newline-delimited "YYYY-MM-DD" trading day list.
// An empty path yields no days, leaving the caller with an empty
// calendar (valid for markets whose sessions are computed, not listed).
func loadTradeDays(path string) ([]string, error) {
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
		if line == "" {
			continue
		}
		days = append(days, line)
	}
	return days, nil
}
