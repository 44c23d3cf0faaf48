package calendar

import (
	"bufio"
	"os"
	"strings"

	"jupitor/internal/morph/shape"
)

// Local is the process-wide CN A-share trading calendar: one shared
// DateSet plus a TickSet per supported granularity. Per §9's "Global
// calendar" design note, a Local must be built once at startup and never
// mutated afterward — AddTradingDay after construction returns an error.
type Local struct {
	dates    *DateSet
	tick1m   *TickSet
	tick5m   *TickSet
	tick30m  *TickSet
	tick1d   *TickSet
	sealed   bool
}

// NewLocal builds a Local calendar from a list of "YYYY-MM-DD" trading day
// strings.
func NewLocal(tradingDays []string) *Local {
	dates := NewDateSetFromStrings(tradingDays)
	tick1m, _ := NewTickSet(Tick1Min, dates)
	tick5m, _ := NewTickSet(Tick5Min, dates)
	tick30m, _ := NewTickSet(Tick30Min, dates)
	return &Local{
		dates:   dates,
		tick1m:  tick1m,
		tick5m:  tick5m,
		tick30m: tick30m,
		tick1d:  NewDayTickSet(dates),
		sealed:  true,
	}
}

// LoadLocalFromFile reads one "YYYY-MM-DD" trading day per line from path
// and builds a Local calendar from it. Blank lines and lines starting with
// "#" are ignored.
func LoadLocalFromFile(path string) (*Local, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, shape.ExternalErr("calendar.LoadLocalFromFile", err)
	}
	defer f.Close()

	var days []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		days = append(days, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, shape.ExternalErr("calendar.LoadLocalFromFile", err)
	}
	return NewLocal(days), nil
}

// TickSetFor returns the TickSet for granularity g.
func (l *Local) TickSetFor(g Granularity) (*TickSet, error) {
	switch g {
	case Tick1Min:
		return l.tick1m, nil
	case Tick5Min:
		return l.tick5m, nil
	case Tick30Min:
		return l.tick30m, nil
	case Tick1Day:
		return l.tick1d, nil
	default:
		return nil, shape.ClientErrorf("calendar.TickSetFor", "unsupported granularity %q", g)
	}
}

// Dates returns the shared day set.
func (l *Local) Dates() *DateSet { return l.dates }

// AddTradingDay always fails: the calendar is immutable once constructed.
func (l *Local) AddTradingDay(day string) error {
	return shape.ClientErrorf("calendar.AddTradingDay", "calendar is sealed after construction")
}
