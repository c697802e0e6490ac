package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The "Anytime usage" row holds previous reading, current reading and
// consumption, which the text extractor tends to flatten into one token.
var (
	usageLinePattern   = regexp.MustCompile(`(?i)Anytime usage[^\n]*`)
	usageAnchorPattern = regexp.MustCompile(`(?i)Anytime usage`)
	spacedTriple       = regexp.MustCompile(`^(\d+)\s+(\d+)\s+(\d+\.?\d*)$`)
)

// reconcileTolerance absorbs rounding in the printed consumption.
var reconcileTolerance = decimal.NewFromInt(1)

// digitGrouping is one hypothesis for splitting a run-on usage token.
type digitGrouping struct {
	name    string
	pattern *regexp.Regexp
}

func grouping(name, expr string) digitGrouping {
	return digitGrouping{name: name, pattern: regexp.MustCompile(expr)}
}

// digitGroupings is tried in order and the first reconciling split wins.
// The widths are the ones observed on real bills; there is no general rule
// behind them, so an unseen meter width will fail to reconcile.
var digitGroupings = []digitGrouping{
	grouping("5+5", `^(\d{5})(\d{5})(\d+\.?\d*)$`),
	grouping("4+4", `^(\d{4})(\d{4})(\d+\.?\d*)$`),
	grouping("4+5", `^(\d{4})(\d{5})(\d+\.?\d*)$`),
	grouping("5+4", `^(\d{5})(\d{4})(\d+\.?\d*)$`),
	grouping("6+6+5", `^(\d{6})(\d{6})(\d{5}\.?\d*)$`),
	grouping("6+6+4", `^(\d{6})(\d{6})(\d{4}\.?\d*)$`),
	grouping("6+6+3", `^(\d{6})(\d{6})(\d{3}\.?\d*)$`),
	grouping("6+6+2", `^(\d{6})(\d{6})(\d{2}\.?\d*)$`),
	grouping("5+6+3", `^(\d{5})(\d{6})(\d{3}\.?\d*)$`),
	grouping("3+3+3", `^(\d{3})(\d{3})(\d{3}\.?\d*)$`),
	grouping("3+4+3", `^(\d{3})(\d{4})(\d{3}\.?\d*)$`),
	grouping("5+4+3", `^(\d{5})(\d{4})(\d{3}\.?\d*)$`),
}

// MeterTriple is a reconciled usage row.
type MeterTriple struct {
	Previous decimal.Decimal
	Current  decimal.Decimal
	Consumed decimal.Decimal
	Grouping string // "spaced" or the digit grouping that reconciled
}

// Reconciles reports whether current ≈ previous + consumed.
func (m MeterTriple) Reconciles() bool {
	return m.Current.Sub(m.Previous.Add(m.Consumed)).Abs().LessThanOrEqual(reconcileTolerance)
}

// findMeterReading recovers the current meter reading from the usage rows in
// text. Each anchor line is tried in order; a line yields a reading only when
// its numbers pass the reconciliation check.
func findMeterReading(text string, logger *zap.Logger) (MeterTriple, error) {
	lines := usageLinePattern.FindAllString(text, -1)
	if len(lines) == 0 {
		return MeterTriple{}, MeterReadingNotFound(`no "Anytime usage" line`)
	}

	for _, line := range lines {
		numbers := usageAnchorPattern.ReplaceAllString(line, "")
		numbers = strings.TrimSpace(strings.ReplaceAll(numbers, "^", ""))

		triple, ok := disambiguate(numbers, logger)
		if !ok {
			continue
		}
		if !triple.Current.IsPositive() {
			return MeterTriple{}, InvalidMeterReading(triple.Current.String())
		}
		return triple, nil
	}
	return MeterTriple{}, MeterReadingNotFound("no digit grouping reconciled previous + consumed = current")
}

// disambiguate splits a usage token into a reconciled triple. A token with
// internal whitespace is already split; a run-on token is tested against each
// digit grouping.
func disambiguate(numbers string, logger *zap.Logger) (MeterTriple, bool) {
	if strings.ContainsAny(numbers, " \t") {
		m := spacedTriple.FindStringSubmatch(numbers)
		if m == nil {
			logger.Debug("usage row is not a spaced triple", zap.String("row", numbers))
			return MeterTriple{}, false
		}
		return checkTriple(m, "spaced", logger)
	}

	for _, g := range digitGroupings {
		m := g.pattern.FindStringSubmatch(numbers)
		if m == nil {
			continue
		}
		if triple, ok := checkTriple(m, g.name, logger); ok {
			return triple, true
		}
	}
	return MeterTriple{}, false
}

func checkTriple(m []string, name string, logger *zap.Logger) (MeterTriple, bool) {
	prev, err1 := decimal.NewFromString(m[1])
	curr, err2 := decimal.NewFromString(m[2])
	used, err3 := parseDecimal(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return MeterTriple{}, false
	}

	triple := MeterTriple{Previous: prev, Current: curr, Consumed: used, Grouping: name}
	if !triple.Reconciles() {
		logger.Debug("meter grouping rejected",
			zap.String("grouping", name),
			zap.String("previous", prev.String()),
			zap.String("current", curr.String()),
			zap.String("consumed", used.String()),
		)
		return MeterTriple{}, false
	}

	logger.Debug("meter grouping accepted",
		zap.String("grouping", name),
		zap.String("current", curr.String()),
	)
	return triple, true
}
