package parser

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// ElectricityParser turns extracted bill text into a ParsedBill. It holds no
// state besides the logger and is safe for concurrent use.
type ElectricityParser struct {
	logger *zap.Logger
}

// NewElectricityParser returns a parser that logs its decisions at debug level.
func NewElectricityParser(logger *zap.Logger) *ElectricityParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElectricityParser{logger: logger.Named("parser")}
}

// ParseElectricityBill parses text without diagnostics.
func ParseElectricityBill(text string) (*models.ParsedBill, error) {
	return NewElectricityParser(nil).Parse(text)
}

// Parse extracts every bill field from text. It fails at the first required
// field that cannot be located (account number, amount, bill date, units,
// meter reading). The date range and units per day fall back to defaults.
func (p *ElectricityParser) Parse(text string) (*models.ParsedBill, error) {
	bill := &models.ParsedBill{}
	var err error

	if bill.AccountNumber, err = p.accountNumber(text); err != nil {
		return nil, err
	}
	if bill.BillAmount, err = p.decimalField("billAmount", amountRules, text); err != nil {
		return nil, err
	}
	if bill.BillDate, err = p.billDate(billDateRules, text); err != nil {
		return nil, err
	}
	bill.BillDateRangeStart, bill.BillDateRangeEnd = p.dateRange(text, bill.BillDate)

	if bill.TotalUnitsConsumed, err = p.decimalField("totalUnitsConsumed", unitsRules, text); err != nil {
		return nil, err
	}
	bill.UnitsPerDay = p.unitsPerDay(text, bill)

	triple, err := findMeterReading(text, p.logger)
	if err != nil {
		p.logger.Debug("meter reading not recovered", zap.Error(err))
		return nil, err
	}
	bill.MeterReading = triple.Current
	bill.IsEstimated = strings.Contains(text, "^")

	p.logger.Debug("bill parsed",
		zap.String("account", bill.AccountNumber),
		zap.String("billDate", bill.BillDate),
		zap.String("meterGrouping", triple.Grouping),
		zap.Bool("estimated", bill.IsEstimated),
	)
	return bill, nil
}

func (p *ElectricityParser) accountNumber(text string) (string, error) {
	_, m, ok := firstMatch(accountRules, text)
	if !ok {
		return "", MissingField("accountNumber")
	}
	account := cleanAccountNumber(m[1])
	p.logger.Debug("found account number", zap.String("account", account))
	return account, nil
}

// decimalField locates a numeric field. The first matching rule decides; an
// unparsable capture fails rather than falling through to looser rules.
func (p *ElectricityParser) decimalField(field string, rules []fieldRule, text string) (decimal.Decimal, error) {
	r, m, ok := firstMatch(rules, text)
	if !ok {
		return decimal.Zero, MissingField(field)
	}
	v, err := parseDecimal(m[1])
	if err != nil {
		return decimal.Zero, UnparsableAmount(field, m[1])
	}
	p.logger.Debug("found "+field, zap.String("rule", r.name), zap.String("value", v.String()))
	return v, nil
}

func (p *ElectricityParser) billDate(rules []fieldRule, text string) (string, error) {
	r, m, ok := firstMatch(rules, text)
	if !ok {
		return "", MissingField("billDate")
	}
	date, err := normalizeDate(m[1])
	if err != nil {
		return "", UnparsableDate("billDate", m[1])
	}
	p.logger.Debug("found bill date", zap.String("rule", r.name), zap.String("date", date))
	return date, nil
}

// dateRange returns the metering period, or the bill date for both ends when
// no usable period is printed.
func (p *ElectricityParser) dateRange(text, billDate string) (string, string) {
	r, m, ok := firstMatch(dateRangeRules, text)
	if ok {
		start, err1 := normalizeDate(m[1])
		end, err2 := normalizeDate(m[2])
		if err1 == nil && err2 == nil && start <= end {
			p.logger.Debug("found date range", zap.String("rule", r.name), zap.String("start", start), zap.String("end", end))
			return start, end
		}
		p.logger.Debug("ignoring unusable date range", zap.String("start", m[1]), zap.String("end", m[2]))
	}
	p.logger.Debug("no date range found, using bill date")
	return billDate, billDate
}

func (p *ElectricityParser) unitsPerDay(text string, bill *models.ParsedBill) decimal.Decimal {
	if _, m, ok := firstMatch(unitsPerDayRules, text); ok {
		if v, err := parseDecimal(m[1]); err == nil {
			return v
		}
	}
	return bill.AverageUnitsPerDay()
}
