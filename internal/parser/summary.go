package parser

import (
	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// ParseSummary extracts just enough of a bill to book it as an expense:
// the account number, the "This bill" / "New charges" amount and the date.
func (p *ElectricityParser) ParseSummary(text string) (*models.BillSummary, error) {
	account, err := p.accountNumber(text)
	if err != nil {
		return nil, err
	}
	amount, err := p.decimalField("amount", summaryAmountRules, text)
	if err != nil {
		return nil, err
	}
	date, err := p.billDate(summaryDateRules, text)
	if err != nil {
		return nil, err
	}
	return &models.BillSummary{AccountNumber: account, Amount: amount, Date: date}, nil
}

// ParseSummary parses a bill summary without diagnostics.
func ParseSummary(text string) (*models.BillSummary, error) {
	return NewElectricityParser(nil).ParseSummary(text)
}
