package parser

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const synergyBill = `Synergy
Your electricity account
Account Number: 291 431 120
Date of issue: 13 Mar 2018
Total amount due $186.59
Usage chart
This bill: 268
Meter readings
Anytime usage876 1604 728.0000
`

func TestParseElectricityBill(t *testing.T) {
	bill, err := ParseElectricityBill(synergyBill)
	require.NoError(t, err)

	assert.Equal(t, "291431120", bill.AccountNumber)
	assert.Equal(t, "186.59", bill.BillAmount.String())
	assert.Equal(t, "2018-03-13", bill.BillDate)
	assert.Equal(t, "2018-03-13", bill.BillDateRangeStart)
	assert.Equal(t, "2018-03-13", bill.BillDateRangeEnd)
	assert.Equal(t, "268", bill.TotalUnitsConsumed.String())
	assert.Equal(t, "268", bill.UnitsPerDay.String())
	assert.Equal(t, "1604", bill.MeterReading.String())
	assert.False(t, bill.IsEstimated)
}

func TestParseElectricityBillMinimal(t *testing.T) {
	text := "Account Number: 291 431 120\nThis bill: 268\n13 Mar 2018\nAnytime usage876 1604 728.0000"

	bill, err := ParseElectricityBill(text)
	require.NoError(t, err)

	assert.Equal(t, "291431120", bill.AccountNumber)
	assert.Equal(t, "268", bill.TotalUnitsConsumed.String())
	assert.Equal(t, "2018-03-13", bill.BillDate)
	assert.Equal(t, "1604", bill.MeterReading.String())
}

func TestParseElectricityBillDateRange(t *testing.T) {
	text := `Account Number 291431120
Date of issue: 16 Mar 2018
Reading period: 13 Feb 2018 - 14 Mar 2018
New charges: $186.59
This bill: 268
Anytime usage^8409084220130.0000
`
	bill, err := ParseElectricityBill(text)
	require.NoError(t, err)

	assert.Equal(t, "2018-03-16", bill.BillDate)
	assert.Equal(t, "2018-02-13", bill.BillDateRangeStart)
	assert.Equal(t, "2018-03-14", bill.BillDateRangeEnd)
	assert.Equal(t, 29, bill.RangeDays())

	want := decimal.NewFromInt(268).Div(decimal.NewFromInt(29))
	assert.True(t, want.Equal(bill.UnitsPerDay), "got %s, want %s", bill.UnitsPerDay, want)
	assert.True(t, bill.UnitsPerDay.Mul(decimal.NewFromInt(29)).Sub(decimal.NewFromInt(268)).Abs().LessThan(decimal.New(1, -12)))

	assert.Equal(t, "84220", bill.MeterReading.String())
	assert.True(t, bill.IsEstimated)
}

func TestParseElectricityBillExplicitDailyUsage(t *testing.T) {
	text := synergyBill + "Your average daily usage: 12.7619 units\n"

	bill, err := ParseElectricityBill(text)
	require.NoError(t, err)
	assert.Equal(t, "12.7619", bill.UnitsPerDay.String())
}

func TestParseElectricityBillReversedRangeFallsBack(t *testing.T) {
	text := `Account Number 291431120
Date of issue: 16 Mar 2018
Billing period 14 Mar 2018 to 13 Feb 2018
This bill: 268
Anytime usage876 1604 728.0000
`
	bill, err := ParseElectricityBill(text)
	require.NoError(t, err)
	assert.Equal(t, "2018-03-16", bill.BillDateRangeStart)
	assert.Equal(t, "2018-03-16", bill.BillDateRangeEnd)
}

func TestParseElectricityBillAmountTiers(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"this bill", "This bill $1,186.59", "1186.59"},
		{"amount due", "Amount due: 99.10", "99.1"},
		{"generic total", "Total: $55.00", "55"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "Account Number: 291 431 120\n" + tt.amount + "\n13 Mar 2018\nUnits consumed: 268\nAnytime usage876 1604 728.0000"
			bill, err := ParseElectricityBill(text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bill.BillAmount.String())
		})
	}
}

func TestParseElectricityBillUnitsTiers(t *testing.T) {
	tests := []struct {
		name  string
		units string
		want  string
	}{
		{"chart caption", "This bill: 268", "268"},
		{"units imported", "Units imported (kWh) 1,268.5", "1268.5"},
		{"total consumption", "Total consumption: 301", "301"},
		{"any kWh", "You used 412 kWh", "412"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "Account Number: 291 431 120\nAmount due $10.00\n13 Mar 2018\n" + tt.units + "\nAnytime usage876 1604 728.0000"
			bill, err := ParseElectricityBill(text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bill.TotalUnitsConsumed.String())
		})
	}
}

func TestParseElectricityBillFailures(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantErr   error
		wantField string
	}{
		{
			name:      "no account label",
			text:      "Date of issue: 13 Mar 2018\nThis bill: 268\nAnytime usage876 1604 728.0000",
			wantErr:   ErrMissingField,
			wantField: "accountNumber",
		},
		{
			name:      "account too short",
			text:      "Account Number: 1234 5678\nThis bill: 268\n13 Mar 2018\nAnytime usage876 1604 728.0000",
			wantErr:   ErrMissingField,
			wantField: "accountNumber",
		},
		{
			name:      "unparsable amount",
			text:      "Account Number: 291431120\nNew charges: ,\n13 Mar 2018\nThis bill: 268\nAnytime usage876 1604 728.0000",
			wantErr:   ErrUnparsableAmount,
			wantField: "billAmount",
		},
		{
			name:      "impossible bill date",
			text:      "Account Number: 291431120\nDate of issue: 31 Feb 2018\nThis bill: 268\nAnytime usage876 1604 728.0000",
			wantErr:   ErrUnparsableDate,
			wantField: "billDate",
		},
		{
			name:      "no bill date",
			text:      "Account Number: 291431120\nThis bill: 268\nAnytime usage876 1604 728.0000",
			wantErr:   ErrMissingField,
			wantField: "billDate",
		},
		{
			name:      "no units",
			text:      "Account Number: 291431120\nAmount due $10.00\n13 Mar 2018\nAnytime usage",
			wantErr:   ErrMissingField,
			wantField: "totalUnitsConsumed",
		},
		{
			name:      "no usage row",
			text:      "Account Number: 291431120\nThis bill: 268\n13 Mar 2018\n",
			wantErr:   ErrMeterReadingNotFound,
			wantField: "meterReading",
		},
		{
			name:      "usage row does not reconcile",
			text:      "Account Number: 291431120\nThis bill: 268\n13 Mar 2018\nAnytime usage1111122222333.0000",
			wantErr:   ErrMeterReadingNotFound,
			wantField: "meterReading",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill, err := ParseElectricityBill(tt.text)
			require.Error(t, err)
			assert.Nil(t, bill)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var billErr *BillError
			require.True(t, errors.As(err, &billErr))
			assert.Equal(t, tt.wantField, billErr.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestParseElectricityBillDeterministic(t *testing.T) {
	p := NewElectricityParser(zap.NewNop())

	first, err := p.Parse(synergyBill)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Parse(synergyBill)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseSummary(t *testing.T) {
	text := "Account Number: 291 431 120\nNew charges $186.59\nDate of issue: 13 Mar 2018"

	summary, err := ParseSummary(text)
	require.NoError(t, err)
	assert.Equal(t, "291431120", summary.AccountNumber)
	assert.Equal(t, "186.59", summary.Amount.String())
	assert.Equal(t, "2018-03-13", summary.Date)
}

func TestParseSummaryNumericDate(t *testing.T) {
	text := "Account Number: 291 431 120\nThis bill: $42.00\nBill Date: 1 3/0 4/2018"

	summary, err := ParseSummary(text)
	require.NoError(t, err)
	assert.Equal(t, "2018-04-13", summary.Date)
}

func TestParseSummaryRequiresLabelledAmount(t *testing.T) {
	_, err := ParseSummary("Account Number: 291 431 120\nTotal $186.59\n13 Mar 2018")

	var billErr *BillError
	require.True(t, errors.As(err, &billErr))
	assert.Equal(t, "amount", billErr.Field)
	assert.True(t, errors.Is(err, ErrMissingField))
}
