package parser

import (
	"errors"
	"fmt"
)

// Sentinel causes for bill extraction failures. Match them with errors.Is.
var (
	ErrMissingField         = errors.New("missing field")
	ErrUnparsableAmount     = errors.New("unparsable amount")
	ErrUnparsableDate       = errors.New("unparsable date")
	ErrMeterReadingNotFound = errors.New("meter reading not found")
	ErrInvalidMeterReading  = errors.New("invalid meter reading")
)

// BillError describes why a single bill could not be extracted.
type BillError struct {
	Code    string // MISSING_FIELD, UNPARSABLE_AMOUNT, ...
	Field   string
	Message string
	cause   error
}

func (e *BillError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BillError) Unwrap() error {
	return e.cause
}

// MissingField reports a required label-anchored field that was never found.
func MissingField(field string) *BillError {
	return &BillError{
		Code:    "MISSING_FIELD",
		Field:   field,
		Message: fmt.Sprintf("could not find %s in bill", field),
		cause:   ErrMissingField,
	}
}

// UnparsableAmount reports a matched value that is not a number.
func UnparsableAmount(field, raw string) *BillError {
	return &BillError{
		Code:    "UNPARSABLE_AMOUNT",
		Field:   field,
		Message: fmt.Sprintf("could not parse %q as a valid number", raw),
		cause:   ErrUnparsableAmount,
	}
}

// UnparsableDate reports a matched value that is not a calendar date.
func UnparsableDate(field, raw string) *BillError {
	return &BillError{
		Code:    "UNPARSABLE_DATE",
		Field:   field,
		Message: fmt.Sprintf("unable to parse date %q", raw),
		cause:   ErrUnparsableDate,
	}
}

// MeterReadingNotFound reports that no usage line reconciled.
func MeterReadingNotFound(detail string) *BillError {
	return &BillError{
		Code:    "METER_READING_NOT_FOUND",
		Field:   "meterReading",
		Message: "could not find meter reading in bill: " + detail,
		cause:   ErrMeterReadingNotFound,
	}
}

// InvalidMeterReading reports a reconciled reading that is not positive.
func InvalidMeterReading(raw string) *BillError {
	return &BillError{
		Code:    "INVALID_METER_READING",
		Field:   "meterReading",
		Message: fmt.Sprintf("meter reading %s must be a positive number", raw),
		cause:   ErrInvalidMeterReading,
	}
}
