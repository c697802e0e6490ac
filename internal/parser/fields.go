package parser

import "regexp"

// fieldRule is one ranked pattern for locating a field. Capture group 1 (and
// 2 for ranges) holds the value. Rules are tried in order, first match wins,
// so new issuer layouts are added as rows rather than branches.
type fieldRule struct {
	name    string
	pattern *regexp.Regexp
}

func rule(name, expr string) fieldRule {
	return fieldRule{name: name, pattern: regexp.MustCompile(expr)}
}

var accountRules = []fieldRule{
	rule("labelled", `(?i)(?:Account|A\s*c\s*c\s*o\s*u\s*n\s*t)(?:\s*Number|\s*n\s*u\s*m\s*b\s*e\s*r)?[\s:]*((?:\d\s*){9,12})`),
}

var amountRules = []fieldRule{
	rule("labelled", `(?i)(?:This\s*bill|New\s*charges|Total\s*amount\s*due|Amount\s*due)[\s:]*\$?\s*`+number),
	rule("generic", `(?i)(?:Total|Amount)[\s:]*\$?\s*`+number),
	rule("any numeral", `\$?\s*`+number),
}

// summaryAmountRules is the stricter set used when booking a bill as an expense.
var summaryAmountRules = []fieldRule{
	rule("labelled", `(?i)(?:This\s*bill|New\s*charges)[\s:]*\$?\s*`+number),
}

var billDateRules = []fieldRule{
	rule("issue date", `(?i)(?:Date\s*of\s*issue|Bill\s*Date|Issue\s*Date)[\s:]*(`+textDate+`)`),
	rule("first text date", `(?i)(`+textDate+`)`),
	rule("numeric date", `(?i)(?:Bill\s*)?Date[\s:]*(`+numericDate+`)`),
}

// summaryDateRules matches the original expense parser, which knew no
// "Issue Date" label.
var summaryDateRules = []fieldRule{
	rule("issue date", `(?i)(?:Date\s*of\s*issue|Bill\s*Date)[\s:]*(`+textDate+`)`),
	rule("first text date", `(?i)(`+textDate+`)`),
	rule("numeric date", `(?i)(?:Bill\s*)?Date[\s:]*(`+numericDate+`)`),
}

var dateRangeRules = []fieldRule{
	rule("labelled period", `(?i)(?:Reading\s*period|Billing\s*period|Period|From|Between)[\s:]*(`+textDate+`)`+rangeSep+`(`+textDate+`)`),
	rule("adjacent dates", `(?i)(`+textDate+`)`+rangeSep+`(`+textDate+`)`),
}

var unitsRules = []fieldRule{
	// The usage chart caption is the most reliable source.
	rule("chart caption", `(?i)This\s*bill:\s*(\d+\.?\d*)`),
	rule("labelled total", `(?i)(?:Units\s*imported\s*\(kWh\)|Total\s*consumption|Total\s*usage|Units\s*consumed)[\s:]*`+number),
	rule("bill kWh", `(?i)(?:This\s*bill|Current\s*bill)[\s:]*`+number+`\s*kWh`),
	rule("any kWh", `(?i)`+number+`\s*kWh`),
}

var unitsPerDayRules = []fieldRule{
	rule("average daily usage", `(?i)(?:Your\s*average\s*daily\s*usage|Average\s*daily\s*usage)[\s:]*`+number+`\s*(?:units?|kWh)?`),
}

// firstMatch returns the first rule that matches text with its submatches.
func firstMatch(rules []fieldRule, text string) (fieldRule, []string, bool) {
	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return r, m, true
		}
	}
	return fieldRule{}, nil, false
}
