package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/credittrack/credittrack/internal/model"
)

// Field validation messages.
const (
	msgRequired       = "Missing data for required field."
	msgNotString      = "Not a valid string."
	msgBlank          = "Field may not be blank."
	msgNotNumber      = "Not a valid number."
	msgNotInteger     = "Not a valid integer."
	msgNotDecimal     = "Not a valid decimal."
	msgDecimalPlaces  = "Must have at most 2 decimal places."
	msgUnknownField   = "Unknown field."
	msgInvalidPayload = "Invalid input type."
)

const maxTerm = math.MaxInt32

// Exponent bounds for decimal input. Rounding and comparing a decimal rescales its
// coefficient by 10^exponent, so literals such as 1e1000000000 are rejected first.
const (
	maxInputExponent = 10
	minInputExponent = -(model.AmountScale + 18)
)

func msgMaxLength(n int) string { return fmt.Sprintf("Longer than maximum length %d.", n) }

func msgMin(n int) string { return fmt.Sprintf("Must be greater than or equal to %d.", n) }

func msgLessThan(d decimal.Decimal) string { return fmt.Sprintf("Must be less than %s.", d.String()) }

var msgMaxTerm = fmt.Sprintf("Must be less than or equal to %d.", maxTerm)

var creditFields = []string{"client_name", "client_id", "amount", "rate", "term", "commercial"}

// ParseCreditInput validates a credit JSON body. With partial set, absent fields are
// allowed and left nil; otherwise every field is required.
func ParseCreditInput(body []byte, partial bool) (*model.CreditUpdate, error) {
	verr := newValidationError()

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil || dec.More() {
		verr.add(SchemaField, msgInvalidPayload)
		return nil, verr
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		verr.add(SchemaField, msgInvalidPayload)
		return nil, verr
	}

	for name := range fields {
		if !isCreditField(name) {
			verr.add(name, msgUnknownField)
		}
	}

	var upd model.CreditUpdate
	for _, name := range creditFields {
		value, present := fields[name]
		if !present {
			if !partial {
				verr.add(name, msgRequired)
			}
			continue
		}

		var msg string
		switch name {
		case "client_name":
			upd.ClientName, msg = parseText(value, model.MaxClientNameLength)
		case "client_id":
			upd.ClientID, msg = parseText(value, model.MaxClientIDLength)
		case "commercial":
			upd.Commercial, msg = parseText(value, model.MaxCommercialLength)
		case "amount":
			upd.Amount, msg = parseAmount(value)
		case "rate":
			upd.Rate, msg = parseRate(value)
		case "term":
			upd.Term, msg = parseTerm(value)
		}
		if msg != "" {
			verr.add(name, msg)
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return &upd, nil
}

func isCreditField(name string) bool {
	for _, f := range creditFields {
		if f == name {
			return true
		}
	}
	return false
}

func parseText(value any, maxLen int) (*string, string) {
	s, ok := value.(string)
	if !ok {
		return nil, msgNotString
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, msgBlank
	}
	if utf8.RuneCountInString(s) > maxLen {
		return nil, msgMaxLength(maxLen)
	}
	return &s, ""
}

// parseAmount accepts a JSON number or string and parses its literal text, so the
// value never goes through a float64.
func parseAmount(value any) (*decimal.Decimal, string) {
	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil, msgNotDecimal
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, msgNotDecimal
	}
	if d.IsNegative() {
		return nil, msgMin(0)
	}
	if d.IsZero() {
		zero := decimal.Zero
		return &zero, ""
	}
	if d.Exponent() > maxInputExponent {
		return nil, msgLessThan(model.MaxAmount)
	}
	if d.Exponent() < minInputExponent {
		return nil, msgDecimalPlaces
	}
	if !d.Equal(d.Round(model.AmountScale)) {
		return nil, msgDecimalPlaces
	}
	if d.GreaterThanOrEqual(model.MaxAmount) {
		return nil, msgLessThan(model.MaxAmount)
	}
	d = d.Round(model.AmountScale)
	return &d, ""
}

func parseRate(value any) (*float64, string) {
	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil, msgNotNumber
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, msgNotNumber
	}
	if f < 0 {
		return nil, msgMin(0)
	}
	return &f, ""
}

func parseTerm(value any) (*int, string) {
	var text string
	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return nil, msgNotInteger
	}

	// 12 and 12.0 are both accepted; 12.5 is not.
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, msgNotInteger
	}
	if d.Sign() <= 0 {
		return nil, msgMin(1)
	}
	if d.Exponent() > maxInputExponent {
		return nil, msgMaxTerm
	}
	if d.Exponent() < minInputExponent || !d.IsInteger() {
		return nil, msgNotInteger
	}
	if d.LessThan(decimal.NewFromInt(1)) {
		return nil, msgMin(1)
	}
	if d.GreaterThan(decimal.NewFromInt(maxTerm)) {
		return nil, msgMaxTerm
	}
	n := int(d.IntPart())
	return &n, ""
}
