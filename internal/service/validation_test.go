package service

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseCreditInput_Valid(t *testing.T) {
	t.Parallel()

	body := `{"client_name":" ACME ","client_id":"900","amount":1000.50,"rate":"1.75","term":12,"commercial":"Ana"}`
	upd, err := ParseCreditInput([]byte(body), false)
	if err != nil {
		t.Fatalf("ParseCreditInput: %v", err)
	}

	if *upd.ClientName != "ACME" {
		t.Errorf("ClientName = %q, want trimmed", *upd.ClientName)
	}
	if got := upd.Amount.StringFixed(2); got != "1000.50" {
		t.Errorf("Amount = %s, want 1000.50", got)
	}
	if *upd.Rate != 1.75 || *upd.Term != 12 {
		t.Errorf("Rate/Term = %v/%v", *upd.Rate, *upd.Term)
	}
}

func TestParseCreditInput_AmountPrecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount string
		want   string
	}{
		{`"1000.50"`, "1000.50"},
		{`0.1`, "0.10"},
		{`"9999999999.99"`, "9999999999.99"},
		{`12`, "12.00"},
		{`"5.100"`, "5.10"},
		{`"1.50e1"`, "15.00"},
		{`0e1000000000`, "0.00"},
	}

	for _, tt := range tests {
		upd, err := ParseCreditInput([]byte(`{"amount":`+tt.amount+`}`), true)
		if err != nil {
			t.Errorf("amount %s: %v", tt.amount, err)
			continue
		}
		if got := upd.Amount.StringFixed(2); got != tt.want {
			t.Errorf("amount %s = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestParseCreditInput_FieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want map[string][]string
	}{
		{
			name: "missing everything",
			body: `{}`,
			want: map[string][]string{
				"client_name": {msgRequired},
				"client_id":   {msgRequired},
				"amount":      {msgRequired},
				"rate":        {msgRequired},
				"term":        {msgRequired},
				"commercial":  {msgRequired},
			},
		},
		{
			name: "wrong types",
			body: `{"client_name":1,"client_id":true,"amount":[],"rate":"fast","term":1.5,"commercial":null}`,
			want: map[string][]string{
				"client_name": {msgNotString},
				"client_id":   {msgNotString},
				"amount":      {msgNotDecimal},
				"rate":        {msgNotNumber},
				"term":        {msgNotInteger},
				"commercial":  {msgNotString},
			},
		},
		{
			name: "ranges",
			body: `{"client_name":"  ","client_id":"x","amount":"-1","rate":-0.5,"term":0,"commercial":"c"}`,
			want: map[string][]string{
				"client_name": {msgBlank},
				"amount":      {"Must be greater than or equal to 0."},
				"rate":        {"Must be greater than or equal to 0."},
				"term":        {"Must be greater than or equal to 1."},
			},
		},
		{
			name: "limits",
			body: `{"client_name":"n","client_id":"012345678901234567890123456789012345678901234567890","amount":"10000000000","rate":1,"term":1,"commercial":"c"}`,
			want: map[string][]string{
				"client_id": {"Longer than maximum length 50."},
				"amount":    {"Must be less than 10000000000."},
			},
		},
		{
			name: "decimal places and unknown field",
			body: `{"client_name":"n","client_id":"i","amount":"1.005","rate":1,"term":1,"commercial":"c","owner":3}`,
			want: map[string][]string{
				"amount": {msgDecimalPlaces},
				"owner":  {msgUnknownField},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseCreditInput([]byte(tt.body), false)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if !reflect.DeepEqual(verr.Fields, tt.want) {
				t.Errorf("Fields = %v\nwant %v", verr.Fields, tt.want)
			}
		})
	}
}

func TestParseCreditInput_ExtremeExponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want map[string][]string
	}{
		{"amount string", `{"amount":"1e1000000000"}`, map[string][]string{"amount": {"Must be less than 10000000000."}}},
		{"amount number", `{"amount":1e1000000000}`, map[string][]string{"amount": {"Must be less than 10000000000."}}},
		{"amount tiny", `{"amount":"1e-1000000000"}`, map[string][]string{"amount": {msgDecimalPlaces}}},
		{"term huge", `{"term":"1e1000000000"}`, map[string][]string{"term": {msgMaxTerm}}},
		{"term tiny", `{"term":1e-1000000000}`, map[string][]string{"term": {msgNotInteger}}},
		{"term zero", `{"term":"0e1000000000"}`, map[string][]string{"term": {msgMin(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			_, err := ParseCreditInput([]byte(tt.body), true)
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("ParseCreditInput took %v", elapsed)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if !reflect.DeepEqual(verr.Fields, tt.want) {
				t.Errorf("Fields = %v, want %v", verr.Fields, tt.want)
			}
		})
	}
}

func TestParseCreditInput_Partial(t *testing.T) {
	t.Parallel()

	upd, err := ParseCreditInput([]byte(`{"rate":2.5}`), true)
	if err != nil {
		t.Fatalf("ParseCreditInput: %v", err)
	}
	if upd.Rate == nil || *upd.Rate != 2.5 {
		t.Errorf("Rate = %v", upd.Rate)
	}
	if upd.ClientName != nil || upd.Amount != nil || upd.Term != nil {
		t.Error("absent fields must stay nil")
	}

	empty, err := ParseCreditInput([]byte(`{}`), true)
	if err != nil || !empty.IsEmpty() {
		t.Errorf("empty partial body = (%v, %v), want empty update", empty, err)
	}
}

func TestParseCreditInput_NotAnObject(t *testing.T) {
	t.Parallel()

	for _, body := range []string{``, `[]`, `"text"`, `42`, `{"a":1`, `{} {}`} {
		_, err := ParseCreditInput([]byte(body), true)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("body %q: error = %v, want *ValidationError", body, err)
		}
		if !reflect.DeepEqual(verr.Fields, map[string][]string{SchemaField: {msgInvalidPayload}}) {
			t.Errorf("body %q: Fields = %v", body, verr.Fields)
		}
	}
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, 20},
		{-3, -1, 1, 20},
		{2, 5, 2, 5},
		{1, 1000, 1, 100},
	}

	for _, tt := range tests {
		page, perPage := NormalizePage(tt.page, tt.perPage)
		if page != tt.wantPage || perPage != tt.wantPerPage {
			t.Errorf("NormalizePage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.page, tt.perPage, page, perPage, tt.wantPage, tt.wantPerPage)
		}
	}
}
