package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/credittrack/credittrack/internal/mail"
	"github.com/credittrack/credittrack/internal/model"
	"github.com/shopspring/decimal"
)

const creditDateLayout = "02/01/2006 15:04"

var creditHTML = template.Must(template.New("credit").Parse(`<h2>New credit registered</h2>
<ul>
  <li><b>Client:</b> {{.ClientName}} ({{.ClientID}})</li>
  <li><b>Amount:</b> {{.Amount}} COP</li>
  <li><b>Rate:</b> {{.Rate}} %</li>
  <li><b>Term:</b> {{.Term}} months</li>
  <li><b>Commercial:</b> {{.Commercial}}</li>
  <li><b>Date:</b> {{.Date}}</li>
</ul>
`))

type creditView struct {
	ClientName string
	ClientID   string
	Amount     string
	Rate       string
	Term       int
	Commercial string
	Date       string
}

// CreditCreatedMessage composes the notification sent to the credit owner and the admin address.
func CreditCreatedMessage(credit *model.Credit, owner *model.User, adminEmail string) (*mail.Message, error) {
	view := creditView{
		ClientName: credit.ClientName,
		ClientID:   credit.ClientID,
		Amount:     FormatAmount(credit.Amount),
		Rate:       strconv.FormatFloat(credit.Rate, 'f', -1, 64),
		Term:       credit.Term,
		Commercial: credit.Commercial,
		Date:       credit.CreatedAt.UTC().Format(creditDateLayout),
	}

	var html bytes.Buffer
	if err := creditHTML.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render credit email: %w", err)
	}

	text := fmt.Sprintf(
		"New credit registered\n\nClient: %s (%s)\nAmount: %s COP\nRate: %s %%\nTerm: %d months\nCommercial: %s\nDate: %s\n",
		view.ClientName, view.ClientID, view.Amount, view.Rate, view.Term, view.Commercial, view.Date,
	)

	return &mail.Message{
		To:      mail.Recipients(owner.Email, adminEmail),
		Subject: fmt.Sprintf("New credit #%d", credit.ID),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// FormatAmount renders d with two decimals and comma thousands separators, e.g. 1,234,567.80.
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(model.AmountScale)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
