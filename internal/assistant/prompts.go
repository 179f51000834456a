package assistant

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"dealflow/server/internal/models"
)

var promptFuncs = template.FuncMap{
	"money": func(v *float64) string {
		if v == nil {
			return "Not specified"
		}
		return formatMoney(*v)
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return "Not set"
		}
		return t.Format("Jan 2, 2006")
	},
	"text": func(s *string) string {
		if s == nil || *s == "" {
			return "Not specified"
		}
		return *s
	},
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
	"lower": func(v interface{}) string {
		return strings.ToLower(fmt.Sprint(v))
	},
	"count": func(v []string) int {
		return len(v)
	},
	"fmtMoney": formatMoney,
}

var (
	leadContextTmpl = template.Must(template.New("lead").Funcs(promptFuncs).Parse(`Lead Information:
- Name: {{.FirstName}} {{.LastName}}
- Email: {{.Email}}
- Status: {{.Status}}
- Source: {{.Source}}
- Budget: {{money .BudgetMin}} - {{money .BudgetMax}}
- Timeline: {{text .Timeline}}
- Property Type: {{text .PropertyType}}
- Last Contact: {{if .LastContactDate}}{{date .LastContactDate}}{{else}}Never{{end}}
- Score: {{.Score}}/100
- Recent Activities: {{range $i, $a := .Activities}}{{if $i}}, {{end}}{{$a.Type}}: {{$a.Description}}{{end}}
`))

	transactionContextTmpl = template.Must(template.New("transaction").Funcs(promptFuncs).Parse(`Transaction Information:
- Client: {{with .Client}}{{.FirstName}} {{.LastName}}{{else}}Unknown{{end}}
- Property: {{.PropertyAddress}}, {{.PropertyCity}}, {{.PropertyState}}
- Type: {{.Type}}
- Status: {{.Status}}
- List Price: {{money .ListPrice}}
- Closing Date: {{date .ClosingDate}}
- Progress: {{.Progress}}%{{with .NextMilestone}} (next: {{.}}){{end}}
- Milestones:
  - Offer Accepted: {{yesno .Flags.OfferAccepted}}
  - Inspection Complete: {{yesno .Flags.InspectionComplete}}
  - Appraisal Complete: {{yesno .Flags.AppraisalComplete}}
  - Loan Approved: {{yesno .Flags.LoanApproved}}
  - Final Walkthrough: {{yesno .Flags.FinalWalkthrough}}
`))

	emailTmpl = template.Must(template.New("email").Parse(`You are a helpful assistant for a real estate agent. Generate a {{.Tone}} email for a {{.Occasion}} communication.

{{.Context}}
{{if .Additional}}Additional Context: {{.Additional}}
{{end}}
Generate an email that:
1. Has a compelling subject line
2. Is personalized based on the context
3. Provides value to the recipient
4. Has a clear call-to-action
5. Maintains a {{.Tone}} tone

Return the response in the following JSON format:
{
  "subject": "Email subject line",
  "body": "Email body content"
}`))

	chatWithTransactionTmpl = template.Must(template.New("chat").Funcs(promptFuncs).Parse(`You are a helpful AI assistant for a real estate client portal. You're helping {{.User.FirstName}} {{.User.LastName}} with their {{lower .Transaction.Type}} transaction for {{.Transaction.PropertyAddress}}.{{with .Transaction.Agent}} Their agent is {{.FirstName}} {{.LastName}} ({{.Email}}{{with .Phone}}, {{.}}{{end}}).{{end}}

Current transaction status: {{.Transaction.Status}}
Property: {{.Transaction.PropertyAddress}}, {{.Transaction.PropertyCity}}, {{.Transaction.PropertyState}}
Progress: {{.Transaction.Progress}}%{{with .Transaction.NextMilestone}}, next milestone: {{.}}{{end}}

Answer questions about the real estate process, provide updates on their transaction, and help with general real estate questions. If you don't know something specific about their transaction, suggest they contact their agent.`))

	chatGeneralTmpl = template.Must(template.New("chat-general").Parse(`You are a helpful AI assistant for a real estate client portal. You're helping {{.User.FirstName}} {{.User.LastName}} with general real estate questions. Answer questions about the real estate process, home buying/selling tips, and provide helpful information.`))

	marketReportTmpl = template.Must(template.New("market").Funcs(promptFuncs).Parse(`Generate a concise market report for {{.Location.City}}, {{.Location.State}}{{with .Location.Zip}} {{.}}{{end}}.
{{with .PropertyType}}
Property Type: {{.}}{{end}}{{with .PriceRange}}
Price Range: {{.Min | fmtMoney}} - {{.Max | fmtMoney}}{{end}}
{{if .Comparables}}
Recent closed sales from this agent within {{.RadiusKm}} km:
{{range .Comparables}}- {{.Address}}, {{.City}}: sold {{money .SalePrice}}{{with .ClosedAt}} on {{date .}}{{end}} ({{printf "%.1f" .DistanceKm}} km away)
{{end}}{{end}}
Include:
1. Current market conditions (buyer's market vs seller's market)
2. Average home prices and trends
3. Days on market
4. Inventory levels
5. Key insights and recommendations

Note: Since you don't have access to real-time MLS data, provide general guidance based on typical market patterns and note that specific numbers should be verified with current MLS data.`))

	leadAnalysisTmpl = template.Must(template.New("analysis").Funcs(promptFuncs).Parse(`Analyze this real estate lead's behavior and provide insights:

Lead Details:
- Name: {{.FirstName}} {{.LastName}}
- Status: {{.Status}}
- Score: {{.Score}}/100
- Source: {{.Source}}
- Budget: {{money .BudgetMin}} - {{money .BudgetMax}}
- Timeline: {{text .Timeline}}
- Engagement:
  - Email Opened: {{yesno .EmailOpened}}
  - Link Clicked: {{yesno .LinkClicked}}
  - Replied: {{yesno .RepliedToAgent}}
  - Pre-approved: {{yesno .PreApproved}}
- Last Contact: {{if .LastContactDate}}{{date .LastContactDate}}{{else}}Never{{end}}
- Properties Viewed: {{count .ViewedProperties}}

Recent Activities:
{{range .Activities}}- {{.Type}}: {{.Description}} ({{.CreatedAt.Format "Jan 2, 2006"}})
{{end}}
Provide:
1. Lead quality assessment (hot/warm/cold)
2. Recommended next steps
3. Communication strategy
4. Conversion likelihood
5. Red flags or concerns`))
)

func render(t *template.Template, data interface{}) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}

// formatMoney renders whole dollars with thousands separators.
func formatMoney(v float64) string {
	n := int64(v + 0.5)
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprint(n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

func leadContext(l *models.Lead) (string, error) {
	return render(leadContextTmpl, l)
}

func transactionContext(t *models.Transaction) (string, error) {
	return render(transactionContextTmpl, t)
}
