package nlp

import (
	"strings"
)

type label struct {
	Name string
	Desc string
}

// Intents is the closed intent taxonomy, in prompt order.
var Intents = []label{
	{"portfolio_analysis", "Portfolio performance, holdings, allocation or returns"},
	{"client_lookup", "Client details, profile, AUM or activity history"},
	{"risk_assessment", "Risk profiles, risk tolerance or portfolio risk metrics"},
	{"rebalance_request", "Requests to rebalance portfolio allocations"},
	{"order_management", "Placing, reviewing or managing buy/sell orders, SIPs and SWPs"},
	{"compliance_check", "KYC status, compliance alerts, regulatory checks or audit trail"},
	{"tax_optimization", "Tax-loss harvesting, capital gains or tax impact estimates"},
	{"funding_analysis", "Cash flow forecasts, funding requests, settlement risk or withdrawals"},
	{"meeting_prep", "Preparing for client meetings, talking points or summaries"},
	{"lead_management", "Lead scoring, pipeline management or conversion tracking"},
	{"campaign_creation", "Creating or managing marketing campaigns and email drafts"},
	{"general_chat", "Greetings, general questions or anything that fits no other intent"},
	{"report_generation", "Performance reports, analytics or monthly summaries"},
	{"churn_prediction", "Client attrition risk or identifying at-risk clients"},
}

// EntityTypes is the closed entity taxonomy, in prompt order.
var EntityTypes = []label{
	{"CLIENT_NAME", "Client name, e.g. 'Rajesh Kumar' or 'Mrs. Sharma'"},
	{"TICKER_SYMBOL", "Stock or fund ticker or name, e.g. 'HDFC', 'RELIANCE', 'Nifty 50'"},
	{"AMOUNT", "Monetary amount, e.g. '50 lakhs', '1 crore', 'Rs 5,00,000'"},
	{"DATE", "Date or time reference, e.g. 'next week', 'March 15', 'last quarter'"},
	{"PERCENTAGE", "Percentage, e.g. '60%', '5.5%', 'twenty percent'"},
	{"ACCOUNT_ID", "Account, portfolio or folio identifier"},
	{"RISK_LEVEL", "Risk classification, e.g. 'conservative', 'moderate', 'aggressive'"},
	{"ASSET_CLASS", "Asset class, e.g. 'equity', 'debt', 'gold', 'real estate', 'hybrid'"},
	{"ORDER_TYPE", "Transaction type, e.g. 'buy', 'sell', 'SIP', 'SWP', 'switch'"},
}

var (
	intentSet = setOf(Intents)
	entitySet = setOf(EntityTypes)
)

func IsIntent(name string) bool {
	_, ok := intentSet[name]
	return ok
}

func IsEntityType(name string) bool {
	_, ok := entitySet[name]
	return ok
}

func setOf(labels []label) map[string]struct{} {
	out := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		out[l.Name] = struct{}{}
	}
	return out
}

func bulleted(labels []label) string {
	var b strings.Builder
	for i, l := range labels {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l.Name)
		b.WriteString(": ")
		b.WriteString(l.Desc)
	}
	return b.String()
}
