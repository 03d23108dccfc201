package orchestrator

import contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"

// MinConfidence is the intent confidence below which a turn is treated as
// general chat.
const MinConfidence = 0.4

var intentAgents = map[string]string{
	"portfolio_analysis":  "portfolio_intelligence",
	"risk_assessment":     "portfolio_intelligence",
	"rebalance_request":   "portfolio_intelligence",
	"client_lookup":       contractx.AgentAdvisor,
	"general_chat":        contractx.AgentAdvisor,
	"order_management":    contractx.AgentAdvisor,
	"meeting_prep":        "meeting_intelligence",
	"compliance_check":    "compliance_sentinel",
	"tax_optimization":    "tax_optimizer",
	"funding_analysis":    "funding_risk",
	"lead_management":     "growth_engine",
	"campaign_creation":   "growth_engine",
	"churn_prediction":    "growth_engine",
	"report_generation":   "report_analytics",
	"analytics_query":     "report_analytics",
	"task_management":     "task_workflow",
	"task_creation":       "task_workflow",
	"communication_draft": "communications",
	"email_request":       "communications",
	"goal_tracking":       "goal_planning",
	"financial_planning":  "goal_planning",
	"client_onboarding":   "onboarding",
	"document_collection": "onboarding",
}

// routedIntent applies the confidence floor to a classification.
func routedIntent(cls *contractx.ClassificationResult) string {
	if cls == nil || cls.Intent.Name == "" || cls.Intent.Confidence < MinConfidence {
		return contractx.IntentGeneralChat
	}
	return cls.Intent.Name
}
