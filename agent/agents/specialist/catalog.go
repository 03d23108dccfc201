package specialist

import (
	"fmt"

	contractx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/contract"
	llmx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/llm"
	promptx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/prompt"
	toolx "github.com/AakashRaj-AidenAi/wealth-navigator-ai/agent/tool"
)

const (
	modelFull = "openai/gpt-4o"
	modelMini = "openai/gpt-4o-mini"
)

// Tools every agent gets in addition to its own list.
var commonTools = []string{toolx.ToolMathEvaluate, toolx.ToolConversationRecent}

// Catalog lists the built-in agent roles. Instructions are filled from the
// embedded prompt templates by NewCatalog.
var Catalog = []Definition{
	{
		Name:        contractx.AgentAdvisor,
		Description: "Supports advisors with client recommendations, engagement strategy, relationship intelligence and the daily workflow.",
		Category:    "advisory",
		Tools:       []string{"get_client_profile", "get_recent_activity", "get_engagement_score", "search_clients", ToolDelegate},
		Model:       modelFull,
	},
	{
		Name:        "cio_strategy",
		Description: "Macro analysis, sector allocation strategy and market outlook for Indian markets.",
		Category:    "advisory",
		Tools:       []string{"get_sector_allocation", "get_market_overview", ToolDelegate},
		Model:       modelFull,
	},
	{
		Name:        "communications",
		Description: "Drafts client communications, runs email and notification workflows and tracks communication history.",
		Category:    "growth",
		Tools:       []string{"draft_email", "get_communication_history", "send_notification", "create_campaign_message", "get_client_profile", "query_knowledge_graph"},
		Model:       modelMini,
	},
	{
		Name:        "compliance_sentinel",
		Description: "Watches KYC expiry, regulatory alerts and audit trails under SEBI and AMFI rules.",
		Category:    "operations",
		Tools:       []string{"check_kyc_status", "get_compliance_alerts", "get_audit_trail"},
		Model:       modelMini,
	},
	{
		Name:        "funding_risk",
		Description: "Settlement risk, withdrawal patterns, cash flow forecasts and funding alerts.",
		Category:    "operations",
		Tools:       []string{"get_cash_flow_forecast", "analyze_settlement_risk", "get_withdrawal_patterns", "get_funding_alerts"},
		Model:       modelMini,
	},
	{
		Name:        "goal_planning",
		Description: "Manages client financial goals, projects timelines and tracks progress toward life goals.",
		Category:    "operations",
		Tools:       []string{"get_goals", "create_goal", "update_goal_progress", "project_goal_timeline", "suggest_goal_strategy", "get_client_portfolio", "query_knowledge_graph"},
		Model:       modelFull,
	},
	{
		Name:        "growth_engine",
		Description: "Scores client engagement, predicts churn, finds cross-sell opportunities and detects silent clients.",
		Category:    "growth",
		Tools:       []string{"score_clients", "predict_churn", "identify_opportunities", "get_silent_clients"},
		Model:       modelMini,
	},
	{
		Name:        "meeting_intelligence",
		Description: "Prepares client meetings with profile, recent activity, pending items and talking points.",
		Category:    "advisory",
		Tools:       []string{"get_client_summary", "get_pending_items", "get_recent_communications", "generate_talking_points", ToolDelegate},
		Model:       modelFull,
	},
	{
		Name:        "onboarding",
		Description: "Guides new clients through KYC, document collection, risk profiling and initial allocation.",
		Category:    "operations",
		Tools:       []string{"get_onboarding_status", "start_onboarding", "collect_documents", "run_risk_profile", "generate_initial_allocation", "check_kyc_status", "query_knowledge_graph"},
		Model:       modelFull,
	},
	{
		Name:        "portfolio_intelligence",
		Description: "Portfolio drift, concentration risk and performance attribution with data-driven insights.",
		Category:    "analysis",
		Tools:       []string{"get_client_portfolio", "calculate_drift", "get_target_allocation", "analyze_concentration", "get_performance_history"},
		Model:       modelFull,
	},
	{
		Name:        "report_analytics",
		Description: "Builds reports and analyses AUM trends and revenue for the advisory business.",
		Category:    "analysis",
		Tools:       []string{"generate_report", "get_report_templates", "get_aum_summary", "get_revenue_breakdown", "get_sector_allocation", "query_knowledge_graph"},
		Model:       modelFull,
	},
	{
		Name:        "task_workflow",
		Description: "Advisor task management with prioritisation and overdue tracking.",
		Category:    "operations",
		Tools:       []string{"get_tasks", "create_task", "update_task", "get_overdue_tasks", "get_task_summary", "query_knowledge_graph"},
		Model:       modelMini,
	},
	{
		Name:        "tax_optimizer",
		Description: "Tax-loss harvesting, LTCG and STCG implications and Section 80C opportunities under Indian tax rules.",
		Category:    "analysis",
		Tools:       []string{"get_unrealized_gains_losses", "find_harvesting_opportunities", "estimate_tax_impact"},
		Model:       modelFull,
	},
}

// NewCatalog builds every catalog agent and registers it in agents. Per-agent model
// and temperature overrides come from cfg. The delegate tool must already be
// in tools when an agent lists it.
func NewCatalog(cfg llmx.Config, tools *toolx.Registry, gateway contractx.CompletionGateway, agents *Registry) error {
	for _, def := range Catalog {
		instructions, err := promptx.Agent(def.Name)
		if err != nil {
			return err
		}
		def.Instructions = instructions
		def.Model = cfg.AgentModel(def.Name, def.Model)
		def.Temperature = cfg.AgentTemperature(def.Name, DefaultTemperature)
		def.Tools = append(append([]string{}, def.Tools...), commonTools...)

		a, err := New(def, tools, gateway)
		if err != nil {
			return fmt.Errorf("build agent %s: %w", def.Name, err)
		}
		if err := agents.Register(a); err != nil {
			return err
		}
	}
	return nil
}
