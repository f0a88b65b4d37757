package prompt

import "strings"

// KPIContext is the static explanation block attached to the prompt when the
// user picked a recognized KPI.
type KPIContext struct {
	Definition string
	Focus      string
	Metrics    []string
}

// kpiTable maps form KPI keys to their explanation blocks. Inert data; the
// builder only looks keys up.
var kpiTable = map[string]KPIContext{
	"deflection_rate": {
		Definition: "Share of inbound support or sales questions resolved by self-service or automated conversation instead of a human rep.",
		Focus:      "Route repetitive questions to bots and help content so reps focus on qualified conversations.",
		Metrics:    []string{"Deflected conversations / total conversations", "Rep handle time saved", "Self-service resolution rate"},
	},
	"conversion_rate": {
		Definition: "Share of visitors who complete the target action (demo request, signup, purchase).",
		Focus:      "Reduce friction and sharpen intent capture at high-traffic decision points.",
		Metrics:    []string{"Conversions / unique visitors", "Form completion rate", "Cost per conversion"},
	},
	"engagement_rate": {
		Definition: "Share of visitors who actively interact with a conversational touchpoint.",
		Focus:      "Place prompts where intent is highest and tailor openers to page context.",
		Metrics:    []string{"Chat opens / page views", "Messages per conversation", "Return engagement"},
	},
	"response_time": {
		Definition: "Time from a visitor's first message to the first meaningful reply.",
		Focus:      "Shorten or eliminate the wait with routing rules and instant answers.",
		Metrics:    []string{"Median first-response time", "Conversations answered under target", "Abandonment during wait"},
	},
	"lead_quality": {
		Definition: "Fit and intent of leads handed to sales, measured by downstream acceptance.",
		Focus:      "Qualify earlier in the conversation and enrich before handoff.",
		Metrics:    []string{"SQL acceptance rate", "Lead-to-opportunity rate", "Disqualification reasons"},
	},
	"csat": {
		Definition: "Post-conversation satisfaction score reported by visitors.",
		Focus:      "Close conversations with confirmed resolution and a low-friction survey.",
		Metrics:    []string{"Average CSAT", "Survey response rate", "Negative-score follow-up rate"},
	},
	"retention_rate": {
		Definition: "Share of customers who stay active over the measurement window.",
		Focus:      "Use proactive conversations to catch at-risk accounts before they lapse.",
		Metrics:    []string{"Logo retention", "Feature re-engagement after outreach", "Churn-save conversations"},
	},
}

// LookupKPI returns the explanation block for a KPI key. Unrecognized or
// blank keys return false, which omits the block from the prompt.
func LookupKPI(key string) (KPIContext, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(key))
	if trimmed == "" {
		return KPIContext{}, false
	}
	ctx, ok := kpiTable[trimmed]
	return ctx, ok
}
