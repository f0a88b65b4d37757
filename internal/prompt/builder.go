package prompt

import (
	"fmt"
	"strings"
)

// System is the framing message sent with every completion request.
const System = "You are a senior conversational marketing strategist. " +
	"You design measurable experiments grounded in past results and always answer " +
	"in the exact JSON shape the request asks for, embedded in your reply."

// failureIndicators mark lines in uploaded documents that describe
// experiments which already failed; matching lines feed the do-not-suggest
// list. Matched case-insensitively.
var failureIndicators = []string{
	"failed",
	"no impact",
	"did not work",
	"didn't work",
	"negative result",
	"no significant",
}

const maxAvoidLines = 20

// GenerateContext carries everything the generate prompt embeds.
type GenerateContext struct {
	UserInput   string
	SelectedKPI string
	CustomKPI   string
	FileTexts   []string
}

// RefineContext carries the inputs for a single-idea refinement prompt.
type RefineContext struct {
	Idea              string
	ExpectedResult    string
	CustomRefinement  string
	OriginalUserInput string
}

// StepsContext carries the inputs for an implementation-steps prompt.
type StepsContext struct {
	Idea              string
	ExpectedResult    string
	OriginalUserInput string
}

// Generate composes the idea-generation prompt. Pure and deterministic:
// identical context yields byte-identical output.
func Generate(ctx GenerateContext) string {
	var b strings.Builder
	b.WriteString("Generate exactly 7 marketing experiment ideas for the goal below.\n\n")
	b.WriteString("MARKETING GOAL:\n")
	b.WriteString(ctx.UserInput)
	b.WriteString("\n")

	if kpi, ok := LookupKPI(ctx.SelectedKPI); ok {
		b.WriteString("\nTARGET KPI: ")
		b.WriteString(strings.ToLower(strings.TrimSpace(ctx.SelectedKPI)))
		b.WriteString("\nDefinition: ")
		b.WriteString(kpi.Definition)
		b.WriteString("\nImprovement focus: ")
		b.WriteString(kpi.Focus)
		b.WriteString("\nSuccess metrics: ")
		b.WriteString(strings.Join(kpi.Metrics, "; "))
		b.WriteString("\n")
	}
	if strings.EqualFold(strings.TrimSpace(ctx.SelectedKPI), "other") && strings.TrimSpace(ctx.CustomKPI) != "" {
		b.WriteString("\nCUSTOM KPI: ")
		b.WriteString(strings.TrimSpace(ctx.CustomKPI))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(experimentLibrary)
	b.WriteString("\n")

	if docs := joinFileTexts(ctx.FileTexts); docs != "" {
		b.WriteString("\nUPLOADED CONTEXT DOCUMENTS:\n")
		b.WriteString(docs)
		b.WriteString("\n")
		if avoid := avoidList(ctx.FileTexts); len(avoid) > 0 {
			b.WriteString("\nDO NOT SUGGEST experiments like these, they were already tried without success:\n")
			for _, line := range avoid {
				b.WriteString("- ")
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\nAnswer with a single JSON object of the shape ")
	b.WriteString(`{"ideas": [{"idea": string, "expectedResult": string, "sources": [string]}]}`)
	b.WriteString(" containing exactly 7 entries. Expected results must be quantitative estimates.\n")
	return b.String()
}

// Refine composes the prompt replacing one idea according to the user's
// refinement request.
func Refine(ctx RefineContext) string {
	var b strings.Builder
	b.WriteString("Refine the following marketing experiment idea.\n\n")
	fmt.Fprintf(&b, "ORIGINAL GOAL:\n%s\n\n", ctx.OriginalUserInput)
	fmt.Fprintf(&b, "CURRENT IDEA:\n%s\n\n", ctx.Idea)
	fmt.Fprintf(&b, "CURRENT EXPECTED RESULT:\n%s\n\n", ctx.ExpectedResult)
	fmt.Fprintf(&b, "REFINEMENT REQUEST:\n%s\n", ctx.CustomRefinement)
	b.WriteString("\nAnswer with a single JSON object of the shape ")
	b.WriteString(`{"idea": string, "expectedResult": string, "sources": [string]}`)
	b.WriteString(" describing the refined idea.\n")
	return b.String()
}

// ImplementationSteps composes the prompt asking for a four-step plan.
func ImplementationSteps(ctx StepsContext) string {
	var b strings.Builder
	b.WriteString("Produce an implementation plan for the marketing experiment below.\n\n")
	fmt.Fprintf(&b, "ORIGINAL GOAL:\n%s\n\n", ctx.OriginalUserInput)
	fmt.Fprintf(&b, "EXPERIMENT:\n%s\n\n", ctx.Idea)
	fmt.Fprintf(&b, "EXPECTED RESULT:\n%s\n", ctx.ExpectedResult)
	b.WriteString("\nAnswer with a single JSON object of the shape ")
	b.WriteString(`{"implementationSteps": [{"stepNumber": number, "title": string, "description": string}]}`)
	b.WriteString(" containing exactly 4 steps in execution order.\n")
	return b.String()
}

func joinFileTexts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(parts, "\n\n")
}

// avoidList collects lines from the uploaded documents that describe failed
// experiments, preserving order of first appearance.
func avoidList(texts []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			lower := strings.ToLower(trimmed)
			matched := false
			for _, indicator := range failureIndicators {
				if strings.Contains(lower, indicator) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			out = append(out, trimmed)
			if len(out) >= maxAvoidLines {
				return out
			}
		}
	}
	return out
}
