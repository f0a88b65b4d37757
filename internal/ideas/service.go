package ideas

import (
	"context"
	"fmt"
	"strings"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/common/telemetry"
	"github.com/ideaforge-io/ideaforge/internal/extract"
	"github.com/ideaforge-io/ideaforge/internal/llm"
	"github.com/ideaforge-io/ideaforge/internal/prompt"
)

// ValidationError marks bad caller input. Raised before any gateway call.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Completer is the slice of the gateway the service depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Upload is one received context document, already saved to a temp path.
type Upload struct {
	Path     string
	Filename string
}

type GenerateRequest struct {
	UserInput   string
	SelectedKPI string
	CustomKPI   string
	Uploads     []Upload
}

type RefineRequest struct {
	Idea              string
	ExpectedResult    string
	CustomRefinement  string
	OriginalUserInput string
}

type StepsRequest struct {
	Idea              string
	ExpectedResult    string
	OriginalUserInput string
}

// Service orchestrates prompt building, the gateway call, and response
// parsing for the three idea operations.
type Service struct {
	gateway Completer

	// extractFile is swappable in tests; defaults to extract.File.
	extractFile func(path, filename string) string
}

func NewService(gateway Completer) *Service {
	return &Service{gateway: gateway, extractFile: extract.File}
}

// GenerateIdeas produces the seven-idea list for a marketing goal. File
// extraction is best-effort per upload: a failed document is skipped, never
// aborting the batch.
func (s *Service) GenerateIdeas(ctx context.Context, req GenerateRequest) ([]Idea, error) {
	if strings.TrimSpace(req.UserInput) == "" {
		return nil, &ValidationError{Field: "userInput"}
	}
	logger := common.Logger()
	ctx, done := telemetry.StartSpan(ctx, "ideas.generate")
	defer done()

	var fileTexts []string
	for _, upload := range req.Uploads {
		text := s.extractFile(upload.Path, upload.Filename)
		if text == "" {
			logger.Warn("ideas: upload skipped, no text extracted", "filename", upload.Filename)
			continue
		}
		fileTexts = append(fileTexts, text)
	}

	promptText := prompt.Generate(prompt.GenerateContext{
		UserInput:   req.UserInput,
		SelectedKPI: req.SelectedKPI,
		CustomKPI:   req.CustomKPI,
		FileTexts:   fileTexts,
	})
	raw, err := s.gateway.Complete(ctx, llm.Request{System: prompt.System, Prompt: promptText})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Ideas []Idea `json:"ideas"`
	}
	if !decodeObject("generate", raw, &parsed) || len(parsed.Ideas) == 0 {
		parsed.Ideas = []Idea{{
			Idea:           "The response could not be read as structured ideas. Please try generating again.",
			ExpectedResult: "Unavailable for this attempt.",
		}}
	}
	for i := range parsed.Ideas {
		parsed.Ideas[i].ID = i + 1
	}
	telemetry.RecordIdeas(len(parsed.Ideas))
	logger.Info("ideas: generated", "count", len(parsed.Ideas), "uploads", len(req.Uploads), "kpi", req.SelectedKPI)
	return parsed.Ideas, nil
}

// RefineIdea replaces one idea's content per the user's request. A malformed
// reply makes refinement a no-op: the original idea is returned unchanged.
func (s *Service) RefineIdea(ctx context.Context, req RefineRequest) (Refinement, error) {
	if strings.TrimSpace(req.CustomRefinement) == "" {
		return Refinement{}, &ValidationError{Field: "customRefinement"}
	}
	ctx, done := telemetry.StartSpan(ctx, "ideas.refine")
	defer done()

	promptText := prompt.Refine(prompt.RefineContext{
		Idea:              req.Idea,
		ExpectedResult:    req.ExpectedResult,
		CustomRefinement:  req.CustomRefinement,
		OriginalUserInput: req.OriginalUserInput,
	})
	raw, err := s.gateway.Complete(ctx, llm.Request{System: prompt.System, Prompt: promptText})
	if err != nil {
		return Refinement{}, err
	}

	refined := Refinement{Idea: req.Idea, ExpectedResult: req.ExpectedResult}
	var parsed Refinement
	if decodeObject("refine", raw, &parsed) && strings.TrimSpace(parsed.Idea) != "" {
		refined = parsed
	}
	telemetry.RecordRefinement()
	return refined, nil
}

// ImplementationSteps returns exactly four steps. Any other count from the
// model is discarded for the fixed generic plan.
func (s *Service) ImplementationSteps(ctx context.Context, req StepsRequest) ([]Step, error) {
	if strings.TrimSpace(req.Idea) == "" {
		return nil, &ValidationError{Field: "idea"}
	}
	ctx, done := telemetry.StartSpan(ctx, "ideas.steps")
	defer done()

	promptText := prompt.ImplementationSteps(prompt.StepsContext{
		Idea:              req.Idea,
		ExpectedResult:    req.ExpectedResult,
		OriginalUserInput: req.OriginalUserInput,
	})
	raw, err := s.gateway.Complete(ctx, llm.Request{System: prompt.System, Prompt: promptText})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Steps []Step `json:"implementationSteps"`
	}
	if !decodeObject("steps", raw, &parsed) || len(parsed.Steps) != 4 {
		if len(parsed.Steps) != 0 {
			common.Logger().Warn("ideas: step count mismatch, using fallback", "got", len(parsed.Steps))
			telemetry.RecordParseFallback("steps")
		}
		parsed.Steps = fallbackSteps()
	}
	for i := range parsed.Steps {
		parsed.Steps[i].StepNumber = i + 1
	}
	return parsed.Steps, nil
}

// fallbackSteps is the fixed plan substituted when the model does not return
// exactly four steps.
func fallbackSteps() []Step {
	return []Step{
		{Title: "Plan the experiment", Description: "Define the audience, the channel, and the single metric the experiment should move."},
		{Title: "Build the variant", Description: "Set up the experiment variant alongside the current experience as control."},
		{Title: "Run and monitor", Description: "Launch to the target segment and review the primary metric on a fixed cadence."},
		{Title: "Evaluate and decide", Description: "Compare results against the expected outcome and decide to roll out, iterate, or stop."},
	}
}
