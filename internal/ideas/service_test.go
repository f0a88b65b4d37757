package ideas

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ideaforge-io/ideaforge/internal/llm"
)

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestService(completer *fakeCompleter) *Service {
	svc := NewService(completer)
	svc.extractFile = func(path, filename string) string { return "" }
	return svc
}

func TestGenerateIdeasRequiresInput(t *testing.T) {
	completer := &fakeCompleter{}
	svc := newTestService(completer)
	_, err := svc.GenerateIdeas(context.Background(), GenerateRequest{UserInput: "   "})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("validation must run before any completion call")
	}
}

func TestGenerateIdeasParsesAndNumbers(t *testing.T) {
	completer := &fakeCompleter{reply: `Here you go:
{"ideas":[
  {"idea":"A","expectedResult":"1%"},
  {"idea":"B","expectedResult":"2%","sources":["library"]},
  {"idea":"C","expectedResult":"3%"}
]}`}
	svc := newTestService(completer)
	got, err := svc.GenerateIdeas(context.Background(), GenerateRequest{UserInput: "grow signups"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 ideas, got %d", len(got))
	}
	for i, idea := range got {
		if idea.ID != i+1 {
			t.Fatalf("idea %d has id %d", i, idea.ID)
		}
	}
	if got[1].Sources[0] != "library" {
		t.Fatalf("sources not preserved: %+v", got[1])
	}
}

func TestGenerateIdeasFallbackOnUnparseableReply(t *testing.T) {
	completer := &fakeCompleter{reply: "I could not produce ideas this time."}
	svc := newTestService(completer)
	got, err := svc.GenerateIdeas(context.Background(), GenerateRequest{UserInput: "grow signups"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected single fallback idea, got %+v", got)
	}
}

func TestGenerateIdeasPropagatesGatewayError(t *testing.T) {
	wantErr := &llm.GatewayError{Kind: llm.KindOverloaded}
	completer := &fakeCompleter{err: wantErr}
	svc := newTestService(completer)
	_, err := svc.GenerateIdeas(context.Background(), GenerateRequest{UserInput: "grow signups"})
	var gErr *llm.GatewayError
	if !errors.As(err, &gErr) || gErr.Kind != llm.KindOverloaded {
		t.Fatalf("expected gateway error to pass through, got %v", err)
	}
}

func TestGenerateIdeasFeedsExtractedTextIntoPrompt(t *testing.T) {
	completer := &fakeCompleter{reply: `{"ideas":[{"idea":"A","expectedResult":"1%"}]}`}
	svc := NewService(completer)
	svc.extractFile = func(path, filename string) string {
		return "Exit intent popup failed to lift signups"
	}
	_, err := svc.GenerateIdeas(context.Background(), GenerateRequest{
		UserInput: "grow signups",
		Uploads:   []Upload{{Path: "/tmp/x", Filename: "history.txt"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(completer.prompts[0], "DO NOT SUGGEST") {
		t.Fatalf("extracted failure line should produce an avoid section")
	}
}

func TestRefineIdeaRequiresRefinement(t *testing.T) {
	completer := &fakeCompleter{}
	svc := newTestService(completer)
	_, err := svc.RefineIdea(context.Background(), RefineRequest{Idea: "A"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("validation must run before any completion call")
	}
}

func TestRefineIdeaKeepsOriginalOnParseFailure(t *testing.T) {
	completer := &fakeCompleter{reply: "sorry, no structured answer"}
	svc := newTestService(completer)
	got, err := svc.RefineIdea(context.Background(), RefineRequest{
		Idea:             "original idea",
		ExpectedResult:   "original result",
		CustomRefinement: "make it cheaper",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Idea != "original idea" || got.ExpectedResult != "original result" {
		t.Fatalf("parse failure must leave the idea unchanged, got %+v", got)
	}
}

func TestRefineIdeaAppliesParsedReply(t *testing.T) {
	completer := &fakeCompleter{reply: `{"idea":"cheaper idea","expectedResult":"0.5%","sources":["doc"]}`}
	svc := newTestService(completer)
	got, err := svc.RefineIdea(context.Background(), RefineRequest{
		Idea:             "original idea",
		ExpectedResult:   "original result",
		CustomRefinement: "make it cheaper",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Idea != "cheaper idea" || got.ExpectedResult != "0.5%" {
		t.Fatalf("refined content not applied: %+v", got)
	}
}

func TestImplementationStepsExactlyFour(t *testing.T) {
	completer := &fakeCompleter{reply: `{"implementationSteps":[
  {"stepNumber":9,"title":"One","description":"d1"},
  {"stepNumber":9,"title":"Two","description":"d2"},
  {"stepNumber":9,"title":"Three","description":"d3"},
  {"stepNumber":9,"title":"Four","description":"d4"}
]}`}
	svc := newTestService(completer)
	got, err := svc.ImplementationSteps(context.Background(), StepsRequest{Idea: "chatbot"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(got))
	}
	for i, step := range got {
		if step.StepNumber != i+1 {
			t.Fatalf("steps must be renumbered sequentially, step %d has number %d", i, step.StepNumber)
		}
	}
	if got[0].Title != "One" {
		t.Fatalf("step content not preserved: %+v", got[0])
	}
}

func TestImplementationStepsFallbackOnWrongCount(t *testing.T) {
	completer := &fakeCompleter{reply: `{"implementationSteps":[{"title":"only one","description":"d"}]}`}
	svc := newTestService(completer)
	got, err := svc.ImplementationSteps(context.Background(), StepsRequest{Idea: "chatbot"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("fallback plan must have 4 steps, got %d", len(got))
	}
	if got[0].Title == "only one" {
		t.Fatalf("wrong-count reply should be discarded entirely")
	}
	for i, step := range got {
		if step.StepNumber != i+1 {
			t.Fatalf("fallback steps must be numbered, step %d has number %d", i, step.StepNumber)
		}
	}
}
