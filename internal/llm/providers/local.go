package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// LocalProvider is a deterministic offline stand-in used when no API key is
// configured. It inspects the prompt for the requested reply shape and returns
// well-formed canned JSON, so the full pipeline works without network access.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, `"implementationSteps"`):
		return l.stepsReply()
	case strings.Contains(prompt, `"ideas"`):
		return l.ideasReply()
	default:
		return l.refineReply()
	}
}

func (l *LocalProvider) ideasReply() (string, error) {
	type idea struct {
		Idea           string   `json:"idea"`
		ExpectedResult string   `json:"expectedResult"`
		Sources        []string `json:"sources"`
	}
	ideas := make([]idea, 0, 7)
	for i := 1; i <= 7; i++ {
		ideas = append(ideas, idea{
			Idea:           fmt.Sprintf("Offline sample experiment %d: add a targeted chat prompt to a high-intent page.", i),
			ExpectedResult: fmt.Sprintf("Estimated %d%% lift in qualified conversations within 30 days.", 5+i),
			Sources:        []string{"local provider sample"},
		})
	}
	payload, err := json.Marshal(map[string]interface{}{"ideas": ideas})
	if err != nil {
		return "", err
	}
	return "Here are your experiment ideas:\n" + string(payload), nil
}

func (l *LocalProvider) stepsReply() (string, error) {
	type step struct {
		StepNumber  int    `json:"stepNumber"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	steps := []step{
		{1, "Define the audience", "Pick the segment and page where the experiment runs."},
		{2, "Configure the experiment", "Set up the variant and the control in your marketing platform."},
		{3, "Launch and monitor", "Run the experiment and watch the primary metric daily."},
		{4, "Evaluate results", "Compare against the expected result and decide on rollout."},
	}
	payload, err := json.Marshal(map[string]interface{}{"implementationSteps": steps})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (l *LocalProvider) refineReply() (string, error) {
	payload, err := json.Marshal(map[string]string{
		"idea":           "Offline refined experiment: narrow the chat prompt to returning visitors only.",
		"expectedResult": "Estimated 12% lift in engagement for the targeted cohort.",
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
