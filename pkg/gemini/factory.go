package gemini

import (
	"context"
	"log"

	authdomain "github.com/nayhtooyan/collabtask/internal/auth/domain"
)

// MockGenerator returns a fixed draft sequence without touching the network.
// It is the explicit offline fallback when no API key is configured, not an
// error path.
type MockGenerator struct{}

// GenerateTasks returns the fixed two-item demonstration sequence.
func (MockGenerator) GenerateTasks(ctx context.Context, prompt string, language authdomain.Language) ([]TaskDraft, error) {
	return []TaskDraft{
		{
			Title:       "Review Project Requirements (Mock)",
			Description: "Analyze the documentation thoroughly.",
			Priority:    "high",
			Category:    "Work",
			SubTasks:    []string{"Read PDF", "Make notes"},
		},
		{
			Title:       "Setup Development Environment (Mock)",
			Description: "Install Node.js and dependencies.",
			Priority:    "medium",
			Category:    "Work",
		},
	}, nil
}

// NewTaskGenerator is the factory: a real Gemini service when a key is
// configured, the mock sequence otherwise.
func NewTaskGenerator(ctx context.Context, apiKey string) (TaskGenerator, error) {
	if apiKey == "" {
		log.Println("[Gemini] No API key found, using mock task generator")
		return MockGenerator{}, nil
	}
	return NewService(ctx, apiKey)
}
