// Package gemini turns free-text prompts into structured task drafts using
// the Gemini API, with a fixed offline fallback when no key is configured.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	authdomain "github.com/nayhtooyan/collabtask/internal/auth/domain"
	taskdomain "github.com/nayhtooyan/collabtask/internal/task/domain"
)

const modelName = "gemini-2.5-flash"

const systemInstruction = `You are an intelligent task management assistant for the 'Collab Task' app.
Your goal is to take a user's natural language request and convert it into a structured list of tasks.
Analyze the request to determine appropriate priorities (low, medium, high) and categories (Work, Personal, Study, Health, Finance, Other).
If the request implies a schedule (e.g., "7 day plan"), create multiple tasks with titles indicating the day or phase.
Return ONLY JSON.`

// TaskDraft is a generated task not yet persisted. Conversion into a task
// creation request happens in the application layer.
type TaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	SubTasks    []string `json:"subTasks,omitempty"`
}

// TaskGenerator is the AI service boundary.
type TaskGenerator interface {
	GenerateTasks(ctx context.Context, prompt string, language authdomain.Language) ([]TaskDraft, error)
}

// Error classifies AI generation failures.
type Error struct {
	Code    string // EMPTY_RESPONSE, MALFORMED_RESPONSE, UNKNOWN
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Service generates task drafts with the Gemini API.
type Service struct {
	client *genai.Client
}

// NewService creates a Gemini-backed generator.
func NewService(ctx context.Context, apiKey string) (*Service, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return &Service{client: client}, nil
}

// Close releases the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}

// draftSchema constrains the model output to the TaskDraft sequence shape.
var draftSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"priority": {
				Type: genai.TypeString,
				Enum: []string{"low", "medium", "high"},
			},
			"category": {
				Type: genai.TypeString,
				Enum: []string{"Work", "Personal", "Study", "Health", "Finance", "Other"},
			},
			"subTasks": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"title", "priority", "category"},
	},
}

// GenerateTasks asks the model for a structured task list in the user's
// language.
func (s *Service) GenerateTasks(ctx context.Context, prompt string, language authdomain.Language) ([]TaskDraft, error) {
	langInstruction := "The user speaks English."
	if language == authdomain.LanguageMyanmar {
		langInstruction = "The user speaks Myanmar. Translate the task titles and descriptions to Myanmar Unicode if possible."
	}

	model := s.client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction + " " + langInstruction)},
	}
	model.GenerationConfig.ResponseMIMEType = "application/json"
	model.GenerationConfig.ResponseSchema = draftSchema

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, &Error{Code: "UNKNOWN", Message: "AI generation failed.", Err: err}
	}

	text, ok := firstText(resp)
	if !ok {
		return nil, &Error{Code: "EMPTY_RESPONSE", Message: "Empty response from AI."}
	}

	var drafts []TaskDraft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, &Error{Code: "MALFORMED_RESPONSE", Message: "AI returned malformed JSON.", Err: err}
	}
	if len(drafts) == 0 {
		return nil, &Error{Code: "EMPTY_RESPONSE", Message: "AI returned no tasks."}
	}

	for i := range drafts {
		drafts[i].Priority = string(taskdomain.ParsePriority(drafts[i].Priority))
		drafts[i].Category = string(taskdomain.ParseCategory(drafts[i].Category))
	}
	log.Printf("[Gemini] Generated %d task drafts", len(drafts))
	return drafts, nil
}

func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok && text != "" {
			return string(text), true
		}
	}
	return "", false
}
