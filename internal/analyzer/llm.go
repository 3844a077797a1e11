package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

const defaultLLMTimeout = 30 * time.Second

// LLMConfig configures the model-backed analyzer.
type LLMConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// LLM scores events by calling a chat-completions style JSON API. The model
// is instructed to reply with a single JSON object carrying the score,
// explanation and recommendations.
type LLM struct {
	config LLMConfig
	client *http.Client
	Now    func() time.Time
}

// NewLLM creates the model-backed analyzer.
func NewLLM(config LLMConfig) (*LLM, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("llm analyzer endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultLLMTimeout
	}

	return &LLM{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		Now:    time.Now,
	}, nil
}

const systemPrompt = `You are a security analyst. Given one security log event, respond with a single JSON object:
{"severity_score": <integer 1-10>, "explanation": "<one paragraph>", "recommendations": ["<action>", ...]}`

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	SeverityScore   int      `json:"severity_score"`
	Explanation     string   `json:"explanation"`
	Recommendations []string `json:"recommendations"`
}

// Analyze sends the event to the model and decodes its verdict.
func (l *LLM) Analyze(ctx context.Context, event *types.Event) (*types.Analysis, error) {
	prompt := fmt.Sprintf("timestamp: %s\nsource: %s\ncategory: %s\nmessage: %s",
		event.Timestamp.Format(time.RFC3339), event.Source, event.Category, event.Message)

	body, err := json.Marshal(chatRequest{
		Model: l.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, &AnalysisError{EventID: event.ID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &AnalysisError{EventID: event.ID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if l.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.config.APIKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &AnalysisError{EventID: event.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &AnalysisError{EventID: event.ID, Err: fmt.Errorf("analyzer API returned HTTP %d", resp.StatusCode)}
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, &AnalysisError{EventID: event.ID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(chat.Choices) == 0 {
		return nil, &AnalysisError{EventID: event.ID, Err: fmt.Errorf("analyzer API returned no choices")}
	}

	var v verdict
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &v); err != nil {
		return nil, &AnalysisError{EventID: event.ID, Err: fmt.Errorf("model reply is not a verdict object: %w", err)}
	}
	if !types.SeverityInRange(v.SeverityScore) {
		return nil, &AnalysisError{EventID: event.ID, Err: fmt.Errorf("model severity %d outside [1,10]", v.SeverityScore)}
	}

	return &types.Analysis{
		ID:              uuid.NewString(),
		EventID:         event.ID,
		SeverityScore:   v.SeverityScore,
		Explanation:     v.Explanation,
		Recommendations: v.Recommendations,
		CreatedAt:       l.Now(),
	}, nil
}

// Name returns the analyzer name.
func (l *LLM) Name() string { return "llm" }
