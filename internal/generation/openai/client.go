package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"resty.dev/v3"

	"github.com/at-ishikawa/surveygen/internal/generation"
	"github.com/at-ishikawa/surveygen/internal/survey"
)

const systemPrompt = `You generate professional surveys and return ONLY JSON with keys: ` +
	`title (string) and questions (array). Each question has: ` +
	`type ('multiple_choice'|'rating'|'open_text'), text (string); ` +
	`for multiple_choice include options (2-10 strings); ` +
	`for rating include scale (3-10). No extra commentary.`

// maxRawLength bounds how much generator output is carried in errors and logs.
const maxRawLength = 2000

type Client struct {
	httpClient  *resty.Client
	model       string
	temperature float64
}

func NewClient(apiKey, baseURL, model string, temperature float64) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		httpClient:  client,
		model:       model,
		temperature: temperature,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

// GetModel returns the model name configured for this client.
func (client *Client) GetModel() string {
	return client.model
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (client *Client) getRequestBody(prompt string) ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:       client.model,
		Temperature: client.temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: "Generate a survey for: " + prompt},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
}

// Generate implements the generation.Generator interface.
// It performs exactly one request; retries are the caller's decision.
func (client *Client) Generate(ctx context.Context, prompt string) (survey.Document, error) {
	requestBody := client.getRequestBody(prompt)

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		Post("/chat/completions")
	if err != nil {
		return survey.Document{}, generation.TransportError(fmt.Errorf("httpClient.Post > %w", err))
	}
	if response.IsError() {
		return survey.Document{}, generation.TransportError(fmt.Errorf("response error %d: %s", response.StatusCode(), truncate(response.String())))
	}

	var responseBody ChatCompletionResponse
	if err := json.Unmarshal([]byte(response.String()), &responseBody); err != nil {
		return survey.Document{}, generation.InvalidOutputError(truncate(response.String()), fmt.Errorf("decode chat completion: %w", err))
	}
	if len(responseBody.Choices) == 0 {
		return survey.Document{}, generation.InvalidOutputError(truncate(response.String()), errors.New("empty choices"))
	}

	content := strings.TrimSpace(responseBody.Choices[0].Message.Content)
	slog.Default().Debug("openai response content",
		"model", responseBody.Model,
		"finishReason", responseBody.Choices[0].FinishReason,
		"totalTokens", responseBody.Usage.TotalTokens,
		"content", truncate(content),
	)
	if content == "" {
		return survey.Document{}, generation.InvalidOutputError("", errors.New("empty response content"))
	}

	doc, err := survey.ParseDocument([]byte(content))
	if err != nil {
		slog.Default().Warn("OpenAI returned a malformed survey",
			"prompt", prompt,
			"error", err)
		return survey.Document{}, generation.InvalidOutputError(truncate(content), err)
	}
	return doc, nil
}

func truncate(s string) string {
	if len(s) <= maxRawLength {
		return s
	}
	return strings.ToValidUTF8(s[:maxRawLength], "")
}

var _ generation.Generator = (*Client)(nil)
