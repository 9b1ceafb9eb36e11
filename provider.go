package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
)

var errInvalidFormat = errors.New("invalid provider format")

// GPT-4.1-and-later and GPT-5 model families use the responses API.
// Checked only after the claude/gemini name matches, so e.g. a hypothetical
// "claude-gpt-5-gateway" still routes to claude.
var responsesModelPattern = regexp.MustCompile(`(?i)gpt-?(4\.[1-9]|[5-9])`)

// resolveProviderFormat picks the request/response shape for a model. An
// explicit override must name one of the four known formats; otherwise the
// model name is classified by substring, falling back to plain openai chat
// completions.
func resolveProviderFormat(model, override string) (string, error) {
	if override != "" {
		switch override {
		case formatOpenAI, formatClaude, formatGemini, formatResponses:
			return override, nil
		}
		return "", fmt.Errorf("%w: %q (want openai, claude, gemini or responses)", errInvalidFormat, override)
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude"):
		return formatClaude, nil
	case strings.Contains(lower, "gemini"):
		return formatGemini, nil
	case responsesModelPattern.MatchString(model):
		return formatResponses, nil
	}
	return formatOpenAI, nil
}

// --- Request shapes ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type responsesRequest struct {
	Model           string             `json:"model"`
	Input           string             `json:"input"`
	Reasoning       responsesReasoning `json:"reasoning"`
	Text            responsesText      `json:"text"`
	MaxOutputTokens int                `json:"max_output_tokens"`
}

type responsesReasoning struct {
	Effort string `json:"effort"`
}

type responsesText struct {
	Verbosity string `json:"verbosity"`
}

const (
	anthropicVersion         = "2023-06-01"
	defaultReasoningEffort   = "low"
	defaultVerbosity         = "low"
	minResponsesOutputTokens = 3000
	defaultResponsesTokens   = 5000
)

func validReasoningEffort(effort string) bool {
	switch effort {
	case "minimal", "low", "medium", "high":
		return true
	}
	return false
}

func validVerbosity(verbosity string) bool {
	switch verbosity {
	case "low", "medium", "high":
		return true
	}
	return false
}

// buildProviderRequest marshals the provider-specific body and HTTP headers
// for one annotation prompt. The gemini shape is identical to openai chat
// completions (gateway-compatibility mode).
func buildProviderRequest(cfg Config, format, model, prompt string) (*http.Request, error) {
	var (
		url  string
		body interface{}
	)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch format {
	case formatOpenAI, formatGemini:
		url = cfg.BaseURL + "/v1/chat/completions"
		body = chatCompletionRequest{
			Model:       model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: cfg.Temperature,
		}
	case formatClaude:
		url = cfg.BaseURL + "/v1/messages"
		body = claudeRequest{
			Model:     model,
			MaxTokens: maxTokens,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
		}
	case formatResponses:
		url = cfg.BaseURL + "/v1/responses"
		outputTokens := defaultResponsesTokens
		if cfg.MaxTokens > 0 {
			outputTokens = cfg.MaxTokens
			if outputTokens < minResponsesOutputTokens {
				outputTokens = minResponsesOutputTokens
			}
		}
		effort := cfg.ReasoningEffort
		if !validReasoningEffort(effort) {
			if effort != "" && cfg.Verbose {
				log.Printf("warning: invalid reasoning_effort %q, using %q", effort, defaultReasoningEffort)
			}
			effort = defaultReasoningEffort
		}
		verbosity := cfg.Verbosity
		if !validVerbosity(verbosity) {
			if verbosity != "" && cfg.Verbose {
				log.Printf("warning: invalid verbosity %q, using %q", verbosity, defaultVerbosity)
			}
			verbosity = defaultVerbosity
		}
		body = responsesRequest{
			Model:           model,
			Input:           prompt,
			Reasoning:       responsesReasoning{Effort: effort},
			Text:            responsesText{Verbosity: verbosity},
			MaxOutputTokens: outputTokens,
		}
	default:
		return nil, fmt.Errorf("%w: %q", errInvalidFormat, format)
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if format == formatClaude {
		req.Header.Set("x-api-key", cfg.APIKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	} else {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return req, nil
}

// doProviderRequest sends one request and returns the status code and raw
// body. Transport errors return err; non-200 statuses do not, the caller
// classifies them.
func doProviderRequest(client *http.Client, cfg Config, format, model, prompt string) (int, []byte, error) {
	req, err := buildProviderRequest(cfg, format, model, prompt)
	if err != nil {
		return 0, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}
