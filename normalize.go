package main

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// The normalizers turn a raw response body into plain answer text. Each
// returns ok=false when no usable text exists anywhere in the body; they
// never fail on missing or oddly shaped fields, since gateways rewrap
// responses in more shapes than any one schema covers.

// Minimum length for the last-resort "any string field" scan. Shorter
// values are usually IDs, statuses or model names.
const minLooseFieldLen = 10

// Opaque item IDs ("rs_abc123", "resp_...", "msg_...") show up as string
// fields all over responses-API bodies. They are never answer text.
var internalIDPattern = regexp.MustCompile(`^(rs|resp|msg|cmpl|chatcmpl)_[A-Za-z0-9-]{1,64}$`)

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

var populationLinePattern = regexp.MustCompile(`(?m)^\s*Population\s+(\d+)\s*:\s*(.+?)\s*$`)

var bracketedTokenPattern = regexp.MustCompile(`>[^<>]+<`)

func looksLikeInternalID(s string) bool {
	return internalIDPattern.MatchString(s)
}

func usableText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || looksLikeInternalID(s) {
		return "", false
	}
	return s, true
}

func stripThinkTags(s string) string {
	return thinkTagPattern.ReplaceAllString(s, "")
}

func squishWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractText dispatches to the normalizer matching the provider format.
func extractText(format string, body []byte) (string, bool) {
	switch format {
	case formatClaude:
		return extractClaudeText(body)
	case formatGemini:
		return extractGeminiText(body)
	case formatResponses:
		return extractResponsesText(body)
	default:
		return extractOpenAIText(body)
	}
}

// --- OpenAI chat completions ---

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func extractOpenAIText(body []byte) (string, bool) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err == nil && len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		content := strings.TrimSpace(choice.Message.Content)
		reasoning := strings.TrimSpace(choice.Message.ReasoningContent)
		switch {
		case content != "" && reasoning != "":
			// Reasoning-model variant that fills both fields.
			return reasoning + "\n\nFinal answer: " + content, true
		case content != "":
			return content, true
		case reasoning != "":
			return reasoning, true
		}
		if choice.FinishReason != "" {
			return finishReasonPlaceholder(choice.FinishReason), true
		}
	}
	return scanLooseFields(body)
}

// finishReasonPlaceholder explains an empty-content choice instead of
// letting it degrade silently into an extraction failure.
func finishReasonPlaceholder(reason string) string {
	switch reason {
	case "length":
		return "[empty response: output truncated at the token limit]"
	case "content_filter":
		return "[empty response: output removed by content filter]"
	default:
		return fmt.Sprintf("[empty response: finish_reason=%s]", reason)
	}
}

// --- Claude messages ---

func extractClaudeText(body []byte) (string, bool) {
	content := gjson.GetBytes(body, "content")
	var text string
	switch {
	case content.Type == gjson.String:
		text = content.String()
	case content.IsArray():
		for _, block := range content.Array() {
			if t := block.Get("text"); t.Type == gjson.String && strings.TrimSpace(t.String()) != "" {
				text = t.String()
				break
			}
		}
	}
	text = squishWhitespace(stripThinkTags(text))
	if text == "" {
		return "", false
	}
	return text, true
}

// --- Gemini ---

// extractGeminiText prefers the OpenAI-compatible choices shape, because
// gateway deployments commonly translate gemini responses into it, before
// trying the native candidates path.
func extractGeminiText(body []byte) (string, bool) {
	if text, ok := usableText(gjson.GetBytes(body, "choices.0.message.content").String()); ok {
		return text, true
	}
	if text, ok := usableText(gjson.GetBytes(body, "candidates.0.content.parts.0.text").String()); ok {
		return text, true
	}
	return scanLooseFields(body)
}

// --- Responses API ---

// extractResponsesText walks the reasoning-capable responses envelope in
// precedence order: output_text, chat-style choices, the output item array
// (message items before reasoning items), the top-level text field and its
// format sub-structures, then the reasoning summary. Whatever wins is run
// through convertGPT5Format before being returned.
func extractResponsesText(body []byte) (string, bool) {
	if text, ok := usableText(gjson.GetBytes(body, "output_text").String()); ok {
		return convertGPT5Format(text), true
	}

	for _, choice := range gjson.GetBytes(body, "choices").Array() {
		if text, ok := usableText(choice.Get("message.content").String()); ok {
			return convertGPT5Format(text), true
		}
	}

	if text, ok := scanOutputItems(gjson.GetBytes(body, "output")); ok {
		return convertGPT5Format(text), true
	}

	if text, ok := scanNestedText(gjson.GetBytes(body, "text")); ok {
		return convertGPT5Format(text), true
	}
	if text, ok := scanNestedText(gjson.GetBytes(body, "text.format")); ok {
		return convertGPT5Format(text), true
	}

	if text, ok := scanNestedText(gjson.GetBytes(body, "reasoning")); ok {
		return convertGPT5Format(text), true
	}
	if text, ok := scanNestedText(gjson.GetBytes(body, "reasoning.summary")); ok {
		return convertGPT5Format(text), true
	}

	if text, ok := scanLooseFields(body); ok {
		return convertGPT5Format(text), true
	}
	return "", false
}

// scanOutputItems scans output[] rows, preferring type=="message" rows and
// falling back to type=="reasoning" rows when no message rows exist.
func scanOutputItems(output gjson.Result) (string, bool) {
	if !output.IsArray() {
		return "", false
	}
	var messages, reasonings []gjson.Result
	for _, item := range output.Array() {
		switch item.Get("type").String() {
		case "message":
			messages = append(messages, item)
		case "reasoning":
			reasonings = append(reasonings, item)
		}
	}
	rows := messages
	if len(rows) == 0 {
		rows = reasonings
	}
	for _, row := range rows {
		if text, ok := scanNestedText(row.Get("content")); ok {
			return text, true
		}
		if text, ok := scanNestedText(row.Get("summary")); ok {
			return text, true
		}
	}
	return "", false
}

// scanNestedText digs answer text out of an arbitrarily wrapped value: a
// plain string, an object carrying text/content/value/summary fields, or an
// array of either (including table-shaped content rows nesting further
// objects).
func scanNestedText(value gjson.Result) (string, bool) {
	switch {
	case value.Type == gjson.String:
		return usableText(value.String())
	case value.IsArray():
		for _, item := range value.Array() {
			if text, ok := scanNestedText(item); ok {
				return text, true
			}
		}
	case value.IsObject():
		for _, key := range []string{"text", "content", "value", "summary"} {
			if sub := value.Get(key); sub.Exists() {
				if text, ok := scanNestedText(sub); ok {
					return text, true
				}
			}
		}
	}
	return "", false
}

// scanLooseFields is the shared last resort: well-known alternate top-level
// fields first, then any top-level string field long enough to plausibly be
// answer text.
func scanLooseFields(body []byte) (string, bool) {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return "", false
	}
	for _, key := range []string{"text", "content", "response"} {
		if field := root.Get(key); field.Type == gjson.String {
			if text, ok := usableText(field.String()); ok {
				return text, true
			}
		}
	}
	var found string
	root.ForEach(func(_, value gjson.Result) bool {
		if value.Type != gjson.String {
			return true
		}
		text, ok := usableText(value.String())
		if !ok || len(text) <= minLooseFieldLen {
			return true
		}
		found = text
		return false
	})
	return found, found != ""
}

// convertGPT5Format canonicalizes responses-API answer text so downstream
// label extraction works whether or not the model obeyed the bracket-token
// instruction: line endings are normalized, a reasoning preamble ending in
// "Final answer:" is stripped, and bare "Population <n>: <label>" lines are
// rewritten into ">label<" tokens.
func convertGPT5Format(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if idx := strings.LastIndex(text, "Final answer:"); idx >= 0 {
		text = strings.TrimSpace(text[idx+len("Final answer:"):])
	}

	if !bracketedTokenPattern.MatchString(text) {
		text = populationLinePattern.ReplaceAllString(text, ">$2<")
	}
	return text
}
