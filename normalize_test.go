package main

import (
	"strings"
	"testing"
)

func TestNormalizersReturnSentinelOnUnknownShape(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"foo": 1, "bar": {"baz": true}}`,
		`[1, 2, 3]`,
		`null`,
		`not json at all`,
	}
	for _, format := range []string{formatOpenAI, formatClaude, formatGemini, formatResponses} {
		for _, body := range bodies {
			text, ok := extractText(format, []byte(body))
			if ok {
				t.Fatalf("%s normalizer extracted %q from %q, want sentinel", format, text, body)
			}
		}
	}
}

func TestExtractOpenAIContent(t *testing.T) {
	body := `{"choices":[{"message":{"content":">B cell (memory)< markers fit"},"finish_reason":"stop"}]}`
	text, ok := extractOpenAIText([]byte(body))
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if text != ">B cell (memory)< markers fit" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractOpenAIReasoningContent(t *testing.T) {
	body := `{"choices":[{"message":{"content":"","reasoning_content":"The markers CD19 and MS4A1 suggest B cells"}}]}`
	text, ok := extractOpenAIText([]byte(body))
	if !ok {
		t.Fatal("expected reasoning_content fallback")
	}
	if !strings.Contains(text, "CD19") {
		t.Fatalf("unexpected text: %q", text)
	}

	both := `{"choices":[{"message":{"content":">B cell (naive)<","reasoning_content":"thinking"}}]}`
	text, ok = extractOpenAIText([]byte(both))
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.Contains(text, "thinking") || !strings.Contains(text, ">B cell (naive)<") {
		t.Fatalf("expected combined reasoning and answer, got %q", text)
	}
}

func TestExtractOpenAIFinishReasonPlaceholder(t *testing.T) {
	cases := map[string]string{
		`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`:         "token limit",
		`{"choices":[{"message":{"content":""},"finish_reason":"content_filter"}]}`: "content filter",
		`{"choices":[{"message":{"content":""},"finish_reason":"weird"}]}`:          "finish_reason=weird",
	}
	for body, want := range cases {
		text, ok := extractOpenAIText([]byte(body))
		if !ok {
			t.Fatalf("expected placeholder for %s", body)
		}
		if !strings.Contains(text, want) {
			t.Fatalf("placeholder %q does not mention %q", text, want)
		}
	}
}

func TestExtractOpenAILooseFields(t *testing.T) {
	text, ok := extractOpenAIText([]byte(`{"response":">NK cell (cytotoxic)<"}`))
	if !ok || text != ">NK cell (cytotoxic)<" {
		t.Fatalf("alternate field scan failed: %q, %v", text, ok)
	}

	text, ok = extractOpenAIText([]byte(`{"whatever":"a long enough free-form answer"}`))
	if !ok || !strings.Contains(text, "free-form") {
		t.Fatalf("long string field scan failed: %q, %v", text, ok)
	}

	_, ok = extractOpenAIText([]byte(`{"whatever":"short"}`))
	if ok {
		t.Fatal("short unknown fields must not be treated as content")
	}
}

func TestExtractClaudeStringContent(t *testing.T) {
	text, ok := extractClaudeText([]byte(`{"content":">T cell (regulatory)<  looks  right"}`))
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if text != ">T cell (regulatory)< looks right" {
		t.Fatalf("whitespace not collapsed: %q", text)
	}
}

func TestExtractClaudeBlockContent(t *testing.T) {
	body := `{"content":[{"type":"text","text":"<think>CD4, FOXP3...</think> >T cell (regulatory)<"}]}`
	text, ok := extractClaudeText([]byte(body))
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if strings.Contains(text, "think") {
		t.Fatalf("think tags not stripped: %q", text)
	}
	if !strings.Contains(text, ">T cell (regulatory)<") {
		t.Fatalf("answer lost: %q", text)
	}
}

func TestExtractGeminiPrefersChatShape(t *testing.T) {
	body := `{
		"choices":[{"message":{"content":"from the gateway"}}],
		"candidates":[{"content":{"parts":[{"text":"from the native path"}]}}]
	}`
	text, ok := extractGeminiText([]byte(body))
	if !ok || text != "from the gateway" {
		t.Fatalf("expected gateway shape to win, got %q, %v", text, ok)
	}
}

func TestExtractGeminiNativeCandidates(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":">Fibroblast (activated)<"}]}}]}`
	text, ok := extractGeminiText([]byte(body))
	if !ok || text != ">Fibroblast (activated)<" {
		t.Fatalf("native path failed: %q, %v", text, ok)
	}
}

func TestExtractResponsesOutputText(t *testing.T) {
	text, ok := extractResponsesText([]byte(`{"output_text":">Macrophage (M2)<"}`))
	if !ok || text != ">Macrophage (M2)<" {
		t.Fatalf("output_text path failed: %q, %v", text, ok)
	}
}

func TestExtractResponsesOutputMessageRows(t *testing.T) {
	body := `{
		"id":"resp_0123456789abcdef",
		"output":[
			{"type":"reasoning","id":"rs_9f2a1b","summary":[]},
			{"type":"message","content":[{"type":"output_text","text":">Hepatocyte (periportal)<"}]}
		]
	}`
	text, ok := extractResponsesText([]byte(body))
	if !ok || text != ">Hepatocyte (periportal)<" {
		t.Fatalf("message row extraction failed: %q, %v", text, ok)
	}
}

func TestExtractResponsesReasoningFallback(t *testing.T) {
	body := `{
		"output":[
			{"type":"reasoning","content":[{"text":"Markers point to endothelium"}]}
		]
	}`
	text, ok := extractResponsesText([]byte(body))
	if !ok || !strings.Contains(text, "endothelium") {
		t.Fatalf("reasoning row fallback failed: %q, %v", text, ok)
	}
}

func TestExtractResponsesRejectsInternalIDs(t *testing.T) {
	body := `{
		"output":[{"type":"message","content":[{"text":"rs_a1b2c3d4"},{"text":">Astrocyte (protoplasmic)<"}]}]
	}`
	text, ok := extractResponsesText([]byte(body))
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if text != ">Astrocyte (protoplasmic)<" {
		t.Fatalf("internal ID accepted as content: %q", text)
	}

	_, ok = extractResponsesText([]byte(`{"id":"resp_0123456789abcdef","output":[]}`))
	if ok {
		t.Fatal("ID-only body must yield the sentinel")
	}
}

func TestExtractResponsesTopLevelTextAndReasoning(t *testing.T) {
	text, ok := extractResponsesText([]byte(`{"text":">Microglia (homeostatic)<"}`))
	if !ok || text != ">Microglia (homeostatic)<" {
		t.Fatalf("top-level text failed: %q, %v", text, ok)
	}

	body := `{"reasoning":{"summary":[{"text":"Likely oligodendrocyte precursor"}]}}`
	text, ok = extractResponsesText([]byte(body))
	if !ok || !strings.Contains(text, "oligodendrocyte") {
		t.Fatalf("reasoning summary failed: %q, %v", text, ok)
	}
}

func TestConvertGPT5FormatPopulationLines(t *testing.T) {
	got := convertGPT5Format("Population 3: Fibroblast")
	if got != ">Fibroblast<" {
		t.Fatalf("convertGPT5Format = %q, want >Fibroblast<", got)
	}

	multi := convertGPT5Format("Population 0: T cell (naive)\nPopulation 1: B cell")
	if !strings.Contains(multi, ">T cell (naive)<") || !strings.Contains(multi, ">B cell<") {
		t.Fatalf("multi-line conversion failed: %q", multi)
	}
}

func TestConvertGPT5FormatSkipsBracketedContent(t *testing.T) {
	in := ">Fibroblast (activated)< because Population 3: looks stromal"
	if got := convertGPT5Format(in); got != in {
		t.Fatalf("already-bracketed content rewritten: %q", got)
	}
}

func TestConvertGPT5FormatFinalAnswerPrefix(t *testing.T) {
	in := "First I considered the markers.\r\nFinal answer: >Pericyte (unknown)<"
	got := convertGPT5Format(in)
	if got != ">Pericyte (unknown)<" {
		t.Fatalf("final-answer strip failed: %q", got)
	}
}
