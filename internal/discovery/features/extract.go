package features

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/internal/ports"
)

var toolNamePattern = regexp.MustCompile(`(?i)tool`)
var llmNamePattern = regexp.MustCompile(`(?i)llm|openai|anthropic|chat`)

func isToolSpan(s ports.SpanRow) bool {
	if strings.EqualFold(s.SpanKind(), "tool") {
		return true
	}
	return toolNamePattern.MatchString(s.Name())
}

func isLLMSpan(s ports.SpanRow) bool {
	if strings.EqualFold(s.SpanKind(), "llm") {
		return true
	}
	return llmNamePattern.MatchString(s.Name())
}

// spanLatencyMs returns a span's own duration in milliseconds, 0 if the
// span carries no usable start/end pair.
func spanLatencyMs(s ports.SpanRow) float64 {
	start, end := s.StartTime(), s.EndTime()
	if !end.After(start) {
		return 0
	}
	return float64(end.Sub(start).Microseconds()) / 1000.0
}

// countUniqueTools returns the number of distinct tool names in a call
// sequence.
func countUniqueTools(toolSequence []string) int {
	seen := make(map[string]struct{}, len(toolSequence))
	for _, t := range toolSequence {
		seen[t] = struct{}{}
	}
	return len(seen)
}

// selectRoot picks the root span of a trace: the span with no parent, or
// the first row if every span happens to carry a parent ID (malformed
// traces still need to extract something).
func selectRoot(spans []ports.SpanRow) ports.SpanRow {
	for _, s := range spans {
		if _, hasParent := s.ParentID(); !hasParent {
			return s
		}
	}
	return spans[0]
}

// ComputeToolNgrams returns unigram and bigram counts over a tool call
// sequence, bigrams formatted as "a->b".
func ComputeToolNgrams(toolSequence []string) map[string]int {
	ngrams := make(map[string]int)
	for _, t := range toolSequence {
		ngrams[t]++
	}
	for i := 0; i+1 < len(toolSequence); i++ {
		key := toolSequence[i] + "->" + toolSequence[i+1]
		ngrams[key]++
	}
	return ngrams
}

func outputFromSpan(s ports.SpanRow) (string, bool) {
	if v, ok := s.Attribute("output.value"); ok && v != "" {
		return v, true
	}
	if v, ok := s.Attribute("llm.output_messages.0.message.content"); ok && v != "" {
		return v, true
	}
	return "", false
}

func inputFromSpan(s ports.SpanRow) (string, bool) {
	if v, ok := s.Attribute("input.value"); ok && v != "" {
		return v, true
	}
	if v, ok := s.Attribute("llm.input_messages.0.message.content"); ok && v != "" {
		return v, true
	}
	return "", false
}

func firstNonEmptyAttr(spans []ports.SpanRow, key string) (string, bool) {
	for _, s := range spans {
		if v, ok := s.Attribute(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Extract builds a TraceFeatures row from one trace's spans and its
// (possibly absent) annotations. Returns ok=false when the trace has no
// spans at all, which the caller should treat as a dropped trace rather
// than an error.
func Extract(schema Schema, traceID string, spans []ports.SpanRow, annotations []ports.AnnotationRow) (discoverydomain.TraceFeatures, bool) {
	if len(spans) == 0 {
		return discoverydomain.TraceFeatures{}, false
	}

	root := selectRoot(spans)

	input, _ := inputFromSpan(root)
	if input == "" {
		if v, ok := firstNonEmptyAttr(spans, "input.value"); ok {
			input = v
		}
	}
	output, _ := outputFromSpan(root)
	if output == "" {
		if v, ok := firstNonEmptyAttr(spans, "output.value"); ok {
			output = v
		}
	}

	var toolSpans, llmSpans []ports.SpanRow
	for _, s := range spans {
		switch {
		case isToolSpan(s):
			toolSpans = append(toolSpans, s)
		case isLLMSpan(s):
			llmSpans = append(llmSpans, s)
		}
	}

	sort.Slice(toolSpans, func(i, j int) bool {
		return toolSpans[i].StartTime().Before(toolSpans[j].StartTime())
	})

	toolSequence := make([]string, 0, len(toolSpans))
	toolSuccess := 0
	for _, s := range toolSpans {
		toolSequence = append(toolSequence, s.Name())
		if !strings.EqualFold(s.StatusCode(), "ERROR") {
			toolSuccess++
		}
	}
	toolSuccessRate := 1.0
	if len(toolSpans) > 0 {
		toolSuccessRate = float64(toolSuccess) / float64(len(toolSpans))
	}

	latencyMs := 0.0
	start := root.StartTime()
	end := root.EndTime()
	if end.After(start) {
		latencyMs = float64(end.Sub(start).Microseconds()) / 1000.0
	}

	llmLatencyMs := 0.0
	for _, s := range llmSpans {
		llmLatencyMs += spanLatencyMs(s)
	}
	toolLatencyMs := 0.0
	for _, s := range toolSpans {
		toolLatencyMs += spanLatencyMs(s)
	}

	tokenCount := 0
	errorCount := 0
	for _, s := range spans {
		if v, ok := s.Attribute("llm.token_count.total"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				tokenCount += n
			}
		}
		if strings.EqualFold(s.StatusCode(), "ERROR") {
			errorCount++
		}
	}

	retryCount := 0
	for _, s := range spans {
		if v, ok := s.Attribute("retry.count"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				retryCount += n
			}
		}
	}

	intent := "crew_execution"
	for _, strat := range schema.IntentStrategies {
		if v, ok := strat(root, spans); ok {
			intent = v
			break
		}
	}

	route := "unknown"
	for _, strat := range schema.RouteStrategies {
		if v, ok := strat(root, spans); ok {
			route = v
			break
		}
	}

	model := ""
	if v, ok := firstNonEmptyAttr(llmSpans, "llm.model_name"); ok {
		model = v
	} else if v, ok := firstNonEmptyAttr(spans, "llm.model_name"); ok {
		model = v
	}

	provider := ""
	if v, ok := firstNonEmptyAttr(llmSpans, "llm.provider"); ok {
		provider = v
	} else if v, ok := firstNonEmptyAttr(spans, "llm.provider"); ok {
		provider = v
	}

	// prompt_version has no dedicated attribute in the source telemetry;
	// the model identifier doubles as a coarse version proxy.
	promptVersion := model

	var quality, grounding *float64
	for _, a := range annotations {
		if a.TraceID() != traceID {
			continue
		}
		score, ok := a.Score()
		if !ok {
			continue
		}
		switch strings.ToLower(a.Name()) {
		case "quality", "quality_eval":
			v := score
			quality = &v
		case "grounding", "grounding_eval":
			v := score
			grounding = &v
		}
	}

	return discoverydomain.TraceFeatures{
		TraceID:         traceID,
		Intent:          intent,
		Route:           route,
		Model:           model,
		Provider:        provider,
		PromptVersion:   promptVersion,
		Input:           input,
		Output:          output,
		ToolSequence:    toolSequence,
		ToolNgrams:      ComputeToolNgrams(toolSequence),
		ToolSuccessRate: toolSuccessRate,
		ToolCallCount:   len(toolSpans),
		UniqueToolsUsed: countUniqueTools(toolSequence),
		RetryCount:      retryCount,
		LatencyMs:       latencyMs,
		LLMLatencyMs:    llmLatencyMs,
		ToolLatencyMs:   toolLatencyMs,
		LLMCallCount:    len(llmSpans),
		TokenCount:      tokenCount,
		ErrorCount:      errorCount,
		QualityEval:     quality,
		GroundingEval:   grounding,
		StartTime:       start,
		EndTime:         end,
	}, true
}

// ExtractAll groups spans by trace ID and extracts features for each
// trace, dropping traces with no usable spans.
func ExtractAll(schema Schema, spansByTrace map[string][]ports.SpanRow, annotations []ports.AnnotationRow) []discoverydomain.TraceFeatures {
	out := make([]discoverydomain.TraceFeatures, 0, len(spansByTrace))
	traceIDs := make([]string, 0, len(spansByTrace))
	for id := range spansByTrace {
		traceIDs = append(traceIDs, id)
	}
	sort.Strings(traceIDs)

	for _, id := range traceIDs {
		if f, ok := Extract(schema, id, spansByTrace[id], annotations); ok {
			out = append(out, f)
		}
	}
	return out
}

// GroupByTrace partitions a flat span list by TraceID, preserving input
// order within each group.
func GroupByTrace(spans []ports.SpanRow) map[string][]ports.SpanRow {
	out := make(map[string][]ports.SpanRow)
	for _, s := range spans {
		out[s.TraceID()] = append(out[s.TraceID()], s)
	}
	return out
}

// UniqueTraceIDs returns the sorted set of distinct trace IDs among spans.
func UniqueTraceIDs(spans []ports.SpanRow) []string {
	seen := make(map[string]struct{})
	for _, s := range spans {
		seen[s.TraceID()] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
