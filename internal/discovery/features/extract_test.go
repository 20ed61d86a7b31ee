package features

import (
	"testing"
	"time"

	"github.com/longregen/tracediscover/internal/ports"
	"github.com/stretchr/testify/assert"
)

type fakeSpan struct {
	traceID    string
	spanID     string
	parentID   string
	hasParent  bool
	name       string
	spanKind   string
	statusCode string
	start, end time.Time
	attrs      map[string]string
}

func (f fakeSpan) TraceID() string    { return f.traceID }
func (f fakeSpan) SpanID() string     { return f.spanID }
func (f fakeSpan) Name() string       { return f.name }
func (f fakeSpan) SpanKind() string   { return f.spanKind }
func (f fakeSpan) StatusCode() string { return f.statusCode }
func (f fakeSpan) StartTime() time.Time { return f.start }
func (f fakeSpan) EndTime() time.Time   { return f.end }
func (f fakeSpan) ParentID() (string, bool) {
	return f.parentID, f.hasParent
}
func (f fakeSpan) Attribute(key string) (string, bool) {
	v, ok := f.attrs[key]
	return v, ok
}

func TestComputeToolNgrams(t *testing.T) {
	ngrams := ComputeToolNgrams([]string{"search", "fetch", "search"})
	assert.Equal(t, 2, ngrams["search"])
	assert.Equal(t, 1, ngrams["fetch"])
	assert.Equal(t, 1, ngrams["search->fetch"])
	assert.Equal(t, 1, ngrams["fetch->search"])
}

func TestComputeToolNgrams_Empty(t *testing.T) {
	assert.Empty(t, ComputeToolNgrams(nil))
}

func TestExtract_BasicTrace(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	root := fakeSpan{
		traceID: "t1", spanID: "s1", hasParent: false,
		name: "crew_execution", spanKind: "chain", statusCode: "OK",
		start: start, end: start.Add(500 * time.Millisecond),
		attrs: map[string]string{
			"input.value":          "what is the refund policy",
			"output.value":         "you can request a refund within 30 days",
			"attributes.obs.route": "billing",
		},
	}
	toolSpan := fakeSpan{
		traceID: "t1", spanID: "s2", parentID: "s1", hasParent: true,
		name: "search_tool", spanKind: "tool", statusCode: "OK",
		start: start.Add(10 * time.Millisecond), end: start.Add(100 * time.Millisecond),
	}
	llmSpan := fakeSpan{
		traceID: "t1", spanID: "s3", parentID: "s1", hasParent: true,
		name: "llm_call", spanKind: "llm", statusCode: "OK",
		start: start.Add(100 * time.Millisecond), end: start.Add(400 * time.Millisecond),
		attrs: map[string]string{
			"llm.model_name":          "gpt-4o-mini",
			"llm.provider":            "openai",
			"llm.token_count.total":   "120",
		},
	}

	feats, ok := Extract(DefaultSchema(), "t1", []ports.SpanRow{root, toolSpan, llmSpan}, nil)
	assert.True(t, ok)
	assert.Equal(t, "t1", feats.TraceID)
	assert.Equal(t, "billing", feats.Route)
	assert.Equal(t, "gpt-4o-mini", feats.Model)
	assert.Equal(t, "openai", feats.Provider)
	assert.Equal(t, "gpt-4o-mini", feats.PromptVersion)
	assert.Equal(t, 120, feats.TokenCount)
	assert.Equal(t, 1, feats.ToolCallCount)
	assert.Equal(t, 1.0, feats.ToolSuccessRate)
	assert.Equal(t, []string{"search_tool"}, feats.ToolSequence)
	assert.InDelta(t, 500.0, feats.LatencyMs, 0.01)
	assert.InDelta(t, 300.0, feats.LLMLatencyMs, 0.01)
	assert.InDelta(t, 90.0, feats.ToolLatencyMs, 0.01)
	assert.Equal(t, 1, feats.LLMCallCount)
	assert.Equal(t, 1, feats.UniqueToolsUsed)
}

func TestExtract_NoSpans(t *testing.T) {
	_, ok := Extract(DefaultSchema(), "t2", nil, nil)
	assert.False(t, ok)
}

func TestExtract_IntentFallsBackToSpanName(t *testing.T) {
	start := time.Now()
	root := fakeSpan{
		traceID: "t3", hasParent: false, name: "custom_intent_name",
		spanKind: "chain", statusCode: "OK", start: start, end: start,
	}
	feats, ok := Extract(DefaultSchema(), "t3", []ports.SpanRow{root}, nil)
	assert.True(t, ok)
	assert.Equal(t, "custom_intent_name", feats.Intent)
}

func TestExtract_IntentSkipsUUIDName(t *testing.T) {
	start := time.Now()
	root := fakeSpan{
		traceID: "t4", hasParent: false,
		name: "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		spanKind: "chain", statusCode: "OK", start: start, end: start,
	}
	feats, ok := Extract(DefaultSchema(), "t4", []ports.SpanRow{root}, nil)
	assert.True(t, ok)
	assert.Equal(t, "crew_execution", feats.Intent)
}

func TestUniqueTraceIDs(t *testing.T) {
	start := time.Now()
	spans := []ports.SpanRow{
		fakeSpan{traceID: "b", start: start, end: start},
		fakeSpan{traceID: "a", start: start, end: start},
		fakeSpan{traceID: "a", start: start, end: start},
	}
	assert.Equal(t, []string{"a", "b"}, UniqueTraceIDs(spans))
}
