// Package features turns raw spans into TraceFeatures rows and flattens
// those rows into the numeric matrix the clusterer consumes.
package features

import (
	"regexp"
	"strings"

	"github.com/longregen/tracediscover/internal/ports"
)

// AttributeStrategy extracts one derived attribute (intent, route, ...)
// from a trace's spans. Strategies are tried in order; the first one to
// return ok=true wins. This models the fallback cascades the original
// discovery notebook hardcoded as nested if/else chains, as a list of
// small, independently testable functions instead.
type AttributeStrategy func(root ports.SpanRow, spans []ports.SpanRow) (string, bool)

// Schema bundles the ordered cascades used to derive intent and route,
// so callers (and tests) can substitute a different cascade without
// touching the extraction algorithm itself.
type Schema struct {
	IntentStrategies []AttributeStrategy
	RouteStrategies  []AttributeStrategy
}

var uuidLikePattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

const intentTruncateLen = 50

func truncateIntent(s string) string {
	if len(s) <= intentTruncateLen {
		return s
	}
	return s[:intentTruncateLen] + "..."
}

// DefaultSchema returns the cascade order grounded in the original
// extractor: structured crew-style inputs first, then generic
// input.value, then an explicit attributes.obs.intent attribute, then a
// fallback derived from the span name (skipping names that are just a
// UUID, which carry no semantic signal).
func DefaultSchema() Schema {
	return Schema{
		IntentStrategies: []AttributeStrategy{
			intentFromCrewInputs,
			intentFromInputValue,
			intentFromObservationAttr,
			intentFromSpanName,
		},
		RouteStrategies: []AttributeStrategy{
			routeFromObservationAttr,
			routeFromAgentName,
			routeFromToolNames,
			routeFromSpanKind,
		},
	}
}

func intentFromCrewInputs(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	raw, ok := root.Attribute("crew_inputs")
	if !ok || raw == "" {
		return "", false
	}
	for _, key := range []string{"question", "topic", "task"} {
		if v := jsonField(raw, key); v != "" {
			return truncateIntent(v), true
		}
	}
	return "", false
}

func intentFromInputValue(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	v, ok := root.Attribute("input.value")
	if !ok || v == "" {
		return "", false
	}
	return truncateIntent(v), true
}

func intentFromObservationAttr(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	v, ok := root.Attribute("attributes.obs.intent")
	if !ok || v == "" {
		return "", false
	}
	return truncateIntent(v), true
}

func intentFromSpanName(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	name := root.Name()
	if name == "" || uuidLikePattern.MatchString(name) {
		return "crew_execution", true
	}
	return truncateIntent(name), true
}

func routeFromObservationAttr(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	v, ok := root.Attribute("attributes.obs.route")
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func routeFromAgentName(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	name := root.Name()
	if idx := strings.Index(name, "._execute"); idx > 0 {
		return name[:idx], true
	}
	return "", false
}

func routeFromToolNames(_ ports.SpanRow, spans []ports.SpanRow) (string, bool) {
	var names []string
	for _, s := range spans {
		if isToolSpan(s) {
			if n := s.Name(); n != "" {
				names = append(names, n)
			}
		}
		if len(names) == 3 {
			break
		}
	}
	if len(names) == 0 {
		return "", false
	}
	return "tools:" + strings.Join(names, ","), true
}

func routeFromSpanKind(root ports.SpanRow, _ []ports.SpanRow) (string, bool) {
	if k := root.SpanKind(); k != "" {
		return k, true
	}
	return "unknown", true
}

// jsonField pulls a top-level string field out of a small JSON object
// without requiring a full schema; tolerant of malformed input.
func jsonField(rawJSON, key string) string {
	marker := `"` + key + `"`
	idx := strings.Index(rawJSON, marker)
	if idx < 0 {
		return ""
	}
	rest := rawJSON[idx+len(marker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[colon+1:])
	if !strings.HasPrefix(rest, `"`) {
		return ""
	}
	rest = rest[1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
