package pipeline

import "errors"

// ErrInsufficientData is returned whenever a run doesn't have enough
// traces to proceed: no spans at all, fewer unique traces than
// Config.MinTraces, or too few traces survive feature extraction.
// Scoped to this package rather than a host-wide error catalog, since
// "insufficient data" is a pipeline concept, not a domain-wide one.
var ErrInsufficientData = errors.New("discovery: insufficient data")

// ErrTraceFetchFailed wraps a hard failure fetching spans from the trace
// store, which aborts the run (unlike annotation or embedding failures,
// which the pipeline tolerates).
var ErrTraceFetchFailed = errors.New("discovery: trace fetch failed")
