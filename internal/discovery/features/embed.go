package features

import (
	"context"
	"log"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/internal/ports"
)

// EmbedText is the text used to embed a trace: input and output
// concatenated, giving the embedding model both sides of the exchange.
func EmbedText(f discoverydomain.TraceFeatures) string {
	if f.Input == "" {
		return f.Output
	}
	if f.Output == "" {
		return f.Input
	}
	return f.Input + "\n\n" + f.Output
}

// AddEmbeddings mutates features in place, setting Embedding on each row.
// A single embedding failure is logged and that row is left with a nil
// embedding rather than aborting the whole batch — matching the original
// pipeline's tolerance for a flaky embedding backend.
func AddEmbeddings(ctx context.Context, provider ports.EmbeddingProvider, model string, features []discoverydomain.TraceFeatures) {
	texts := make([]string, len(features))
	for i, f := range features {
		texts[i] = EmbedText(f)
	}

	results, err := provider.EmbedBatch(ctx, model, texts)
	if err != nil {
		log.Printf("[features.AddEmbeddings] batch embedding failed, falling back to per-trace: %v", err)
		for i := range features {
			r, embedErr := provider.Embed(ctx, model, texts[i])
			if embedErr != nil {
				log.Printf("[features.AddEmbeddings] embedding failed for trace %s: %v", features[i].TraceID, embedErr)
				continue
			}
			features[i].Embedding = float32ToFloat64(r.Embedding)
		}
		return
	}

	for i, r := range results {
		if r == nil {
			continue
		}
		features[i].Embedding = float32ToFloat64(r.Embedding)
	}
}

func float32ToFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
