// Package slice mines attribute-value conjunctions ("slices") whose
// badness rate is significantly elevated over the population baseline.
package slice

import (
	"sort"
	"strings"

	discoverydomain "github.com/longregen/tracediscover/internal/domain/discovery"
	"github.com/longregen/tracediscover/pkg/statutil"
)

// baselineEpsilon substitutes for a zero baseline badness rate so lift
// (badness_rate / baseline_rate) stays finite; kept tiny enough that any
// non-zero slice badness rate still produces a large, clearly-significant
// lift.
const baselineEpsilon = 0.001

// SignificanceTest computes a p-value for one slice's 2x2 contingency
// table against the rest of the population. Pluggable so a different
// statistical test can replace chi-squared without touching the mining
// algorithm.
type SignificanceTest interface {
	PValue(sliceBad, sliceGood, restBad, restGood int) float64
}

// ChiSquaredTest is the default SignificanceTest, backed by gonum's
// chi-squared survival function.
type ChiSquaredTest struct{}

func (ChiSquaredTest) PValue(sliceBad, sliceGood, restBad, restGood int) float64 {
	if restBad < 0 || restGood < 0 {
		return 1.0
	}
	stat, ok := statutil.ChiSquaredStatistic(float64(sliceBad), float64(sliceGood), float64(restBad), float64(restGood))
	if !ok {
		return 1.0
	}
	return statutil.ChiSquaredPValue(stat, 1)
}

// Record is one trace's contribution to slice mining: its attribute
// values and whether it was classified as bad.
type Record struct {
	TraceID    string
	Attributes map[string]string
	IsBad      bool
}

// Config controls slice mining.
type Config struct {
	Attributes            []string
	MinSliceSize          int
	MaxDepth              int
	SignificanceThreshold float64
	Test                  SignificanceTest
}

// Rank enumerates attribute-value conjunctions up to Config.MaxDepth
// attributes deep, computes badness rate / lift / significance for each,
// filters to significant slices (falling back to every candidate if none
// clear the threshold, so a caller always gets a ranked list to inspect),
// and returns them sorted by lift descending.
func Rank(records []Record, cfg Config) []discoverydomain.Slice {
	test := cfg.Test
	if test == nil {
		test = ChiSquaredTest{}
	}

	total := len(records)
	if total == 0 {
		return nil
	}
	totalBad := 0
	for _, r := range records {
		if r.IsBad {
			totalBad++
		}
	}
	baselineRate := float64(totalBad) / float64(total)
	if baselineRate == 0 {
		baselineRate = baselineEpsilon
	}

	groups := groupByAttributeCombinations(records, cfg.Attributes, cfg.MaxDepth)

	var candidates []discoverydomain.Slice
	for _, group := range groups {
		attrs, members := group.attrs, group.members
		if len(members) < cfg.MinSliceSize {
			continue
		}
		bad := 0
		for _, m := range members {
			if m.IsBad {
				bad++
			}
		}
		size := len(members)
		rate := float64(bad) / float64(size)
		lift := rate / baselineRate

		restBad := totalBad - bad
		restGood := (total - totalBad) - (size - bad)
		pValue := test.PValue(bad, size-bad, restBad, restGood)

		exampleIDs := make([]string, 0, 5)
		for _, m := range members {
			if len(exampleIDs) == 5 {
				break
			}
			exampleIDs = append(exampleIDs, m.TraceID)
		}

		candidates = append(candidates, discoverydomain.Slice{
			Attributes:      attrs,
			Size:            size,
			BadnessRate:     rate,
			BaselineRate:    baselineRate,
			Lift:            lift,
			PValue:          pValue,
			ExampleTraceIDs: exampleIDs,
		})
	}

	significant := make([]discoverydomain.Slice, 0, len(candidates))
	for _, c := range candidates {
		if c.PValue < cfg.SignificanceThreshold {
			significant = append(significant, c)
		}
	}
	result := significant
	if len(result) == 0 {
		result = candidates
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Lift > result[j].Lift })
	return result
}

// attributeGroup is one attribute-value combination and the records
// matching it.
type attributeGroup struct {
	attrs   map[string]string
	members []Record
}

// groupByAttributeCombinations partitions records by every combination of
// 1..maxDepth attribute keys drawn from attrNames, keyed internally by a
// canonical string rendering of the attribute map (maps aren't valid Go
// map keys).
func groupByAttributeCombinations(records []Record, attrNames []string, maxDepth int) []attributeGroup {
	buckets := make(map[string]*attributeGroup)
	order := make([]string, 0)

	combos := combinations(attrNames, maxDepth)
	for _, combo := range combos {
		for _, r := range records {
			attrs := make(map[string]string, len(combo))
			ok := true
			for _, name := range combo {
				v, present := r.Attributes[name]
				if !present || v == "" {
					ok = false
					break
				}
				attrs[name] = v
			}
			if !ok {
				continue
			}
			key := canonicalKey(attrs)
			b, exists := buckets[key]
			if !exists {
				b = &attributeGroup{attrs: attrs}
				buckets[key] = b
				order = append(order, key)
			}
			b.members = append(b.members, r)
		}
	}

	out := make([]attributeGroup, 0, len(buckets))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out
}

func canonicalKey(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(attrs[k])
		sb.WriteByte(';')
	}
	return sb.String()
}

// combinations returns every subset of names with length 1..maxDepth.
func combinations(names []string, maxDepth int) [][]string {
	var out [][]string
	n := len(names)
	if maxDepth > n {
		maxDepth = n
	}
	var build func(start int, current []string, depth int)
	build = func(start int, current []string, depth int) {
		if depth > 0 {
			combo := make([]string, len(current))
			copy(combo, current)
			out = append(out, combo)
		}
		if depth == maxDepth {
			return
		}
		for i := start; i < n; i++ {
			build(i+1, append(current, names[i]), depth+1)
		}
	}
	build(0, nil, 0)
	return out
}
