package summarize

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Scoring parameters. Centrality blends how representative a sentence
// is of the whole text with how well it agrees with its neighbors;
// short sentences are dampened relative to the long end of the
// distribution.
const (
	DefaultTargetWords = 1000

	windowSize     = 3
	globalWeight   = 0.7
	localWeight    = 0.3
	lengthQuantile = 0.9
	normEpsilon    = 1e-8
)

// Summarizer selects the highest-centrality sentences of a transcript
// until a word budget is met, reassembling them in original order.
type Summarizer struct {
	targetWords int
}

// NewSummarizer creates a Summarizer with the given word budget.
func NewSummarizer(targetWords int) *Summarizer {
	if targetWords <= 0 {
		targetWords = DefaultTargetWords
	}
	return &Summarizer{targetWords: targetWords}
}

// TargetWords returns the configured word budget.
func (s *Summarizer) TargetWords() int { return s.targetWords }

// Result is one summarization outcome. When WasSummarized is false the
// summary is the input text unchanged.
type Result struct {
	Summary       string
	WasSummarized bool
	OriginalWords int
	SummaryWords  int
}

// Summarize condenses text to roughly the word budget. Texts already
// within budget, or too short to rank, pass through unchanged.
func (s *Summarizer) Summarize(text string) Result {
	originalWords := len(strings.Fields(text))
	passthrough := Result{
		Summary:       text,
		OriginalWords: originalWords,
		SummaryWords:  originalWords,
	}
	if originalWords <= s.targetWords {
		return passthrough
	}

	sentences := splitSentences(text)
	if len(sentences) < windowSize {
		return passthrough
	}

	scores := centralityScores(sentences)
	ranked := rankDescending(scores)

	var picked []int
	budget := 0
	for _, idx := range ranked {
		n := len(strings.Fields(sentences[idx]))
		if budget+n > s.targetWords {
			break
		}
		picked = append(picked, idx)
		budget += n
	}
	if len(picked) == 0 {
		// A budget smaller than every sentence still keeps the top one.
		picked = ranked[:1]
	}
	sort.Ints(picked)

	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}
	summary := strings.Join(parts, " ")

	return Result{
		Summary:       summary,
		WasSummarized: true,
		OriginalWords: originalWords,
		SummaryWords:  len(strings.Fields(summary)),
	}
}

// centralityScores scores each sentence by term-frequency cosine
// centrality: the median similarity to the whole text blended with the
// mean similarity to a window of neighbors, both min-max normalized.
func centralityScores(sentences []string) []float64 {
	n := len(sentences)
	vectors := make([]tfVector, n)
	lengths := make([]float64, n)
	for i, sentence := range sentences {
		vectors[i] = termFrequencies(sentence)
		lengths[i] = float64(len(strings.Fields(sentence)))
	}

	scale := quantile(lengths, lengthQuantile)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
		if scale > 0 {
			weights[i] = math.Min(lengths[i]/scale, 1)
		}
	}

	weighted := make([][]float64, n)
	for i := range weighted {
		weighted[i] = make([]float64, n)
		for j := range weighted[i] {
			weighted[i][j] = cosine(vectors[i], vectors[j]) * weights[i]
		}
	}

	window := windowSize
	if n-1 < window {
		window = n - 1
	}

	global := make([]float64, n)
	local := make([]float64, n)
	for i := 0; i < n; i++ {
		global[i] = median(weighted[i])

		var sum float64
		var count int
		for j := max(0, i-window); j < i; j++ {
			sum += weighted[i][j]
			count++
		}
		for j := i + 1; j < min(i+window+1, n); j++ {
			sum += weighted[i][j]
			count++
		}
		if count > 0 {
			local[i] = sum / float64(count)
		}
	}

	g := minMaxNormalize(global)
	l := minMaxNormalize(local)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = globalWeight*g[i] + localWeight*l[i]
	}
	return scores
}

// tfVector is a sentence's term-frequency vector with its norm cached.
type tfVector struct {
	terms map[string]float64
	norm  float64
}

func termFrequencies(sentence string) tfVector {
	terms := make(map[string]float64)
	for _, field := range strings.Fields(strings.ToLower(sentence)) {
		token := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if token == "" {
			continue
		}
		terms[token]++
	}
	var sq float64
	for _, c := range terms {
		sq += c * c
	}
	return tfVector{terms: terms, norm: math.Sqrt(sq)}
}

func cosine(a, b tfVector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(b.terms) < len(a.terms) {
		small, large = b, a
	}
	var dot float64
	for term, count := range small.terms {
		dot += count * large.terms[term]
	}
	return dot / (a.norm * b.norm)
}

// quantile computes the q-quantile with linear interpolation.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func median(values []float64) float64 {
	return quantile(values, 0.5)
}

func minMaxNormalize(values []float64) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo + normEpsilon)
	}
	return out
}

// rankDescending returns sentence indices ordered by score, ties
// keeping original order.
func rankDescending(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	return idx
}
