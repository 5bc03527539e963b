package recommend

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

type term struct {
	index int
	count float64
}

// vector is a sparse term-count vector ordered by term index.
type vector struct {
	terms []term
	norm  float64
}

// vectorizer turns documents into token-count vectors over a fixed vocabulary
// made of the maxFeatures most frequent non-stop-word tokens.
type vectorizer struct {
	maxFeatures int
	vocabulary  map[string]int
}

func tokenize(doc string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(doc), -1)
	out := tokens[:0]
	for _, t := range tokens {
		if _, stop := englishStopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func fitTransform(docs []string, maxFeatures int) (*vectorizer, []vector) {
	tokenized := make([][]string, len(docs))
	freq := make(map[string]int)
	for i, doc := range docs {
		tokenized[i] = tokenize(doc)
		for _, t := range tokenized[i] {
			freq[t]++
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if maxFeatures > 0 && len(words) > maxFeatures {
		words = words[:maxFeatures]
	}
	sort.Strings(words)

	v := &vectorizer{maxFeatures: maxFeatures, vocabulary: make(map[string]int, len(words))}
	for i, w := range words {
		v.vocabulary[w] = i
	}

	vectors := make([]vector, len(docs))
	for i, tokens := range tokenized {
		vectors[i] = v.transform(tokens)
	}
	return v, vectors
}

func (v *vectorizer) transform(tokens []string) vector {
	counts := make(map[int]float64)
	for _, t := range tokens {
		if idx, ok := v.vocabulary[t]; ok {
			counts[idx]++
		}
	}

	vec := vector{terms: make([]term, 0, len(counts))}
	var sum float64
	for idx, c := range counts {
		vec.terms = append(vec.terms, term{index: idx, count: c})
		sum += c * c
	}
	sort.Slice(vec.terms, func(i, j int) bool {
		return vec.terms[i].index < vec.terms[j].index
	})
	vec.norm = math.Sqrt(sum)
	return vec
}

// cosine returns 0 when either vector is empty.
func cosine(a, b vector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i].index == b.terms[j].index:
			dot += a.terms[i].count * b.terms[j].count
			i++
			j++
		case a.terms[i].index < b.terms[j].index:
			i++
		default:
			j++
		}
	}
	return dot / (a.norm * b.norm)
}
