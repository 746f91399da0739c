// Package textsim measures lexical similarity between generated texts using
// TF-IDF vectors and cosine similarity.
package textsim

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Vector is a sparse, L2-normalized TF-IDF vector keyed by term index.
type Vector map[int]float64

// Tokenize lower-cases text and splits it into runs of letters, digits and
// underscores. Single-character tokens are kept.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// Vectorize fits a vocabulary on docs and returns one vector per document.
//
// Term frequency is the raw count and idf is smoothed as
// ln((1+n)/(1+df)) + 1. A document with no tokens yields an empty vector.
func Vectorize(docs []string) []Vector {
	vocab := make(map[string]int)
	counts := make([]map[int]float64, len(docs))
	df := make(map[int]int)

	for i, doc := range docs {
		counts[i] = make(map[int]float64)
		for _, tok := range Tokenize(doc) {
			idx, ok := vocab[tok]
			if !ok {
				idx = len(vocab)
				vocab[tok] = idx
			}
			if counts[i][idx] == 0 {
				df[idx]++
			}
			counts[i][idx]++
		}
	}

	n := float64(len(docs))
	vectors := make([]Vector, len(docs))
	for i, tf := range counts {
		v := make(Vector, len(tf))
		var norm float64
		for idx, c := range tf {
			w := c * (math.Log((1+n)/(1+float64(df[idx]))) + 1)
			v[idx] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for idx := range v {
				v[idx] /= norm
			}
		}
		vectors[i] = v
	}
	return vectors
}

// Dot returns the dot product of two normalized vectors, which is their cosine.
func Dot(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	// Iterate in key order so float summation is reproducible.
	keys := make([]int, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var sum float64
	for _, k := range keys {
		sum += a[k] * b[k]
	}
	return sum
}

// MeanPairwise returns the average cosine similarity over all distinct pairs
// of docs. It is 0 when there are fewer than two documents.
func MeanPairwise(docs []string) float64 {
	if len(docs) < 2 {
		return 0
	}
	vectors := Vectorize(docs)

	var sum float64
	pairs := 0
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sum += Dot(vectors[i], vectors[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// MeanCross vectorizes the union of a and b and averages cosine similarity
// over pairs drawn from different sides only. It is 0 when either side is empty.
func MeanCross(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	vectors := Vectorize(all)

	var sum float64
	for i := 0; i < len(a); i++ {
		for j := len(a); j < len(all); j++ {
			sum += Dot(vectors[i], vectors[j])
		}
	}
	return sum / float64(len(a)*len(b))
}

// Cosine returns the cosine similarity of two dense vectors. Mismatched
// lengths or a zero vector yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
