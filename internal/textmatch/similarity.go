// Package textmatch implements the fuzzy string scoring shared by the
// specification matcher and the OCR accuracy verifier.
package textmatch

import (
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

func normalize(s string) string {
	return strings.TrimSpace(fold.String(s))
}

// Similarity scores two strings from 0 to 100 using Levenshtein edit
// distance. Comparison is case-insensitive (Unicode case fold) and ignores
// surrounding whitespace. Two empty strings score 100. The result is not
// rounded; callers round for display only.
func Similarity(a, b string) float64 {
	s1 := normalize(a)
	s2 := normalize(b)
	if s1 == s2 {
		return 100
	}

	// Length comparisons happen in runes; byte length would misorder
	// multi-byte input and push the score out of range.
	longer, shorter := []rune(s1), []rune(s2)
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	if len(longer) == 0 {
		return 100
	}

	dist := levenshtein(longer, shorter)
	return float64(len(longer)-dist) / float64(len(longer)) * 100
}

// FuzzyContains reports how confidently needle appears within haystack on a
// 0 to 100 scale. A literal substring match scores 100 immediately; otherwise
// windows of haystack words (window length = needle word count) are scored
// against the needle and the best window wins. Short haystacks are also
// scored whole, so near-total matches in terse OCR output are not missed by
// the windowing. An empty needle is vacuously present and scores 100; an
// empty haystack scores 0.
func FuzzyContains(needle, haystack string) float64 {
	n := normalize(needle)
	if n == "" {
		return 100
	}
	h := normalize(haystack)
	if h == "" {
		return 0
	}
	if strings.Contains(h, n) {
		return 100
	}

	needleWords := strings.Fields(n)
	haystackWords := strings.Fields(h)

	var best float64
	for i := 0; i+len(needleWords) <= len(haystackWords); i++ {
		window := strings.Join(haystackWords[i:i+len(needleWords)], " ")
		if score := Similarity(n, window); score > best {
			best = score
		}
	}
	if len(haystackWords) <= len(needleWords)+2 {
		if score := Similarity(n, h); score > best {
			best = score
		}
	}
	return best
}

// levenshtein computes the classic single-character insert/delete/substitute
// edit distance over a full (len(b)+1) x (len(a)+1) table.
func levenshtein(a, b []rune) int {
	rows := len(b) + 1
	cols := len(a) + 1

	matrix := make([][]int, rows)
	for i := 0; i < rows; i++ {
		matrix[i] = make([]int, cols)
		matrix[i][0] = i
	}
	for j := 0; j < cols; j++ {
		matrix[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			if b[i-1] == a[j-1] {
				matrix[i][j] = matrix[i-1][j-1]
			} else {
				matrix[i][j] = min(
					matrix[i-1][j-1]+1,
					matrix[i][j-1]+1,
					matrix[i-1][j]+1,
				)
			}
		}
	}
	return matrix[len(b)][len(a)]
}
