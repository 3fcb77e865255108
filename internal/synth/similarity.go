package synth

import "strings"

// normalizeText lowercases text and strips punctuation so near-identical
// findings compare equal-ish regardless of phrasing niceties.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity scores two normalized strings in [0,1] using the Dice
// coefficient over word sets. Identical strings score 1; disjoint ones 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[w] = true
	}

	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(setA)+len(setB))
}
