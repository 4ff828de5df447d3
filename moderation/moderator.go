// Package moderation masks censored words in message content before it
// is persisted and fanned out.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator matches a fixed dictionary against normalized content with
// an Aho-Corasick automaton, so the cost of a pass does not grow with
// the dictionary size. A nil Moderator passes content through.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewModerator builds the automaton from the dictionary. Words are
// normalized the same way content is, so matching is case and
// separator insensitive.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, nil
	}
	patterns := make([][]rune, len(words))
	for i, word := range words {
		normalized, _ := normalize([]rune(word))
		patterns[i] = normalized
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacement: replacement}, nil
}

// Censor replaces every dictionary hit with the replacement rune,
// keeping the spacing and punctuation of the original text intact.
func (m *Moderator) Censor(content string) string {
	if m == nil {
		return content
	}

	original := []rune(content)
	normalized, positions := normalize(original)
	if len(normalized) == 0 {
		return content
	}

	hits := m.matcher.MultiPatternSearch(normalized, false)
	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(positions) {
			continue
		}
		// Mask the original span covered by the match, separators
		// included.
		for i := positions[start]; i <= positions[end-1]; i++ {
			original[i] = m.replacement
		}
	}
	return string(original)
}

// normalize lowercases the input and removes separators, keeping for
// every kept rune its index in the original slice.
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	positions := make([]int, 0, len(input))
	for i, r := range input {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(r))
		positions = append(positions, i)
	}
	return normalized, positions
}
