package classifier

import (
	"context"
	"strings"
	"unicode"
)

// Lexicon is a word-list classifier. The score is the mean polarity of the
// sentiment-bearing words, adjusted for a preceding intensifier or negation.
type Lexicon struct {
	polarity     map[string]float64
	intensifiers map[string]float64
	negations    map[string]struct{}
}

// NewLexicon returns a Lexicon loaded with the built-in English word list.
func NewLexicon() *Lexicon {
	l := &Lexicon{
		polarity:     make(map[string]float64, len(defaultPolarity)),
		intensifiers: defaultIntensifiers,
		negations:    make(map[string]struct{}, len(defaultNegations)),
	}
	for w, p := range defaultPolarity {
		l.polarity[w] = p
	}
	for _, w := range defaultNegations {
		l.negations[w] = struct{}{}
	}
	return l
}

func (l *Lexicon) Name() string { return "lexicon" }

func (l *Lexicon) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	words := tokenizeWords(text)
	var sum float64
	var n int
	for i, w := range words {
		p, ok := l.polarity[w]
		if !ok {
			continue
		}
		if i > 0 {
			if m, ok := l.intensifiers[words[i-1]]; ok {
				p *= m
			}
		}
		if l.negated(words, i) {
			p *= -0.5
		}
		sum += p
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return clamp(sum / float64(n)), nil
}

// negated looks back up to two words, skipping one intensifier.
func (l *Lexicon) negated(words []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if _, ok := l.negations[words[j]]; ok {
			return true
		}
		if _, ok := l.intensifiers[words[j]]; !ok {
			return false
		}
	}
	return false
}

func tokenizeWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		if expanded, ok := contractions[f]; ok {
			f = expanded
		}
		out = append(out, f)
	}
	return out
}

var contractions = map[string]string{
	"don't": "not", "doesn't": "not", "didn't": "not", "isn't": "not",
	"wasn't": "not", "aren't": "not", "weren't": "not", "can't": "not",
	"couldn't": "not", "won't": "not", "wouldn't": "not", "shouldn't": "not",
	"haven't": "not", "hasn't": "not", "ain't": "not",
}

var defaultNegations = []string{"not", "no", "never", "neither", "nor", "hardly", "without"}

var defaultIntensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"extremely":  1.5,
	"incredibly": 1.5,
	"so":         1.2,
	"super":      1.3,
	"quite":      1.1,
	"truly":      1.3,
	"absolutely": 1.5,
	"pretty":     1.1,
	"somewhat":   0.7,
	"slightly":   0.5,
	"barely":     0.4,
}

var defaultPolarity = map[string]float64{
	"amazing":       0.6,
	"awesome":       1.0,
	"beautiful":     0.85,
	"best":          1.0,
	"better":        0.5,
	"brilliant":     0.9,
	"cool":          0.35,
	"delightful":    0.8,
	"enjoy":         0.4,
	"enjoyed":       0.4,
	"excellent":     1.0,
	"fantastic":     0.4,
	"fine":          0.4,
	"fun":           0.3,
	"glad":          0.5,
	"good":          0.7,
	"great":         0.8,
	"happy":         0.8,
	"helpful":       0.5,
	"impressive":    0.8,
	"like":          0.2,
	"liked":         0.3,
	"love":          0.5,
	"loved":         0.7,
	"lovely":        0.5,
	"nice":          0.6,
	"perfect":       1.0,
	"pleasant":      0.7,
	"pleased":       0.5,
	"recommend":     0.4,
	"satisfied":     0.5,
	"smooth":        0.4,
	"superb":        1.0,
	"thanks":        0.2,
	"useful":        0.3,
	"wonderful":     1.0,
	"angry":         -0.5,
	"annoying":      -0.8,
	"awful":         -1.0,
	"bad":           -0.7,
	"boring":        -1.0,
	"broken":        -0.4,
	"disappointed":  -0.75,
	"disappointing": -0.6,
	"dislike":       -0.5,
	"fail":          -0.5,
	"failed":        -0.5,
	"hate":          -0.8,
	"hated":         -0.9,
	"horrible":      -1.0,
	"poor":          -0.4,
	"sad":           -0.5,
	"slow":          -0.3,
	"terrible":      -1.0,
	"ugly":          -0.7,
	"unhappy":       -0.6,
	"useless":       -0.5,
	"worse":         -0.4,
	"worst":         -1.0,
	"wrong":         -0.5,
}
