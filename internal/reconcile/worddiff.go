package reconcile

import (
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
)

// WordDiff returns the segments that turn before into after. Words are runs of
// letters and digits; every other rune is a token of its own.
func WordDiff(before, after string) []domain.TextSegment {
	var table tokenTable
	a := table.encode(tokenize(before))
	b := table.encode(tokenize(after))

	var out []domain.TextSegment
	for _, d := range diffmatchpatch.New().DiffMainRunes(a, b, false) {
		op := domain.TextEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = domain.TextInsert
		case diffmatchpatch.DiffDelete:
			op = domain.TextDelete
		}
		text := table.decode(d.Text)
		if text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Op == op {
			out[n-1].Text += text
			continue
		}
		out = append(out, domain.TextSegment{Op: op, Text: text})
	}
	return out
}

// tokenTable maps every distinct token to one rune so the diff runs over
// tokens instead of characters.
type tokenTable struct {
	tokens []string
	index  map[string]rune
}

// firstTokenRune skips the control range; surrogates are skipped in runeFor.
const firstTokenRune = 0x100

func (t *tokenTable) encode(tokens []string) []rune {
	if t.index == nil {
		t.index = make(map[string]rune)
	}
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, ok := t.index[tok]
		if !ok {
			r = runeFor(len(t.tokens))
			t.index[tok] = r
			t.tokens = append(t.tokens, tok)
		}
		out[i] = r
	}
	return out
}

func (t *tokenTable) decode(s string) string {
	var out []byte
	for _, r := range s {
		out = append(out, t.tokens[tokenOf(r)]...)
	}
	return string(out)
}

func runeFor(n int) rune {
	r := rune(firstTokenRune + n)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func tokenOf(r rune) int {
	if r >= 0xE000 {
		r -= 0x800
	}
	return int(r - firstTokenRune)
}

func tokenize(s string) []string {
	var (
		tokens []string
		start  = -1
	)
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, s[start:i])
			start = -1
		}
		tokens = append(tokens, string(r))
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
