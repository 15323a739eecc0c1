package gazetteer

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultLanguage is the case conversion language used if none is configured.
const DefaultLanguage = "en"

// isSpace reports whether r belongs to the white space collapsed by
// normalization.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0x85, 0xA0,
		0x1680, 0x180E, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

// Collapse trims s and replaces every maximal run of white space by a
// single space. Collapse is idempotent.
func Collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if isSpace(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalizer maps phrases and query text to the form stored in a trie.
//
// In case-insensitive mode phrases are upper-cased. Locale-aware upper-casing
// may change the length of a phrase ("straße" becomes "STRASSE"), while
// query text is folded rune by rune to keep its positions aligned with the
// host text. Phrases are therefore inserted in both forms whenever the two
// differ.
type Normalizer struct {
	caseSensitive bool
	lang          string
	special       unicode.SpecialCase
	mu            sync.Mutex // guards upper
	upper         cases.Caser
}

// NewNormalizer creates a normalizer. lang is a BCP 47 language tag
// selecting case conversion rules; empty selects DefaultLanguage.
func NewNormalizer(caseSensitive bool, lang string) *Normalizer {
	if lang == "" {
		lang = DefaultLanguage
	}
	tag := language.Make(lang)
	n := &Normalizer{
		caseSensitive: caseSensitive,
		lang:          lang,
		upper:         cases.Upper(tag),
	}
	if base, _ := tag.Base(); base.String() == "tr" || base.String() == "az" {
		n.special = unicode.TurkishCase
	}
	return n
}

// CaseSensitive reports whether n preserves case.
func (n *Normalizer) CaseSensitive() bool {
	return n.caseSensitive
}

// Language returns the case conversion language.
func (n *Normalizer) Language() string {
	return n.lang
}

// Forms returns the forms under which phrase is inserted into a trie.
// It returns nil if nothing is left of phrase after normalization.
func (n *Normalizer) Forms(phrase string) []string {
	p := Collapse(phrase)
	if p == "" {
		return nil
	}
	if n.caseSensitive {
		return []string{p}
	}
	n.mu.Lock()
	upper := n.upper.String(p)
	n.mu.Unlock()
	perRune := strings.Map(n.foldRune, p)
	if perRune == upper {
		return []string{upper}
	}
	return []string{upper, perRune}
}

func (n *Normalizer) foldRune(r rune) rune {
	if n.special != nil {
		return n.special.ToUpper(r)
	}
	return unicode.ToUpper(r)
}

// Fold case-folds runes in place, rune by rune. It does nothing for
// case-sensitive normalizers. Fold does not allocate and keeps positions
// aligned, which suits hosts doing their own tokenization.
func (n *Normalizer) Fold(runes []rune) {
	if n.caseSensitive {
		return
	}
	for i, r := range runes {
		runes[i] = n.foldRune(r)
	}
}

// Text is query text in normalized form.
type Text struct {
	Runes []rune
	// Offsets maps positions in Runes to rune positions in the original
	// text. It has one more element than Runes, holding the length of the
	// original text.
	Offsets []int
}

// Span maps a match of length runes at position start in t.Runes to the
// corresponding range of the original text.
func (t Text) Span(start, length int) (from, to int) {
	from = t.Offsets[start]
	to = t.Offsets[start+length-1] + 1
	return
}

// Query normalizes text for matching. Runs of white space become a single
// space and, for case-insensitive normalizers, runes are upper-cased one by
// one.
func (n *Normalizer) Query(text string) Text {
	t := Text{
		Runes:   make([]rune, 0, len(text)),
		Offsets: make([]int, 0, len(text)+1),
	}
	pos := 0
	inSpace := false
	for _, r := range text {
		if isSpace(r) {
			if !inSpace {
				t.Runes = append(t.Runes, ' ')
				t.Offsets = append(t.Offsets, pos)
			}
			inSpace = true
			pos++
			continue
		}
		inSpace = false
		if !n.caseSensitive {
			r = n.foldRune(r)
		}
		t.Runes = append(t.Runes, r)
		t.Offsets = append(t.Offsets, pos)
		pos++
	}
	t.Offsets = append(t.Offsets, pos)
	return t
}
