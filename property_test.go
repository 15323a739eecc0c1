package gazetteer

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	oracle "github.com/derekparker/trie"
)

// randomPhrase creates phrases over a tiny alphabet, so that prefixes are
// shared a lot and many nodes are promoted to hashed ones.
func randomPhrase(rnd *rand.Rand, alphabet []rune) string {
	var b strings.Builder
	n := 1 + rnd.IntN(6)
	for range n {
		b.WriteRune(alphabet[rnd.IntN(len(alphabet))])
	}
	return b.String()
}

func TestNoSpuriousMatches(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 11))
	alphabet := []rune("abcdefghijkß \t")
	store := NewStore(false, "de")
	list := store.AddListInfo("Lookup", "random.lst", nil)
	loader := NewLoader(store)
	ref := oracle.New()
	add := func(key string, h Handle) {
		var hh []Handle
		if node, ok := ref.Find(key); ok {
			hh = node.Meta().([]Handle)
		}
		ref.Add(key, append(hh, h))
	}
	for range 2000 {
		phrase := randomPhrase(rnd, alphabet)
		if !loader.AddEntry(list, phrase, nil) {
			continue
		}
		h := Handle(store.tables.Lookups.Len() - 1)
		for _, form := range store.Normalizer().Forms(phrase) {
			add(form, h)
		}
	}
	store.Compact()
	if st := store.Stats(); st.Hashed == 0 {
		t.Errorf("expected some hashed nodes, stats are %s", st)
	}
	for range 200 {
		raw := randomPhrase(rnd, alphabet) + randomPhrase(rnd, alphabet) + randomPhrase(rnd, alphabet)
		text := store.Normalizer().Query(raw).Runes
		for i := range text {
			found := make(map[int][]Handle)
			for length, h := range store.MatchesAt(text, i) {
				found[length] = append(found[length], h)
			}
			for k := 1; i+k <= len(text); k++ {
				key := string(text[i : i+k])
				node, ok := ref.Find(key)
				if !ok {
					if len(found[k]) > 0 {
						t.Fatalf("spurious match %q at %d in %q", key, i, string(text))
					}
					continue
				}
				expected := node.Meta().([]Handle)
				if !slices.Equal(expected, found[k]) {
					t.Fatalf("match %q at %d: expected handles %v, got %v", key, i, expected, found[k])
				}
			}
		}
	}
}

func TestNormalizationIdempotence(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 5))
	alphabet := []rune("aB ß\t  xY")
	for _, cs := range []bool{true, false} {
		n := NewNormalizer(cs, "de")
		for range 500 {
			p := randomPhrase(rnd, alphabet)
			for _, form := range n.Forms(p) {
				again := n.Forms(form)
				if !slices.Contains(again, form) {
					t.Fatalf("normalizing %q again yields %q", form, again)
				}
			}
		}
	}
}
