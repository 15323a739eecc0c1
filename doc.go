/*
Package gazetteer locates known phrases in text.

A gazetteer is a large, static dictionary of phrases, each carrying typed
metadata. It is configured by a ".def" or ".defyaml" file naming a set of
list files (see package defconfig), compiled into a frozen trie keyed by
runes, and queried by walking the trie from a cursor position in a text.
Every final state reached yields lookup handles, which expand into the
annotation type and the feature bundle of the matching entry.

Compiling millions of entries takes a while, so a compiled store is written
to a binary cache next to the configuration and read back on the next start
(see package gazbin). Stores built from the same configuration are shared
within a process by a reference counted registry:

	store, err := gazetteer.Acquire(gazetteer.Config{Path: "cities.def"})
	if err != nil {
	    …
	}
	defer gazetteer.Release(gazetteer.Config{Path: "cities.def"})
	text := store.Normalizer().Query("I live in New   York.")
	for length, h := range store.MatchesAt(text.Runes, 10) {
	    fmt.Println(length, store.Expand(h).Features())
	}

Matching is exact on normalized text. Phrases are trimmed and runs of white
space are collapsed to a single space when loading. For case-insensitive
gazetteers, phrases are upper-cased with the case rules of a configurable
language. Query text has to be normalized the same way, which is what
Normalizer.Query does.

Tokenization and fuzzy matching are outside the scope of this package.

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package gazetteer

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'gazetteer'
func tracer() tracing.Trace {
	return tracing.Select("gazetteer")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
