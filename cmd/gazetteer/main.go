// Command gazetteer compiles gazetteer configurations and matches text
// against them.
//
//	gazetteer compile cities.def
//	gazetteer match -c cities.def "I moved to New York last year."
//	echo "Paris, France" | gazetteer match -c cities.def --longest
//	gazetteer stats cities.def
//	gazetteer dump cities.def
//	gazetteer watch --metrics :9090 cities.def
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/npillmayer/gazetteer"
	"github.com/npillmayer/gazetteer/registry"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var manager = gazetteer.NewManager(registry.WithMetrics(prometheus.DefaultRegisterer, "gazetteer"))

var (
	caseSensitive bool
	language      string
	separator     string
	codec         string
	traceLevel    string

	rootCmd = &cobra.Command{
		Use:           "gazetteer",
		Short:         "Compile gazetteer lists and find their phrases in text",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			tracing.SetTraceSelector(tracing.SelectorForAdapter(gologadapter.GetAdapter()))
			tracing.Select("gazetteer").SetTraceLevel(tracing.TraceLevelFromString(traceLevel))
		},
	}
	compileCmd = &cobra.Command{
		Use:   "compile config.def|config.defyaml",
		Short: "Compile a gazetteer and write its cache file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	matchCmd = &cobra.Command{
		Use:   "match [text...]",
		Short: "Print all phrases found in text, or in standard input if no text is given",
		RunE:  runMatch,
	}
	statsCmd = &cobra.Command{
		Use:   "stats config.def|config.defyaml",
		Short: "Print statistics of a compiled gazetteer",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
	dumpCmd = &cobra.Command{
		Use:   "dump config.def|config.defyaml",
		Short: "Print all phrases of a compiled gazetteer in normalized form",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
	watchCmd = &cobra.Command{
		Use:   "watch config.def|config.defyaml",
		Short: "Recompile a gazetteer whenever its sources change",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	force       bool
	config      string
	longest     bool
	metricsAddr string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&caseSensitive, "case-sensitive", false, "match case-sensitively")
	flags.StringVar(&language, "lang", gazetteer.DefaultLanguage, "language for case conversion")
	flags.StringVar(&separator, "separator", "", `feature separator in list files (default "\t")`)
	flags.StringVar(&codec, "codec", "", "cache compression: none, zstd or lz4")
	flags.StringVar(&traceLevel, "trace", "Error", "trace level: Error, Info or Debug")
	compileCmd.Flags().BoolVarP(&force, "force", "f", false, "recompile even if a cache exists, replacing it")
	matchCmd.Flags().StringVarP(&config, "config", "c", "", "gazetteer configuration (required)")
	matchCmd.Flags().BoolVar(&longest, "longest", false, "report only the longest match per position")
	matchCmd.MarkFlagRequired("config")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics at this address, e.g. :9090")
	rootCmd.AddCommand(compileCmd, matchCmd, statsCmd, dumpCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gazetteer:", err)
		os.Exit(1)
	}
}

func configFor(path string) gazetteer.Config {
	return gazetteer.Config{
		Path:          path,
		CaseSensitive: caseSensitive,
		Language:      language,
		Separator:     separator,
		Codec:         codec,
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg := configFor(args[0])
	var store *gazetteer.Store
	var err error
	if force {
		store, err = manager.Replace(cfg)
	} else if store, err = manager.Acquire(cfg); err == nil {
		defer manager.Release(cfg)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), store.Stats())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := configFor(args[0])
	store, err := manager.Acquire(cfg)
	if err != nil {
		return err
	}
	defer manager.Release(cfg)
	st := store.Stats()
	out := cmd.OutOrStdout()
	for _, key := range manager.Loaded() {
		fmt.Fprintf(out, "store         %s\n", key)
	}
	fmt.Fprintf(out, "fingerprint   %s\n", store.Fingerprint())
	fmt.Fprintf(out, "lists         %d\n", st.Lists)
	fmt.Fprintf(out, "lookups       %d\n", st.Lookups)
	fmt.Fprintf(out, "strings       %d\n", st.Strings)
	fmt.Fprintf(out, "feature pairs %d\n", st.FeaturePairs)
	fmt.Fprintf(out, "nodes         %d (empty %d, sparse %d, hashed %d)\n", st.Nodes, st.Empty, st.Sparse, st.Hashed)
	fmt.Fprintf(out, "final states  %d with %d handles\n", st.Finals, st.Handles)
	fmt.Fprintf(out, "edges         %d, max fan-out %d\n", st.Edges, st.MaxFanOut)
	for i := range store.Lists() {
		annotationType, source, _ := store.List(i)
		fmt.Fprintf(out, "list %-4d     %s %s\n", i, annotationType, source)
	}
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg := configFor(args[0])
	store, err := manager.Acquire(cfg)
	if err != nil {
		return err
	}
	defer manager.Release(cfg)
	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()
	for phrase, handles := range store.Phrases() {
		for _, h := range handles {
			l := store.Expand(h)
			fmt.Fprintf(out, "%s\t%s\t%s\n", phrase, l.AnnotationType, l.Source)
		}
	}
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := configFor(config)
	store, err := manager.Acquire(cfg)
	if err != nil {
		return err
	}
	defer manager.Release(cfg)
	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()
	if len(args) > 0 {
		printMatches(out, store, strings.Join(args, " "))
		return nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		printMatches(out, store, scanner.Text())
	}
	return scanner.Err()
}

func printMatches(w io.Writer, store *gazetteer.Store, line string) {
	text := []rune(line)
	var occs []gazetteer.Occurrence
	if longest {
		t := store.Normalizer().Query(line)
		var buf []gazetteer.Match
		for start := range t.Runes {
			buf = store.LongestAt(buf[:0], t.Runes, start)
			for _, m := range buf {
				from, to := t.Span(start, m.Length)
				occs = append(occs, gazetteer.Occurrence{Start: from, End: to, Handle: m.Handle})
			}
		}
	} else {
		occs = store.FindAll(line)
	}
	for _, o := range occs {
		l := store.Expand(o.Handle)
		features := l.Features()
		names := make([]string, 0, len(features))
		for name := range features {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "%d\t%d\t%s\t%s", o.Start, o.End, string(text[o.Start:o.End]), l.AnnotationType)
		for _, name := range names {
			fmt.Fprintf(w, "\t%s=%s", name, features[name])
		}
		fmt.Fprintln(w)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := configFor(args[0])
	if _, err := manager.Acquire(cfg); err != nil {
		return err
	}
	defer manager.Release(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				fmt.Fprintln(os.Stderr, "gazetteer: metrics:", err)
			}
		}()
	}
	if err := manager.Watch(ctx, cfg); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
