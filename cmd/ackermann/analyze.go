package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/benbjohnson/ackermann"
	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/txtar"
)

// AnalyzeCommand represents a command for finding ackermannizable arrays.
type AnalyzeCommand struct {
	Config Config

	// Print the full result tables.
	Dump bool

	// Seed for the random assignments used by Config.Verify.
	Seed int64

	// Align output in columns.
	Terminal bool

	Stdout io.Writer
}

// NewAnalyzeCommand returns a new instance of AnalyzeCommand.
func NewAnalyzeCommand() *AnalyzeCommand {
	return &AnalyzeCommand{
		Config:   DefaultConfig(),
		Seed:     1,
		Terminal: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		Stdout:   os.Stdout,
	}
}

// Command returns a cobra command that configures and runs cmd.
func (cmd *AnalyzeCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze [flags] FILE...",
		Short: "Report the ackermannizable arrays of each query",
		Long: `Analyze parses each FILE as a script and reports, for every query, the
arrays it reads and whether each can be ackermannized. Files ending in
.txtar are archives whose members are scripts; members named "config"
and "want" are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if err := cmd.configure(c, os.Getenv); err != nil {
				return err
			}
			return cmd.Run(c.Context(), args)
		},
	}

	flags := c.Flags()
	flags.Uint("max-array-width", ackermann.DefaultMaxArrayWidth, "reject arrays of at least this many bits")
	flags.String("sharing", ackermann.VisitOnce.String(), `evaluate shared nodes "once" or on "every-path"`)
	flags.Bool("verify", false, "check whole-array matches against a random assignment")
	flags.IntP("jobs", "j", 0, "number of files analyzed concurrently (0 for one per CPU)")
	flags.BoolVar(&cmd.Dump, "dump", false, "print result tables in full")
	flags.Int64Var(&cmd.Seed, "seed", cmd.Seed, "seed for --verify assignments")
	return c
}

// configure builds cmd.Config from defaults, the config file, the environment
// and flags, each overriding the previous.
func (cmd *AnalyzeCommand) configure(c *cobra.Command, getenv func(string) string) error {
	config := DefaultConfig()
	flags := c.Flags()

	if filename, _ := flags.GetString("config"); filename != "" {
		if err := config.ReadFile(filename); err != nil {
			return err
		}
	}
	if err := config.ApplyEnv(getenv); err != nil {
		return err
	}

	if flags.Changed("max-array-width") {
		config.MaxArrayWidth, _ = flags.GetUint("max-array-width")
	}
	if flags.Changed("sharing") {
		config.Sharing, _ = flags.GetString("sharing")
	}
	if flags.Changed("verify") {
		config.Verify, _ = flags.GetBool("verify")
	}
	if flags.Changed("jobs") {
		config.Jobs, _ = flags.GetInt("jobs")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		config.LogLevel = log.DebugLevel.String()
	}

	if err := config.Validate(); err != nil {
		return err
	}
	cmd.Config = config

	level, _ := log.ParseLevel(config.LogLevel)
	log.SetLevel(level)
	return nil
}

// Run analyzes each file and writes the results to Stdout in argument order.
// Files are analyzed concurrently, each with its own finder.
func (cmd *AnalyzeCommand) Run(ctx context.Context, filenames []string) error {
	if err := cmd.Config.Validate(); err != nil {
		return err
	}

	jobs := cmd.Config.Jobs
	if jobs == 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	outputs := make([]bytes.Buffer, len(filenames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, filename := range filenames {
		i, filename := i, filename
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rnd := rand.New(rand.NewSource(cmd.Seed + int64(i)))
			return cmd.analyzeFile(&outputs[i], filename, rnd)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range outputs {
		if _, err := outputs[i].WriteTo(cmd.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// analyzeFile analyzes every script in filename.
func (cmd *AnalyzeCommand) analyzeFile(w io.Writer, filename string, rnd *rand.Rand) error {
	srcs, err := readSources(filename)
	if err != nil {
		return err
	}

	f := ackermann.NewFinder(cmd.Config.MaxArrayWidth, cmd.Config.SharingMode())
	for _, src := range srcs {
		if err := cmd.analyzeSource(w, f, src, rnd); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *AnalyzeCommand) analyzeSource(w io.Writer, f *ackermann.Finder, src source, rnd *rand.Rand) error {
	t := time.Now()

	script, err := ackermann.ParseScript(src.data)
	if err != nil {
		return errors.Wrap(err, src.name)
	}

	fmt.Fprintf(w, "# %s\n", src.name)
	for i, exprs := range script.Queries {
		f.Reset()
		tbl := f.Run(exprs...)

		st := f.Stats()
		log.WithFields(log.Fields{
			"file":    src.name,
			"query":   i + 1,
			"reads":   st.ReadN,
			"concats": st.ConcatN,
			"matches": st.MatchN,
			"rejects": st.RejectN,
		}).Debug("ackermann: query analyzed")

		if cmd.Config.Verify {
			if err := verify(exprs, tbl, rnd); err != nil {
				return errors.Wrapf(err, "%s: query %d", src.name, i+1)
			}
		}

		if err := cmd.printTable(w, i+1, tbl); err != nil {
			return err
		}
		if cmd.Dump {
			dump(w, tbl)
		}
	}

	log.WithFields(log.Fields{
		"file":    src.name,
		"queries": len(script.Queries),
		"elapsed": time.Since(t),
	}).Debug("ackermann: file analyzed")
	return nil
}

// printTable writes one query's results, aligned in columns on a terminal.
func (cmd *AnalyzeCommand) printTable(w io.Writer, query int, tbl *ackermann.Table) error {
	if !cmd.Terminal {
		_, err := fmt.Fprintf(w, "query %d:\n%s", query, tbl)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tARRAY\tSTATUS\tMATCH")
	for _, a := range tbl.Arrays() {
		matches, _ := tbl.Get(a)
		if len(matches) == 0 {
			fmt.Fprintf(tw, "%d\t%s\trejected\t-\n", query, a)
			continue
		}
		for i, m := range matches {
			if i == 0 {
				fmt.Fprintf(tw, "%d\t%s\tackermannizable\t%s\n", query, a, m)
			} else {
				fmt.Fprintf(tw, "\t\t\t%s\n", m)
			}
		}
	}
	return tw.Flush()
}

// verify checks tbl against a random assignment of every array that fits in
// a constant.
func verify(exprs []ackermann.Expr, tbl *ackermann.Table, rnd *rand.Rand) error {
	var arrays []*ackermann.Array
	var values [][]uint64
	for _, a := range ackermann.FindArrays(exprs...) {
		if a.IsConstantArray() || a.Width() > ackermann.Width64 {
			continue
		}

		v := make([]uint64, a.Size)
		for i := range v {
			v[i] = rnd.Uint64()
		}
		arrays, values = append(arrays, a), append(values, v)
	}
	return tbl.Verify(ackermann.NewExprEvaluator(arrays, values))
}

// dump writes the matches of every array in tbl.
func dump(w io.Writer, tbl *ackermann.Table) {
	type entry struct {
		Array   *ackermann.Array
		Matches []*ackermann.Match
	}

	var entries []entry
	for _, a := range tbl.Arrays() {
		matches, _ := tbl.Get(a)
		entries = append(entries, entry{Array: a, Matches: matches})
	}

	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisableMethods:          true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	cfg.Fdump(w, entries)
}

// source is a named script.
type source struct {
	name string
	data string
}

// readSources returns the scripts in filename. Archives yield one script per
// member.
func readSources(filename string) ([]source, error) {
	if filepath.Ext(filename) != ".txtar" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		return []source{{name: filename, data: string(data)}}, nil
	}

	ar, err := txtar.ParseFile(filename)
	if err != nil {
		return nil, err
	}

	var srcs []source
	for _, f := range ar.Files {
		switch f.Name {
		case "config", "want":
			continue
		}
		srcs = append(srcs, source{name: filename + "/" + f.Name, data: string(f.Data)})
	}
	if len(srcs) == 0 {
		return nil, errors.Errorf("%s: archive contains no scripts", filename)
	}
	return srcs, nil
}
