// Package main is the command line driver for the blockdoc engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dshills/blockdoc/internal/app"
	"github.com/dshills/blockdoc/internal/config"
	"github.com/dshills/blockdoc/internal/engine/search"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	ConfigPath string
	LogLevel   string

	Lines   string
	Stats   bool
	Find    string
	Goto    int
	Replace string
	With    string

	File string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	logger := app.NewLogger(app.LoggerConfig{
		Level:  app.ParseLogLevel(cfg.Log.Level),
		Output: os.Stderr,
		Prefix: "blockdoc",
	})

	ws := app.NewWorkspace(cfg, logger)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clean up the session directory on interrupt.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
		ws.Close()
		os.Exit(1)
	}()

	if err := ws.Open(opts.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.Replace != "" {
		if err := runReplace(ctx, ws, opts.Replace, opts.With); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if opts.Find != "" {
		if err := runFind(ctx, ws, opts.Find); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if opts.Goto > 0 {
		if err := runGoto(ws, opts.Goto); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if opts.Lines != "" {
		if err := runLines(ws, opts.Lines); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if opts.Stats {
		if err := runStats(ctx, ws); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if !opts.Stats && opts.Find == "" && opts.Goto == 0 && opts.Lines == "" && opts.Replace == "" {
		runSummary(ws)
	}

	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.Lines, "lines", "", "Print a 1-based inclusive line range, e.g. 10:20")
	flag.BoolVar(&opts.Stats, "stats", false, "Print document counts")
	flag.StringVar(&opts.Find, "find", "", "Search query (literal, or :N to go to line N)")
	flag.IntVar(&opts.Goto, "goto", 0, "Print the 1-based line N")
	flag.StringVar(&opts.Replace, "replace", "", "Replace every occurrence of this text")
	flag.StringVar(&opts.With, "with", "", "Replacement text for -replace")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "blockdoc - chunked document storage engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: blockdoc [options] file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  blockdoc file.txt                     Show a summary\n")
		fmt.Fprintf(os.Stderr, "  blockdoc -lines 10:20 file.txt        Print lines 10 through 20\n")
		fmt.Fprintf(os.Stderr, "  blockdoc -find needle file.txt        Find every occurrence\n")
		fmt.Fprintf(os.Stderr, "  blockdoc -find :1500 file.txt         Go to line 1500\n")
		fmt.Fprintf(os.Stderr, "  blockdoc -replace old -with new f.txt Replace and save\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("blockdoc %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.File = flag.Arg(0)
	return opts
}

func runReplace(ctx context.Context, ws *app.Workspace, old, with string) error {
	doc := ws.Document()
	n, err := doc.ReplaceAll(ctx, old, with)
	if err != nil {
		return err
	}
	if n > 0 {
		if err := ws.Save(); err != nil {
			return err
		}
	}
	fmt.Printf("replaced %d occurrence(s)\n", n)
	return nil
}

func runFind(ctx context.Context, ws *app.Workspace, raw string) error {
	q := search.Parse(raw)
	if q.IsGoto {
		return runGoto(ws, q.Line)
	}

	matches, err := ws.Document().FindAll(ctx, q.Literal)
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Printf("%d:%d\n", m.Start, m.End)
	}
	fmt.Printf("%d match(es)\n", len(matches))
	return nil
}

func runGoto(ws *app.Workspace, line int) error {
	pos, ok := ws.Navigate(":" + strconv.Itoa(line))
	if !ok {
		return fmt.Errorf("no line %d", line)
	}
	fmt.Printf("%d: %s\n", pos+1, ws.DisplayLine(pos))
	return nil
}

func runLines(ws *app.Workspace, spec string) error {
	from, to, err := parseRange(spec)
	if err != nil {
		return err
	}
	total, err := ws.Document().TotalLines()
	if err != nil {
		return err
	}
	if to > total {
		to = total
	}
	for pos := from - 1; pos < to; pos++ {
		fmt.Printf("%d: %s\n", pos+1, ws.DisplayLine(pos))
	}
	return nil
}

func runStats(ctx context.Context, ws *app.Workspace) error {
	counts, err := ws.Document().Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("lines: %d\n", counts.Lines)
	fmt.Printf("words: %d\n", counts.Words)
	fmt.Printf("chars: %d\n", counts.Chars)
	fmt.Printf("non-whitespace: %d\n", counts.NonWhitespace)
	return nil
}

func runSummary(ws *app.Workspace) {
	doc := ws.Document()
	total, err := doc.TotalLines()
	if err != nil {
		total = 0
	}
	fmt.Printf("%s: %d lines, %d blocks, %d chunks\n",
		doc.Path(), total, doc.BlockCount(), doc.ChunkCount())
}

func parseRange(spec string) (from, to int, err error) {
	lo, hi, ok := strings.Cut(spec, ":")
	if !ok {
		return 0, 0, errors.New("line range must look like M:N")
	}
	from, err = strconv.Atoi(lo)
	if err != nil || from < 1 {
		return 0, 0, fmt.Errorf("invalid range start %q", lo)
	}
	to, err = strconv.Atoi(hi)
	if err != nil || to < from {
		return 0, 0, fmt.Errorf("invalid range end %q", hi)
	}
	return from, to, nil
}
