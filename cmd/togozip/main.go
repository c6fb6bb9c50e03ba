// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

// togozip adds files to a zip archive without ever leaving it corrupted.
//
// The merged archive is written next to the destination as "<archive>.tmp"
// and swapped in through "<archive>.bak". Files whose names already exist
// in the archive are renamed to "name(1).ext", "name(2).ext", ... unless
// they are duplicates with the same modification time.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	togozip "github.com/naofum/ToGoZip"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.Danger.Sprint("error:"), err)
		stop()
		os.Exit(1)
	}
}

// cliFlags holds parsed command line flags.
type cliFlags struct {
	configPath      string
	prefix          string
	store           []string
	selectPatterns  []string
	level           int
	keepBackup      int
	dropOnCollision bool
	caseSensitive   bool
	dryRun          bool
	verbose         bool
	noProgress      bool
	noColor         bool
	help            bool
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	var flags cliFlags

	flagSet := pflag.NewFlagSet("togozip", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringVarP(&flags.prefix, "prefix", "p", "", "archive directory for added files")
	flagSet.StringArrayVar(&flags.store, "store", nil, "pattern of files stored without compression, \"!pattern\" excludes (repeatable)")
	flagSet.StringArrayVar(&flags.selectPatterns, "select", nil, "pattern of files picked up from directories, \"!pattern\" excludes (repeatable)")
	flagSet.IntVarP(&flags.level, "level", "l", 0, "deflate level -2..9 (0: default, use --store for uncompressed entries)")
	flagSet.IntVar(&flags.keepBackup, "keep-backup", 0, "backup generations kept after success (0: remove backup)")
	flagSet.BoolVar(&flags.dropOnCollision, "drop-on-collision", false, "drop files whose name already exists instead of renaming them")
	flagSet.BoolVar(&flags.caseSensitive, "case-sensitive", false, "match store and select patterns case sensitively")
	flagSet.BoolVarP(&flags.dryRun, "dry-run", "n", false, "print collision resolution without writing")
	flagSet.BoolVarP(&flags.verbose, "verbose", "v", false, "log every step")
	flagSet.BoolVar(&flags.noProgress, "no-progress", false, "disable progress bar")
	flagSet.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	flagSet.BoolVarP(&flags.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}

	if flags.help {
		printHelp(stdout, flagSet)
		return nil
	}

	if flags.noColor {
		color.Disable()
	}

	positional := flagSet.Args()
	if len(positional) < 2 {
		return fmt.Errorf("expected <archive.zip> and at least one file or directory, see --help")
	}

	config, err := buildConfig(flagSet, &flags)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts := config.Options()
	opts.Logger = logger

	var bar *progressbar.ProgressBar
	if !flags.dryRun && !flags.noProgress && !flags.verbose && isTerminal(stderr) {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("merging"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		opts.OnEntryDone = func(entry togozip.EntryProgress) {
			bar.Describe(entry.Name)
			_ = bar.Add(1)
		}
	}

	destination := positional[0]
	job, err := togozip.NewJob(destination, opts)
	if err != nil {
		return err
	}

	if err := addSources(job, config.Prefix, positional[1:]); err != nil {
		return err
	}

	if flags.dryRun {
		resolutions, err := job.Resolve()
		if err != nil {
			return err
		}

		printResolutions(stdout, resolutions)
		return nil
	}

	res, err := job.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	printResult(stdout, destination, res)
	return nil
}

// buildConfig loads configuration file and overlays explicitly set flags.
func buildConfig(flagSet *pflag.FlagSet, flags *cliFlags) (*Config, error) {
	config := &Config{}
	if flags.configPath != "" {
		loaded, err := LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if flagSet.Changed("prefix") {
		config.Prefix = flags.prefix
	}
	if flagSet.Changed("store") {
		config.Store = flags.store
	}
	if flagSet.Changed("select") {
		config.Select = flags.selectPatterns
	}
	if flagSet.Changed("level") {
		config.CompressionLevel = flags.level
	}
	if flagSet.Changed("keep-backup") {
		config.KeepBackup = flags.keepBackup
	}
	if flagSet.Changed("drop-on-collision") {
		config.DropOnCollision = flags.dropOnCollision
	}
	if flagSet.Changed("case-sensitive") {
		config.CaseSensitive = flags.caseSensitive
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// addSources schedules files directly and walks directories.
func addSources(job *togozip.Job, prefix string, sources []string) error {
	for _, src := range sources {
		info, err := os.Stat(src)
		if err == nil && info.IsDir() {
			if _, err := job.AddDir(togozip.JoinEntryName(prefix, filepath.Base(filepath.Clean(src))), src); err != nil {
				return err
			}
			continue
		}

		// Missing files are reported as skipped by the run.
		if err := job.Add(prefix, src); err != nil {
			return err
		}
	}

	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printResolutions(w io.Writer, resolutions []togozip.Resolution) {
	for _, res := range resolutions {
		switch res.Kind {
		case togozip.OutcomeKeep:
			fmt.Fprintf(w, "add     %s\n", res.Name)
		case togozip.OutcomeRename:
			fmt.Fprintf(w, "%s  %s -> %s\n", color.Warn.Sprint("rename"), res.Item.EntryName, res.Name)
		default:
			fmt.Fprintf(w, "%s    %s (%s)\n", color.Note.Sprint("drop"), res.Item.EntryName, res.Reason)
		}
	}
}

func printResult(w io.Writer, destination string, res *togozip.Result) {
	for _, c := range res.Collisions() {
		if c.Kind == togozip.OutcomeRename {
			fmt.Fprintf(w, "%s  %s -> %s\n", color.Warn.Sprint("renamed"), c.Item.EntryName, c.Name)
			continue
		}
		fmt.Fprintf(w, "%s  %s (%s)\n", color.Note.Sprint("dropped"), c.Item.EntryName, c.Reason)
	}

	for _, s := range res.Skipped {
		fmt.Fprintf(w, "%s  %s (%s)\n", color.Danger.Sprint("skipped"), s.Item.SourcePath, s.Reason)
	}

	if res.NoChange {
		fmt.Fprintf(w, "%s %s unchanged: no (more) files to add\n", color.Info.Sprint("=>"), destination)
		return
	}

	fmt.Fprintf(w, "%s %s: %d entries (%d added) in %s\n",
		color.Success.Sprint("=>"), destination, res.Entries, res.AddedEntries, res.Duration.Round(time.Millisecond))
	if res.BackupPath != "" {
		fmt.Fprintf(w, "   backup kept at %s\n", res.BackupPath)
	}
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `togozip: add files to a zip archive without corrupting it.

Usage:
  togozip [flags] <archive.zip> <file-or-dir>...

Examples:
  # Add two photos under "2024/"
  togozip -p 2024 photos.zip IMG_0001.jpg IMG_0002.jpg

  # Add a directory, storing media uncompressed and skipping temp files
  togozip --store '*.jpg' --select '!*.tmp' photos.zip ~/DCIM/trip

  # Preview collision handling
  togozip --dry-run photos.zip IMG_0001.jpg

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
