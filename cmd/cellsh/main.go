// Command cellsh runs a command on multiple cells in parallel, optionally
// copying files or an executable first, over the external ssh and scp
// programs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cellsh/cellsh/pkg/config"
	"github.com/cellsh/cellsh/pkg/executor"
	"github.com/cellsh/cellsh/pkg/inventory"
	"github.com/cellsh/cellsh/pkg/keys"
	"github.com/cellsh/cellsh/pkg/logger"
	"github.com/cellsh/cellsh/pkg/probe"
	"github.com/cellsh/cellsh/pkg/render"
	"github.com/cellsh/cellsh/pkg/vmstat"
)

var Version = "dev" // Set at build time

// interruptExit is the exit status after a run was cancelled by ^C.
const interruptExit = 130

type options struct {
	configPath string

	cells     []string
	groupFile string

	destFile  string
	copyFiles []string
	execFile  string

	pushKey bool
	dropKey bool

	user       string
	sshOptions string
	scpOptions string

	serialize  bool
	showBanner bool
	hideStderr bool

	listOnly      bool
	listNegatives bool
	regexp        string

	vmstatOps string
	maxLines  int
	batchSize int

	verbose bool
}

func main() {
	var o options
	status := 0

	rootCmd := &cobra.Command{
		Use:     "cellsh [options] [command]",
		Short:   "Execute commands across multiple cells in parallel",
		Version: Version,
		Long: `cellsh - Distributed shell for cell servers

Examples:
  cellsh -c cell01,cell02 date -u
  cellsh -g cellgroup -x patch.sh
  cellsh -g cellgroup -f metrics.tar -d /tmp
  cellsh -c cell01 -k
  cellsh -g cellgroup --vmstat "3 5"`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			status, err = run(cmd, args, &o)
			return err
		},
	}

	f := rootCmd.Flags()
	// command words after the options stay untouched
	f.SetInterspersed(false)

	f.StringSliceVarP(&o.cells, "cells", "c", nil, "comma-separated list of cells")
	f.StringVarP(&o.groupFile, "group", "g", "", "file with a list of cells, one per line")
	f.StringVarP(&o.destFile, "destfile", "d", "", "remote destination directory or file")
	f.StringArrayVarP(&o.copyFiles, "file", "f", nil, "file to be copied to the cells (repeatable)")
	f.StringVarP(&o.execFile, "execfile", "x", "", "file to be copied and executed on the cells")
	f.BoolVarP(&o.pushKey, "key", "k", false, "push the ssh key to the cells")
	f.BoolVar(&o.dropKey, "unkey", false, "drop the ssh key from the cells")
	f.StringVarP(&o.user, "user", "l", "", "remote login user (default celladmin)")
	f.BoolVarP(&o.listNegatives, "negatives", "n", false, "list only cells with a non-zero return code")
	f.StringVarP(&o.regexp, "regexp", "r", "", "abbreviate output lines matching the expression")
	f.StringVarP(&o.sshOptions, "ssh-options", "s", "", "string of options passed through to ssh")
	f.StringVar(&o.scpOptions, "scp", "", "string of options passed through to scp")
	f.BoolVar(&o.serialize, "serial", false, "serialize execution over the cells")
	f.BoolVar(&o.showBanner, "showbanner", false, "show the remote login banner")
	f.BoolVar(&o.hideStderr, "hidestderr", false, "discard remote standard error")
	f.BoolVarP(&o.listOnly, "list", "t", false, "list the target cells")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "verbose progress messages")
	f.StringVar(&o.vmstatOps, "vmstat", "", "periodic vmstat sampling with the given options")
	f.IntVar(&o.maxLines, "maxlines", 0, "maximum output lines per cell (default 100000)")
	f.IntVar(&o.batchSize, "batchsize", 0, "number of cells to run per batch")
	f.StringVar(&o.configPath, "config", "", "defaults file path (default ~/.cellsh/config.toml)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, executor.ErrInterrupted) {
			os.Exit(interruptExit)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usage *config.UsageError
		if errors.As(err, &usage) {
			rootCmd.Usage()
		}
		os.Exit(2)
	}
	os.Exit(status)
}

// run performs one full invocation and returns the process exit status:
// zero when every requested step succeeded on every cell, one when any cell
// was unreachable or returned a non-zero status. Fatal problems come back as
// errors instead.
func run(cmd *cobra.Command, args []string, o *options) (int, error) {
	defaults, err := config.LoadDefaults(o.configPath)
	if err != nil {
		return 0, err
	}

	logLevel := defaults.Log.Level
	if o.verbose {
		logLevel = "debug"
	}
	log := logger.New(&logger.Config{
		Level:    logLevel,
		NoColor:  defaults.Log.NoColor,
		ShowTime: defaults.Log.ShowTime,
	})

	cfg := &config.RunConfig{
		Cells:         o.cells,
		GroupFile:     o.groupFile,
		Args:          args,
		CopyFiles:     o.copyFiles,
		ExecFile:      o.execFile,
		DestFile:      o.destFile,
		User:          o.user,
		SSHOptions:    o.sshOptions,
		SCPOptions:    o.scpOptions,
		PushKey:       o.pushKey,
		DropKey:       o.dropKey,
		HideStderr:    o.hideStderr,
		Serialize:     o.serialize,
		ShowBanner:    o.showBanner,
		ListOnly:      o.listOnly,
		ListNegatives: o.listNegatives,
		Regexp:        o.regexp,
		BatchSize:     o.batchSize,
		MaxLines:      o.maxLines,
		VmstatSet:     cmd.Flags().Changed("vmstat"),
		VmstatOps:     o.vmstatOps,
		Verbose:       o.verbose,
		SSHPath:       defaults.Transport.SSHPath,
		SCPPath:       defaults.Transport.SCPPath,
		Port:          defaults.Transport.Port,
		ProbeTimeout:  defaults.ProbeTimeoutDuration(),
	}
	if cfg.User == "" {
		cfg.User = defaults.Run.User
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = defaults.Run.MaxLines
	}

	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	clist, err := inventory.BuildCellList(cfg.Cells, cfg.GroupFile)
	if err != nil {
		return 0, err
	}
	if len(clist) == 0 {
		return 0, config.Usagef("No cells specified.")
	}

	if cfg.ExecFile != "" {
		if _, err := config.CheckFile(cfg.ExecFile, true); err != nil {
			return 0, err
		}
	}
	for _, file := range cfg.CopyFiles {
		if _, err := config.CheckFile(file, false); err != nil {
			return 0, err
		}
	}

	if cfg.ListOnly {
		fmt.Printf("Target cells: %v\n", clist)
	}
	if !cfg.HasWork() {
		return 0, nil
	}

	var sshKeys []string
	if cfg.PushKey || cfg.DropKey {
		sshKeys, err = keys.Load()
		if err != nil {
			return 0, err
		}
		for _, fp := range keys.Fingerprints(sshKeys) {
			log.Debug("using public key %s", fp)
		}
	}

	prober := probe.New(cfg.Port, cfg.ProbeTimeout, log)
	good, bad := prober.Test(clist)
	exitStatus := 0
	if len(bad) > 0 {
		exitStatus = 1
		fmt.Fprintf(os.Stderr, "Unable to connect to cells: %v\n", bad)
	}
	if len(good) == 0 {
		return exitStatus, nil
	}
	if cfg.Verbose {
		names := make([]string, len(good))
		for i, c := range good {
			names[i] = c.Name
		}
		log.Debug("success connecting to cells: %v", names)
	}

	job := executor.BuildJob(cfg, sshKeys)

	presenter, err := render.NewPresenter(cfg.ListNegatives, cfg.Regexp, os.Stdout)
	if err != nil {
		return 0, err
	}

	coord := &executor.Coordinator{
		Cfg:   cfg,
		Log:   log,
		Flush: presenter.ListOne,
		Out:   os.Stdout,
		Warn:  os.Stderr,
	}

	if cfg.VmstatSet {
		repeat, base, periodic := vmstat.Parse(cfg.VmstatOps)
		if periodic {
			if err := coord.CheckTransports(job.WithCommand(base)); err != nil {
				return 0, err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			loop := &vmstat.Loop{
				Cells:    clist,
				Opts:     cfg.VmstatOps,
				Repeat:   repeat,
				Command:  base,
				Out:      os.Stdout,
				Fallback: presenter,
				Dispatch: func(ctx context.Context, raw string) (*executor.Results, error) {
					return coord.Run(ctx, good, job.WithCommand(raw))
				},
			}
			status, err := loop.Run(ctx)
			if err != nil {
				return 0, err
			}
			if status > exitStatus {
				exitStatus = status
			}
			return normalizeStatus(exitStatus), nil
		}
		// options incompatible with periodic sampling run as a plain
		// one-shot command
		job = job.WithCommand("vmstat " + cfg.VmstatOps)
	}

	if err := coord.CheckTransports(job); err != nil {
		return 0, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := coord.Run(ctx, good, job)
	if err != nil {
		return 0, err
	}
	presenter.List(clist, results)
	if s := results.MaxStatus(); s > exitStatus {
		exitStatus = s
	}
	return normalizeStatus(exitStatus), nil
}

// normalizeStatus folds any per-cell failure into the documented exit
// status 1.
func normalizeStatus(status int) int {
	if status > 0 {
		return 1
	}
	return 0
}
