package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hostfleet/internal/config"
	"hostfleet/internal/logging"
	"hostfleet/pkg/ansible"
	"hostfleet/pkg/checker"
	"hostfleet/pkg/events"
	"hostfleet/pkg/installer"
	"hostfleet/pkg/scheduler"
	"hostfleet/pkg/sshexec"
	"hostfleet/pkg/task"
)

const (
	exitSuccess             = 0
	exitConfigError         = 1
	exitAllHostsUnreachable = 2
	exitTaskFailures        = 3
	exitCancelled           = 4
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		tui         bool
		dryRun      bool
		nodeFilter  []string
		pkgFilter   []string
		skipConfirm bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision the hosts and software described in a config file",
		Example: `  hostfleet run -c hostfleet.yml
  hostfleet run -c hostfleet.yml --tui
  hostfleet run -c hostfleet.yml --dry-run --node db1 --node db2
  hostfleet run -c hostfleet.yml --software zookeeper -y`,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runDeploy(cmd, runOptions{
				configPath:  configPath,
				tui:         tui,
				dryRun:      dryRun,
				nodeFilter:  nodeFilter,
				pkgFilter:   pkgFilter,
				skipConfirm: skipConfirm,
			})
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "hostfleet.yml", "path to the configuration file")
	cmd.Flags().BoolVar(&tui, "tui", false, "attach an interactive progress TUI")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run checks and invoke installers in no-op mode")
	cmd.Flags().StringArrayVar(&nodeFilter, "node", nil, "restrict the run to this host (repeatable)")
	cmd.Flags().StringArrayVar(&pkgFilter, "software", nil, "restrict the run to this package (repeatable)")
	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "skip the interactive confirmation prompt")

	return cmd
}

type runOptions struct {
	configPath  string
	tui         bool
	dryRun      bool
	nodeFilter  []string
	pkgFilter   []string
	skipConfirm bool
}

// runDeploy loads and validates the config, wires every collaborator, drives
// the run to completion, and returns the process exit code. Kept separate
// from the cobra RunE so os.Exit's side effects are isolated to one call
// site in the caller.
func runDeploy(cmd *cobra.Command, opts runOptions) int {
	out := cmd.OutOrStdout()

	doc, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config error: %v\n", err)
		return exitConfigError
	}
	if errs := config.Validate(doc); len(errs) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "config error: invalid configuration:")
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", e)
		}
		return exitConfigError
	}

	hosts, packages := config.Resolve(doc)
	hosts, packages = applyFilters(hosts, packages, opts.nodeFilter, opts.pkgFilter)
	if len(hosts) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "config error: no hosts left after applying --node/--software filters")
		return exitConfigError
	}

	if !opts.skipConfirm && !opts.dryRun {
		if !confirm(cmd, hosts, packages) {
			fmt.Fprintln(out, "aborted.")
			return exitCancelled
		}
	}

	runID := uuid.NewString()
	runDir := filepath.Join(doc.General.DataDir, "run", time.Now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config error: creating run directory: %v\n", err)
		return exitConfigError
	}
	if err := writeInventorySnapshot(runDir, doc); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config error: writing inventory snapshot: %v\n", err)
		return exitConfigError
	}

	logger := logging.New(logging.ParseLevel(doc.Log.Level))
	logger.SetOutput(out)
	logger = logging.WithService(logger, "hostfleet")
	logger.WithField("run_id", runID).Info("starting run")

	scrubber := events.NewCredentialScrubber()
	for _, h := range hosts {
		scrubber.Register(h.Owner.Pass)
		scrubber.Register(h.Super.Pass)
	}
	bus := events.NewBus(scrubber)
	closers, err := attachSinks(bus, doc.Log.Dir, runDir, hostNames(hosts))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config error: %v\n", err)
		return exitConfigError
	}
	defer bus.CloseAll()
	defer closeAll(closers)

	var progressSub *progressSubscriber
	if opts.tui {
		progressSub = newProgressSubscriber(hosts, packages)
		bus.Subscribe(progressSub.subscriber())
		defer progressSub.stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx := task.NewRunContext(ctx, runID, doc.General.DataDir, doc.General.MaxConcurrentNodes, opts.dryRun, bus)
	catalog := task.Build(hosts, packages)

	pool := sshexec.NewPool(30 * time.Second)
	defer pool.Close()
	exec := ansible.NewExecutor(runDir)
	installers := installer.NewRegistry(
		installer.NewJava(pool, exec, opts.dryRun),
		installer.NewPython(pool, exec, opts.dryRun),
		installer.NewZookeeper(pool, exec, opts.dryRun),
	)
	checkers := checker.NewManager(checker.Default()...)

	engine := scheduler.New(runCtx, catalog, hosts, packages, checkers, installers, pool)

	go func() {
		<-ctx.Done()
		engine.Cancel()
	}()

	engine.Start()
	engine.Wait()

	stats := catalog.Stats()
	printSummary(out, stats, ctx.Err() != nil)

	return exitCode(stats, ctx.Err() != nil)
}

func applyFilters(hosts []task.HostSpec, packages map[string][]task.PackageSpec, nodeFilter, pkgFilter []string) ([]task.HostSpec, map[string][]task.PackageSpec) {
	nodeSet := toSet(nodeFilter)
	pkgSet := toSet(pkgFilter)

	var filteredHosts []task.HostSpec
	filteredPackages := make(map[string][]task.PackageSpec, len(hosts))
	for _, h := range hosts {
		if len(nodeSet) > 0 && !nodeSet[h.Name] {
			continue
		}
		filteredHosts = append(filteredHosts, h)

		pkgs := packages[h.Name]
		if len(pkgSet) > 0 {
			var kept []task.PackageSpec
			for _, p := range pkgs {
				if pkgSet[p.Name] {
					kept = append(kept, p)
				}
			}
			pkgs = kept
		}
		filteredPackages[h.Name] = pkgs
	}
	return filteredHosts, filteredPackages
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func hostNames(hosts []task.HostSpec) []string {
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name
	}
	return names
}

func confirm(cmd *cobra.Command, hosts []task.HostSpec, packages map[string][]task.PackageSpec) bool {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "About to provision %d host(s):\n", len(hosts))
	for _, h := range hosts {
		names := make([]string, 0, len(packages[h.Name]))
		for _, p := range packages[h.Name] {
			names = append(names, fmt.Sprintf("%s@%s", p.Name, p.Version))
		}
		fmt.Fprintf(out, "  - %s (%s): %s\n", h.Name, h.Host, strings.Join(names, ", "))
	}
	fmt.Fprint(out, "Continue? [y/N] ")

	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

func writeInventorySnapshot(runDir string, doc *config.Document) error {
	f, err := os.Create(filepath.Join(runDir, "inventory.yml"))
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	defer enc.Close()
	return enc.Encode(doc)
}

func printSummary(out io.Writer, stats task.Stats, cancelled bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Total", "Completed", "Failed", "Skipped"})
	tw.AppendRow(table.Row{stats.Total, colorize(stats.Completed, color.FgGreen), colorize(stats.Failed, color.FgRed), colorize(stats.Skipped, color.FgYellow)})
	tw.Render()
	if cancelled {
		fmt.Fprintln(out, color.YellowString("run cancelled"))
	}
}

func colorize(n int, attr color.Attribute) string {
	return color.New(attr).Sprint(n)
}

func exitCode(stats task.Stats, cancelled bool) int {
	if cancelled {
		return exitCancelled
	}
	if stats.Completed == stats.Total {
		return exitSuccess
	}
	if stats.Completed == 0 {
		return exitAllHostsUnreachable
	}
	return exitTaskFailures
}

func closeAll(closers []func()) {
	for _, c := range closers {
		c()
	}
}
