package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AvengeMedia/dankcenter/internal/config"
	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/osinfo"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/server"
	"github.com/AvengeMedia/dankcenter/internal/server/ops"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
	"github.com/AvengeMedia/dankcenter/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	settings   config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "dankcenter",
	Short: "DankCenter package operations",
	Long:  "DankCenter installs and removes applications from the official repositories,\nthe AUR, Flathub, AppImages and install scripts while showing their live output.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader(configPath).Load()
		if err != nil {
			return err
		}
		settings = cfg

		log.SetLevel(cfg.LogLevel)
		if verbose {
			log.SetLevel("debug")
		}
		return nil
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DankCenter %s\n", Version)
		if info, err := osinfo.Detect(afero.NewOsFs()); err == nil {
			fmt.Printf("Running on %s\n", info)
		}
	},
}

var installCmd = &cobra.Command{
	Use:   "install <id>",
	Short: "Install an application",
	Long:  "Install an application from the given source, streaming the package manager output",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(cmd, policy.Install, args[0])
	},
}

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <id>",
	Aliases: []string{"remove"},
	Short:   "Uninstall an application",
	Long:    "Uninstall an application that was installed from the given source",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperation(cmd, policy.Uninstall, args[0])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Check whether an application is installed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		op, err := operationFromFlags(cmd, policy.Install, args[0])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		a := newApp(settings)
		defer a.Close()

		if a.prober.Installed(cmd.Context(), op.Source, op.ID, op.Name) {
			fmt.Printf("%s (%s) is installed\n", op.Name, op.Source.Label())
			return
		}
		fmt.Printf("%s (%s) is not installed\n", op.Name, op.Source.Label())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operations API server",
	Long:  "Serve install and uninstall operations over a Unix socket for the shell front end",
	Run: func(cmd *cobra.Command, args []string) {
		if err := startServer(); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	},
}

func operationFromFlags(cmd *cobra.Command, kind policy.OperationKind, id string) (tui.Operation, error) {
	sourceFlag, _ := cmd.Flags().GetString("source")
	source, err := policy.ParseSource(sourceFlag)
	if err != nil {
		return tui.Operation{}, err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = id
	}

	return tui.Operation{Kind: kind, Source: source, ID: id, Name: name}, nil
}

func runOperation(cmd *cobra.Command, kind policy.OperationKind, id string) {
	op, err := operationFromFlags(cmd, kind, id)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	a := newApp(settings)
	defer a.Close()

	plain, _ := cmd.Flags().GetBool("plain")

	var (
		outcome  policy.Outcome
		streamed bool
	)
	if plain {
		outcome, streamed = runPlain(cmd.Context(), a, op)
	} else {
		outcome = runInteractive(a, op)
	}

	if !outcome.Success {
		// a failed child's log is the message, and plain mode already printed it
		if streamed && outcome != supervisor.Cancelled() {
			fmt.Fprintf(os.Stderr, "Failed to %s %s\n", op.Kind, op.Name)
		} else {
			fmt.Fprintln(os.Stderr, outcome.Message)
		}
		a.Close()
		os.Exit(1)
	}
	fmt.Println(outcome.Message)
}

func runInteractive(a *app, op tui.Operation) policy.Outcome {
	restore := logToFile()
	defer restore()

	model := tui.NewModel(a.supervisor, op, settings.PollInterval, a.notifier)
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	// a spawn still in flight belongs to nobody once the view is gone
	model.Shutdown()
	if err != nil {
		return policy.Outcome{Success: false, Message: fmt.Sprintf("Error running program: %v", err)}
	}

	if m, ok := final.(tui.Model); ok && m.Outcome() != nil {
		return *m.Outcome()
	}
	return supervisor.Cancelled()
}

func startServer() error {
	a := newApp(settings)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, ops.NewManager(a.supervisor, a.prober, a.notifier))
}
