package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chainsafe/anchor-orchestrator/pkg/app/orchestrator"
	"github.com/chainsafe/anchor-orchestrator/pkg/config"
	"github.com/chainsafe/anchor-orchestrator/pkg/controller"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
	"github.com/chainsafe/anchor-orchestrator/pkg/workflow"
)

// Summary is the report printed after a run.
type Summary struct {
	Run     *workflow.Run        `json:"run,omitempty" yaml:"run,omitempty"`
	Parties []party.Info         `json:"parties" yaml:"parties"`
	Events  []workflow.StepEvent `json:"events" yaml:"events"`
	Error   string               `json:"error,omitempty" yaml:"error,omitempty"`
}

type runOptions struct {
	amount      string
	repeatSend  string
	reverseSend string
	roundTrip   string
	output      string
}

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one workflow run and print a summary",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if opts.output != "yaml" && opts.output != "json" {
				return fmt.Errorf("unsupported output %q (yaml or json)", opts.output)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.amount, "amount", "a", "10", "USD amount to transfer")
	cmd.Flags().StringVar(&opts.repeatSend, "repeat-send", "", "after the run, send this amount again to the recipient")
	cmd.Flags().StringVar(&opts.reverseSend, "reverse-send", "", "after the run, send this amount back to the intermediary")
	cmd.Flags().StringVar(&opts.roundTrip, "round-trip", "", "after the run, swap this amount to XLM and back")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "yaml", "summary format: yaml or json")
	return cmd
}

func execute(parent context.Context, cfg *config.Config, opts runOptions, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	components, err := orchestrator.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("Failed to release components", zap.Error(err))
		}
	}()

	runErr := drive(components.Controller, opts)

	st := components.Controller.Status()
	summary := Summary{
		Run:     st.Run,
		Parties: components.Controller.Parties(),
		Events:  components.Controller.Events(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := writeSummary(out, opts.output, summary); err != nil {
		return err
	}
	return runErr
}

// commander is the controller surface the run command drives.
type commander interface {
	Start(amount string) error
	Do(cmd controller.Command, amount string) error
}

func drive(c commander, opts runOptions) error {
	if err := c.Start(opts.amount); err != nil {
		return err
	}
	for _, f := range []struct {
		cmd    controller.Command
		amount string
	}{
		{controller.CommandRepeatSend, opts.repeatSend},
		{controller.CommandReverseSend, opts.reverseSend},
		{controller.CommandRoundTrip, opts.roundTrip},
	} {
		if f.amount == "" {
			continue
		}
		if err := c.Do(f.cmd, f.amount); err != nil {
			return fmt.Errorf("%s: %w", f.cmd, err)
		}
	}
	return nil
}

func writeSummary(w io.Writer, format string, s Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
}
