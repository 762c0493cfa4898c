package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
	"github.com/chainsafe/anchor-orchestrator/pkg/party"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Key material helpers",
	}
	cmd.AddCommand(mnemonicCmd(), deriveCmd())
	return cmd
}

func mnemonicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mnemonic",
		Short: "Print a new 24-word mnemonic for workflow.mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := keys.NewMnemonic()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func deriveCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the party addresses derived for a run ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Workflow.Mnemonic == "" {
				return fmt.Errorf("workflow.mnemonic is not configured")
			}
			id, err := uuid.Parse(runID)
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			seed, err := keys.MasterSeedFromMnemonic(cfg.Workflow.Mnemonic, cfg.Workflow.MnemonicPassphrase)
			if err != nil {
				return err
			}
			reg, err := party.NewDerivedRegistry(seed, id.String())
			if err != nil {
				return err
			}
			for _, p := range reg.Public() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-13s %s\n", p.Role, p.Address)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run ID to derive parties for")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}
