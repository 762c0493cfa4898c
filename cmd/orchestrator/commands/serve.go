package commands

import (
	"github.com/spf13/cobra"

	"github.com/chainsafe/anchor-orchestrator/pkg/app"
	"github.com/chainsafe/anchor-orchestrator/pkg/app/api"
	apprelay "github.com/chainsafe/anchor-orchestrator/pkg/app/relay"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the controller API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var runner app.Runner = api.NewServer(cfg)
			return runner.Run()
		},
	}
}

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Serve the on/off-ramp conversion relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var runner app.Runner = apprelay.NewServer(cfg)
			return runner.Run()
		},
	}
}
