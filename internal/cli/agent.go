package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mathengine/internal/agent"
	"mathengine/internal/config"
	"mathengine/internal/grpc"
)

func NewAgentCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		power      int
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Remote worker pulling due work from the orchestrator over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Agent.OrchestratorAddr
			}
			if power <= 0 {
				power = cfg.Agent.ComputingPower
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := grpc.NewWorkClient(ctx, addr)
			if err != nil {
				return err
			}
			defer client.Close()

			return agent.New(client, power).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to YAML config")
	cmd.Flags().StringVar(&addr, "addr", "", "orchestrator gRPC address")
	cmd.Flags().IntVar(&power, "power", 0, "number of concurrent workers")
	return cmd
}
