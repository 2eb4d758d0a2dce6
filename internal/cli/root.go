package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config/config.yaml"
}

// ExecuteOrchestrator запускает CLI оркестратора
func ExecuteOrchestrator() error {
	return NewOrchestratorCmd().Execute()
}

// ExecuteAgent запускает CLI агента
func ExecuteAgent() error {
	return NewAgentCmd().Execute()
}

// ExecuteMathctl запускает клиентский CLI
func ExecuteMathctl() error {
	return NewMathctlCmd().Execute()
}

func NewOrchestratorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Delayed arithmetic engine: API, scheduler and agent endpoints",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to YAML config")
	cmd.AddCommand(NewServeCmd(&configPath))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	return cmd
}
