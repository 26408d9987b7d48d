package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/keystore"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/version"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show siffsd status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("siffsd %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:    %s\n", paths.Config)
			fmt.Printf("Data:      %s\n", paths.Base)
			fmt.Printf("Workspace: %s\n", paths.Workspace)
			fmt.Printf("Logs:      %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:    error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Server:    host=%s port=%d auth=%s\n",
				cfg.Server.Host, cfg.Server.Port, cfg.Server.Auth.Mode)
			fmt.Printf("Store:     driver=%s\n", cfg.Store.Driver)
			fmt.Printf("Embedding: provider=%s model=%s dims=%d\n",
				cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions)
			fmt.Printf("Retrieval: topK=%d minScore=%.2f\n",
				cfg.Retrieval.TopK, cfg.Retrieval.MinScore)

			registry := llm.NewRegistryFromConfig(cfg.Providers, log)
			providers := registry.List()
			if len(providers) > 0 {
				fmt.Printf("LLM:       %s\n", strings.Join(providers, ", "))
			} else {
				fmt.Println("LLM:       (none configured)")
			}

			model := cfg.Agent.Model
			if model == "" {
				model = cfg.Providers.Default
			}
			fmt.Printf("Agent:     model=%s maxIterations=%d historyLimit=%d\n",
				model, cfg.Agent.MaxIterations, cfg.Agent.HistoryLimit)

			// Tracked workspace files
			ws, err := workspace.NewManager(paths.Workspace, paths.Mappings, cfg.Workspace, nil, log)
			if err == nil {
				fmt.Printf("Files:     %d tracked\n", ws.Count())
			}

			// Per-user stored API keys
			keys := keystore.New(paths.Keys, log)
			if users := keys.Users(); len(users) > 0 {
				fmt.Printf("Keys:      %d user(s): %s\n", len(users), strings.Join(users, ", "))
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
