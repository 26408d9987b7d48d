package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/agent"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/conversation"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/embedding"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/gateway"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/hooks"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/keystore"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/store"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the siffsd server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			hookMgr := hooks.NewManager(log)

			opts := []gateway.ServerOption{
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(hookMgr),
			}

			// Chunk store (SQLite or in-memory)
			var docs store.DocumentStore
			if cfg.Store.Driver == "memory" {
				docs = store.NewMemoryDocumentStore()
				log.Info().Msg("using in-memory chunk store")
			} else {
				dbPath := cfg.Store.Path
				if dbPath == "" {
					dbPath = paths.DB
				}
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				docs = store.NewSQLiteDocumentStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite chunk store")
			}

			ws, err := workspace.NewManager(paths.Workspace, paths.Mappings, cfg.Workspace, hookMgr, log)
			if err != nil {
				return fmt.Errorf("opening workspace: %w", err)
			}
			opts = append(opts, gateway.WithWorkspace(ws))

			keys := keystore.New(paths.Keys, log)
			opts = append(opts, gateway.WithKeys(keys))

			convs := conversation.NewCache(paths.Conversations, cfg.Agent.HistoryLimit, hookMgr, log)
			opts = append(opts, gateway.WithConversations(convs))

			disp := writer.NewDispatcher(0, hookMgr, log)
			opts = append(opts, gateway.WithWriter(disp))

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var vectors *vector.Service
			emb, err := embedding.NewFromConfig(cfg.Embedding, cfg.Providers)
			if err != nil {
				log.Warn().Err(err).Msg("embedding client unavailable, indexing and search disabled")
			} else {
				vectors = vector.NewService(docs, vector.NewEmbedder(emb, cfg.Embedding.BatchSize, log), cfg.Retrieval, hookMgr, log)
				n, err := vectors.Reload(ctx)
				if err != nil {
					return fmt.Errorf("loading vector index: %w", err)
				}
				log.Info().Int("chunks", n).Msg("vector index loaded")
				opts = append(opts, gateway.WithVectors(vectors))
			}

			registry := llm.NewRegistryFromConfig(cfg.Providers, log)
			providers := registry.List()
			if len(providers) > 0 {
				log.Info().Strs("providers", providers).Msg("LLM providers available")

				model, fallbacks := resolveModel(cfg, providers)

				tools := agent.NewToolRegistry()
				tools.Register(agent.NewListFilesTool(ws))
				tools.Register(agent.NewApplyEditsTool(disp))
				if vectors != nil {
					tools.Register(agent.NewSearchChunksTool(vectors))
				}

				var runnerOpts []agent.RunnerOption
				if vectors != nil {
					runnerOpts = append(runnerOpts, agent.WithRetriever(vectors))
				}

				runner := agent.NewRunner(
					agent.RunnerConfig{
						Model:         model,
						Fallbacks:     fallbacks,
						MaxTokens:     cfg.Agent.MaxTokens,
						Temperature:   cfg.Agent.Temperature,
						MaxIterations: cfg.Agent.MaxIterations,
						HistoryLimit:  cfg.Agent.HistoryLimit,
						ContextTopK:   cfg.Retrieval.TopK,
						ExtraPrompt:   cfg.Agent.SystemPrompt,
					},
					registry,
					convs,
					tools,
					keys.Resolver(),
					log,
					runnerOpts...,
				)
				opts = append(opts, gateway.WithRunner(runner))
			} else {
				log.Warn().Msg("no LLM providers configured, chat will be unavailable")
			}

			srv := gateway.New(cfg, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&host, "host", "", "override bind host")

	return cmd
}

// resolveModel picks the primary chat model and the fallback order from the
// configured providers.
func resolveModel(cfg config.Config, providers []string) (string, []string) {
	model := cfg.Agent.Model
	if model == "" {
		model = cfg.Providers.Default
	}
	if model == "" && len(providers) > 0 {
		model = providers[0]
	}

	var fallbacks []string
	for _, p := range providers {
		if p != model {
			fallbacks = append(fallbacks, p)
		}
	}
	return model, fallbacks
}
