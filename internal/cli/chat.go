package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/agent"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/embedding"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/keystore"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/store"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

func newChatCmd() *cobra.Command {
	var (
		model    string
		filePath string
		user     string
		stream   bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a one-shot message to the agent and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			registry := llm.NewRegistryFromConfig(cfg.Providers, log)
			providers := registry.List()
			if len(providers) == 0 {
				return fmt.Errorf("no LLM providers configured; set an API key with `siffsd config set providers.openai.apiKey ...` or OPENAI_API_KEY")
			}

			defaultModel, fallbacks := resolveModel(cfg, providers)
			if model == "" {
				model = defaultModel
			}

			keys := keystore.New(paths.Keys, log)

			// Planned edits are recorded and printed, not dispatched. There
			// is no desktop client on this path to apply them.
			recorder := writer.NewRecorder()

			tools := agent.NewToolRegistry()
			tools.Register(agent.NewApplyEditsTool(recorder))

			ws, err := workspace.NewManager(paths.Workspace, paths.Mappings, cfg.Workspace, nil, log)
			if err == nil {
				tools.Register(agent.NewListFilesTool(ws))
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var runnerOpts []agent.RunnerOption
			if emb, err := embedding.NewFromConfig(cfg.Embedding, cfg.Providers); err == nil && cfg.Store.Driver != "memory" {
				dbPath := cfg.Store.Path
				if dbPath == "" {
					dbPath = paths.DB
				}
				if db, err := store.Open(dbPath, log); err == nil {
					defer db.Close()
					docs := store.NewSQLiteDocumentStore(db)
					vectors := vector.NewService(docs, vector.NewEmbedder(emb, cfg.Embedding.BatchSize, log), cfg.Retrieval, nil, log)
					if _, err := vectors.Reload(ctx); err == nil {
						tools.Register(agent.NewSearchChunksTool(vectors))
						runnerOpts = append(runnerOpts, agent.WithRetriever(vectors))
					}
				}
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
				agent.NewMemorySessionStore(),
				tools,
				keys.Resolver(),
				log,
				runnerOpts...,
			)

			req := agent.Request{
				UserID:       user,
				DocumentPath: filePath,
				Query:        message,
				Model:        model,
			}

			var result *agent.Result
			if stream {
				result, err = runner.RunStream(ctx, req, func(evt llm.StreamEvent) {
					if evt.Type == "delta" {
						fmt.Print(evt.Content)
					}
				})
				if err != nil {
					return err
				}
				fmt.Println()
			} else {
				result, err = runner.Run(ctx, req)
				if err != nil {
					return err
				}
				fmt.Println(result.Response)
			}

			if result.Model != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[route=%s model=%s tokens=%d+%d]\n",
					result.Route, result.Model, result.Usage.InputTokens, result.Usage.OutputTokens)
			}

			for _, batch := range recorder.Batches() {
				fmt.Fprintf(cmd.ErrOrStderr(), "planned edit batch %s: %d op(s) for %s (not applied)\n",
					batch.ID, len(batch.Ops), batch.DocumentPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "chat model to use")
	cmd.Flags().StringVar(&filePath, "file", "", "document path for context")
	cmd.Flags().StringVar(&user, "user", "local", "user ID for session and key lookup")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the response")

	return cmd
}
