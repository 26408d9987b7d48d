package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/embedding"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/store"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
)

func newVectorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Inspect and manage the document index",
	}

	cmd.AddCommand(newVectorsIndexCmd())
	cmd.AddCommand(newVectorsSearchCmd())
	cmd.AddCommand(newVectorsListCmd())
	cmd.AddCommand(newVectorsDeleteCmd())

	return cmd
}

// openVectors builds a vector service from the configured store and embedding
// provider. The caller must invoke the returned close function.
func openVectors(ctx context.Context) (*vector.Service, func(), error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, nil, err
	}

	emb, err := embedding.NewFromConfig(cfg.Embedding, cfg.Providers)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding client: %w", err)
	}

	var docs store.DocumentStore
	closeFn := func() {}
	if cfg.Store.Driver == "memory" {
		docs = store.NewMemoryDocumentStore()
	} else {
		dbPath := cfg.Store.Path
		if dbPath == "" {
			dbPath = paths.DB
		}
		db, err := store.Open(dbPath, log)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		closeFn = func() { db.Close() }
		docs = store.NewSQLiteDocumentStore(db)
	}

	svc := vector.NewService(docs, vector.NewEmbedder(emb, cfg.Embedding.BatchSize, log), cfg.Retrieval, nil, log)
	if _, err := svc.Reload(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("loading vector index: %w", err)
	}
	return svc, closeFn, nil
}

func newVectorsIndexCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a text or CSV file from disk",
		Long:  "Index a plain-text or CSV file. Office documents are indexed by the desktop client, which submits extracted content over the API.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := openVectors(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			doc, err := svc.IndexDocument(ctx, vector.IndexRequest{
				Path: args[0],
				Name: name,
				Text: string(data),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Indexed %s: %d chunk(s), id %s\n", doc.Name, doc.ChunkCount, doc.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for the document")
	return cmd
}

func newVectorsSearchCmd() *cobra.Command {
	var (
		topK  int
		docID string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := openVectors(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			hits, err := svc.Search(ctx, vector.SearchRequest{
				Query:      strings.Join(args, " "),
				TopK:       topK,
				DocumentID: docID,
			})
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				fmt.Println("no results")
				return nil
			}

			for _, hit := range hits {
				loc := hit.Locator
				if loc == "" {
					loc = fmt.Sprintf("chunk %d", hit.Seq)
				}
				fmt.Printf("%.3f  %s (%s)\n", hit.Score, hit.DocumentName, loc)
				fmt.Printf("       %s\n", firstLine(hit.Text, 120))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "number of results (0 uses the configured default)")
	cmd.Flags().StringVar(&docID, "doc", "", "restrict to one document ID")
	return cmd
}

func newVectorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := openVectors(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			docs, err := svc.ListDocuments(ctx)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("no documents indexed")
				return nil
			}

			for _, d := range docs {
				fmt.Printf("  %s  %-10s %4d chunk(s)  %s\n", d.ID, d.Kind, d.ChunkCount, d.Name)
			}
			return nil
		},
	}
}

func newVectorsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Remove a document and its chunks from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := openVectors(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.DeleteDocument(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted document %s\n", args[0])
			return nil
		},
	}
}

// firstLine truncates text to a single line of at most n runes.
func firstLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "…"
	}
	return s
}
