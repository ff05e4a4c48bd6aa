// Package main provides the lexpipe CLI for the legal document ingestion
// pipeline.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/caselaw-pt/lexpipe/internal/chunk"
	"github.com/caselaw-pt/lexpipe/internal/config"
	"github.com/caselaw-pt/lexpipe/internal/embed"
	"github.com/caselaw-pt/lexpipe/internal/index"
	"github.com/caselaw-pt/lexpipe/internal/pipeline"
	"github.com/caselaw-pt/lexpipe/internal/source"
)

var (
	flagLimit int
	flagTopK  int
)

// app owns the process-wide shared resources. Expensive collaborators
// (tokenizer encoding, OpenAI client, Qdrant connection) are constructed
// once on first use and reused by every stage that needs them.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tokOnce sync.Once
	tok     chunk.Tokenizer
	tokErr  error

	embOnce sync.Once
	emb     embed.Embedder
	embErr  error

	idxOnce sync.Once
	idx     *index.QdrantIndex
	idxErr  error
}

func (a *app) tokenizer() (chunk.Tokenizer, error) {
	a.tokOnce.Do(func() {
		a.tok, a.tokErr = chunk.NewTiktokenTokenizer()
	})
	return a.tok, a.tokErr
}

func (a *app) embedder() (embed.Embedder, error) {
	a.embOnce.Do(func() {
		client, err := embed.NewClient()
		if err != nil {
			a.embErr = err
			return
		}
		a.emb = embed.NewOpenAIEmbedder(client)
	})
	return a.emb, a.embErr
}

func (a *app) vectorIndex() (index.VectorIndex, error) {
	a.idxOnce.Do(func() {
		a.idx, a.idxErr = index.NewQdrantIndex(a.cfg.QdrantHost, a.cfg.QdrantPort, a.cfg.Collection, embed.Dimension)
	})
	if a.idxErr != nil {
		return nil, a.idxErr
	}
	return a.idx, nil
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	a := &app{cfg: config.FromEnv(), logger: logger}

	rootCmd := &cobra.Command{
		Use:   "lexpipe",
		Short: "Legal document ingestion pipeline",
		Long:  "Fetches legal documents, extracts and chunks their text, computes embeddings and loads them into the vector index.",
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download new documents from all sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pipeline.New(a.cfg, defaultAdapters(a.logger), nil, nil, nil, a.logger)
			n, err := p.Fetch(cmd.Context(), flagLimit)
			if err != nil {
				return err
			}
			printFetchResult(n)
			return nil
		},
	}
	fetchCmd.Flags().IntVar(&flagLimit, "limit", 40, "maximum documents to fetch per source")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Convert raw documents to normalized text",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pipeline.New(a.cfg, nil, nil, nil, nil, a.logger)
			n, err := p.Extract()
			if err != nil {
				return err
			}
			fmt.Printf("Extracted %d documents\n", n)
			return nil
		},
	}

	chunkCmd := &cobra.Command{
		Use:   "chunk",
		Short: "Split normalized text into token-bounded chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.tokenizer()
			if err != nil {
				return err
			}
			p := pipeline.New(a.cfg, nil, tok, nil, nil, a.logger)
			n, err := p.Chunk()
			if err != nil {
				return err
			}
			fmt.Printf("Created %d chunks\n", n)
			return nil
		},
	}

	embedCmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute embeddings for pending chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder, err := a.embedder()
			if err != nil {
				return err
			}
			p := pipeline.New(a.cfg, nil, nil, embedder, nil, a.logger)
			n, err := p.Embed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Embedded %d chunks\n", n)
			return nil
		},
	}

	upsertCmd := &cobra.Command{
		Use:   "upsert",
		Short: "Load pending embeddings into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.vectorIndex()
			if err != nil {
				return err
			}
			p := pipeline.New(a.cfg, nil, nil, nil, idx, a.logger)
			n, err := p.Upsert(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Inserted %d entries\n", n)
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run all pipeline stages in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.tokenizer()
			if err != nil {
				return err
			}
			embedder, err := a.embedder()
			if err != nil {
				return err
			}
			idx, err := a.vectorIndex()
			if err != nil {
				return err
			}

			p := pipeline.New(a.cfg, defaultAdapters(a.logger), tok, embedder, idx, a.logger)
			result, err := p.Run(cmd.Context(), flagLimit)
			if err != nil {
				return err
			}

			printFetchResult(result.NewDocuments)
			fmt.Printf("  Extracted: %d\n", result.Extracted)
			fmt.Printf("  Chunks:    %d\n", result.Chunks)
			fmt.Printf("  Embedded:  %d\n", result.Embedded)
			fmt.Printf("  Inserted:  %d\n", result.Inserted)
			fmt.Printf("  Duration:  %s\n", result.Duration.Round(time.Second))
			return nil
		},
	}
	runCmd.Flags().IntVar(&flagLimit, "limit", 40, "maximum documents to fetch per source")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a similarity query against the vector index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder, err := a.embedder()
			if err != nil {
				return err
			}
			idx, err := a.vectorIndex()
			if err != nil {
				return err
			}

			vectors, err := embedder.Embed(cmd.Context(), []string{args[0]})
			if err != nil {
				return err
			}
			hits, err := idx.Query(cmd.Context(), vectors[0], flagTopK)
			if err != nil {
				return err
			}

			for i, hit := range hits {
				fmt.Printf("%d. %s (doc %s, score %.4f)\n", i+1, hit.ChunkID, hit.DocID, hit.Score)
				fmt.Printf("   %s\n", snippet(hit.Text, 200))
			}
			return nil
		},
	}
	searchCmd.Flags().IntVar(&flagTopK, "k", 3, "number of results to return")

	rootCmd.AddCommand(fetchCmd, extractCmd, chunkCmd, embedCmd, upsertCmd, runCmd, searchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// printFetchResult prints the machine-readable marker the daily cron job
// watches for.
func printFetchResult(newDocs int) {
	if newDocs > 0 {
		fmt.Printf("NEW_DOCUMENTS: %d\n", newDocs)
	} else {
		fmt.Println("NO_CHANGE")
	}
}

func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// defaultAdapters configures the shipped origins: the DGSI court ruling
// listings, the Tribunal Constitucional ruling pages and yearly PDF
// compilations, and the consolidated Constitution.
func defaultAdapters(logger *slog.Logger) []source.Adapter {
	dgsi := func(name, db string) source.Adapter {
		return source.NewListing(
			name,
			"https://www.dgsi.pt/"+db+".nsf/",
			"https://www.dgsi.pt",
			"OpenDocument",
			source.WithLogger(logger),
		)
	}

	adapters := []source.Adapter{
		dgsi("DGSI-STJ", "jstj"),  // Supremo Tribunal de Justiça
		dgsi("DGSI-STA", "jsta"),  // Supremo Tribunal Administrativo
		dgsi("DGSI-TRP", "jtrp"),  // Tribunal da Relação do Porto
		dgsi("DGSI-TRL", "jtrl"),  // Tribunal da Relação de Lisboa
		dgsi("DGSI-TRC", "jtrc"),  // Tribunal da Relação de Coimbra
		dgsi("DGSI-TCAS", "jtca"), // Tribunal Central Administrativo Sul
		dgsi("DGSI-TCAN", "jtcn"), // Tribunal Central Administrativo Norte

		source.NewListing(
			"TribunalConstitucional",
			"https://www.tribunalconstitucional.pt/tc/acordaos/?p=",
			"https://www.tribunalconstitucional.pt/tc/acordaos/",
			".html",
			source.WithPagination(),
			source.WithLogger(logger),
		),

		source.NewStatic("Parlamento", []source.StaticDoc{
			{URL: "https://www.parlamento.pt/Legislacao/Documents/constpt2005.pdf", Title: "Constituição da República Portuguesa"},
		}, logger),

		source.NewStatic("TC-PDF", tcYearlyPDFs(), logger),
	}
	return adapters
}

// tcYearlyPDFs probes the known naming patterns of the Tribunal
// Constitucional yearly compilations; URLs that do not exist for a given
// year are skipped at download time.
func tcYearlyPDFs() []source.StaticDoc {
	patterns := []string{
		"AcOrdaosTC%d.pdf",
		"Relatorio_de_Atividades_%d.pdf",
		"Relatorio_%d.pdf",
		"Relatorio_Atividades_TC_%d.pdf",
		"Vol_%d.pdf",
	}

	var docs []source.StaticDoc
	for year := 2000; year <= time.Now().Year(); year++ {
		for _, pattern := range patterns {
			name := fmt.Sprintf(pattern, year)
			docs = append(docs, source.StaticDoc{
				URL:   fmt.Sprintf("https://www.tribunalconstitucional.pt/tc/content/files/%d/%s", year, name),
				Title: name,
			})
		}
	}
	return docs
}
