package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/internal/types"
	"github.com/xhad/askpdf/pkg/config"
	"github.com/xhad/askpdf/pkg/extract"
	"github.com/xhad/askpdf/pkg/llm"
	"github.com/xhad/askpdf/pkg/processor"
	"github.com/xhad/askpdf/pkg/rag"
	"github.com/xhad/askpdf/pkg/store"
	"github.com/xhad/askpdf/server"
)

func main() {
	var configPath string
	var serve bool
	var provider string
	var model string
	var topK int

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP server instead of the interactive CLI")
	flag.StringVar(&provider, "provider", "", "LLM provider: openai, anthropic or ollama")
	flag.StringVar(&model, "model", "", "Chat model to use")
	flag.IntVar(&topK, "top-k", 0, "Number of chunks to retrieve per question")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Flags win over the config file.
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if topK != 0 {
		cfg.Retrieval.TopK = topK
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, serve, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, serve bool, files []string) error {
	chunker, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize processor: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:       cfg.Embedding.Provider,
		Model:          cfg.Embedding.Model,
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		BatchSize:      cfg.Embedding.BatchSize,
		RateLimit:      cfg.Embedding.RateLimit,
		RequestTimeout: time.Duration(cfg.Embedding.RequestTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		RequestTimeout: time.Duration(cfg.LLM.RequestTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	vectorStore, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	ingestor := rag.NewIngestor(&chunker, embedder, vectorStore)
	retriever := rag.NewRetriever(embedder, vectorStore, chatEngine)

	if serve {
		srv := server.New(server.Config{
			Host:        cfg.Server.Host,
			Port:        cfg.Server.Port,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			DefaultTopK: cfg.Retrieval.TopK,
		}, ingestor, retriever)
		return srv.ListenAndServe()
	}

	ctx := context.Background()

	for _, path := range files {
		if err := ingestFile(ctx, ingestor, path); err != nil {
			return err
		}
	}

	return chatLoop(ctx, retriever, cfg.Retrieval.TopK)
}

func newStore(cfg *config.Config) (types.VectorStore, error) {
	if cfg.Store.Backend == "pgvector" {
		return store.NewPgVectorStore(context.Background(), store.PgVectorStoreConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
		})
	}
	return store.NewMemoryStore(store.MemoryStoreConfig{}), nil
}

func ingestFile(ctx context.Context, ingestor *rag.Ingestor, path string) error {
	color.Blue("\nIngesting %s", path)

	spinner := getSpinner("Extracting text...")
	pages, meta, err := extractFile(path)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("failed to extract %s: %v", path, err)
	}
	color.Green("✓ Extracted %d pages", len(pages))

	spinner = getSpinner("Embedding and storing chunks...")
	result, err := ingestor.Ingest(ctx, pages, *meta)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %v", path, err)
	}

	color.Green("✓ Stored %d chunks as %s", result.NumChunks, result.DocumentID)
	return nil
}

func extractFile(path string) ([]models.Page, *models.DocumentMeta, error) {
	if !extract.IsHTML(path) {
		return extract.ExtractPDFFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return extract.ExtractHTML(f, filepath.Base(path))
}

func chatLoop(ctx context.Context, retriever *rag.Retriever, topK int) error {
	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		spinner := getSpinner("Thinking...")
		answer, err := retriever.Answer(ctx, question, topK, "")
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", answer.Answer)

		if len(answer.Sources) > 0 {
			fmt.Println()
			for i, src := range answer.Sources {
				color.Yellow("  [%d] page %d (score %.3f)", i+1, src.PageNumber, src.RelevanceScore)
			}
		}
	}

	return scanner.Err()
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
