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

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
	"github.com/xhad/pdfchat/pkg/blob"
	"github.com/xhad/pdfchat/pkg/chunker"
	cfgPkg "github.com/xhad/pdfchat/pkg/config"
	"github.com/xhad/pdfchat/pkg/docstore"
	"github.com/xhad/pdfchat/pkg/llm"
	"github.com/xhad/pdfchat/pkg/pipeline"
	"github.com/xhad/pdfchat/pkg/store"
)

type cliConfig struct {
	configPath string
	filePath   string
	userID     string
	chat       bool
}

func main() {
	var cli cliConfig

	flag.StringVar(&cli.configPath, "config", "", "Path to config file")
	flag.StringVar(&cli.filePath, "file", "", "Document to ingest (pdf, html, txt, md)")
	flag.StringVar(&cli.userID, "user", "cli", "Owner id for ingested documents")
	flag.BoolVar(&cli.chat, "chat", true, "Start an interactive chat after ingestion")
	flag.Parse()

	if err := run(cli); err != nil {
		log.Fatal(err)
	}
}

func contentTypeFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".html", ".htm":
		return "text/html", nil
	case ".txt":
		return "text/plain", nil
	case ".md":
		return "text/markdown", nil
	default:
		return "", fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
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

func run(cli cliConfig) error {
	ctx := context.Background()

	cfg, err := cfgPkg.LoadConfig(cli.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	client, err := llm.NewClient(llm.ClientConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return err
	}

	embedder := llm.NewEmbedder(client, llm.EmbedderConfig{
		Model:     cfg.LLM.EmbeddingModel,
		Dimension: cfg.Database.VectorDim,
	})

	chatEngine, err := llm.NewChatEngine(client, llm.ChatConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}

	var docs types.DocumentStore
	var index types.VectorIndex
	if cfg.Database.URL != "" {
		pgDocs, err := docstore.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pgDocs.Close()

		vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
		})
		if err != nil {
			return err
		}
		defer vectorStore.Close()

		docs = pgDocs
		index = vectorStore
	} else {
		color.Yellow("No database URL configured, using in-memory stores")
		docs = docstore.NewMemoryStore()
		index = store.NewMemoryIndex()
	}

	blobs, err := blob.New(blob.Config{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.Bucket,
		Region:    cfg.Blob.Region,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		return err
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return err
	}

	ch, err := chunker.New(chunker.Config{
		ChunkSize: cfg.Processor.ChunkSize,
		Overlap:   cfg.Processor.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	writer := store.NewWriter(index, cfg.Database.BatchSize, cfg.Database.VectorDim)
	ingestor := pipeline.NewIngestor(docs, blobs, ch, embedder, writer)
	query := pipeline.NewQuery(docs, embedder, writer, chatEngine, pipeline.QueryConfig{
		TopK:           cfg.Query.TopK,
		ScoreThreshold: float32(cfg.Query.ScoreThreshold),
	})

	var documentID string
	if cli.filePath != "" {
		documentID, err = ingest(ctx, cli, ingestor, blobs)
		if err != nil {
			return err
		}
	}

	if cli.chat {
		return chatLoop(ctx, query, cli.userID, documentID)
	}
	return nil
}

func ingest(ctx context.Context, cli cliConfig, ingestor *pipeline.Ingestor, blobs types.BlobStore) (string, error) {
	contentType, err := contentTypeFor(cli.filePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(cli.filePath)
	if err != nil {
		return "", err
	}

	color.Blue("\nIngesting %s\n", cli.filePath)

	doc, _, err := ingestor.CreateUpload(ctx, cli.userID, filepath.Base(cli.filePath), contentType)
	if err != nil {
		return "", err
	}
	if err := blobs.Put(ctx, doc.BlobKey, data, contentType); err != nil {
		return "", err
	}

	spinner := getSpinner("Extracting text...")
	processed, err := ingestor.FinalizeUpload(ctx, doc.ID, cli.userID)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return "", err
	}
	color.Green("✓ Extracted %d characters (%d bytes)\n", len(processed.ExtractedText), processed.Size)

	spinner = getSpinner("Generating embeddings...")
	chunkCount, err := ingestor.GenerateEmbeddings(ctx, doc.ID, cli.userID)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return "", err
	}
	color.Green("✓ Embedded %d chunks\n", chunkCount)

	spinner = getSpinner("Uploading to vector index...")
	written, err := ingestor.UploadToIndex(ctx, doc.ID, cli.userID)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return "", err
	}
	color.Green("✓ Stored %d vectors\n", written)

	return doc.ID, nil
}

func chatLoop(ctx context.Context, query *pipeline.Query, userID, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("no document to chat about; pass -file")
	}

	color.Cyan("\nChat with your document (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := scanner.Text()
		if strings.ToLower(question) == "exit" {
			break
		}

		assistantPrompt("Assistant: ")
		for event := range query.Answer(ctx, documentID, userID, question) {
			switch event.Type {
			case models.EventToken:
				fmt.Print(event.Text)
			case models.EventError:
				color.Red("\nError: %s", event.Text)
			}
		}
		fmt.Print("\n")
	}

	return scanner.Err()
}
