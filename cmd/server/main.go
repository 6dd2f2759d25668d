package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/xhad/pdfchat/internal/types"
	"github.com/xhad/pdfchat/pkg/blob"
	"github.com/xhad/pdfchat/pkg/chunker"
	cfgPkg "github.com/xhad/pdfchat/pkg/config"
	"github.com/xhad/pdfchat/pkg/docstore"
	"github.com/xhad/pdfchat/pkg/llm"
	"github.com/xhad/pdfchat/pkg/pipeline"
	"github.com/xhad/pdfchat/pkg/store"
	"github.com/xhad/pdfchat/server"
)

func main() {
	var configPath string
	var port string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&port, "port", "", "HTTP listen port (overrides config)")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		os.Exit(1)
	}
	if port != "" {
		cfg.Server.Port = port
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *cfgPkg.Config) error {
	ctx := context.Background()

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

	// Without a database URL everything runs in process, which is enough for
	// local development against a real LLM.
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
		log.Print("No database URL configured, using in-memory stores")
		docs = docstore.NewMemoryStore()
		index = store.NewMemoryIndex()
	}

	var blobs types.BlobStore
	if cfg.Blob.Endpoint != "" {
		blobStore, err := blob.New(blob.Config{
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
		if err := blobStore.EnsureBucket(ctx); err != nil {
			return err
		}
		blobs = blobStore
	} else {
		return fmt.Errorf("blob endpoint is required; set blob.endpoint or BLOB_ENDPOINT")
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

	srv := server.NewServer(ingestor, query, server.NewHeaderAuth(cfg.Server.AuthHeader))

	log.Printf("Starting server on port %s", cfg.Server.Port)
	return http.ListenAndServe(":"+cfg.Server.Port, srv.Handler())
}
