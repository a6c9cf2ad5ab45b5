package main

import (
	"context"
	"log"
	"strings"

	"github.com/docuchat/docuchat/internal/ai"
	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/db"
	"github.com/docuchat/docuchat/internal/httpapi"
	"github.com/docuchat/docuchat/internal/httpapi/handlers"
	"github.com/docuchat/docuchat/internal/index"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/project"
	"github.com/docuchat/docuchat/internal/query"
	"github.com/docuchat/docuchat/internal/store/rabbitmq"
	"github.com/docuchat/docuchat/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	prepo := project.NewRepo(gdb)
	psvc := project.NewService(prepo)
	csvc := chat.NewService(chat.NewRepo(gdb), prepo)

	backend, err := newBackendRegistry(cfg).Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai backend: %v", err)
	}

	// Query embeddings optionally go through redis so repeated questions
	// don't re-hit the provider.
	var queryEmbedder ai.Embedder = backend
	if cfg.RedisAddr != "" {
		store := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.EmbedCacheTTL)
		queryEmbedder = &redisstore.CachedEmbedder{Inner: backend, Model: embedModelFor(cfg), Store: store}
	}

	builder := index.NewBuilder(ingest.NewHTTPFetcher(), backend, prepo, cfg.ArtifactDir, cfg.ChunkSize, cfg.ChunkOverlap)
	cache := index.NewCache(cfg.IndexCacheCapacity, cfg.ArtifactDir, prepo, builder)
	builder.OnSwap(cache.Invalidate)

	retriever := query.NewRetriever(cache, queryEmbedder, cfg.RetrieveTopK)
	orch := query.NewOrchestrator(csvc, retriever, query.NewGenerator(backend), cfg.ChatContextWindowSize)

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	h := handlers.NewHandler(psvc, csvc, orch, cache, pub)
	r := httpapi.NewRouter(h)

	log.Printf("api listening addr=%s db=%s backend=%s", cfg.HTTPAddr, cfg.DBDriver, cfg.AIProvider)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}

// newBackendRegistry registers every backend the config can select.
func newBackendRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(_ context.Context, model string) (ai.Backend, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		p := ai.NewOllamaProvider(cfg.OllamaBaseURL, m, cfg.OllamaEmbedModel)
		p.Client.Timeout = cfg.ProviderTimeout
		return p, nil
	})
	reg.Register("openai", func(_ context.Context, model string) (ai.Backend, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		p := ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m, cfg.OpenAIEmbedModel)
		p.Client.Timeout = cfg.ProviderTimeout
		return p, nil
	})
	return reg
}

// embedModelFor names the embedding model for cache keying.
func embedModelFor(cfg config.Config) string {
	if strings.ToLower(cfg.AIProvider) == "openai" {
		return cfg.OpenAIEmbedModel
	}
	return cfg.OllamaEmbedModel
}
