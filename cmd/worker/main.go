package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/docuchat/docuchat/internal/ai"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/db"
	"github.com/docuchat/docuchat/internal/index"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/project"
	"github.com/docuchat/docuchat/internal/store/rabbitmq"
)

// Builds can spend a long time fetching and embedding, but not forever.
const buildTimeout = 15 * time.Minute

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

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

	backend, err := newBackendRegistry(cfg).Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai backend: %v", err)
	}
	builder := index.NewBuilder(ingest.NewHTTPFetcher(), backend, prepo, cfg.ArtifactDir, cfg.ChunkSize, cfg.ChunkOverlap)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.BuildJobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.ProjectID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleBuild(ctx, builder, m.ProjectID); err != nil {
					log.Printf("worker=%d build project=%s failed cost=%s err=%v", workerID, m.ProjectID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}
				log.Printf("worker=%d build project=%s done cost=%s", workerID, m.ProjectID, time.Since(start))

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed project=%s err=%v", workerID, m.ProjectID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleBuild(ctx context.Context, builder *index.Builder, projectID string) error {
	bctx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	_, err := builder.Build(bctx, projectID)
	return err
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
