// Command image-janitor retries releasing images whose release failed while serving
// a request.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/config"
	"storefront/events"
	"storefront/imagestore"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL is required")
	}

	backend, err := imagestore.NewBackend(cfg)
	if err != nil {
		log.Fatalf("Image backend: %v", err)
	}
	gateway := imagestore.NewGateway(backend, cfg.ImageTimeout, nil)

	// requeues go through their own pool
	pool, err := events.NewChannelPool(cfg.RabbitMQURL, cfg.ReleaseQueue, 1)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer pool.Close()

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := &events.Janitor{
		Releaser:      gateway,
		Requeuer:      events.NewPublisher(pool, cfg.ReleaseQueue),
		MaxAttempts:   cfg.JanitorMaxAttempts,
		RetryDelay:    cfg.JanitorRetryDelay,
		MaxRetryDelay: cfg.JanitorMaxRetryDelay,
	}

	var wg sync.WaitGroup
	for i := 1; i <= cfg.JanitorWorkers; i++ {
		ch, err := conn.Channel()
		if err != nil {
			log.Fatalf("Failed to open channel for worker %d: %v", i, err)
		}
		if err := events.DeclareQueue(ch, cfg.ReleaseQueue); err != nil {
			log.Fatalf("Worker %d: %v", i, err)
		}
		wg.Add(1)
		go func(id int, ch *amqp.Channel) {
			defer ch.Close()
			if err := janitor.Run(ctx, ch, cfg.ReleaseQueue, fmt.Sprintf("janitor-%d", id), &wg); err != nil {
				log.Printf("Worker %d failed: %v", id, err)
			}
		}(i, ch)
	}
	log.Printf("Image janitor started with %d workers on %s", cfg.JanitorWorkers, cfg.ReleaseQueue)

	<-ctx.Done()
	log.Println("Received shutdown signal, stopping workers...")
	conn.Close()
	wg.Wait()
	log.Println("Image janitor shut down gracefully")
}
