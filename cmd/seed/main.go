// Command seed publishes wire-format documents onto the ingest topic, one
// JSON document per input line. It is the producer-side counterpart to the
// indexer, used to load fixtures and backfill an index.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tessera-search/tessera/internal/document"
	"github.com/tessera-search/tessera/internal/ingest"
	"github.com/tessera-search/tessera/pkg/config"
	"github.com/tessera-search/tessera/pkg/kafka"
	"github.com/tessera-search/tessera/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	inputPath := flag.String("file", "-", "documents file, one JSON document per line (- for stdin)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("seed")

	input := io.Reader(os.Stdin)
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			return fmt.Errorf("opening documents file: %w", err)
		}
		defer f.Close()
		input = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	publisher := ingest.NewPublisher(producer)

	published, skipped := 0, 0
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		// Validate up front so a bad line is reported with its number
		// instead of poisoning the topic.
		doc, err := document.Decode(raw)
		if err != nil {
			log.Warn("skipping invalid document", "line", line, "error", err)
			skipped++
			continue
		}
		if err := publisher.Publish(ctx, doc); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading documents: %w", err)
	}

	log.Info("seed finished", "published", published, "skipped", skipped)
	return nil
}
