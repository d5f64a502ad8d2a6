// Package main implements the lessonpulse binary: the learner-activity
// event pipeline with HTTP and gRPC ingress, a durable journal, and a
// Kafka-draining publisher.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lessonpulse/lessonpulse/internal/app"
	"github.com/lessonpulse/lessonpulse/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		grpcAddr    string
		brokers     string
		topic       string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for journal and dead-letter data")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address")
	flag.StringVar(&brokers, "brokers", "", "Comma-separated Kafka broker addresses")
	flag.StringVar(&topic, "topic", "", "Kafka topic for the downstream activity log")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lessonpulse - learner activity event pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: lessonpulse [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lessonpulse --data-dir /data/lessonpulse\n")
		fmt.Fprintf(os.Stderr, "  lessonpulse --config /etc/lessonpulse/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  lessonpulse --brokers kafka-1:9092,kafka-2:9092 --topic learner-activity\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  LESSONPULSE_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  LESSONPULSE_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  LESSONPULSE_GRPC_ADDR       gRPC listen address\n")
		fmt.Fprintf(os.Stderr, "  LESSONPULSE_KAFKA_BROKERS   Comma-separated broker addresses\n")
		fmt.Fprintf(os.Stderr, "  LESSONPULSE_KAFKA_TOPIC     Downstream topic name\n")
		fmt.Fprintf(os.Stderr, "  LESSONPULSE_RETENTION       Journal retention horizon (e.g. 24h)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("lessonpulse version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr, grpcAddr, brokers, topic)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("lessonpulse %s starting", version)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  HTTP:     %s", cfg.HTTP.Addr)
	if cfg.GRPC.Enabled {
		log.Printf("  gRPC:     %s", cfg.GRPC.Addr)
	}
	log.Printf("  Kafka:    %s -> %s", strings.Join(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig layers file, environment, and flag configuration, flags highest.
func loadConfig(configFile, dataDir, httpAddr, grpcAddr, brokers, topic string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	cfg.ApplyEnv()

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
	}
	if brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if topic != "" {
		cfg.Kafka.Topic = topic
	}

	return cfg, nil
}
