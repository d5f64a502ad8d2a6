package publish

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// KafkaConfig configures the Kafka downstream log sink.
type KafkaConfig struct {
	// Brokers is the seed broker list.
	Brokers []string `json:"brokers" yaml:"brokers"`

	// Topic is the destination topic for learner-activity records.
	Topic string `json:"topic" yaml:"topic"`

	// SASL authentication; Mechanism empty disables SASL.
	SASL SASLConfig `json:"sasl" yaml:"sasl"`

	// TLS transport security.
	TLS TLSConfig `json:"tls" yaml:"tls"`
}

// SASLConfig holds SASL credentials.
type SASLConfig struct {
	Mechanism string `json:"mechanism" yaml:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
}

// TLSConfig holds TLS settings.
type TLSConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	SkipVerify bool   `json:"skip_verify" yaml:"skip_verify"`
	CAFile     string `json:"ca_file" yaml:"ca_file"`
}

// KafkaSink publishes records to a Kafka topic. Implements Sink.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink creates a Kafka sink from the given configuration.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: topic is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}

	if cfg.SASL.Mechanism != "" {
		mech, err := saslMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		opts = append(opts, kgo.SASL(mech))
	}

	if cfg.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: failed to create client: %w", err)
	}

	return &KafkaSink{client: client, topic: cfg.Topic}, nil
}

// Publish sends all records synchronously and classifies each outcome.
func (s *KafkaSink) Publish(ctx context.Context, records []*Record) ([]Result, error) {
	kgoRecs := make([]*kgo.Record, len(records))
	index := make(map[*kgo.Record]int, len(records))
	for i, rec := range records {
		kr := &kgo.Record{Topic: s.topic, Key: rec.Key, Value: rec.Value}
		kgoRecs[i] = kr
		index[kr] = i
	}

	results := make([]Result, len(records))
	produced := s.client.ProduceSync(ctx, kgoRecs...)
	for _, pr := range produced {
		i, ok := index[pr.Record]
		if !ok {
			continue
		}
		results[i] = classify(pr.Err)
	}
	return results, nil
}

// Close flushes and shuts down the client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}

// classify maps a produce error to a per-record Result. Broker error codes
// carry an explicit retriable flag; anything without one (network failures,
// timeouts) is assumed transient so the retry budget decides its fate.
func classify(err error) Result {
	if err == nil {
		return Result{Status: StatusAccepted}
	}

	var ke *kerr.Error
	if errors.As(err, &ke) && !ke.Retriable {
		return Result{Status: StatusPermanentRejection, Err: err}
	}
	return Result{Status: StatusTransientFailure, Err: err}
}

// saslMechanism builds a SASL mechanism from configuration.
func saslMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Auth{User: cfg.Username, Pass: cfg.Password}.AsMechanism(), nil
	case "SCRAM-SHA-256":
		return scram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512":
		return scram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha512Mechanism(), nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}

// buildTLSConfig creates a tls.Config from TLSConfig.
func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify,
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file %s: %w", cfg.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}
