// Package app provides the unified application lifecycle for lessonpulse.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/lessonpulse/lessonpulse/internal/api/grpc"
	httpapi "github.com/lessonpulse/lessonpulse/internal/api/http"
	"github.com/lessonpulse/lessonpulse/internal/config"
	"github.com/lessonpulse/lessonpulse/internal/deadletter"
	"github.com/lessonpulse/lessonpulse/internal/ingest"
	"github.com/lessonpulse/lessonpulse/internal/journal"
	"github.com/lessonpulse/lessonpulse/internal/publish"
	"github.com/lessonpulse/lessonpulse/internal/server"
)

// App wires the pipeline together: journal, dead-letter store, processor,
// publisher, reclaimer and the two ingress servers.
type App struct {
	cfg *config.Config

	journal     *journal.Journal
	cursors     *journal.CursorStore
	deadLetters *deadletter.Store
	sink        publish.Sink
	processor   *ingest.Processor
	publisher   *publish.Publisher
	reclaimer   *journal.Reclaimer
	shutdown    *server.ShutdownManager

	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &App{
		cfg:      cfg,
		shutdown: server.NewShutdownManager(server.DefaultShutdownConfig()),
	}, nil
}

// NewWithSink creates an App publishing to the given sink instead of Kafka.
// Used by integration tests and embedded deployments.
func NewWithSink(cfg *config.Config, sink publish.Sink) (*App, error) {
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	a.sink = sink
	return a, nil
}

// Start opens the durable stores, recovers the journal, and launches the
// publisher, reclaimer and ingress servers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initPipeline(); err != nil {
		a.shutdown.Shutdown(context.Background(), "startup failed")
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.publisher.Run(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reclaimer.Run(ctx)
	}()

	// Ingress tears down before this closer runs, so the wait covers only
	// the publisher and reclaimer loops.
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.cancel()
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-time.After(15 * time.Second):
			return fmt.Errorf("timeout waiting for pipeline goroutines")
		}
	}))

	if err := a.startHTTPServer(); err != nil {
		a.shutdown.Shutdown(context.Background(), "startup failed")
		return err
	}
	if a.cfg.GRPC.Enabled {
		if err := a.startGRPCServer(); err != nil {
			a.shutdown.Shutdown(context.Background(), "startup failed")
			return err
		}
	}

	log.Printf("lessonpulse started: journal=%s bytes=%d", a.cfg.JournalDir(), a.journal.TotalBytes())
	return nil
}

// initPipeline opens the journal (running crash recovery), the dead-letter
// store and the downstream sink, and builds the processing components.
func (a *App) initPipeline() error {
	j, err := journal.Open(a.cfg.JournalDir(), a.cfg.Journal)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	a.journal = j
	a.shutdown.RegisterCloser(j)
	log.Printf("Journal opened: %s (%d bytes buffered)", a.cfg.JournalDir(), j.TotalBytes())

	a.cursors = journal.NewCursorStore(a.cfg.JournalDir())

	dl, err := deadletter.Open(a.cfg.DeadLetterPath())
	if err != nil {
		return fmt.Errorf("failed to open dead-letter store: %w", err)
	}
	a.deadLetters = dl
	a.shutdown.RegisterCloser(dl)
	log.Printf("Dead-letter store opened: %s", a.cfg.DeadLetterPath())

	if a.sink == nil {
		sink, err := publish.NewKafkaSink(a.cfg.Kafka)
		if err != nil {
			return fmt.Errorf("failed to create kafka sink: %w", err)
		}
		a.sink = sink
		log.Printf("Kafka sink ready: brokers=%v topic=%s", a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
	}
	a.shutdown.RegisterCloser(a.sink)

	a.processor = ingest.NewProcessor(a.journal, a.deadLetters, a.cfg.Ingest)

	pub, err := publish.NewPublisher(a.journal, a.cursors, a.sink, a.deadLetters, a.cfg.Publish)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	a.publisher = pub

	a.reclaimer = journal.NewReclaimer(a.journal, a.cursors, a.cfg.Retention, a.cfg.ReclaimInterval)
	return nil
}

func (a *App) startHTTPServer() error {
	router := httpapi.NewRouter(a.processor, a.deadLetters, a.journal)
	handler := server.ShutdownMiddleware(a.shutdown)(router)

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	}))
	return nil
}

func (a *App) startGRPCServer() error {
	a.grpcServer = grpc.NewServer()
	ingestServer := grpcapi.NewIngestServer(a.processor, grpcapi.StreamWindow{
		MaxEvents: a.cfg.Stream.WindowMaxEvents,
		MaxAge:    a.cfg.Stream.WindowMaxAge,
	})
	ingestServer.Register(a.grpcServer)

	var err error
	a.grpcListener, err = net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("gRPC server listening on %s", a.cfg.GRPC.Addr)
		if err := a.grpcServer.Serve(a.grpcListener); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))
	return nil
}

// Stop shuts the pipeline down through the registered closers, which run in
// reverse registration order: ingress first so no new appends arrive, then the
// publisher and reclaimer, then the durable stores.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")
	err := a.shutdown.Shutdown(ctx, "stop requested")
	log.Printf("lessonpulse stopped")
	return err
}

// WaitForShutdown blocks until a termination signal arrives, then runs the
// same graceful shutdown sequence as Stop.
func (a *App) WaitForShutdown(ctx context.Context) error {
	err := a.shutdown.ListenForSignals(ctx)

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	log.Printf("lessonpulse stopped")
	return err
}
