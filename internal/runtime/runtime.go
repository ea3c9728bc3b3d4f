package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/audio"
	"github.com/voxgate-labs/voxgate-core/internal/audit"
	"github.com/voxgate-labs/voxgate-core/internal/bus"
	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/dispatch"
	"github.com/voxgate-labs/voxgate-core/internal/enroll"
	"github.com/voxgate-labs/voxgate-core/internal/gate"
	"github.com/voxgate-labs/voxgate-core/internal/intent"
	"github.com/voxgate-labs/voxgate-core/internal/natsserver"
	"github.com/voxgate-labs/voxgate-core/internal/session"
	"github.com/voxgate-labs/voxgate-core/internal/stt"
	"github.com/voxgate-labs/voxgate-core/internal/tts"
	"github.com/voxgate-labs/voxgate-core/internal/voiceid"
)

// Runtime owns process-level concerns around a single authentication
// session: telemetry, health endpoints, the event bus, and the audit store.
// Run wires the audio pipeline and drives the session to a terminal state.
type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	natsServer    *natsserver.EmbeddedServer
	busClient     *bus.Client
	auditStore    *audit.Store
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the supporting services, executes one authentication session,
// and shuts everything down. The returned result is only meaningful when the
// error is nil.
func (r *Runtime) Run(ctx context.Context) (session.Result, error) {
	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return session.Result{}, fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	r.startHTTP(metricHandler)
	r.startBus(ctx)

	store, err := audit.Open(ctx, r.cfg.Audit, r.logger)
	if err != nil {
		r.shutdown()
		return session.Result{}, fmt.Errorf("failed to open audit store: %w", err)
	}
	r.auditStore = store

	sess, err := r.buildSession()
	if err != nil {
		r.shutdown()
		return session.Result{}, err
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("session_id", sess.ID()))

	result, runErr := sess.Run(ctx)

	r.ready.Store(false)
	r.shutdown()
	return result, runErr
}

// buildSession assembles the audio pipeline and session collaborators from
// configuration. Every error here is a configuration or environment problem.
func (r *Runtime) buildSession() (*session.Session, error) {
	input, err := audio.NewInput(r.cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio input: %w", err)
	}

	recognizer, err := buildRecognizer(r.cfg.STT)
	if err != nil {
		return nil, fmt.Errorf("failed to build recognizer: %w", err)
	}
	transcriber := stt.NewTranscriber(input, recognizer, r.cfg.Audio, r.logger)

	speaker, err := tts.NewSpeaker(r.cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build speaker: %w", err)
	}

	embedder, err := voiceid.NewEmbedder(r.cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}
	reference, err := enroll.NewStore(r.cfg.Enrollment.Path).Load(r.cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	verifier := voiceid.NewVerifier(input, embedder, reference, r.cfg.Audio, r.cfg.Auth, r.logger)

	resolver, err := intent.NewResolver(r.cfg.Intents)
	if err != nil {
		return nil, fmt.Errorf("failed to build intent resolver: %w", err)
	}
	dispatcher, err := dispatch.NewDispatcher(r.cfg.Dispatch, speaker, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	return session.New(r.cfg.Auth, session.Deps{
		Gate:        gate.NewPhraseGate(transcriber, speaker, r.cfg.Auth, r.logger),
		Verifier:    verifier,
		Transcriber: transcriber,
		Resolver:    resolver,
		Dispatcher:  dispatcher,
		Speaker:     speaker,
		Audit:       r.auditStore,
		Bus:         r.busClient,
	}, r.logger), nil
}

func buildRecognizer(cfg config.STTConfig) (stt.Recognizer, error) {
	if cfg.Mode == "exec" {
		return stt.NewExecRecognizer(cfg)
	}
	return stt.NewMockRecognizer(), nil
}

// startBus brings up the embedded broker and connects the client. Bus
// publication is observability only, so failures degrade to logging.
func (r *Runtime) startBus(ctx context.Context) {
	if !r.cfg.Bus.Enabled {
		return
	}
	ns, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		r.logger.Warn("embedded bus unavailable", slog.String("error", err.Error()))
		return
	}
	r.natsServer = ns

	client, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		r.logger.Warn("bus connection failed", slog.String("error", err.Error()))
		return
	}
	r.busClient = client
}

func (r *Runtime) startHTTP(metricHandler http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.logger.Info("http endpoints started", slog.String("addr", addr))
}

func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.busClient != nil {
		r.busClient.Close()
	}
	r.natsServer.Shutdown()

	if r.auditStore != nil {
		if err := r.auditStore.Close(); err != nil {
			r.logger.Error("audit close error", slog.String("error", err.Error()))
		}
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
