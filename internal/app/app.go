// Package app wires the interview server's subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates the artifact store, the
// interview session and the HTTP surface, Run serves until the context is
// cancelled, and Shutdown drains HTTP and waits for in-flight background
// tasks.
//
// For testing, inject doubles via functional options (WithStore,
// WithListener, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/health"
	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/resilience"
	"github.com/MrWong99/mockinterview/internal/storage"
	"github.com/MrWong99/mockinterview/internal/web"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

const (
	// readHeaderTimeout bounds slow clients on the HTTP server.
	readHeaderTimeout = 10 * time.Second

	// voiceCheckTimeout bounds the startup voice lookup.
	voiceCheckTimeout = 10 * time.Second

	// healthProbeName is the artifact name probed by the storage readiness
	// check. It never exists; only reachability matters.
	healthProbeName = ".readyz"
)

var errNotConfigured = errors.New("not configured")

// Providers holds one interface value per external service. Nil means the
// service is not configured and the dependent feature is disabled.
// Populated by [BuildProviders].
type Providers struct {
	LLM llm.Provider
	TTS tts.Provider
}

// App owns all subsystem lifetimes of the interview server.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	store      storage.FileStore
	session    *interview.Session
	web        *web.Server
	httpServer *http.Server
	listener   net.Listener

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an artifact store instead of creating one from config.
func WithStore(fs storage.FileStore) Option {
	return func(a *App) { a.store = fs }
}

// WithListener makes Run serve on ln instead of listening on
// server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from [BuildProviders]; nil fields disable the matching feature.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Artifact store ────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Interview session ─────────────────────────────────────────────
	if err := a.initSession(); err != nil {
		return nil, fmt.Errorf("app: init session: %w", err)
	}

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	slog.Info("app initialised",
		"session_id", a.session.ID(),
		"questions", a.session.Snapshot().TotalQuestions,
		"storage", cfg.Storage.Backend,
		"reasoning", providers.LLM != nil,
		"voice", providers.TTS != nil,
	)
	return a, nil
}

// Session returns the interview session served by the app.
func (a *App) Session() *interview.Session { return a.session }

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.web }

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStorage sets up the local or S3 artifact store unless one was injected,
// then probes it once. An unreachable store is logged, not fatal; readiness
// reports it until it recovers.
func (a *App) initStorage(ctx context.Context) error {
	if a.store == nil {
		if err := a.createStore(); err != nil {
			return err
		}
	}
	if _, err := a.store.Exists(ctx, healthProbeName); err != nil {
		slog.Warn("artifact storage not reachable", "err", err)
	}
	return nil
}

func (a *App) createStore() error {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.StorageS3:
		client := storage.NewS3Client(storage.S3Options{
			Region:          sc.S3.Region,
			Endpoint:        sc.S3.Endpoint,
			UsePathStyle:    sc.S3.UsePathStyle,
			AccessKeyID:     sc.S3.AccessKeyID,
			SecretAccessKey: sc.S3.SecretAccessKey,
		})
		a.store = storage.NewS3(client, sc.S3.Bucket, sc.S3.Prefix)
		slog.Info("artifact storage ready", "backend", "s3", "bucket", sc.S3.Bucket, "prefix", sc.S3.Prefix)
	default:
		dir := sc.Dir
		if dir == "" {
			dir = config.DefaultStorageDir
		}
		local, err := storage.NewLocal(dir)
		if err != nil {
			return err
		}
		a.store = local
		slog.Info("artifact storage ready", "backend", "local", "dir", local.Root())
	}
	return nil
}

// initSession builds the interview session from the configured catalog,
// voice and providers.
func (a *App) initSession() error {
	ic := a.cfg.Interview

	questions := interview.DefaultQuestions()
	if len(ic.Questions) > 0 {
		questions = make([]interview.Question, len(ic.Questions))
		for i, q := range ic.Questions {
			questions[i] = interview.Question{ID: q.ID, Text: q.Text}
		}
	}

	synth := interview.NewSynthesizer(a.providers.TTS, a.store,
		interview.WithVoice(configVoiceProfile(ic.Voice)),
		interview.WithReuseExisting(ic.ReuseAudio),
		interview.WithSynthesisTimeout(ic.SynthesisTimeout),
	)

	opts := []interview.Option{
		interview.WithQuestions(questions),
		interview.WithSynthesizer(synth),
		interview.WithMetrics(a.metrics),
		interview.WithCallTimeout(ic.EvaluationTimeout),
	}
	if a.providers.LLM != nil {
		var llmOpts []interview.LLMOption
		if ic.Temperature != nil {
			llmOpts = append(llmOpts, interview.WithTemperature(*ic.Temperature))
		}
		opts = append(opts,
			interview.WithEvaluator(interview.NewLLMEvaluator(a.providers.LLM, llmOpts...)),
			interview.WithSummarizer(interview.NewLLMSummarizer(a.providers.LLM, llmOpts...)),
		)
	} else {
		slog.Warn("reasoning service not configured; answers will not be evaluated")
	}
	if a.providers.TTS == nil {
		slog.Warn("voice service not configured; questions will not be read aloud")
	}

	sess, err := interview.NewSession(opts...)
	if err != nil {
		return err
	}
	a.session = sess
	return nil
}

// initHTTP builds the web surface with health checks and the HTTP server.
func (a *App) initHTTP() {
	a.web = web.New(a.session,
		web.WithStore(a.store),
		web.WithMetrics(a.metrics),
		web.WithHealth(health.New(a.checkers()...)),
	)

	// Hijacked WebSocket connections are not tracked by Shutdown; cancelling
	// the base context ends their handlers.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.web,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	a.httpServer.RegisterOnShutdown(cancelBase)
}

// checkers returns the readiness checks. Storage is required; the external
// services only degrade the interview when missing.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "storage",
			Check: func(ctx context.Context) error {
				_, err := a.store.Exists(ctx, healthProbeName)
				return err
			},
		},
		{Name: "reasoning", Optional: true, Check: providerCheck(a.providers.LLM)},
		{Name: "voice", Optional: true, Check: providerCheck(a.providers.TTS)},
	}
}

// breakerStatus is implemented by the failover chains in package resilience.
type breakerStatus interface {
	Status() []resilience.BackendStatus
}

// providerCheck reports a missing provider, or one whose failover chain has
// every circuit breaker open.
func providerCheck(p any) func(context.Context) error {
	return func(context.Context) error {
		if p == nil {
			return errNotConfigured
		}
		bs, ok := p.(breakerStatus)
		if !ok {
			return nil
		}
		var open []string
		for _, s := range bs.Status() {
			if s.State != resilience.StateOpen {
				return nil
			}
			open = append(open, s.Name)
		}
		return fmt.Errorf("circuit open for %s", strings.Join(open, ", "))
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// Cancellation triggers [App.Shutdown] bounded by server.shutdown_timeout;
// a clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	tlsCfg := a.cfg.Server.TLS
	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", tlsCfg != nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tlsCfg != nil {
			err = a.httpServer.ServeTLS(ln, tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = a.httpServer.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.checkVoice(gctx)
		return nil
	})

	return g.Wait()
}

// checkVoice looks up the configured voice once at startup. A missing voice
// or an unreachable service is only logged; synthesis reports its own
// failures per question.
func (a *App) checkVoice(ctx context.Context) {
	if a.providers.TTS == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, voiceCheckTimeout)
	defer cancel()

	want := configVoiceProfile(a.cfg.Interview.Voice).ID
	voices, err := a.providers.TTS.ListVoices(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("voice lookup failed", "err", err)
		}
		return
	}
	if !slices.ContainsFunc(voices, func(v tts.VoiceProfile) bool { return v.ID == want }) {
		slog.Warn("configured voice not offered by the voice service", "voice_id", want, "available", len(voices))
		return
	}
	slog.Debug("configured voice available", "voice_id", want)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops accepting requests, then waits for in-flight requests and
// background tasks. It respects the context deadline: if ctx expires first,
// the context error is returned and remaining tasks are abandoned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		if err := a.session.Drain(ctx); err != nil {
			slog.Warn("background tasks still running at shutdown deadline", "err", err)
			shutdownErr = errors.Join(shutdownErr, err)
			return
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// configVoiceProfile overlays the configured voice settings on the default
// voice.
func configVoiceProfile(vc config.VoiceConfig) tts.VoiceProfile {
	v := interview.DefaultVoice()
	if vc.VoiceID != "" {
		v.ID = vc.VoiceID
	}
	if vc.Model != "" {
		v.Model = vc.Model
	}
	if vc.OutputFormat != "" {
		v.OutputFormat = vc.OutputFormat
	}
	v.Stability = vc.Stability
	v.SimilarityBoost = vc.SimilarityBoost
	v.SpeedFactor = vc.SpeedFactor
	return v
}
