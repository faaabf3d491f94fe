package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
)

// Transition names recorded in the transitions metric.
const (
	opStart           = "start"
	opNext            = "next"
	opPrev            = "prev"
	opToggleRecording = "toggle_recording"
	opSetTranscript   = "set_transcript"
	opSetAnswer       = "set_answer"
	opSetAISpeaking   = "set_ai_speaking"
	opEvaluate        = "evaluate"
	opFinalize        = "finalize"
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithID sets the session identifier. Defaults to a random UUID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithQuestions replaces the default catalog. The slice is copied.
func WithQuestions(qs []Question) Option {
	return func(s *Session) {
		s.questions = make([]Question, len(qs))
		copy(s.questions, qs)
	}
}

// WithEvaluator sets the per-answer evaluator. Without one, evaluations are
// skipped and logged as a configuration problem.
func WithEvaluator(e Evaluator) Option {
	return func(s *Session) { s.evaluator = e }
}

// WithSummarizer sets the final summarizer. Without one, finalization fails
// and the interview never reaches the finished phase.
func WithSummarizer(sum Summarizer) Option {
	return func(s *Session) { s.summarizer = sum }
}

// WithSynthesizer sets the audio synthesis pipeline.
func WithSynthesizer(syn *Synthesizer) Option {
	return func(s *Session) { s.synth = syn }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithCallTimeout bounds every reasoning-service call made by background
// tasks. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) { s.callTimeout = d }
}

// ── Session ────────────────────────────────────────────────────────────────────

// Session is the interview state machine. Transitions that are invalid in the
// current state are silent no-ops. After the interview has finished, answers
// and evaluations no longer change.
//
// Background tasks (audio synthesis, evaluation, finalization) are spawned
// without a handle and cannot be cancelled; they outlive the request that
// triggered them. [Session.Wait] blocks until all of them have finished.
type Session struct {
	id          string
	evaluator   Evaluator
	summarizer  Summarizer
	synth       *Synthesizer
	metrics     *observe.Metrics
	callTimeout time.Duration

	mu          sync.Mutex
	questions   []Question
	index       int
	started     bool
	finished    bool
	finalizing  bool
	recording   bool
	evaluating  bool
	aiSpeaking  bool
	transcript  string
	answers     map[int]string
	evaluations map[int]Evaluation
	summary     *OverallSummary
	version     uint64
	subs        map[int]chan State
	nextSub     int

	tasks sync.WaitGroup
}

// NewSession creates a Session in the not-started phase.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		index:       -1,
		questions:   DefaultQuestions(),
		answers:     make(map[int]string),
		evaluations: make(map[int]Evaluation),
		subs:        make(map[int]chan State),
	}
	for _, o := range opts {
		o(s)
	}
	if err := ValidateQuestions(s.questions); err != nil {
		return nil, err
	}
	if s.id == "" {
		s.id = uuid.New().String()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current state with all derived projections.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Report serialises the current session as the downloadable JSON report.
func (s *Session) Report() ([]byte, error) {
	return Export(s.Snapshot())
}

// ── Transitions ────────────────────────────────────────────────────────────────

// Start moves a not-started session to the first question and spawns audio
// synthesis for the catalog.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.index = 0
	s.commitLocked(opStart)
	s.mu.Unlock()

	s.spawn(ctx, s.runSynthesis)
}

// Next advances to the following question, clears the transcript buffer and
// marks the interviewer as speaking. No-op on the last question.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phaseLocked() != PhaseInProgress || s.index >= len(s.questions)-1 {
		return
	}
	s.index++
	s.transcript = ""
	s.aiSpeaking = true
	s.commitLocked(opNext)
}

// Prev returns to the preceding question and restores the transcript buffer
// from its stored answer. No-op on the first question.
func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phaseLocked() != PhaseInProgress || s.index <= 0 {
		return
	}
	s.index--
	s.transcript = s.answers[s.questions[s.index].ID]
	s.commitLocked(opPrev)
}

// ToggleRecording flips the recording flag. Stopping a recording with a
// non-empty transcript commits it as the current answer and spawns its
// evaluation.
func (s *Session) ToggleRecording(ctx context.Context) {
	s.mu.Lock()
	s.setRecording(ctx, !s.recording)
}

// SetRecording sets the recording flag like [Session.ToggleRecording] but
// is a no-op when the flag already has the requested value.
func (s *Session) SetRecording(ctx context.Context, on bool) {
	s.mu.Lock()
	if s.recording == on {
		s.mu.Unlock()
		return
	}
	s.setRecording(ctx, on)
}

// setRecording must be called with s.mu held and releases it.
func (s *Session) setRecording(ctx context.Context, on bool) {
	s.recording = on
	var (
		job      evalJob
		evaluate bool
	)
	if !s.recording && s.transcript != "" {
		s.setAnswerLocked(s.transcript)
		job, evaluate = s.beginEvaluationLocked()
	}
	s.commitLocked(opToggleRecording)
	s.mu.Unlock()

	if evaluate {
		s.spawn(ctx, func(ctx context.Context) { s.runEvaluation(ctx, job) })
	}
}

// SetTranscript replaces the live transcript buffer and mirrors it into the
// current question's answer while the interview is in progress.
func (s *Session) SetTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = text
	s.setAnswerLocked(text)
	s.commitLocked(opSetTranscript)
}

// SetAnswer overwrites the current question's answer without touching the
// transcript buffer. No-op when no question is active.
func (s *Session) SetAnswer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.setAnswerLocked(text) {
		return
	}
	s.commitLocked(opSetAnswer)
}

// SetAISpeaking records whether question audio is playing.
func (s *Session) SetAISpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiSpeaking = speaking
	s.commitLocked(opSetAISpeaking)
}

// EvaluateCurrent spawns an evaluation of the current answer. No-op when no
// question is active or its answer is empty.
func (s *Session) EvaluateCurrent(ctx context.Context) {
	s.mu.Lock()
	job, ok := s.beginEvaluationLocked()
	if ok {
		s.commitLocked(opEvaluate)
	}
	s.mu.Unlock()

	if ok {
		s.spawn(ctx, func(ctx context.Context) { s.runEvaluation(ctx, job) })
	}
}

// Finalize spawns the final summary. Valid only on the last question while
// the interview is in progress and no finalization is already running. The
// finished phase is entered only when the summary succeeds.
func (s *Session) Finalize(ctx context.Context) {
	s.mu.Lock()
	if s.phaseLocked() != PhaseInProgress || s.index != len(s.questions)-1 || s.finalizing {
		s.mu.Unlock()
		return
	}
	s.finalizing = true
	s.evaluating = true
	transcript := BuildTranscript(s.questions, s.answers)
	s.commitLocked(opFinalize)
	s.mu.Unlock()

	s.spawn(ctx, func(ctx context.Context) { s.runFinalization(ctx, transcript) })
}

// setAnswerLocked stores text as the current answer. Answers are frozen once
// the interview has finished so the report keeps matching its summary.
func (s *Session) setAnswerLocked(text string) bool {
	if s.phaseLocked() != PhaseInProgress {
		return false
	}
	q, ok := s.currentQuestionLocked()
	if !ok {
		return false
	}
	s.answers[q.ID] = text
	return true
}

// evalJob captures everything an evaluation needs so the background task
// never reads session state outside a commit.
type evalJob struct {
	questionID int
	question   string
	answer     string
}

func (s *Session) beginEvaluationLocked() (evalJob, bool) {
	if s.phaseLocked() != PhaseInProgress {
		return evalJob{}, false
	}
	q, ok := s.currentQuestionLocked()
	if !ok {
		return evalJob{}, false
	}
	answer := s.answers[q.ID]
	if answer == "" {
		return evalJob{}, false
	}
	s.evaluating = true
	return evalJob{questionID: q.ID, question: q.Text, answer: answer}, true
}

// ── Background tasks ───────────────────────────────────────────────────────────

// spawn runs fn in a tracked goroutine. The context keeps its values but
// drops the caller's cancellation and deadline.
func (s *Session) spawn(ctx context.Context, fn func(context.Context)) {
	ctx = observe.WithSessionID(context.WithoutCancel(ctx), s.id)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn(ctx)
	}()
}

// Wait blocks until every spawned background task has finished.
func (s *Session) Wait() {
	s.tasks.Wait()
}

// Drain is like [Session.Wait] but gives up when ctx is done.
func (s *Session) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) runEvaluation(ctx context.Context, job evalJob) {
	ctx, span := observe.StartSpan(ctx, "interview.evaluate",
		trace.WithAttributes(attribute.Int("question_id", job.questionID)))

	ev, err := guard(func() (Evaluation, error) {
		if s.evaluator == nil {
			return Evaluation{}, ErrNotConfigured
		}
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		return s.evaluator.Evaluate(callCtx, job.question, job.answer)
	})

	s.mu.Lock()
	if err == nil {
		s.evaluations[job.questionID] = ev
	}
	s.evaluating = false
	s.commitLocked("")
	s.mu.Unlock()

	log := s.logger(ctx).With(slog.Int("question_id", job.questionID))
	status := llmStatus(err)
	s.metrics.RecordEvaluation(ctx, status)
	switch {
	case err == nil:
		log.Info("answer evaluated", "overall", ev.Overall)
	case errors.Is(err, ErrNotConfigured):
		log.Warn("evaluation skipped: no reasoning service configured")
		err = nil
	default:
		log.Error("evaluation failed", "error", err)
	}
	observe.EndSpan(span, err, status)
}

func (s *Session) runFinalization(ctx context.Context, transcript string) {
	ctx, span := observe.StartSpan(ctx, "interview.finalize")

	sum, err := guard(func() (OverallSummary, error) {
		if s.summarizer == nil {
			return OverallSummary{}, ErrNotConfigured
		}
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		return s.summarizer.Summarize(callCtx, transcript)
	})

	s.mu.Lock()
	if err == nil {
		s.summary = &sum
		s.finished = true
	}
	s.evaluating = false
	s.finalizing = false
	s.commitLocked("")
	s.mu.Unlock()

	log := s.logger(ctx)
	status := llmStatus(err)
	s.metrics.RecordFinalization(ctx, status)
	observe.EndSpan(span, err, status)
	if err != nil {
		log.Error("final summary failed; interview remains unfinished", "error", err)
		return
	}
	log.Info("interview finished", "total_average", sum.TotalAverage)
}

func (s *Session) runSynthesis(ctx context.Context) {
	log := s.logger(ctx)
	if !s.synth.Enabled() {
		log.Warn("text-to-speech not configured; the interview will proceed without audio")
		s.metrics.RecordSynthesis(ctx, observe.StatusSkipped)
		return
	}

	ctx, span := observe.StartSpan(ctx, "interview.synthesize")
	defer span.End()

	s.mu.Lock()
	n := len(s.questions)
	s.mu.Unlock()

	for i := range n {
		s.mu.Lock()
		q := s.questions[i]
		s.mu.Unlock()
		if q.AudioFile != "" {
			continue
		}

		name, err := guard(func() (string, error) { return s.synth.Synthesize(ctx, q) })
		s.metrics.RecordSynthesis(ctx, synthesisStatus(err))
		qlog := log.With(slog.Int("question_id", q.ID))
		switch {
		case err == nil:
		case errors.Is(err, tts.ErrUnauthorized):
			qlog.Warn("voice service key lacks text-to-speech permission; continuing without audio for this question", "error", err)
			continue
		case errors.Is(err, tts.ErrRateLimited):
			qlog.Warn("voice service rate limited; continuing without audio for this question", "error", err)
			continue
		default:
			qlog.Error("audio synthesis failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.questions[i].AudioFile = name
		s.commitLocked("")
		s.mu.Unlock()
		qlog.Debug("question audio stored", "file", name)
	}
}

func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout > 0 {
		return context.WithTimeout(ctx, s.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) logger(ctx context.Context) *slog.Logger {
	return observe.Logger(observe.WithSessionID(ctx, s.id))
}

// guard converts a panic in fn into an error so background tasks always
// reach their final commit.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interview: panic: %v", r)
		}
	}()
	return fn()
}

func llmStatus(err error) string {
	switch {
	case err == nil:
		return observe.StatusOK
	case errors.Is(err, ErrNotConfigured):
		return observe.StatusSkipped
	case errors.Is(err, ErrMalformedResponse), errors.Is(err, llm.ErrEmptyResponse):
		return observe.StatusMalformed
	case errors.Is(err, llm.ErrUnauthorized):
		return observe.StatusUnauthorized
	case errors.Is(err, llm.ErrRateLimited):
		return observe.StatusRateLimited
	}
	return observe.StatusError
}

// ── Subscriptions ──────────────────────────────────────────────────────────────

// Subscribe returns a channel that receives the current state immediately and
// a fresh snapshot after every committed change. Slow subscribers only see
// the latest state. The returned cancel function closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// commitLocked finishes a state change: it bumps the version, counts the
// transition, and offers the new snapshot to subscribers. The caller must
// hold s.mu.
func (s *Session) commitLocked(op string) {
	s.version++
	if op != "" {
		s.metrics.RecordTransition(context.Background(), op)
	}
	if len(s.subs) == 0 {
		return
	}
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		offerLatest(ch, st)
	}
}

// offerLatest replaces any pending value in a one-slot channel with st. Only
// the session sends on subscriber channels, and only under its lock.
func offerLatest(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- st
}
