package interview

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	llmmock "github.com/MrWong99/mockinterview/pkg/provider/llm/mock"
)

// ── Test helpers ───────────────────────────────────────────────────────────────

type evaluatorFunc func(ctx context.Context, question, answer string) (Evaluation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, question, answer string) (Evaluation, error) {
	return f(ctx, question, answer)
}

type summarizerFunc func(ctx context.Context, transcript string) (OverallSummary, error)

func (f summarizerFunc) Summarize(ctx context.Context, transcript string) (OverallSummary, error) {
	return f(ctx, transcript)
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(append([]Option{WithID("test")}, opts...)...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Wait)
	return s
}

func startedSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s := newTestSession(t, opts...)
	s.Start(context.Background())
	s.Wait()
	return s
}

func fixedEvaluator(ev Evaluation) Evaluator {
	return evaluatorFunc(func(context.Context, string, string) (Evaluation, error) { return ev, nil })
}

// ── Construction ───────────────────────────────────────────────────────────────

func TestNewSession_Defaults(t *testing.T) {
	s, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.ID() == "" {
		t.Error("ID is empty, want generated UUID")
	}
	st := s.Snapshot()
	if st.Phase != PhaseNotStarted {
		t.Errorf("Phase = %q, want %q", st.Phase, PhaseNotStarted)
	}
	if st.TotalQuestions != 7 {
		t.Errorf("TotalQuestions = %d, want 7", st.TotalQuestions)
	}
	if st.CurrentIndex != -1 {
		t.Errorf("CurrentIndex = %d, want -1", st.CurrentIndex)
	}
	if st.CurrentQuestion != nil {
		t.Errorf("CurrentQuestion = %+v, want nil", st.CurrentQuestion)
	}
	if st.ProgressPercent != 0 {
		t.Errorf("ProgressPercent = %v, want 0", st.ProgressPercent)
	}
	if st.Started || st.Finished || st.IsRecording || st.IsEvaluating || st.IsAISpeaking {
		t.Errorf("flags = %+v, want all false", st)
	}
}

func TestNewSession_InvalidCatalog(t *testing.T) {
	_, err := NewSession(WithQuestions(nil))
	if err == nil {
		t.Fatal("NewSession with empty catalog succeeded, want error")
	}
	_, err = NewSession(WithQuestions([]Question{{ID: 1, Text: "a"}, {ID: 1, Text: "b"}}))
	if err == nil {
		t.Fatal("NewSession with duplicate ids succeeded, want error")
	}
}

func TestNewSession_CopiesCatalog(t *testing.T) {
	qs := []Question{{ID: 1, Text: "only"}}
	s := newTestSession(t, WithQuestions(qs))
	qs[0].Text = "mutated"
	if got := s.Snapshot().Questions[0].Text; got != "only" {
		t.Errorf("Questions[0].Text = %q, want %q", got, "only")
	}
}

// ── Navigation ─────────────────────────────────────────────────────────────────

func TestStart(t *testing.T) {
	s := startedSession(t)
	st := s.Snapshot()
	if st.Phase != PhaseInProgress {
		t.Errorf("Phase = %q, want %q", st.Phase, PhaseInProgress)
	}
	if st.CurrentIndex != 0 || !st.IsFirstQuestion || st.IsLastQuestion {
		t.Errorf("index=%d first=%v last=%v, want 0 true false", st.CurrentIndex, st.IsFirstQuestion, st.IsLastQuestion)
	}
	if st.CurrentQuestion == nil || st.CurrentQuestion.ID != 1 {
		t.Errorf("CurrentQuestion = %+v, want id 1", st.CurrentQuestion)
	}
	if want := 100.0 / 7; math.Abs(st.ProgressPercent-want) > 1e-9 {
		t.Errorf("ProgressPercent = %v, want %v", st.ProgressPercent, want)
	}

	s.Next()
	v := s.Snapshot().Version
	s.Start(context.Background())
	if st := s.Snapshot(); st.CurrentIndex != 1 || st.Version != v {
		t.Errorf("second Start changed state: index=%d version=%d, want 1 %d", st.CurrentIndex, st.Version, v)
	}
}

func TestNext_BeforeStartIsNoop(t *testing.T) {
	s := newTestSession(t)
	s.Next()
	s.Prev()
	if st := s.Snapshot(); st.CurrentIndex != -1 || st.Version != 0 {
		t.Errorf("index=%d version=%d, want -1 0", st.CurrentIndex, st.Version)
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		steps     int
		wantIndex int
		wantLast  bool
	}{
		{"one step", 1, 1, false},
		{"to last", 6, 6, true},
		{"past last clamps", 10, 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startedSession(t)
			for range tt.steps {
				s.Next()
			}
			st := s.Snapshot()
			if st.CurrentIndex != tt.wantIndex {
				t.Errorf("CurrentIndex = %d, want %d", st.CurrentIndex, tt.wantIndex)
			}
			if st.IsLastQuestion != tt.wantLast {
				t.Errorf("IsLastQuestion = %v, want %v", st.IsLastQuestion, tt.wantLast)
			}
			if !st.IsAISpeaking {
				t.Error("IsAISpeaking = false after Next, want true")
			}
		})
	}
}

func TestNext_ClearsTranscript(t *testing.T) {
	s := startedSession(t)
	s.SetTranscript("first answer")
	s.Next()
	st := s.Snapshot()
	if st.Transcript != "" {
		t.Errorf("Transcript = %q, want empty", st.Transcript)
	}
	if st.Answers[1] != "first answer" {
		t.Errorf("Answers[1] = %q, want %q", st.Answers[1], "first answer")
	}
}

func TestPrev_RestoresTranscript(t *testing.T) {
	s := startedSession(t)
	s.SetTranscript("first answer")
	s.Next()
	s.Prev()
	st := s.Snapshot()
	if st.CurrentIndex != 0 {
		t.Fatalf("CurrentIndex = %d, want 0", st.CurrentIndex)
	}
	if st.Transcript != "first answer" {
		t.Errorf("Transcript = %q, want %q", st.Transcript, "first answer")
	}
	if st.CurrentAnswer != "first answer" {
		t.Errorf("CurrentAnswer = %q, want %q", st.CurrentAnswer, "first answer")
	}

	v := st.Version
	s.Prev()
	if st := s.Snapshot(); st.CurrentIndex != 0 || st.Version != v {
		t.Errorf("Prev at first question changed state: index=%d version=%d", st.CurrentIndex, st.Version)
	}
}

func TestSetAnswer_RequiresActiveQuestion(t *testing.T) {
	s := newTestSession(t)
	s.SetAnswer("too early")
	if st := s.Snapshot(); len(st.Answers) != 0 || st.Version != 0 {
		t.Errorf("Answers = %v version=%d, want empty 0", st.Answers, st.Version)
	}

	s.Start(context.Background())
	s.SetTranscript("spoken")
	s.SetAnswer("typed")
	st := s.Snapshot()
	if st.Answers[1] != "typed" {
		t.Errorf("Answers[1] = %q, want %q", st.Answers[1], "typed")
	}
	if st.Transcript != "spoken" {
		t.Errorf("Transcript = %q, want %q", st.Transcript, "spoken")
	}
}

// ── Recording and evaluation ───────────────────────────────────────────────────

func TestToggleRecording_EvaluatesAnswer(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validEvaluation}}
	s := startedSession(t, WithEvaluator(NewLLMEvaluator(p)))
	ctx := context.Background()

	s.ToggleRecording(ctx)
	if !s.Snapshot().IsRecording {
		t.Fatal("IsRecording = false after first toggle")
	}
	s.SetTranscript("hello")
	s.ToggleRecording(ctx)
	s.Wait()

	st := s.Snapshot()
	if st.IsRecording || st.IsEvaluating {
		t.Errorf("recording=%v evaluating=%v, want false false", st.IsRecording, st.IsEvaluating)
	}
	if st.Answers[1] != "hello" {
		t.Errorf("Answers[1] = %q, want %q", st.Answers[1], "hello")
	}
	ev, ok := st.Evaluations[1]
	if !ok {
		t.Fatal("no evaluation stored for question 1")
	}
	if ev.Scores.Strategy != 5 || ev.Overall != 4 {
		t.Errorf("evaluation = %+v", ev)
	}
	if st.CurrentEvaluation == nil || st.CurrentEvaluation.Feedback != ev.Feedback {
		t.Errorf("CurrentEvaluation = %+v, want stored evaluation", st.CurrentEvaluation)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if !req.JSONMode {
		t.Error("JSONMode = false, want true")
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, DefaultQuestions()[0].Text) || !strings.Contains(prompt, "Candidate's Answer: hello") {
		t.Errorf("prompt missing question or answer:\n%s", prompt)
	}
}

func TestToggleRecording_EmptyTranscriptSkipsEvaluation(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validEvaluation}}
	s := startedSession(t, WithEvaluator(NewLLMEvaluator(p)))

	s.ToggleRecording(context.Background())
	s.ToggleRecording(context.Background())
	s.Wait()

	if n := len(p.Calls()); n != 0 {
		t.Errorf("Complete calls = %d, want 0", n)
	}
	if st := s.Snapshot(); len(st.Answers) != 0 || st.IsEvaluating {
		t.Errorf("answers=%v evaluating=%v, want none false", st.Answers, st.IsEvaluating)
	}
}

func TestSetRecording_Idempotent(t *testing.T) {
	var calls int
	var mu sync.Mutex
	ev := evaluatorFunc(func(context.Context, string, string) (Evaluation, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return Evaluation{Overall: 3}, nil
	})
	s := startedSession(t, WithEvaluator(ev))
	ctx := context.Background()

	s.SetRecording(ctx, true)
	v := s.Snapshot().Version
	s.SetRecording(ctx, true)
	if got := s.Snapshot().Version; got != v {
		t.Errorf("Version = %d after repeated start, want %d", got, v)
	}
	s.SetTranscript("closing the deal")
	s.SetRecording(ctx, false)
	s.SetRecording(ctx, false)
	s.Wait()

	if s.Snapshot().IsRecording {
		t.Error("IsRecording = true, want false")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("evaluations = %d, want 1", calls)
	}
}

func TestEvaluation_Failures(t *testing.T) {
	tests := []struct {
		name      string
		evaluator Evaluator
	}{
		{"malformed response", NewLLMEvaluator(&llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "Great answer!"},
		})},
		{"provider error", NewLLMEvaluator(&llmmock.Provider{CompleteErr: errors.New("connection refused")})},
		{"nil response", NewLLMEvaluator(&llmmock.Provider{})},
		{"not configured", nil},
		{"panic", evaluatorFunc(func(context.Context, string, string) (Evaluation, error) {
			panic("boom")
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.evaluator != nil {
				opts = append(opts, WithEvaluator(tt.evaluator))
			}
			s := startedSession(t, opts...)
			s.SetTranscript("an answer")
			s.EvaluateCurrent(context.Background())
			s.Wait()

			st := s.Snapshot()
			if len(st.Evaluations) != 0 {
				t.Errorf("Evaluations = %v, want none", st.Evaluations)
			}
			if st.IsEvaluating {
				t.Error("IsEvaluating = true after failed evaluation, want false")
			}
			if st.Answers[1] != "an answer" {
				t.Errorf("Answers[1] = %q, want answer kept", st.Answers[1])
			}
		})
	}
}

func TestEvaluateCurrent_EmptyAnswerIsNoop(t *testing.T) {
	var calls int
	s := startedSession(t, WithEvaluator(evaluatorFunc(func(context.Context, string, string) (Evaluation, error) {
		calls++
		return Evaluation{}, nil
	})))
	v := s.Snapshot().Version
	s.EvaluateCurrent(context.Background())
	s.Wait()
	if calls != 0 {
		t.Errorf("evaluator calls = %d, want 0", calls)
	}
	if st := s.Snapshot(); st.Version != v || st.IsEvaluating {
		t.Errorf("version=%d evaluating=%v, want %d false", st.Version, st.IsEvaluating, v)
	}
}

func TestEvaluation_DoesNotBlockNavigation(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s := startedSession(t, WithEvaluator(evaluatorFunc(func(ctx context.Context, question, answer string) (Evaluation, error) {
		close(entered)
		<-release
		return Evaluation{Feedback: "for " + answer, Overall: 3}, nil
	})))

	s.SetTranscript("first")
	s.EvaluateCurrent(context.Background())
	<-entered

	// The evaluator is blocked; foreground transitions must still proceed.
	done := make(chan struct{})
	go func() {
		s.Next()
		s.SetTranscript("second")
		_ = s.Snapshot()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("foreground transitions blocked by in-flight evaluation")
	}
	if !s.Snapshot().IsEvaluating {
		t.Error("IsEvaluating = false while evaluation in flight, want true")
	}

	close(release)
	s.Wait()

	st := s.Snapshot()
	if ev, ok := st.Evaluations[1]; !ok || ev.Feedback != "for first" {
		t.Errorf("Evaluations[1] = %+v (ok=%v), want feedback %q", ev, ok, "for first")
	}
	if _, ok := st.Evaluations[2]; ok {
		t.Error("evaluation landed on question 2, want question 1 only")
	}
	if st.CurrentEvaluation != nil {
		t.Errorf("CurrentEvaluation = %+v, want nil for question 2", st.CurrentEvaluation)
	}
}

func TestEvaluation_CallTimeout(t *testing.T) {
	s := startedSession(t,
		WithCallTimeout(10*time.Millisecond),
		WithEvaluator(evaluatorFunc(func(ctx context.Context, _, _ string) (Evaluation, error) {
			<-ctx.Done()
			return Evaluation{}, ctx.Err()
		})),
	)
	s.SetTranscript("slow")
	s.EvaluateCurrent(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if st := s.Snapshot(); st.IsEvaluating || len(st.Evaluations) != 0 {
		t.Errorf("evaluating=%v evaluations=%v, want false none", st.IsEvaluating, st.Evaluations)
	}
}

// ── Finalization ───────────────────────────────────────────────────────────────

func TestFinalize_HappyPath(t *testing.T) {
	var transcript string
	s := startedSession(t,
		WithEvaluator(fixedEvaluator(Evaluation{Overall: 4})),
		WithSummarizer(summarizerFunc(func(_ context.Context, tr string) (OverallSummary, error) {
			transcript = tr
			return OverallSummary{Summary: "Solid candidate.", TotalAverage: 3.8}, nil
		})),
	)
	ctx := context.Background()

	s.SetTranscript("my best campaign")
	s.ToggleRecording(ctx)
	s.ToggleRecording(ctx)
	for range 6 {
		s.Next()
	}
	st := s.Snapshot()
	if !st.IsLastQuestion {
		t.Fatalf("IsLastQuestion = false at index %d", st.CurrentIndex)
	}
	if st.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", st.ProgressPercent)
	}

	s.Finalize(ctx)
	s.Wait()

	st = s.Snapshot()
	if st.Phase != PhaseFinished || !st.Finished {
		t.Errorf("Phase = %q finished=%v, want finished", st.Phase, st.Finished)
	}
	if st.IsEvaluating {
		t.Error("IsEvaluating = true after finalize, want false")
	}
	if st.OverallSummary == nil || st.OverallSummary.TotalAverage != 3.8 {
		t.Errorf("OverallSummary = %+v, want total 3.8", st.OverallSummary)
	}
	if !strings.Contains(transcript, "Q1: "+DefaultQuestions()[0].Text+"\nA: my best campaign\n") {
		t.Errorf("transcript missing first answer:\n%s", transcript)
	}
	if got := strings.Count(transcript, "A: No answer."); got != 6 {
		t.Errorf("placeholder count = %d, want 6", got)
	}

	// Finished sessions reject further navigation.
	v := st.Version
	s.Prev()
	s.Finalize(ctx)
	if st := s.Snapshot(); st.Version != v || st.CurrentIndex != 6 {
		t.Errorf("finished session changed: version=%d index=%d", st.Version, st.CurrentIndex)
	}
}

func TestFinalize_FreezesAnswers(t *testing.T) {
	var evals atomic.Int32
	s := startedSession(t,
		WithEvaluator(evaluatorFunc(func(context.Context, string, string) (Evaluation, error) {
			evals.Add(1)
			return Evaluation{Overall: 3}, nil
		})),
		WithSummarizer(summarizerFunc(func(context.Context, string) (OverallSummary, error) {
			return OverallSummary{Summary: "Done.", TotalAverage: 3}, nil
		})),
	)
	ctx := context.Background()
	for range 6 {
		s.Next()
	}
	s.SetTranscript("closing answer")
	s.Finalize(ctx)
	s.Wait()
	if st := s.Snapshot(); st.Phase != PhaseFinished {
		t.Fatalf("Phase = %q, want finished", st.Phase)
	}
	before := evals.Load()

	s.ToggleRecording(ctx)
	s.SetTranscript("late")
	s.ToggleRecording(ctx)
	s.SetAnswer("later")
	s.EvaluateCurrent(ctx)
	s.Wait()

	st := s.Snapshot()
	if got := st.Answers[st.CurrentQuestion.ID]; got != "closing answer" {
		t.Errorf("answer = %q, want closing answer", got)
	}
	if evals.Load() != before {
		t.Errorf("evaluations after finish = %d, want %d", evals.Load(), before)
	}
	if st.IsEvaluating {
		t.Error("IsEvaluating = true on a finished session")
	}
}

func TestFinalize_NotOnLastQuestion(t *testing.T) {
	var calls int
	s := startedSession(t, WithSummarizer(summarizerFunc(func(context.Context, string) (OverallSummary, error) {
		calls++
		return OverallSummary{Summary: "x"}, nil
	})))
	s.Finalize(context.Background())
	s.Wait()
	if calls != 0 {
		t.Errorf("summarizer calls = %d, want 0", calls)
	}
	if s.Snapshot().Finished {
		t.Error("Finished = true, want false")
	}
}

func TestFinalize_FailureLeavesUnfinished(t *testing.T) {
	tests := []struct {
		name string
		sum  Summarizer
	}{
		{"provider error", NewLLMSummarizer(&llmmock.Provider{CompleteErr: errors.New("timeout")})},
		{"malformed", NewLLMSummarizer(&llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: `{"summary": "ok"}`},
		})},
		{"not configured", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.sum != nil {
				opts = append(opts, WithSummarizer(tt.sum))
			}
			s := startedSession(t, append(opts, WithQuestions([]Question{{ID: 1, Text: "only"}}))...)
			s.Finalize(context.Background())
			s.Wait()

			st := s.Snapshot()
			if st.Finished || st.Phase != PhaseInProgress {
				t.Errorf("Phase = %q, want %q", st.Phase, PhaseInProgress)
			}
			if st.OverallSummary != nil {
				t.Errorf("OverallSummary = %+v, want nil", st.OverallSummary)
			}
			if st.IsEvaluating {
				t.Error("IsEvaluating = true, want false")
			}
		})
	}
}

func TestFinalize_RetryAfterFailure(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	s := startedSession(t,
		WithQuestions([]Question{{ID: 1, Text: "only"}}),
		WithSummarizer(summarizerFunc(func(context.Context, string) (OverallSummary, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return OverallSummary{}, errors.New("transient")
			}
			return OverallSummary{Summary: "done", TotalAverage: 2}, nil
		})),
	)
	s.Finalize(context.Background())
	s.Wait()
	if s.Snapshot().Finished {
		t.Fatal("Finished after failed summary")
	}
	s.Finalize(context.Background())
	s.Wait()
	if !s.Snapshot().Finished {
		t.Error("Finished = false after successful retry")
	}
}

func TestFinalize_DuplicateIgnored(t *testing.T) {
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
	)
	s := startedSession(t,
		WithQuestions([]Question{{ID: 1, Text: "only"}}),
		WithSummarizer(summarizerFunc(func(context.Context, string) (OverallSummary, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-release
			return OverallSummary{Summary: "done"}, nil
		})),
	)
	s.Finalize(context.Background())
	s.Finalize(context.Background())
	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("summarizer calls = %d, want 1", calls)
	}
}

// ── Subscriptions ──────────────────────────────────────────────────────────────

func TestSubscribe(t *testing.T) {
	s := newTestSession(t)
	ch, cancel := s.Subscribe()

	initial := <-ch
	if initial.Phase != PhaseNotStarted {
		t.Errorf("initial Phase = %q, want %q", initial.Phase, PhaseNotStarted)
	}

	s.SetAISpeaking(true)
	got := <-ch
	if !got.IsAISpeaking || got.Version <= initial.Version {
		t.Errorf("update = speaking %v version %d, want true > %d", got.IsAISpeaking, got.Version, initial.Version)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	s.SetAISpeaking(false)
}

func TestSubscribe_SlowSubscriberSeesLatest(t *testing.T) {
	s := startedSession(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	for range 5 {
		s.Next()
	}
	st := <-ch
	if st.CurrentIndex != 5 {
		t.Errorf("CurrentIndex = %d, want 5", st.CurrentIndex)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra state with version %d", extra.Version)
	default:
	}
}

// ── Concurrency ────────────────────────────────────────────────────────────────

func TestSession_ConcurrentUse(t *testing.T) {
	s := startedSession(t,
		WithEvaluator(fixedEvaluator(Evaluation{Overall: 1})),
		WithSummarizer(summarizerFunc(func(context.Context, string) (OverallSummary, error) {
			return OverallSummary{Summary: "x"}, nil
		})),
	)
	ch, cancel := s.Subscribe()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				switch (i + j) % 6 {
				case 0:
					s.Next()
				case 1:
					s.Prev()
				case 2:
					s.SetTranscript("answer")
				case 3:
					s.ToggleRecording(ctx)
				case 4:
					_ = s.Snapshot()
				case 5:
					s.EvaluateCurrent(ctx)
				}
			}
		}()
	}
	go func() {
		for range ch {
		}
	}()
	wg.Wait()
	s.Wait()
	cancel()

	st := s.Snapshot()
	if st.CurrentIndex < 0 || st.CurrentIndex >= st.TotalQuestions {
		t.Errorf("CurrentIndex = %d out of range", st.CurrentIndex)
	}
	if st.IsEvaluating {
		t.Error("IsEvaluating = true after all tasks finished")
	}
}

// ── Report ─────────────────────────────────────────────────────────────────────

func TestSession_Report(t *testing.T) {
	s := startedSession(t)
	s.SetTranscript("answer one")
	out, err := s.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	body := string(out)
	for _, want := range []string{`"questions": [`, `"1": "answer one"`, `"evaluations": {}`, `"summary": {}`} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q:\n%s", want, body)
		}
	}
}

func TestSession_ScriptedReasoningService(t *testing.T) {
	p := &llmmock.Provider{Replies: []string{
		validEvaluation,
		`{"summary": "Strong closer with clear metrics.", "total_average": 4.2}`,
	}}
	s := startedSession(t, WithEvaluator(NewLLMEvaluator(p)), WithSummarizer(NewLLMSummarizer(p)))
	ctx := context.Background()

	s.SetTranscript("I grew the region by 40 percent.")
	s.SetRecording(ctx, true)
	s.SetRecording(ctx, false)
	s.Wait()
	for range 6 {
		s.Next()
	}
	s.Finalize(ctx)
	s.Wait()

	st := s.Snapshot()
	if !st.Finished || st.OverallSummary == nil || st.OverallSummary.TotalAverage != 4.2 {
		t.Fatalf("finished=%v summary=%+v, want finished with total 4.2", st.Finished, st.OverallSummary)
	}
	calls := p.Calls()
	if len(calls) != 2 {
		t.Fatalf("Complete calls = %d, want 2", len(calls))
	}
	if !strings.Contains(calls[0].Req.Messages[0].Content, "I grew the region by 40 percent.") {
		t.Error("evaluation prompt does not carry the answer")
	}
	if !strings.Contains(calls[1].Req.Messages[0].Content, "Q7: ") {
		t.Error("summary prompt does not carry the full transcript")
	}
}

func TestLLMStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrNotConfigured, "skipped"},
		{ErrMalformedResponse, "malformed"},
		{llm.ErrEmptyResponse, "malformed"},
		{&llm.APIError{Provider: "openai", StatusCode: 401, Err: errors.New("bad key")}, "unauthorized"},
		{&llm.APIError{Provider: "gemini", StatusCode: 429, Err: errors.New("quota")}, "rate_limited"},
		{errors.New("connection refused"), "error"},
	}
	for _, tt := range tests {
		if got := llmStatus(tt.err); got != tt.want {
			t.Errorf("llmStatus(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
