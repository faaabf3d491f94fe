package app_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/internal/app"
	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/storage"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	llmmock "github.com/MrWong99/mockinterview/pkg/provider/llm/mock"
	"github.com/MrWong99/mockinterview/pkg/provider/tts"
	ttsmock "github.com/MrWong99/mockinterview/pkg/provider/tts/mock"
)

// testConfig returns the default config with storage in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Storage.Dir = t.TempDir()
	return cfg
}

// testProviders returns mock LLM/TTS providers.
func testProviders() *app.Providers {
	return &app.Providers{
		LLM: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `{"summary":"ok","total_average":3}`}},
		TTS: &ttsmock.Provider{SynthesizeResult: []byte("audio")},
	}
}

func newApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(a.Session().Wait)
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t), testProviders())
	if got := a.Session().Snapshot().TotalQuestions; got != 7 {
		t.Errorf("TotalQuestions = %d, want 7", got)
	}
	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("/readyz body = %s, want status ok", rec.Body.String())
	}
}

func TestNew_ConfiguredQuestions(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Interview.Questions = []config.QuestionConfig{
		{ID: 10, Text: "Walk me through your pipeline."},
		{ID: 20, Text: "How do you forecast?"},
	}
	a := newApp(t, cfg, testProviders())

	st := a.Session().Snapshot()
	if st.TotalQuestions != 2 || st.Questions[1].ID != 20 {
		t.Errorf("questions = %+v, want configured catalog", st.Questions)
	}
}

func TestNew_NoProvidersDegrades(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t), nil)
	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"degraded"`) || !strings.Contains(body, "not configured") {
		t.Errorf("/readyz body = %s, want degraded not configured", body)
	}
}

func TestNew_InvalidStorageDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.Storage.Dir = file

	if _, err := app.New(context.Background(), cfg, nil); err == nil {
		t.Fatal("New() succeeded with a file as storage dir")
	}
}

func TestNew_SynthesisUsesConfiguredVoice(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Interview.Voice = config.VoiceConfig{VoiceID: "voice-42", SpeedFactor: 1.1}
	voice := &ttsmock.Provider{SynthesizeResult: []byte("audio")}
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a := newApp(t, cfg, &app.Providers{TTS: voice}, app.WithStore(store))

	a.Session().Start(context.Background())
	a.Session().Wait()

	calls := voice.Calls()
	if len(calls) != 7 {
		t.Fatalf("Synthesize calls = %d, want 7", len(calls))
	}
	if v := calls[0].Voice; v.ID != "voice-42" || v.SpeedFactor != 1.1 || v.OutputFormat == "" {
		t.Errorf("voice = %+v, want configured id and speed on default format", v)
	}
	if ok, _ := store.Exists(context.Background(), "question_1.mp3"); !ok {
		t.Error("question_1.mp3 not stored in injected store")
	}
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	providers := testProviders()
	providers.TTS = &ttsmock.Provider{ListVoicesResult: []tts.VoiceProfile{{ID: "other"}}}
	a := newApp(t, testConfig(t), providers, app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, body %s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestShutdown_DeadlineWithPendingTasks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	voice := &ttsmock.Provider{
		SynthesizeFunc: func(context.Context, string, tts.VoiceProfile) ([]byte, error) {
			<-release
			return []byte("audio"), nil
		},
	}
	a := newApp(t, testConfig(t), &app.Providers{TTS: voice})
	t.Cleanup(func() { close(release) })

	a.Session().Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want deadline exceeded", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v, want nil", err)
	}
}
