package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/internal/resilience"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	llmmock "github.com/MrWong99/mockinterview/pkg/provider/llm/mock"
)

func TestProviderCheck(t *testing.T) {
	ctx := context.Background()

	if err := providerCheck(nil)(ctx); !errors.Is(err, errNotConfigured) {
		t.Errorf("nil provider: err = %v, want errNotConfigured", err)
	}
	if err := providerCheck(&llmmock.Provider{})(ctx); err != nil {
		t.Errorf("plain provider: err = %v, want nil", err)
	}

	fb := resilience.NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("503")}, "gemini",
		resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}})
	fb.AddFallback("openai", &llmmock.Provider{CompleteErr: errors.New("503")})
	check := providerCheck(fb)
	if err := check(ctx); err != nil {
		t.Fatalf("fresh chain: err = %v, want nil", err)
	}

	_, _ = fb.Complete(ctx, llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("q")}})
	err := check(ctx)
	if err == nil || !strings.Contains(err.Error(), "gemini, openai") {
		t.Errorf("tripped chain: err = %v, want both backends named", err)
	}
}
