// File: internal/infra/adapters/ai/client_test.go
package ai_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/domain/ports/adapter"
	ai "finiq-ai-pipeline/internal/infra/adapters/ai"
	"finiq-ai-pipeline/internal/ratelimit"
)

type stubAI struct {
	mu      sync.Mutex
	name    string
	calls   int
	inUse   int
	maxSeen int
	err     error
	reply   string
}

func (s *stubAI) Model() string { return s.name }

func (s *stubAI) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	text, _, err := s.CompleteWithUsage(ctx, prompt, temperature, maxTokens)
	return text, err
}

func (s *stubAI) CompleteWithUsage(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, adapter.Usage, error) {
	s.mu.Lock()
	s.calls++
	s.inUse++
	if s.inUse > s.maxSeen {
		s.maxSeen = s.inUse
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inUse--
	s.mu.Unlock()

	if s.err != nil {
		return "", adapter.Usage{}, s.err
	}
	reply := s.reply
	if reply == "" {
		reply = "ok"
	}
	return reply, adapter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
}

func TestFallbackClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	nop := zerolog.Nop()

	t.Run("primary success skips secondary", func(t *testing.T) {
		primary := &stubAI{name: "gemini-2.0-flash", reply: "from-primary"}
		secondary := &stubAI{name: "gpt-4o-mini"}
		fc := ai.NewFallbackClient(primary, secondary, &nop)

		got, err := fc.Complete(ctx, "p", 0.3, 128)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if got != "from-primary" {
			t.Fatalf("got %q, want from-primary", got)
		}
		if secondary.calls != 0 {
			t.Fatalf("secondary called %d times, want 0", secondary.calls)
		}
	})

	t.Run("primary failure falls through", func(t *testing.T) {
		primary := &stubAI{name: "gemini-2.0-flash", err: errors.New("quota exhausted")}
		secondary := &stubAI{name: "gpt-4o-mini", reply: "from-secondary"}
		fc := ai.NewFallbackClient(primary, secondary, &nop)

		got, err := fc.Complete(ctx, "p", 0.3, 128)
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if got != "from-secondary" {
			t.Fatalf("got %q, want from-secondary", got)
		}
	})

	t.Run("both failing reports primary cause", func(t *testing.T) {
		primaryErr := errors.New("quota exhausted")
		primary := &stubAI{name: "gemini-2.0-flash", err: primaryErr}
		secondary := &stubAI{name: "gpt-4o-mini", err: errors.New("also down")}
		fc := ai.NewFallbackClient(primary, secondary, &nop)

		_, err := fc.Complete(ctx, "p", 0.3, 128)
		if !errors.Is(err, primaryErr) {
			t.Fatalf("error %v should wrap the primary cause", err)
		}
	})

	t.Run("deadline is not retried", func(t *testing.T) {
		primary := &stubAI{name: "gemini-2.0-flash", err: context.DeadlineExceeded}
		secondary := &stubAI{name: "gpt-4o-mini"}
		fc := ai.NewFallbackClient(primary, secondary, &nop)

		_, err := fc.Complete(ctx, "p", 0.3, 128)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("want DeadlineExceeded, got %v", err)
		}
		if secondary.calls != 0 {
			t.Fatalf("secondary called %d times after deadline, want 0", secondary.calls)
		}
	})
}

func TestLimitedClientBoundsConcurrency(t *testing.T) {
	t.Parallel()
	stub := &stubAI{name: "noop"}
	lc := ai.NewLimitedClient(stub, 2)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = lc.Complete(context.Background(), "p", 0, 0)
		}()
	}
	wg.Wait()

	if stub.calls != 12 {
		t.Fatalf("calls = %d, want 12", stub.calls)
	}
	if stub.maxSeen > 2 {
		t.Fatalf("max concurrent = %d, want <= 2", stub.maxSeen)
	}
}

func TestLimitedClientDisabled(t *testing.T) {
	t.Parallel()
	stub := &stubAI{name: "noop"}
	if got := ai.NewLimitedClient(stub, 0); got != adapter.ModelClient(stub) {
		t.Fatal("maxConcurrent 0 should return the inner client")
	}
}

func TestPacedClientWaitsForWindow(t *testing.T) {
	t.Parallel()
	stub := &stubAI{name: "noop"}
	lim := ratelimit.New(2, 60*time.Millisecond)
	pc := ai.NewPacedClient(stub, lim, "test")

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := pc.Complete(context.Background(), "p", 0, 0); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("third call returned after %v, expected it to wait for the window", elapsed)
	}
	if stub.calls != 3 {
		t.Fatalf("calls = %d, want 3", stub.calls)
	}
}

func TestPacedClientHonorsContext(t *testing.T) {
	t.Parallel()
	stub := &stubAI{name: "noop"}
	lim := ratelimit.New(1, time.Hour)
	pc := ai.NewPacedClient(stub, lim, "test")

	if _, err := pc.Complete(context.Background(), "p", 0, 0); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := pc.Complete(ctx, "p", 0, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded while pacing, got %v", err)
	}
}

func TestNoopClientServesChainFragments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	n := ai.NewNoopClient(0)

	cases := []struct {
		sniff string
		want  string
	}{
		{"determine the most appropriate funding stage", `"funding_stage"`},
		{"Recommend the ideal funding amount", `"recommended_amount"`},
		{"Identify the best investor types", `"primary_investor_type"`},
		{"Calculate expected runway", `"estimated_runway_months"`},
		{"financial prioritization", `"priorities"`},
	}
	for _, tc := range cases {
		got, err := n.Complete(ctx, "Role text. "+tc.sniff+" now.", 0.3, 256)
		if err != nil {
			t.Fatalf("Complete(%q): %v", tc.sniff, err)
		}
		if !strings.Contains(got, tc.want) {
			t.Fatalf("reply for %q = %q, want it to contain %s", tc.sniff, got, tc.want)
		}
	}
}

func TestNoopClientRespectsContext(t *testing.T) {
	t.Parallel()
	n := ai.NewNoopClient(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := n.Complete(ctx, "p", 0, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}

func TestEstimateUsage(t *testing.T) {
	t.Parallel()
	u := ai.EstimateUsage("hello there, this is the prompt", "and this is the completion")
	if u.PromptTokens <= 0 || u.CompletionTokens <= 0 {
		t.Fatalf("estimates should be positive, got %+v", u)
	}
	if u.TotalTokens != u.PromptTokens+u.CompletionTokens {
		t.Fatalf("total %d != in %d + out %d", u.TotalTokens, u.PromptTokens, u.CompletionTokens)
	}
}
