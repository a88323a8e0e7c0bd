package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errDeadlock = &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	errSyntax   = &pgconn.PgError{Code: "42601", Message: "syntax error"}
)

func fastExecutor(maxAttempts int) *Executor {
	return NewExecutor(
		NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(maxAttempts, WithInitialDelay(time.Millisecond), WithJitter(0)),
	)
}

// failing returns an operation that fails with err for the first n calls.
func failing(n int, err error, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestExecutor_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	if err := fastExecutor(3).Execute(context.Background(), failing(0, nil, &calls)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_RetriesTransient(t *testing.T) {
	calls := 0
	if err := fastExecutor(5).Execute(context.Background(), failing(3, errDeadlock, &calls)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestExecutor_FatalNotRetried(t *testing.T) {
	calls := 0
	err := fastExecutor(5).Execute(context.Background(), failing(10, errSyntax, &calls))

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42601" {
		t.Fatalf("err = %v, want syntax error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastExecutor(3).Execute(context.Background(), failing(100, errDeadlock, &calls))
	if err != errDeadlock {
		t.Fatalf("err = %v, want last transient error", err)
	}
	// initial attempt + 3 retries
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestExecutor_NoRetriesStrategy(t *testing.T) {
	calls := 0
	_ = fastExecutor(0).Execute(context.Background(), failing(100, errDeadlock, &calls))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_ContextCancelledDuringWait(t *testing.T) {
	executor := NewExecutor(
		NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(10, WithInitialDelay(time.Second), WithJitter(0)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := executor.Execute(ctx, failing(100, errDeadlock, &calls))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_OnRetryReceivesGrowingDelays(t *testing.T) {
	var delays []time.Duration
	executor := fastExecutor(3).WithOnRetry(func(_ int, _ error, delay time.Duration) {
		delays = append(delays, delay)
	})

	calls := 0
	if err := executor.Execute(context.Background(), failing(3, errDeadlock, &calls)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("got %d callbacks, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestExecutor_WithOnRetryDoesNotMutateReceiver(t *testing.T) {
	base := fastExecutor(1)
	_ = base.WithOnRetry(func(int, error, time.Duration) {})
	if base.onRetry != nil {
		t.Error("WithOnRetry modified the receiver")
	}
}

func TestValue_ReturnsResultOfLastAttempt(t *testing.T) {
	calls := 0
	rows, err := Value(context.Background(), fastExecutor(3), func(context.Context) (int64, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("server closed the connection unexpectedly")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 42 {
		t.Errorf("rows = %d, want 42", rows)
	}
}

func TestNewExecutor_PanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil classifier")
		}
	}()
	NewExecutor(nil, NewExponentialBackoff(1))
}
