package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutFastPath(t *testing.T) {
	got, err := WithTimeout(context.Background(), time.Second, func(context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("WithTimeout err: %v", err)
	}
	if got != "done" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestWithTimeoutSlowOperationLoses(t *testing.T) {
	started := time.Now()
	_, err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("timeout race took too long: %v", elapsed)
	}
}

func TestWithTimeoutPropagatesError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	_, err := WithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}
}
