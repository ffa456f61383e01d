package sweeper_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/aidarbek/user-accounts/internal/sweeper"
)

type fakePurger struct {
	deleteExpired func(ctx context.Context) (int64, error)
	calls         int
}

func (p *fakePurger) DeleteExpired(ctx context.Context) (int64, error) {
	p.calls++
	return p.deleteExpired(ctx)
}

func newSweeper(p *fakePurger) *sweeper.Sweeper {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return sweeper.New(p, logger, "@hourly")
}

func TestSweep_CallsPurger(t *testing.T) {
	p := &fakePurger{
		deleteExpired: func(_ context.Context) (int64, error) { return 42, nil },
	}

	newSweeper(p).Sweep(context.Background())
	if p.calls != 1 {
		t.Errorf("purger called %d times, want 1", p.calls)
	}
}

func TestSweep_PurgerError_DoesNotPanic(t *testing.T) {
	p := &fakePurger{
		deleteExpired: func(_ context.Context) (int64, error) { return 0, errors.New("db down") },
	}

	newSweeper(p).Sweep(context.Background())
	if p.calls != 1 {
		t.Errorf("purger called %d times, want 1", p.calls)
	}
}

func TestStart_InvalidSchedule_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s := sweeper.New(&fakePurger{}, logger, "not a schedule")
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
