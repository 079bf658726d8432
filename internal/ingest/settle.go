package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"
)

// SettleResult tells how a settle-wait ended.
type SettleResult int

const (
	// Stable: two consecutive reads returned the same non-zero size.
	Stable SettleResult = iota
	// Vanished: the file disappeared while waiting.
	Vanished
	// Exhausted: the attempt budget ran out; the caller proceeds anyway.
	Exhausted
)

func (r SettleResult) String() string {
	switch r {
	case Stable:
		return "stable"
	case Vanished:
		return "vanished"
	default:
		return "exhausted"
	}
}

// Settler polls a file's size until it stops changing.
type Settler struct {
	Interval time.Duration
	Attempts int

	stat  func(string) (int64, error)
	sleep func(context.Context, time.Duration) error
}

func NewSettler(interval time.Duration, attempts int) *Settler {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if attempts <= 0 {
		attempts = 24
	}
	return &Settler{Interval: interval, Attempts: attempts, stat: fileSize, sleep: sleepCtx}
}

// Wait blocks until path is stable, gone, or the budget is spent. It
// returns ctx.Err() only when ctx ends first.
func (s *Settler) Wait(ctx context.Context, path string) (SettleResult, error) {
	for i := 0; i < s.Attempts; i++ {
		before, err := s.stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Vanished, nil
			}
			return Exhausted, nil
		}
		if err := s.sleep(ctx, s.Interval); err != nil {
			return Exhausted, err
		}
		after, err := s.stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Vanished, nil
			}
			return Exhausted, nil
		}
		if before == after && after > 0 {
			return Stable, nil
		}
	}
	return Exhausted, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
