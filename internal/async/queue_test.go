package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

type countingProcessor struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func (p *countingProcessor) Process(_ context.Context, path string, source constants.Source) (*entity.Job, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	p.calls.Add(1)
	time.Sleep(2 * time.Millisecond)
	if path == "panic" {
		panic("boom")
	}
	if path == "fail" {
		return nil, errors.New("record job: db down")
	}
	return &entity.Job{InputPath: path, Source: source, Status: constants.JobStatusOK}, nil
}

func TestQueueSerializesProcessing(t *testing.T) {
	proc := &countingProcessor{}
	q := NewQueue(proc, nil, WithQueueSize(2))
	defer q.Shutdown(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("file-%d.pdf", i)
			job, err := q.Submit(context.Background(), path, constants.SourceUpload)
			if err != nil {
				t.Errorf("submit %s: %v", path, err)
				return
			}
			if job.InputPath != path {
				t.Errorf("got job for %q, want %q", job.InputPath, path)
			}
		}(i)
	}
	wg.Wait()

	if got := proc.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent Process calls = %d, want 1", got)
	}
	if st := q.Stats(); st.Processed != 16 || st.Errors != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestQueueReportsErrorsAndPanics(t *testing.T) {
	q := NewQueue(&countingProcessor{}, nil)
	defer q.Shutdown(context.Background())

	if _, err := q.Submit(context.Background(), "fail", constants.SourceIngest); err == nil {
		t.Error("expected processing error")
	}
	if _, err := q.Submit(context.Background(), "panic", constants.SourceIngest); err == nil {
		t.Error("expected panic to surface as an error")
	}
	// the worker survives a panic
	if _, err := q.Submit(context.Background(), "ok.pdf", constants.SourceIngest); err != nil {
		t.Errorf("submit after panic: %v", err)
	}
	if st := q.Stats(); st.Processed != 3 || st.Errors != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	proc := &countingProcessor{}
	q := NewQueue(proc, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	if _, err := q.Submit(context.Background(), "late.pdf", constants.SourceIngest); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
	if proc.calls.Load() != 0 {
		t.Error("processor ran after shutdown")
	}
}
