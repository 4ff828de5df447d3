package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	runs     atomic.Int32
	panicRun int32
}

func (w *countingWorker) Run(ctx context.Context) error {
	run := w.runs.Add(1)
	if run == w.panicRun {
		panic("boom")
	}
	<-ctx.Done()
	return nil
}

func TestSupervisor_Restarts_Panicked_Worker(t *testing.T) {
	req := require.New(t)
	supervisor := NewSupervisor(slog.Default())
	worker := &countingWorker{panicRun: 1}
	supervisor.Add(worker)

	supervisor.Run(context.Background())
	defer supervisor.Stop()

	req.Eventually(func() bool {
		return worker.runs.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond, "worker should be restarted after a panic")
}

func TestSupervisor_Stop_Waits_For_Workers(t *testing.T) {
	req := require.New(t)
	supervisor := NewSupervisor(slog.Default())
	worker := &countingWorker{}
	supervisor.Add(worker)

	supervisor.Run(context.Background())
	supervisor.Stop()

	req.Equal(int32(1), worker.runs.Load())
}
