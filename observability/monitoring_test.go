package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	rt "github.com/Finding-a-partner/finding-a-partner/runtime"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	stats rt.Stats
}

func (s staticSource) Stats() rt.Stats { return s.stats }

func Test_Monitor_Reports_On_Interval(t *testing.T) {
	var buffer bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buffer, nil))
	source := staticSource{stats: rt.Stats{Connections: 3, Published: 42}}

	monitor := NewMonitor(log, source, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, monitor.Run(ctx))
	require.Contains(t, buffer.String(), `"connections":3`)
	require.Contains(t, buffer.String(), `"published":42`)
}
