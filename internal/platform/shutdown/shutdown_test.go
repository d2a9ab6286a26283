package shutdown

import (
	"context"
	"errors"
	"testing"

	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownStopsWorkersBeforeFinalSteps(t *testing.T) {
	graceful := lifecycle.NewManager("graceful", nil)
	forceful := lifecycle.NewManager("forceful", nil)

	var order []string
	h, err := graceful.NewServiceHandle("worker")
	require.NoError(t, err)
	stopped := make(chan struct{})
	go func() {
		<-h.Done()
		order = append(order, "worker")
		close(stopped)
		h.Close()
	}()

	c := NewCoordinator(graceful, forceful, nil)
	c.Finally("flush", func(context.Context) error {
		<-stopped
		order = append(order, "flush")
		return nil
	})
	c.Finally("broken", func(context.Context) error {
		order = append(order, "broken")
		return errors.New("boom")
	})

	c.Shutdown(nil)
	assert.Equal(t, []string{"worker", "flush", "broken"}, order)
}
