package cli_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cortex/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalContext_CancelHasNoSignal(t *testing.T) {
	sc := cli.NewSignalContext(context.Background())
	assert.Nil(t, sc.Signal())

	sc.Cancel()
	select {
	case <-sc.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	assert.Nil(t, sc.Signal())
}

func TestSignalContext_FollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sc := cli.NewSignalContext(parent)
	defer sc.Cancel()

	cancel()
	<-sc.Done()
	require.ErrorIs(t, sc.Err(), context.Canceled)
	assert.Nil(t, sc.Signal())
}
