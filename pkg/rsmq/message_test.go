package rsmq_test

import (
	"testing"
	"time"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/stretchr/testify/assert"
)

func TestUnitMessage_StateIsDerivedFromVisibleAt(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	msg := &rsmq.Message{VisibleAt: now}

	assert.Equal(t, rsmq.StateReady, msg.State(now))
	assert.Equal(t, rsmq.StateReady, msg.State(now.Add(time.Millisecond)))
	assert.Equal(t, rsmq.StateHidden, msg.State(now.Add(-time.Millisecond)))
}

func TestUnitMessage_StateString(t *testing.T) {
	assert.Equal(t, "ready", rsmq.StateReady.String())
	assert.Equal(t, "hidden", rsmq.StateHidden.String())
	assert.Equal(t, "unknown", rsmq.State(7).String())
}
