package rsmq_test

import (
	"context"
	"testing"
	"time"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queueAttributeNames = []string{"vt", "delay", "maxsize", "created", "modified", "totalrecv", "totalsent"}

// requireQueueIntact checks that jobs still has its default config, its
// counters, and accepts a send and a receive.
func requireQueueIntact(t *testing.T, env *testEnv, sent int64) {
	t.Helper()
	ctx := context.Background()

	attrs, err := env.Client.GetQueueAttributes(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, rsmq.DefaultQueueConfig(), attrs.QueueConfig)
	assert.Equal(t, sent, attrs.TotalSent)
	assert.True(t, attrs.Created.Equal(env.Clock.Now()))

	_, err = env.Client.SendMessage(ctx, "jobs", []byte("after"))
	require.NoError(t, err)
	_, err = env.Client.ReceiveMessage(ctx, "jobs")
	require.NoError(t, err)
}

func TestLayout_AttributeNamesAreNotMessageIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		env.createQueue(t, "jobs")
		_, err := env.Client.SendMessage(ctx, "jobs", []byte("x"))
		require.NoError(t, err)

		for _, name := range queueAttributeNames {
			err := env.Client.DeleteMessage(ctx, "jobs", name)
			assert.ErrorIs(t, err, rsmq.ErrInvalidParameter, "delete %q", name)

			err = env.Client.ChangeMessageVisibility(ctx, "jobs", name, time.Minute)
			assert.ErrorIs(t, err, rsmq.ErrInvalidParameter, "change visibility %q", name)
		}

		requireQueueIntact(t, env, 1)
	})
}

func TestLayout_StoreDeleteOfAttributeNameKeepsQueue(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		env.createQueue(t, "jobs")
		_, err := env.Client.SendMessage(ctx, "jobs", []byte("x"))
		require.NoError(t, err)

		for _, name := range queueAttributeNames {
			err := env.Store.Delete(ctx, "jobs", name)
			assert.ErrorIs(t, err, rsmq.ErrMessageNotFound, "delete %q", name)

			err = env.Store.SetVisibleAt(ctx, "jobs", name, env.Clock.Now())
			assert.ErrorIs(t, err, rsmq.ErrMessageNotFound, "set visible %q", name)
		}

		requireQueueIntact(t, env, 1)
	})
}

func TestLayout_UnknownIDDeleteIsHarmless(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		env.createQueue(t, "jobs")
		id, err := env.Client.SendMessage(ctx, "jobs", []byte("x"))
		require.NoError(t, err)

		assert.ErrorIs(t, env.Client.DeleteMessage(ctx, "jobs", "neverSent1"), rsmq.ErrMessageNotFound)

		attrs, err := env.Client.GetQueueAttributes(ctx, "jobs")
		require.NoError(t, err)
		assert.Equal(t, int64(1), attrs.Messages)

		msg, err := env.Client.ReceiveMessage(ctx, "jobs")
		require.NoError(t, err)
		assert.Equal(t, id, msg.ID)
	})
}

func TestLayout_QueueNamedLikeRegistry(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *testEnv) {
		ctx := context.Background()
		env.createQueue(t, "orders")
		env.createQueue(t, "QUEUES")

		_, err := env.Client.SendMessage(ctx, "QUEUES", []byte("a"))
		require.NoError(t, err)
		msg, err := env.Client.ReceiveMessage(ctx, "QUEUES")
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), msg.Payload)

		names, err := env.Client.ListQueues(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"QUEUES", "orders"}, names)

		require.NoError(t, env.Client.DeleteQueue(ctx, "QUEUES"))

		names, err = env.Client.ListQueues(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders"}, names)

		_, err = env.Client.SendMessage(ctx, "orders", []byte("b"))
		require.NoError(t, err)
	})
}
