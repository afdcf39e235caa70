package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

// run executes cmd against addr with namespace "clitest" and returns the
// exit code and captured output.
func run(t *testing.T, cmd *cobra.Command, addr, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--redis", addr, "--ns", "clitest", "--log-level", "error"))

	code := Execute(context.Background(), cmd)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestExitCode_MapsEveryKind(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{rsmq.ErrQueueNotFound, ExitQueueNotFound},
		{rsmq.ErrDuplicateQueue, ExitDuplicateQueue},
		{&rsmq.InvalidParameterError{Field: "x"}, ExitInvalidParameter},
		{fmt.Errorf("wrapped: %w", rsmq.ErrPayloadTooLarge), ExitPayloadTooLarge},
		{&rsmq.OpError{Op: "delete_message", Err: rsmq.ErrMessageNotFound}, ExitMessageNotFound},
		{rsmq.ErrNoMessageAvailable, ExitNoMessageAvailable},
		{fmt.Errorf("%w: dial", rsmq.ErrBackingStoreUnavailable), ExitBackingStoreUnavailable},
		{rsmq.ErrConcurrentModificationRetryExhausted, ExitConcurrentModification},
		{errors.New("unknown flag: --bogus"), ExitFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "ExitCode(%v)", tt.err)
	}
}

func TestFail_WritesErrorLine(t *testing.T) {
	var buf bytes.Buffer

	code := Fail(&buf, rsmq.ErrQueueNotFound)

	assert.Equal(t, ExitQueueNotFound, code)
	assert.Equal(t, "Error: rsmq: queue not found\n", buf.String())
}

func TestConnectionFlags_DefaultsFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_USE_TLS", "yes")
	t.Setenv("RSMQ_NAMESPACE", "orders")

	conn := AddConnectionFlags(&cobra.Command{Use: "x"})

	assert.Equal(t, "redis.internal:6380", conn.Addr)
	assert.Equal(t, "secret", conn.Password)
	assert.True(t, conn.TLS)
	assert.Equal(t, "orders", conn.Namespace)

	cfg, err := conn.Config()
	require.NoError(t, err)
	assert.True(t, cfg.Redis.UseTLS)
	assert.Equal(t, rsmq.ClaimStrategyScript, cfg.Claim.Strategy)
}

func TestConnectionConfig_RejectsBadStrategy(t *testing.T) {
	conn := &Connection{Addr: "localhost:6379", Namespace: "ns", Strategy: "lock"}

	_, err := conn.Config()
	assert.ErrorIs(t, err, rsmq.ErrInvalidParameter)
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()

	assert.True(t, NewLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewLogger("info").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewLogger("WARN").Enabled(ctx, slog.LevelInfo))
	assert.True(t, NewLogger("error").Enabled(ctx, slog.LevelError))
	assert.True(t, NewLogger("nonsense").Enabled(ctx, slog.LevelInfo))
}

func TestAdmin_QueueLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)

	res := run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "orders", "--visibility", "45", "--max-size", "2048")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Created queue 'orders'")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "orders")
	assert.Equal(t, ExitDuplicateQueue, res.code)
	assert.True(t, strings.HasPrefix(res.stderr, "Error: "))

	res = run(t, NewAdminCommand(), mr.Addr(), "", "attributes", "--queue", "orders", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	var view queueView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
	assert.Equal(t, "orders", view.Name)
	assert.Equal(t, int64(45), view.VisibilityTimeout)
	assert.Equal(t, 2048, view.MaxSize)

	res = run(t, NewAdminCommand(), mr.Addr(), "", "set", "--queue", "orders", "--delay", "5")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Delay:       5s")
	assert.Contains(t, res.stdout, "Visibility:  45s", "unchanged flags keep their value")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "set", "--queue", "orders")
	assert.Equal(t, ExitInvalidParameter, res.code, "an update needs at least one setting")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "emails")
	require.Equal(t, ExitOK, res.code, res.stderr)

	res = run(t, NewAdminCommand(), mr.Addr(), "", "list")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "emails\norders\n", res.stdout)

	res = run(t, NewAdminCommand(), mr.Addr(), "", "stats")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "QUEUE")
	assert.Contains(t, res.stdout, "emails")
	assert.Contains(t, res.stdout, "orders")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "delete", "--queue", "emails")
	require.Equal(t, ExitOK, res.code, res.stderr)

	res = run(t, NewAdminCommand(), mr.Addr(), "", "delete", "--queue", "emails")
	assert.Equal(t, ExitQueueNotFound, res.code)
}

func TestAdmin_AttributesMissingQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	res := run(t, NewAdminCommand(), mr.Addr(), "", "attributes", "--queue", "missing")
	assert.Equal(t, ExitQueueNotFound, res.code)
	assert.Contains(t, res.stderr, "queue not found")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "attributes")
	assert.Equal(t, ExitInvalidParameter, res.code)
}

func TestAdmin_CreateRejectsInvalidSettings(t *testing.T) {
	mr := miniredis.RunT(t)

	res := run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "q", "--max-size", "10")
	assert.Equal(t, ExitInvalidParameter, res.code)

	res = run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "bad name")
	assert.Equal(t, ExitInvalidParameter, res.code)
}

func TestSeconds_RangeChecksBeforeConverting(t *testing.T) {
	d, err := seconds("delay", 0)
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = seconds("delay", 9999999)
	require.NoError(t, err)
	assert.Equal(t, rsmq.MaxTimeout, d)

	for _, n := range []int64{-1, 10000000, 9223372037, 18446744074} {
		_, err := seconds("delay", n)
		assert.ErrorIs(t, err, rsmq.ErrInvalidParameter, "%d seconds", n)
	}
}

func TestCommands_RejectOverflowingSeconds(t *testing.T) {
	mr := miniredis.RunT(t)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "jobs").code)

	// 18446744074s wraps to a small positive duration if multiplied unchecked.
	const huge = "18446744074"

	cases := []struct {
		name string
		cmd  func() *cobra.Command
		args []string
	}{
		{"producer delay", NewProducerCommand, []string{"send", "--queue", "jobs", "--message", "x", "--delay", huge}},
		{"admin create visibility", NewAdminCommand, []string{"create", "--queue", "other", "--visibility", huge}},
		{"admin set delay", NewAdminCommand, []string{"set", "--queue", "jobs", "--delay", huge}},
		{"consumer visibility", NewConsumerCommand, []string{"--queue", "jobs", "--once", "--visibility", huge}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := run(t, tc.cmd(), mr.Addr(), "", tc.args...)
			assert.Equal(t, ExitInvalidParameter, res.code, res.stderr)
		})
	}

	res := run(t, NewAdminCommand(), mr.Addr(), "", "attributes", "--queue", "jobs", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	var view queueView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
	assert.Zero(t, view.Messages)
	assert.Zero(t, view.Delay)
}

func TestProducer_SendPrintsID(t *testing.T) {
	mr := miniredis.RunT(t)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "jobs").code)

	res := run(t, NewProducerCommand(), mr.Addr(), "", "send", "--queue", "jobs", "--message", `{"orderId":"123"}`)
	require.Equal(t, ExitOK, res.code, res.stderr)
	id := strings.TrimSpace(res.stdout)
	assert.NotEmpty(t, id)

	res = run(t, NewAdminCommand(), mr.Addr(), "", "attributes", "--queue", "jobs", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	var view queueView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
	assert.Equal(t, int64(1), view.Messages)
	assert.Equal(t, int64(1), view.TotalSent)
}

func TestProducer_SendFromStdin(t *testing.T) {
	mr := miniredis.RunT(t)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "jobs").code)

	res := run(t, NewProducerCommand(), mr.Addr(), "first\n\nsecond\n", "send", "--queue", "jobs")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Len(t, strings.Fields(res.stdout), 2, "blank lines are skipped")
}

func TestProducer_SendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "small", "--max-size", "1024").code)

	res := run(t, NewProducerCommand(), mr.Addr(), "", "send", "--queue", "small", "--message", strings.Repeat("a", 1025))
	assert.Equal(t, ExitPayloadTooLarge, res.code)

	res = run(t, NewProducerCommand(), mr.Addr(), "", "send", "--queue", "missing", "--message", "x")
	assert.Equal(t, ExitQueueNotFound, res.code)

	res = run(t, NewProducerCommand(), mr.Addr(), "", "send", "--queue", "small", "--message", "x", "--delay", "-1")
	assert.Equal(t, ExitInvalidParameter, res.code)

	res = run(t, NewProducerCommand(), mr.Addr(), "", "send", "--message", "x")
	assert.Equal(t, ExitInvalidParameter, res.code)
}

func TestProducer_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	res := run(t, NewProducerCommand(), addr, "", "send", "--queue", "jobs", "--message", "x")
	assert.Equal(t, ExitBackingStoreUnavailable, res.code)
	assert.Contains(t, res.stderr, "failed to connect to Redis")
}

func TestConsumer_OnceDrainsQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "jobs").code)
	require.Equal(t, ExitOK, run(t, NewProducerCommand(), mr.Addr(), "a\nb\n", "send", "--queue", "jobs").code)

	res := run(t, NewConsumerCommand(), mr.Addr(), "", "--queue", "jobs", "--once")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, 2, strings.Count(res.stdout, "ACK "))
	assert.Contains(t, res.stdout, "Drain complete (processed 2 messages)")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "attributes", "--queue", "jobs", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	var view queueView
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &view))
	assert.Zero(t, view.Messages)
	assert.Equal(t, int64(2), view.TotalReceived)
}

func TestConsumer_OnceDeadLettersFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "jobs").code)
	require.Equal(t, ExitOK, run(t, NewAdminCommand(), mr.Addr(), "", "create", "--queue", "dead").code)
	require.Equal(t, ExitOK, run(t, NewProducerCommand(), mr.Addr(), "", "send", "--queue", "jobs", "--message", "poison").code)

	res := run(t, NewConsumerCommand(), mr.Addr(), "", "--queue", "jobs", "--once",
		"--fail-rate", "1", "--max-receives", "1", "--dlq", "dead")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "FAIL ")

	res = run(t, NewAdminCommand(), mr.Addr(), "", "redrive", "--from", "dead", "--to", "jobs")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Redrove 1 messages from 'dead' to 'jobs'")
}

func TestConsumer_Errors(t *testing.T) {
	mr := miniredis.RunT(t)

	res := run(t, NewConsumerCommand(), mr.Addr(), "", "--queue", "missing", "--once")
	assert.Equal(t, ExitQueueNotFound, res.code)

	res = run(t, NewConsumerCommand(), mr.Addr(), "", "--once")
	assert.Equal(t, ExitInvalidParameter, res.code)

	res = run(t, NewConsumerCommand(), mr.Addr(), "", "--queue", "jobs", "--fail-rate", "2")
	assert.Equal(t, ExitInvalidParameter, res.code)

	res = run(t, NewConsumerCommand(), mr.Addr(), "", "--queue", "jobs", "--bogus")
	assert.Equal(t, ExitFailure, res.code)
}
