// Package rsmq provides a simple message queue on top of Redis.
//
// Producers send messages to named queues; consumers claim them with a
// visibility timeout (a lease). A claimed message stays hidden until the
// timeout elapses or it is deleted, so delivery is at-least-once: a consumer
// that crashes simply lets its lease run out and the message comes back with
// a higher ReceiveCount.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cfg := rsmq.DefaultConfig()
//	cfg.Namespace = "myapp"
//
//	client := rsmq.NewRedisClient(rdb, cfg)
//	err := client.CreateQueue(ctx, "orders", rsmq.DefaultQueueConfig())
//
//	id, err := client.SendMessage(ctx, "orders", []byte(`{"orderId": "123"}`))
//
//	msg, err := client.ReceiveMessage(ctx, "orders")
//	if errors.Is(err, rsmq.ErrNoMessageAvailable) {
//	    // nothing ready, poll again later
//	}
//	// ... process ...
//	err = client.DeleteMessage(ctx, "orders", msg.ID)
//
// Or let a Worker poll and acknowledge:
//
//	w := rsmq.NewWorker(client, cfg.WithDefaults().Worker)
//	err := w.Start("orders", func(ctx context.Context, msg *rsmq.Message) error {
//	    return process(msg.Payload)
//	})
//	defer w.Stop()
//
// # Claiming
//
// Receive picks the ready message with the smallest visible_at, ties broken
// by id, and moves it forward by the visibility timeout in one indivisible
// step. On Redis this is a Lua script by default. ClaimStrategyOptimistic
// uses WATCH/MULTI instead, for Redis-compatible servers without scripting,
// and gives up with ErrConcurrentModificationRetryExhausted after
// Config.Claim.MaxRetries lost races.
//
// Ready and hidden are never stored; they are computed from visible_at.
//
// # Redis Layout
//
//	{ns}:QUEUES:       set of queue names
//	{ns}:{queue}       sorted set, member = message id, score = visible_at (ms)
//	{ns}:{queue}:Q     hash: vt, delay, maxsize, created, modified, totalrecv,
//	                   totalsent, and per message {id}, {id}:rc, {id}:fr, {id}:st
//	{ns}:rt:{queue}    pub/sub channel, queue length after each send (Realtime)
package rsmq
