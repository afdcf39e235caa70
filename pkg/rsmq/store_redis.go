package rsmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each queue as a sorted set of message ids scored by
// visible_at (ms) plus one hash holding queue attributes and message fields.
//
// With ClaimStrategyScript, claim, pop, send and visibility changes run as
// Lua scripts. With ClaimStrategyOptimistic no scripts are used: they become
// WATCH/MULTI transactions retried up to Config.Claim.MaxRetries times.
type RedisStore struct {
	client  redis.UniversalClient
	config  Config
	logger  *slog.Logger
	metrics Metrics
}

// NewRedisStore creates a RedisStore. The client is not owned by the store.
func NewRedisStore(client redis.UniversalClient, config Config) *RedisStore {
	return &RedisStore{
		client:  client,
		config:  config,
		logger:  slog.Default(),
		metrics: NoopMetrics{},
	}
}

// SetLogger replaces the store logger.
func (s *RedisStore) SetLogger(logger *slog.Logger) { s.logger = logger }

// SetMetrics replaces the store metrics sink.
func (s *RedisStore) SetMetrics(m Metrics) { s.metrics = m }

func (s *RedisStore) keys(queue string) (timeline, hash string) {
	return TimelineKey(s.config.Namespace, queue), QueueKey(s.config.Namespace, queue)
}

func (s *RedisStore) optimistic() bool {
	return s.config.Claim.Strategy == ClaimStrategyOptimistic
}

// CreateQueue uses HSETNX on every field inside MULTI so an existing queue is
// never overwritten; the first HSETNX result decides whether it existed.
func (s *RedisStore) CreateQueue(ctx context.Context, q *Queue) error {
	_, hash := s.keys(q.Name)

	var first *redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		first = pipe.HSetNX(ctx, hash, fieldVisibilityTimeout, q.VisibilityTimeout.Milliseconds())
		pipe.HSetNX(ctx, hash, fieldDelay, q.Delay.Milliseconds())
		pipe.HSetNX(ctx, hash, fieldMaxSize, q.MaxSize)
		pipe.HSetNX(ctx, hash, fieldCreated, q.Created.UnixMilli())
		pipe.HSetNX(ctx, hash, fieldModified, q.Modified.UnixMilli())
		pipe.HSetNX(ctx, hash, fieldTotalReceived, 0)
		pipe.HSetNX(ctx, hash, fieldTotalSent, 0)
		pipe.SAdd(ctx, QueuesKey(s.config.Namespace), q.Name)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	if !first.Val() {
		return ErrDuplicateQueue
	}
	return nil
}

func (s *RedisStore) GetQueue(ctx context.Context, name string) (*Queue, error) {
	_, hash := s.keys(name)
	vals, err := s.client.HMGet(ctx, hash,
		fieldVisibilityTimeout, fieldDelay, fieldMaxSize, fieldCreated, fieldModified,
	).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return queueFromFields(name, vals)
}

func (s *RedisStore) QueueAttributes(ctx context.Context, name string, now time.Time) (*QueueAttributes, error) {
	timeline, hash := s.keys(name)

	var (
		fields *redis.SliceCmd
		total  *redis.IntCmd
		hidden *redis.IntCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HMGet(ctx, hash,
			fieldVisibilityTimeout, fieldDelay, fieldMaxSize, fieldCreated, fieldModified,
			fieldTotalReceived, fieldTotalSent,
		)
		total = pipe.ZCard(ctx, timeline)
		hidden = pipe.ZCount(ctx, timeline, "("+strconv.FormatInt(now.UnixMilli(), 10), "+inf")
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	vals := fields.Val()
	q, err := queueFromFields(name, vals[:5])
	if err != nil {
		return nil, err
	}
	recv, _ := replyInt(vals[5])
	sent, _ := replyInt(vals[6])

	return &QueueAttributes{
		Queue:          *q,
		TotalReceived:  recv,
		TotalSent:      sent,
		Messages:       total.Val(),
		HiddenMessages: hidden.Val(),
	}, nil
}

// UpdateQueue watches the queue hash so a concurrent delete cannot be
// resurrected by the write.
func (s *RedisStore) UpdateQueue(ctx context.Context, name string, cfg QueueConfig, modified time.Time) error {
	_, hash := s.keys(name)

	return retryOnConflict(ctx, s.config.Claim.MaxRetries, nil, func() error {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.HExists(ctx, hash, fieldVisibilityTimeout).Result()
			if err != nil {
				return unavailable(err)
			}
			if !exists {
				return ErrQueueNotFound
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, hash,
					fieldVisibilityTimeout, cfg.VisibilityTimeout.Milliseconds(),
					fieldDelay, cfg.Delay.Milliseconds(),
					fieldMaxSize, cfg.MaxSize,
					fieldModified, modified.UnixMilli(),
				)
				return nil
			})
			return err
		}, hash)
		return s.txErr(err)
	})
}

func (s *RedisStore) DeleteQueue(ctx context.Context, name string) error {
	timeline, hash := s.keys(name)

	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, timeline)
		deleted = pipe.Del(ctx, hash)
		pipe.SRem(ctx, QueuesKey(s.config.Namespace), name)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	if deleted.Val() == 0 {
		return ErrQueueNotFound
	}
	return nil
}

func (s *RedisStore) ListQueues(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, QueuesKey(s.config.Namespace)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	slices.Sort(names)
	return names, nil
}

func (s *RedisStore) Insert(ctx context.Context, msg *Message) error {
	timeline, hash := s.keys(msg.Queue)

	channel := ""
	if s.config.Realtime {
		channel = RealtimeChannel(s.config.Namespace, msg.Queue)
	}

	if s.optimistic() {
		return s.insertOptimistic(ctx, timeline, hash, channel, msg)
	}

	n, err := sendScript.Run(ctx, s.client, []string{timeline, hash},
		msg.ID, msg.VisibleAt.UnixMilli(), msg.Payload, msg.SentAt.UnixMilli(), channel,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if n < 0 {
		return ErrQueueNotFound
	}
	return nil
}

func (s *RedisStore) insertOptimistic(ctx context.Context, timeline, hash, channel string, msg *Message) error {
	return retryOnConflict(ctx, s.config.Claim.MaxRetries, nil, func() error {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.HExists(ctx, hash, fieldVisibilityTimeout).Result()
			if err != nil {
				return unavailable(err)
			}
			if !exists {
				return ErrQueueNotFound
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZAdd(ctx, timeline, redis.Z{Score: float64(msg.VisibleAt.UnixMilli()), Member: msg.ID})
				pipe.HSet(ctx, hash, msg.ID, msg.Payload, sentAtField(msg.ID), msg.SentAt.UnixMilli())
				pipe.HIncrBy(ctx, hash, fieldTotalSent, 1)
				return nil
			})
			return err
		}, hash)
		if err := s.txErr(err); err != nil {
			return err
		}
		if channel != "" {
			n, err := s.client.ZCard(ctx, timeline).Result()
			if err != nil {
				return unavailable(err)
			}
			if err := s.client.Publish(ctx, channel, n).Err(); err != nil {
				return unavailable(err)
			}
		}
		return nil
	})
}

func (s *RedisStore) Claim(ctx context.Context, queue string, now, visibleUntil time.Time) (*Message, error) {
	if s.optimistic() {
		return s.claimOptimistic(ctx, queue, now, visibleUntil, false)
	}

	timeline, hash := s.keys(queue)
	reply, err := claimScript.Run(ctx, s.client, []string{timeline, hash},
		now.UnixMilli(), visibleUntil.UnixMilli(),
	).Slice()
	return s.scriptMessage(queue, reply, err)
}

func (s *RedisStore) Pop(ctx context.Context, queue string, now time.Time) (*Message, error) {
	if s.optimistic() {
		return s.claimOptimistic(ctx, queue, now, now, true)
	}

	timeline, hash := s.keys(queue)
	reply, err := popScript.Run(ctx, s.client, []string{timeline, hash}, now.UnixMilli()).Slice()
	return s.scriptMessage(queue, reply, err)
}

func (s *RedisStore) scriptMessage(queue string, reply []any, err error) (*Message, error) {
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessageAvailable
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return messageFromReply(queue, reply)
}

// claimOptimistic reads the first ready message under WATCH on the timeline
// and commits the lease (or the delete, for pop) with MULTI/EXEC. EXEC fails
// if any other client touched the timeline in between, which is retried as a
// lost race.
func (s *RedisStore) claimOptimistic(ctx context.Context, queue string, now, visibleUntil time.Time, pop bool) (*Message, error) {
	timeline, hash := s.keys(queue)
	nowMs := now.UnixMilli()
	untilMs := visibleUntil.UnixMilli()

	onRetry := func(retry int) {
		s.metrics.IncClaimConflicts(queue)
		s.logger.Warn("claim lost race, retrying", "queue", queue, "retry", retry)
	}

	var msg *Message
	err := retryOnConflict(ctx, s.config.Claim.MaxRetries, onRetry, func() error {
		msg = nil
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			ids, err := tx.ZRangeByScore(ctx, timeline, &redis.ZRangeBy{
				Min:   "-inf",
				Max:   strconv.FormatInt(nowMs, 10),
				Count: 1,
			}).Result()
			if err != nil {
				return unavailable(err)
			}
			if len(ids) == 0 {
				return ErrNoMessageAvailable
			}
			id := ids[0]

			vals, err := tx.HMGet(ctx, hash, id, receiveCountField(id), firstRecvField(id), sentAtField(id)).Result()
			if err != nil {
				return unavailable(err)
			}

			if vals[0] == nil {
				// Orphaned timeline entry, drop it and look again.
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.ZRem(ctx, timeline, id)
					return nil
				}); err != nil {
					return err
				}
				return errConflict
			}

			rc, _ := replyInt(vals[1])
			rc++
			fr, _ := replyInt(vals[2])
			if fr == 0 {
				fr = nowMs
			}
			st, _ := replyInt(vals[3])

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if pop {
					pipe.ZRem(ctx, timeline, id)
					pipe.HDel(ctx, hash, id, receiveCountField(id), firstRecvField(id), sentAtField(id))
				} else {
					pipe.ZAdd(ctx, timeline, redis.Z{Score: float64(untilMs), Member: id})
					pipe.HSet(ctx, hash, receiveCountField(id), rc, firstRecvField(id), fr)
				}
				pipe.HIncrBy(ctx, hash, fieldTotalReceived, 1)
				return nil
			})
			if err != nil {
				return err
			}

			msg, err = messageFromReply(queue, []any{id, vals[0], rc, fr, st, untilMs})
			return err
		}, timeline)
		return s.txErr(err)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *RedisStore) Delete(ctx context.Context, queue, id string) error {
	timeline, hash := s.keys(queue)

	if s.optimistic() {
		return retryOnConflict(ctx, s.config.Claim.MaxRetries, nil, func() error {
			err := s.client.Watch(ctx, func(tx *redis.Tx) error {
				_, err := tx.ZScore(ctx, timeline, id).Result()
				if errors.Is(err, redis.Nil) {
					return ErrMessageNotFound
				}
				if err != nil {
					return unavailable(err)
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.ZRem(ctx, timeline, id)
					pipe.HDel(ctx, hash, id, receiveCountField(id), firstRecvField(id), sentAtField(id))
					return nil
				})
				return err
			}, timeline)
			return s.txErr(err)
		})
	}

	removed, err := deleteScript.Run(ctx, s.client, []string{timeline, hash}, id).Int64()
	if err != nil {
		return unavailable(err)
	}
	if removed == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *RedisStore) SetVisibleAt(ctx context.Context, queue, id string, visibleAt time.Time) error {
	timeline, _ := s.keys(queue)
	ms := visibleAt.UnixMilli()

	if s.optimistic() {
		return retryOnConflict(ctx, s.config.Claim.MaxRetries, nil, func() error {
			err := s.client.Watch(ctx, func(tx *redis.Tx) error {
				_, err := tx.ZScore(ctx, timeline, id).Result()
				if errors.Is(err, redis.Nil) {
					return ErrMessageNotFound
				}
				if err != nil {
					return unavailable(err)
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.ZAdd(ctx, timeline, redis.Z{Score: float64(ms), Member: id})
					return nil
				})
				return err
			}, timeline)
			return s.txErr(err)
		})
	}

	ok, err := visibilityScript.Run(ctx, s.client, []string{timeline}, id, ms).Int64()
	if err != nil {
		return unavailable(err)
	}
	if ok == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// txErr maps the result of a Watch callback: EXEC aborts become errConflict,
// package errors pass through, anything else is a transport failure.
func (s *RedisStore) txErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return errConflict
	case errors.Is(err, errConflict), Kind(err) != nil:
		return err
	default:
		return unavailable(err)
	}
}

func queueFromFields(name string, vals []any) (*Queue, error) {
	if len(vals) < 5 || vals[0] == nil {
		return nil, ErrQueueNotFound
	}

	nums := make([]int64, 5)
	for i := range nums {
		n, err := replyInt(vals[i])
		if err != nil {
			return nil, fmt.Errorf("rsmq: corrupt queue attribute %d: %w", i, err)
		}
		nums[i] = n
	}

	return &Queue{
		Name: name,
		QueueConfig: QueueConfig{
			VisibilityTimeout: time.Duration(nums[0]) * time.Millisecond,
			Delay:             time.Duration(nums[1]) * time.Millisecond,
			MaxSize:           int(nums[2]),
		},
		Created:  time.UnixMilli(nums[3]),
		Modified: time.UnixMilli(nums[4]),
	}, nil
}
