package rsmq

import (
	"fmt"
	"strconv"
	"time"
)

// Message is a snapshot of a stored message as of the operation that
// returned it.
type Message struct {
	ID              string
	Queue           string
	Payload         []byte
	SentAt          time.Time
	VisibleAt       time.Time // claimable once now >= VisibleAt
	FirstReceivedAt time.Time // zero until the first successful claim
	ReceiveCount    int64
}

// State is derived from VisibleAt and a caller supplied time. It is never
// stored.
type State int

const (
	StateReady State = iota
	StateHidden
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// State reports whether the message is claimable at now.
func (m *Message) State(now time.Time) State {
	if now.Before(m.VisibleAt) {
		return StateHidden
	}
	return StateReady
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// messageFromReply parses the array returned by the claim scripts and the
// optimistic claim path:
//
//	{id, payload, receive_count, first_received_at, sent_at, visible_at}
//
// Redis hands back bulk strings for hash fields and integers for script
// numbers, so both are accepted.
func messageFromReply(queue string, reply []any) (*Message, error) {
	if len(reply) < 6 {
		return nil, fmt.Errorf("rsmq: malformed claim reply (%d elements)", len(reply))
	}

	id, ok := reply[0].(string)
	if !ok {
		return nil, fmt.Errorf("rsmq: claim reply id is %T", reply[0])
	}

	var payload []byte
	switch v := reply[1].(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		return nil, fmt.Errorf("rsmq: claim reply payload is %T", reply[1])
	}

	nums := make([]int64, 4)
	for i := range nums {
		n, err := replyInt(reply[2+i])
		if err != nil {
			return nil, fmt.Errorf("rsmq: claim reply field %d: %w", 2+i, err)
		}
		nums[i] = n
	}

	return &Message{
		ID:              id,
		Queue:           queue,
		Payload:         payload,
		ReceiveCount:    nums[0],
		FirstReceivedAt: msToTime(nums[1]),
		SentAt:          msToTime(nums[2]),
		VisibleAt:       msToTime(nums[3]),
	}, nil
}

func replyInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
