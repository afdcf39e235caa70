package rsmq

import "github.com/redis/go-redis/v9"

// Queue hash attribute fields.
const (
	fieldVisibilityTimeout = "vt"
	fieldDelay             = "delay"
	fieldMaxSize           = "maxsize"
	fieldCreated           = "created"
	fieldModified          = "modified"
	fieldTotalReceived     = "totalrecv"
	fieldTotalSent         = "totalsent"
)

// queueFields are the attribute names inside the queue hash. A message id
// equal to one of them would address queue state instead of a payload.
var queueFields = map[string]bool{
	fieldVisibilityTimeout: true,
	fieldDelay:             true,
	fieldMaxSize:           true,
	fieldCreated:           true,
	fieldModified:          true,
	fieldTotalReceived:     true,
	fieldTotalSent:         true,
}

// claimScript leases the first ready message.
//
// KEYS[1] timeline, KEYS[2] queue hash
// ARGV[1] now ms, ARGV[2] visible_until ms
//
// Timeline members whose payload field is missing are dropped on the way.
var claimScript = redis.NewScript(`
while true do
	local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
	if #ids == 0 then
		return false
	end
	local id = ids[1]
	local payload = redis.call("HGET", KEYS[2], id)
	if payload then
		redis.call("ZADD", KEYS[1], ARGV[2], id)
		local rc = redis.call("HINCRBY", KEYS[2], id .. ":rc", 1)
		local fr = redis.call("HGET", KEYS[2], id .. ":fr")
		if not fr then
			fr = ARGV[1]
			redis.call("HSET", KEYS[2], id .. ":fr", fr)
		end
		redis.call("HINCRBY", KEYS[2], "totalrecv", 1)
		local st = redis.call("HGET", KEYS[2], id .. ":st")
		return {id, payload, rc, fr, st, ARGV[2]}
	end
	redis.call("ZREM", KEYS[1], id)
end
`)

// popScript is claimScript followed by delete.
//
// KEYS[1] timeline, KEYS[2] queue hash
// ARGV[1] now ms
var popScript = redis.NewScript(`
while true do
	local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
	if #ids == 0 then
		return false
	end
	local id = ids[1]
	local fields = redis.call("HMGET", KEYS[2], id, id .. ":rc", id .. ":fr", id .. ":st")
	redis.call("ZREM", KEYS[1], id)
	if fields[1] then
		redis.call("HDEL", KEYS[2], id, id .. ":rc", id .. ":fr", id .. ":st")
		redis.call("HINCRBY", KEYS[2], "totalrecv", 1)
		local rc = tonumber(fields[2] or "0") + 1
		local fr = fields[3] or ARGV[1]
		return {id, fields[1], rc, fr, fields[4], ARGV[1]}
	end
end
`)

// sendScript inserts a message if the queue still exists.
//
// KEYS[1] timeline, KEYS[2] queue hash
// ARGV[1] id, ARGV[2] visible_at ms, ARGV[3] payload, ARGV[4] sent_at ms,
// ARGV[5] realtime channel or ""
//
// Returns -1 for a missing queue, otherwise the queue length.
var sendScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[2], "vt") == 0 then
	return -1
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[3], ARGV[1] .. ":st", ARGV[4])
redis.call("HINCRBY", KEYS[2], "totalsent", 1)
local n = redis.call("ZCARD", KEYS[1])
if ARGV[5] ~= "" then
	redis.call("PUBLISH", ARGV[5], n)
end
return n
`)

// deleteScript removes a message. Hash fields are only touched when the id
// was on the timeline.
//
// KEYS[1] timeline, KEYS[2] queue hash
// ARGV[1] id
var deleteScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HDEL", KEYS[2], ARGV[1], ARGV[1] .. ":rc", ARGV[1] .. ":fr", ARGV[1] .. ":st")
return 1
`)

// visibilityScript moves an existing message on the timeline.
//
// KEYS[1] timeline
// ARGV[1] id, ARGV[2] visible_at ms
var visibilityScript = redis.NewScript(`
if not redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
return 1
`)
