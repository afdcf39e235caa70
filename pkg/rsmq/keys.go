package rsmq

// QueuesKey returns the set of registered queue names: "{namespace}:QUEUES:"
//
// The trailing ':' keeps it apart from TimelineKey, since queue names cannot
// contain ':'.
func QueuesKey(namespace string) string {
	return namespace + ":QUEUES:"
}

// TimelineKey returns the sorted set of message ids scored by visible_at (ms): "{namespace}:{queue}"
func TimelineKey(namespace, queue string) string {
	return namespace + ":" + queue
}

// QueueKey returns the hash holding queue attributes and message fields: "{namespace}:{queue}:Q"
func QueueKey(namespace, queue string) string {
	return namespace + ":" + queue + ":Q"
}

// RealtimeChannel returns the pub/sub channel notified on send: "{namespace}:rt:{queue}"
func RealtimeChannel(namespace, queue string) string {
	return namespace + ":rt:" + queue
}

// Per-message fields inside the queue hash. The bare id holds the payload.
func receiveCountField(id string) string { return id + ":rc" }
func firstRecvField(id string) string    { return id + ":fr" }
func sentAtField(id string) string       { return id + ":st" }
