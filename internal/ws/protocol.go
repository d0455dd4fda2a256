package ws

import (
	"encoding/json"
	"hash/fnv"
)

// Request is sent by the UI. A request with an ID expects an Ack carrying
// the same ID.
type Request struct {
	ID    *int64          `json:"id,omitempty"`
	Event string          `json:"event"`
	Args  json.RawMessage `json:"args"`
}

// Ack answers a Request.
type Ack[T any] struct {
	ID   int64 `json:"id"`
	Data T     `json:"data"`
}

// PushMessage carries the value of one channel. Versions grow with every
// change of the underlying value, so a client keeps the value with the
// highest version it has seen on a channel.
type PushMessage[T any] struct {
	Event   string `json:"event"`
	Version uint64 `json:"version"`
	Data    T      `json:"data"`
}

// Result is the ack payload of requests that only report success.
type Result struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

// OK is the Result of an accepted request.
func OK() Result { return Result{OK: true} }

// Fail is the Result of a rejected request.
func Fail(msg string) Result { return Result{Msg: msg} }

// push is an encoded PushMessage plus the FNV-1a sum of its payload, used
// to skip resending an unchanged value on a connection.
type push struct {
	event   string
	version uint64
	sum     uint64
	msg     []byte
}

func encodePush[T any](event string, version uint64, data T) (push, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return push{}, err
	}
	h := fnv.New64a()
	h.Write(raw)

	msg, err := json.Marshal(PushMessage[json.RawMessage]{Event: event, Version: version, Data: raw})
	if err != nil {
		return push{}, err
	}
	return push{event: event, version: version, sum: h.Sum64(), msg: msg}, nil
}
