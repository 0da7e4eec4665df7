// Package events fans price ticks and per-user notifications out to
// websocket clients.
//
// Producers never talk to sockets directly. Ticks and user events travel
// over Redis pub/sub so any number of API processes can publish, and the
// Relay in each websocket process routes them to local connections.
package events

import (
	"encoding/json"
	"time"
)

// Client to server events.
const (
	EventSubscribePrice   = "subscribe:price"
	EventUnsubscribePrice = "unsubscribe:price"
	EventPing             = "ping"
)

// Server to client events.
const (
	EventPriceUpdate = "price:update"
	EventPong        = "pong"
	EventError       = "error"
	EventSubscribed  = "subscribed"
)

// Error codes carried in {event:"error", data:{code}}.
const (
	CodeUnknownEvent   = "UNKNOWN_EVENT"
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeRateLimited    = "RATE_LIMITED"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type symbolData struct {
	Symbol string `json:"symbol"`
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type pongData struct {
	ServerTime int64 `json:"server_time"`
}

// userEvent is the payload carried on the user events channel.
type userEvent struct {
	Event  string          `json:"event"`
	UserID string          `json:"userId"`
	Data   json.RawMessage `json:"data"`
}

// Encode builds a frame. data is marshalled as is; raw JSON can be passed
// as json.RawMessage to avoid a second encode.
func Encode(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

func errorFrame(code, message string) []byte {
	b, _ := Encode(EventError, errorData{Code: code, Message: message})
	return b
}

func pongFrame(now time.Time) []byte {
	b, _ := Encode(EventPong, pongData{ServerTime: now.UnixMilli()})
	return b
}
