package models

import "time"

// PublishEvent records one outbound MQTT publish. The polling engine and trap
// listener hand these to observers — the audit log appends one JSON line per
// event, the status server streams them to live websocket clients.
//
// Payload is the message body as text: a JSON document or a CSV line,
// depending on the broker's configured format.
type PublishEvent struct {
	Time    time.Time `json:"time"`
	Broker  string    `json:"broker"`
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
}
