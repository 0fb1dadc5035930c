// Package bus pushes pass summaries onto NATS so downstream consumers
// (dashboards, escalation hooks) see every finished pass without polling
// the HTTP API. Publishing is fire-and-forget: a failed publish is logged
// by the caller and never blocks or fails the pass itself.
package bus

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// SubjectSyncCompleted carries the summary of every finished pass, partial
// ones included.
const SubjectSyncCompleted = "sync.completed"

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}
