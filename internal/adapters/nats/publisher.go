package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geopoly/internal/core/domain"
)

const (
	// PolygonSubjects matches every polygon event.
	PolygonSubjects = "geopoly.polygon.>"

	SubjectComputed = "geopoly.polygon.computed"
	SubjectCached   = "geopoly.polygon.cached"
)

// PolygonEvent is the body published for every served polygon.
type PolygonEvent struct {
	ID string `json:"id"`
	domain.RequestLog
}

// NewPolygonEvent wraps rec with a fresh event id.
func NewPolygonEvent(rec domain.RequestLog) PolygonEvent {
	return PolygonEvent{ID: uuid.NewString(), RequestLog: rec}
}

// Subject returns the subject an event is published on.
func (e PolygonEvent) Subject() string {
	if e.Cached {
		return SubjectCached
	}
	return SubjectComputed
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	stream := nats.StreamConfig{
		Name:       "POLYGONS",
		Subjects:   []string{PolygonSubjects},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.AddStream(&stream); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&stream); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", stream.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishPolygon publishes rec. The event id doubles as the JetStream
// message id so redelivered publishes are deduplicated.
func (p *Publisher) PublishPolygon(ctx context.Context, rec domain.RequestLog) error {
	event := NewPolygonEvent(rec)
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(event.Subject(), data, nats.MsgId(event.ID), nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks and the
// WebSocket relay.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("geopoly"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
