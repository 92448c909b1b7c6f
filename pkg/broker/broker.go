// Package broker announces terminal gate results over Redis pub/sub so
// downstream consumers (dashboards, follow-up workflows) learn about sealed
// runs without polling the store.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdict-labs/verdict/pkg/gate"
	"github.com/verdict-labs/verdict/pkg/ident"
)

// DefaultChannel carries all run announcements.
const DefaultChannel = "verdict.runs"

// Announcement is the published message. It carries identifiers and the
// runpack fingerprint, never the evidence itself.
type Announcement struct {
	RunID       ident.RunID       `json:"run_id"`
	ScenarioID  ident.ScenarioID  `json:"scenario_id"`
	State       gate.State        `json:"state"`
	Outcome     string            `json:"outcome"`
	Reason      string            `json:"reason,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	At          time.Time         `json:"at"`
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Logger   *slog.Logger
}

type Broker struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// New connects and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Broker, error) {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("broker: redis ping: %w", err)
	}
	return &Broker{client: client, channel: cfg.Channel, logger: cfg.Logger, now: time.Now}, nil
}

func (b *Broker) Close() error { return b.client.Close() }

// NewAnnouncement projects a result onto the wire message.
func NewAnnouncement(res *gate.Result, at time.Time) Announcement {
	a := Announcement{
		RunID:      res.RunID,
		ScenarioID: res.ScenarioID,
		State:      res.State,
		Outcome:    res.Outcome.String(),
		Reason:     res.Reason,
		At:         at.UTC(),
	}
	if res.Pack != nil {
		a.Fingerprint = res.Pack.Fingerprint
	}
	return a
}

// Announce implements gate.Announcer.
func (b *Broker) Announce(ctx context.Context, res *gate.Result) error {
	a := NewAnnouncement(res, b.now())
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("broker: encode announcement: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("broker: publish: %w", err)
	}
	b.logger.Debug("run announced", "run", a.RunID, "state", a.State)
	return nil
}

// Subscribe delivers announcements to fn until ctx is cancelled. Malformed
// messages are logged and skipped.
func (b *Broker) Subscribe(ctx context.Context, fn func(Announcement)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var a Announcement
			if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
				b.logger.Warn("dropping malformed announcement", "error", err)
				continue
			}
			fn(a)
		}
	}
}

var _ gate.Announcer = (*Broker)(nil)
