package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/resellium/console/internal/api/metrics"
	"github.com/resellium/console/internal/core/domain"
)

const signOutChannel = "console:signout"

// Broadcast propagates sign-out notices between clients over a Redis
// pub/sub channel. Delivery is at-least-once to currently subscribed
// clients; anything not subscribed at publish time finds the absent
// session through normal resolution.
type Broadcast struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewBroadcast(client *redis.Client, log zerolog.Logger) *Broadcast {
	return &Broadcast{client: client, log: log}
}

func (b *Broadcast) Publish(ctx context.Context, notice domain.SignOutNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal sign-out notice: %w", err)
	}
	if err := b.client.Publish(ctx, signOutChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish sign-out notice: %w", err)
	}
	return nil
}

// Subscribe delivers incoming notices to fn from a dedicated goroutine.
// Malformed payloads are logged and dropped. Cancel closes the
// subscription and stops the goroutine.
func (b *Broadcast) Subscribe(fn func(domain.SignOutNotice)) (cancel func()) {
	sub := b.client.Subscribe(context.Background(), signOutChannel)

	go func() {
		for msg := range sub.Channel() {
			b.dispatch(msg.Payload, fn)
		}
	}()

	return func() {
		_ = sub.Close()
	}
}

// dispatch decodes one raw payload and hands it to the handler. Malformed
// payloads are logged and dropped, not counted as received.
func (b *Broadcast) dispatch(payload string, fn func(domain.SignOutNotice)) {
	var notice domain.SignOutNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		b.log.Warn().Err(err).Msg("dropping malformed sign-out notice")
		return
	}
	metrics.SignOutBroadcastsTotal.WithLabelValues("received").Inc()
	fn(notice)
}
