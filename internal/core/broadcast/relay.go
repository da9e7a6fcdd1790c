package broadcast

import (
	"context"
	"time"

	"github.com/rl1809/jersey-pos/internal/logger"
	"github.com/rl1809/jersey-pos/internal/port"
)

// Pump feeds every batch published on hub into relay until ctx is done or the
// hub closes. A relay that falls behind is evicted like any observer; Pump then
// resubscribes and carries on from the next batch.
func Pump(ctx context.Context, hub *Hub, relay port.Relay) {
	log := logger.With("relay", relay.Name())
	for {
		sub := hub.Subscribe()
		err := drain(ctx, sub, relay)
		sub.Close()

		if ctx.Err() != nil || err == nil {
			log.Infow("relay_stopped")
			return
		}
		log.Warnw("relay_resubscribe", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func drain(ctx context.Context, sub *Subscription, relay port.Relay) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-sub.C():
			if !ok {
				return sub.Err()
			}
			if err := relay.Forward(ctx, batch); err != nil {
				logger.Errorw("relay_forward_failed", "relay", relay.Name(), "events", len(batch), "error", err)
			}
		}
	}
}
