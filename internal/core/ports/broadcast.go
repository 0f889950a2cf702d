package ports

import (
	"context"

	"github.com/resellium/console/internal/core/domain"
)

// Broadcast is the same-origin pub/sub channel used to propagate
// sign-out across sibling clients. Delivery is at-least-once with no
// ordering guarantee; clients that are not subscribed at publish time
// discover the absent session through normal resolution instead.
type Broadcast interface {
	Publish(ctx context.Context, notice domain.SignOutNotice) error
	// Subscribe registers a handler for incoming notices. Handlers may be
	// invoked from an internal goroutine. The returned function cancels
	// the subscription.
	Subscribe(fn func(domain.SignOutNotice)) (cancel func())
}
