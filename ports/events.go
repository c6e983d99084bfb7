package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// EventPublisher notifies other instances about authentication milestones.
// Publishing is best-effort: a failed publish is logged, never surfaced to
// the caller.
type EventPublisher interface {
	PublishBound(ctx context.Context, idHash common.Hash, wallet common.Address) error
	PublishAuthenticated(ctx context.Context, wallet common.Address, method string) error
}
