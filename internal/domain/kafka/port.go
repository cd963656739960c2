package kafka

import (
	"context"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
)

type StatusEvents interface {
	PublishStatusChanged(ctx context.Context, ch channel.Change) error
}
