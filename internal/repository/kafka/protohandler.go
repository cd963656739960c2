package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
)

// ErrUndecodable marks a message that no retry can handle.
var ErrUndecodable = errors.New("undecodable message")

func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: proto unmarshal: %v", ErrUndecodable, err)
		}
		return handle(ctx, key, msg)
	}
}

// StatusChangeHandler decodes status-change events for handle.
func StatusChangeHandler(handle func(context.Context, channel.Change) error) Handler {
	return ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, s *structpb.Struct) error {
			ch, err := DecodeChange(s)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUndecodable, err)
			}
			return handle(ctx, ch)
		},
	)
}
