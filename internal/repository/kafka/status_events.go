package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	domainkafka "github.com/NordCoder/streamcheck/internal/domain/kafka"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

type StatusEventsKafka struct {
	p *Producer
}

func NewStatusEventsKafka(p *Producer) *StatusEventsKafka { return &StatusEventsKafka{p: p} }

var _ domainkafka.StatusEvents = (*StatusEventsKafka)(nil)

// PublishStatusChanged keys messages by channel name so one channel's history
// stays ordered within a partition.
func (e *StatusEventsKafka) PublishStatusChanged(ctx context.Context, ch channel.Change) error {
	msg, err := EncodeChange(ch)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, []byte(ch.Name), msg)
}

func EncodeChange(ch channel.Change) (*structpb.Struct, error) {
	old := ""
	if ch.Old != nil {
		old = string(*ch.Old)
	}
	s, err := structpb.NewStruct(map[string]any{
		"run_id":     ch.RunID.String(),
		"channel":    ch.Name,
		"url":        ch.URL,
		"old_status": old,
		"new_status": string(ch.New),
		"code":       ch.Code,
		"at":         ch.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode status change: %w", err)
	}
	return s, nil
}

func DecodeChange(s *structpb.Struct) (channel.Change, error) {
	f := s.GetFields()
	ch := channel.Change{
		Name: f["channel"].GetStringValue(),
		URL:  f["url"].GetStringValue(),
		New:  channel.Status(f["new_status"].GetStringValue()),
		Code: int(f["code"].GetNumberValue()),
	}
	if old := f["old_status"].GetStringValue(); old != "" {
		st := channel.Status(old)
		ch.Old = &st
	}
	if at := f["at"].GetStringValue(); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return ch, fmt.Errorf("decode status change at: %w", err)
		}
		ch.At = t
	}
	if id := f["run_id"].GetStringValue(); id != "" {
		runID, err := uuid.Parse(id)
		if err != nil {
			return ch, fmt.Errorf("decode status change run_id: %w", err)
		}
		ch.RunID = runID
	}
	if ch.Name == "" {
		return ch, fmt.Errorf("decode status change: missing channel")
	}
	return ch, nil
}
