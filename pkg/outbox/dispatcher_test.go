package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"preptracker/pkg/trace"
)

type fakeSource struct {
	pending []*Event
	sent    []int64
	failed  []int64
}

func (f *fakeSource) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeSource) MarkAsSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSource) MarkAsFailed(_ context.Context, id int64, _ int) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakePublisher struct {
	fail     map[string]bool
	traceIDs []string
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey string, _ any) error {
	if p.fail[routingKey] {
		return errors.New("broker down")
	}
	p.traceIDs = append(p.traceIDs, trace.FromContext(ctx))
	return nil
}

func TestDispatcher_ProcessPendingEvents(t *testing.T) {
	src := &fakeSource{pending: []*Event{
		{ID: 1, RoutingKey: "task.status_changed", Payload: json.RawMessage(`{"task_id":"a","trace_id":"abc"}`)},
		{ID: 2, RoutingKey: "schedule.initialized", Payload: json.RawMessage(`{"count":3}`)},
		{ID: 3, RoutingKey: "task.status_changed", Payload: json.RawMessage(`{not json`)},
	}}
	pub := &fakePublisher{fail: map[string]bool{"schedule.initialized": true}}

	sent := NewDispatcher(src, pub, zap.NewNop()).ProcessPendingEvents(context.Background())

	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, src.sent)
	assert.ElementsMatch(t, []int64{2, 3}, src.failed)
	assert.Equal(t, []string{"abc"}, pub.traceIDs)
}

func TestDispatcher_BatchSize(t *testing.T) {
	src := &fakeSource{}
	for i := int64(1); i <= 5; i++ {
		src.pending = append(src.pending, &Event{ID: i, RoutingKey: "k", Payload: json.RawMessage(`{}`)})
	}
	pub := &fakePublisher{}

	sent := NewDispatcher(src, pub, zap.NewNop()).WithBatchSize(2).ProcessPendingEvents(context.Background())
	assert.Equal(t, 2, sent)
}
