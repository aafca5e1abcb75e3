package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, Logger: logger.Nop()})
}

func recordChanged(id string) shared.Event {
	return student.NewRecordChangedEvent(student.Change{AccountID: id, Before: &student.Record{ID: id}, After: &student.Record{ID: id}})
}

func TestInMemoryEventBus_DeliversByType(t *testing.T) {
	bus := syncBus()
	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventStudentRecordChanged, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.Subscribe(shared.EventRoleAssigned, func(shared.Event) error { t.Fatal("wrong type"); return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(recordChanged("u1")))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 1, all)
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	var second bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("worse") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { second = true; return nil }))

	assert.NoError(t, bus.Publish(recordChanged("u1")))
	assert.True(t, second)
}

func TestInMemoryEventBus_AsyncAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Nop()})
	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { n.Add(1); return nil }))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(recordChanged("u1")))
	}
	bus.Drain()
	assert.EqualValues(t, 10, n.Load())

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(recordChanged("u1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventRoleAssigned, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// fakeBroker connects several fakePubSub clients like a Redis server would.
type fakeBroker struct {
	mu   sync.Mutex
	subs []chan PubSubMessage
}

type fakePubSub struct {
	broker *fakeBroker
	ch     chan PubSubMessage
}

func (b *fakeBroker) client() *fakePubSub {
	return &fakePubSub{broker: b, ch: make(chan PubSubMessage, 16)}
}

func (c *fakePubSub) Publish(_ context.Context, channel, message string) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	for _, s := range c.broker.subs {
		s <- PubSubMessage{Channel: channel, Payload: message}
	}
	return nil
}

func (c *fakePubSub) Subscribe(context.Context, ...string) (<-chan PubSubMessage, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.subs = append(c.broker.subs, c.ch)
	return c.ch, nil
}

func (c *fakePubSub) Close() error { return nil }

func TestRedisEventBus_FansOutToOtherInstances(t *testing.T) {
	broker := &fakeBroker{}
	local := InMemoryEventBusConfig{AsyncMode: false, Logger: logger.Nop()}

	a, err := NewRedisEventBus(RedisEventBusConfig{Client: broker.client(), InstanceID: "a", LocalBusConfig: local, Logger: logger.Nop()})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisEventBus(RedisEventBusConfig{Client: broker.client(), InstanceID: "b", LocalBusConfig: local, Logger: logger.Nop()})
	require.NoError(t, err)
	defer b.Close()

	var onA atomic.Int32
	gotB := make(chan student.Change, 1)
	require.NoError(t, a.Subscribe(shared.EventStudentRecordChanged, func(shared.Event) error { onA.Add(1); return nil }))
	require.NoError(t, b.Subscribe(shared.EventStudentRecordChanged, func(e shared.Event) error {
		c, err := student.ChangeFromEvent(e)
		if err != nil {
			return err
		}
		gotB <- c
		return nil
	}))

	before := &student.Record{ID: "u1", CGPA: shared.Float(6)}
	after := &student.Record{ID: "u1", CGPA: shared.Float(9)}
	require.NoError(t, a.Publish(student.NewRecordChangedEvent(student.Change{AccountID: "u1", Before: before, After: after})))

	select {
	case c := <-gotB:
		assert.Equal(t, "u1", c.AccountID)
		assert.Equal(t, 9.0, *c.After.CGPA)
	case <-time.After(2 * time.Second):
		t.Fatal("remote instance never received the event")
	}

	// the publisher handled it locally exactly once and ignored its own echo
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, onA.Load())
}

func TestRedisEventBus_DrainWaitsForLocalHandlers(t *testing.T) {
	broker := &fakeBroker{}
	local := InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Nop()}

	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: broker.client(), InstanceID: "a", LocalBusConfig: local, Logger: logger.Nop()})
	require.NoError(t, err)
	defer bus.Close()

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventStudentRecordChanged, func(shared.Event) error {
		time.Sleep(20 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	change := student.Change{AccountID: "u1", Before: &student.Record{ID: "u1"}, After: &student.Record{ID: "u1", CGPA: shared.Float(7)}}
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(student.NewRecordChangedEvent(change)))
	}

	bus.Drain()
	assert.EqualValues(t, 3, handled.Load())
}
