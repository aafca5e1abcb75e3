package postgres

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-portal/portal-core/internal/application/eventhandler"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/internal/infrastructure/messaging"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/memory"
	"github.com/campus-portal/portal-core/pkg/logger"
)

// queuedNotifications replays payloads, then fails like a dropped connection.
type queuedNotifications struct {
	queue []*pgconn.Notification
}

var errConnLost = errors.New("conn closed")

func (q *queuedNotifications) WaitForNotification(context.Context) (*pgconn.Notification, error) {
	if len(q.queue) == 0 {
		return nil, errConnLost
	}
	n := q.queue[0]
	q.queue = q.queue[1:]
	return n, nil
}

func notification(payload string) *pgconn.Notification {
	return &pgconn.Notification{Channel: ChangeChannel, Payload: payload}
}

func TestDecodeChange(t *testing.T) {
	t.Run("update", func(t *testing.T) {
		c, err := DecodeChange(`{"id":"s1",
			"before":{"attendance_percent":50,"cgpa":null,"internal_marks_percent":70.5},
			"after":{"attendance_percent":95,"cgpa":9,"internal_marks_percent":70.5}}`)
		require.NoError(t, err)
		assert.Equal(t, "s1", c.AccountID)
		assert.False(t, c.Deleted())
		assert.Equal(t, "s1", c.After.ID)
		assert.Equal(t, 50.0, *c.Before.AttendancePercent)
		assert.Nil(t, c.Before.CGPA)
		assert.Equal(t, 9.0, *c.After.CGPA)
		assert.True(t, student.SourceFieldsChanged(c.Before, c.After))
	})

	t.Run("delete", func(t *testing.T) {
		c, err := DecodeChange(`{"id":"s1","before":{"attendance_percent":50,"cgpa":7,"internal_marks_percent":null},"after":null}`)
		require.NoError(t, err)
		assert.True(t, c.Deleted())
		assert.Equal(t, 7.0, *c.Before.CGPA)
	})

	t.Run("non-finite values arrive quoted", func(t *testing.T) {
		c, err := DecodeChange(`{"id":"s1","before":{"attendance_percent":"NaN"},"after":{"attendance_percent":"NaN","cgpa":"Infinity","internal_marks_percent":"-Infinity"}}`)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(*c.After.AttendancePercent))
		assert.True(t, math.IsInf(*c.After.CGPA, 1))
		assert.True(t, math.IsInf(*c.After.InternalMarksPercent, -1))
		assert.False(t, student.SourceFieldsChanged(c.Before, &student.Record{AttendancePercent: shared.Float(math.NaN())}))
	})

	t.Run("malformed", func(t *testing.T) {
		for _, payload := range []string{
			`not json`,
			`{"before":{},"after":{}}`,
			`{"id":"s1","after":{}}`,
			`{"id":"s1","before":{"cgpa":"seven"},"after":{}}`,
			`{"id":"s1","before":{"cgpa":true},"after":{}}`,
		} {
			_, err := DecodeChange(payload)
			assert.Error(t, err, payload)
		}
	})
}

func TestChangeListener_ForwardsUntilConnectionDrops(t *testing.T) {
	var got []student.Change
	l := NewChangeListener(nil, func(c student.Change) { got = append(got, c) }, logger.Nop(), ChangeListenerConfig{})

	src := &queuedNotifications{queue: []*pgconn.Notification{
		notification(`{"id":"s1","before":{"cgpa":6},"after":{"cgpa":8}}`),
		{Channel: "other", Payload: `{"id":"x","before":{},"after":{}}`},
		notification(`garbage`),
		notification(`{"id":"s2","before":{"cgpa":8},"after":null}`),
	}}

	err := l.consume(context.Background(), src)

	assert.ErrorIs(t, err, errConnLost)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].AccountID)
	assert.Equal(t, "s2", got[1].AccountID)
	assert.True(t, got[1].Deleted())
}

// A change made by another client of the database (raw SQL, an admin console)
// reaches the risk scorer through the listener and is written back.
func TestChangeListener_ForeignWriteIsScored(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStudentRepository()
	require.NoError(t, store.Create(ctx, &student.Record{ID: "s1"}))

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Nop()})
	risk := eventhandler.NewOnStudentRecordChangedHandler(store, logger.Nop(), nil, eventhandler.DefaultRecordChangedConfig())
	require.NoError(t, bus.Subscribe(shared.EventStudentRecordChanged, risk.Handle))

	feed := messaging.NewChangeFeed(bus, logger.Nop())
	l := NewChangeListener(nil, feed.Notify, logger.Nop(), ChangeListenerConfig{})

	src := &queuedNotifications{queue: []*pgconn.Notification{
		notification(`{"id":"s1",
			"before":{"attendance_percent":null,"cgpa":null,"internal_marks_percent":null},
			"after":{"attendance_percent":95,"cgpa":9,"internal_marks_percent":90}}`),
	}}
	require.ErrorIs(t, l.consume(ctx, src), errConnLost)

	rec, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, rec.RiskScore)
	assert.Equal(t, 92, *rec.RiskScore)
	assert.Equal(t, student.RiskSafe, rec.RiskLevel)
}

func TestChangeListener_RunStopsWithContext(t *testing.T) {
	conn := &Connection{}
	conn.closed.Store(true)
	l := NewChangeListener(conn, func(student.Change) {}, logger.Nop(), ChangeListenerConfig{SubscribeAttempts: 1, Resettle: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
	select {
	case <-l.Listening():
		t.Fatal("never subscribed, so must not report listening")
	default:
	}
}
