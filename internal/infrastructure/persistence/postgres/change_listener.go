package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/retry"
)

// ChangeChannel is the channel the students table trigger notifies on.
const ChangeChannel = "student_changes"

// ChangeListener turns committed students table changes into student.Change
// values for a sink. It sees every writer's changes, not just this process's,
// because the source is the table trigger from migration 004.
//
// Every instance listens, so with a shared bus a change can be scored more
// than once. The risk trigger's write-back is idempotent and does not touch a
// risk input, so repeats only cost a redundant write.
type ChangeListener struct {
	conn      *Connection
	sink      func(student.Change)
	logger    *logger.Logger
	attempts  int
	resettle  time.Duration
	listening chan struct{}
}

// ChangeListenerConfig tunes reconnects.
type ChangeListenerConfig struct {
	// SubscribeAttempts bounds one round of LISTEN retries.
	SubscribeAttempts int

	// Resettle is the pause before starting a new round after the listening
	// connection was lost or every attempt failed.
	Resettle time.Duration
}

// DefaultChangeListenerConfig returns the production defaults.
func DefaultChangeListenerConfig() ChangeListenerConfig {
	return ChangeListenerConfig{SubscribeAttempts: 5, Resettle: 2 * time.Second}
}

// NewChangeListener creates a listener feeding sink.
func NewChangeListener(conn *Connection, sink func(student.Change), log *logger.Logger, cfg ChangeListenerConfig) *ChangeListener {
	if log == nil {
		log = logger.Default()
	}
	def := DefaultChangeListenerConfig()
	if cfg.SubscribeAttempts <= 0 {
		cfg.SubscribeAttempts = def.SubscribeAttempts
	}
	if cfg.Resettle <= 0 {
		cfg.Resettle = def.Resettle
	}
	return &ChangeListener{
		conn:      conn,
		sink:      sink,
		logger:    log.With(logger.Component("change_listener")),
		attempts:  cfg.SubscribeAttempts,
		resettle:  cfg.Resettle,
		listening: make(chan struct{}),
	}
}

// Listening is closed once the first LISTEN succeeded.
func (l *ChangeListener) Listening() <-chan struct{} {
	return l.listening
}

// Run listens until ctx is done, resubscribing whenever the dedicated
// connection drops. Changes committed while no connection is listening are
// not replayed.
func (l *ChangeListener) Run(ctx context.Context) error {
	first := true
	for {
		err := l.listenOnce(ctx, &first)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("change listener interrupted, resubscribing",
			logger.Err(err),
			logger.Duration("resettle", l.resettle),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.resettle):
		}
	}
}

func (l *ChangeListener) listenOnce(ctx context.Context, first *bool) error {
	pc, err := retry.DoWithData(ctx, l.subscribe,
		retry.WithMaxAttempts(l.attempts),
		retry.WithInitialDelay(200*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
		retry.WithRetryIf(func(error) bool { return ctx.Err() == nil }),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ChangeChannel, err)
	}
	defer l.release(pc)

	if *first {
		*first = false
		close(l.listening)
	}
	l.logger.Info("listening for student changes", logger.String("channel", ChangeChannel))

	return l.consume(ctx, pc.Conn())
}

func (l *ChangeListener) subscribe(ctx context.Context) (*pgxpool.Conn, error) {
	pc, err := l.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := pc.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		pc.Release()
		return nil, err
	}
	return pc, nil
}

// release returns the connection without a lingering subscription.
func (l *ChangeListener) release(pc *pgxpool.Conn) {
	if !pc.Conn().IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if _, err := pc.Exec(ctx, "UNLISTEN "+ChangeChannel); err != nil {
			l.logger.Debug("unlisten failed", logger.Err(err))
		}
		cancel()
	}
	pc.Release()
}

// notificationSource is the part of a pgx connection the listener reads.
type notificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// consume forwards notifications until the source fails. Malformed payloads
// are logged and skipped.
func (l *ChangeListener) consume(ctx context.Context, src notificationSource) error {
	for {
		n, err := src.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Channel != ChangeChannel {
			continue
		}

		change, err := DecodeChange(n.Payload)
		if err != nil {
			l.logger.Warn("ignoring malformed student change", logger.Err(err))
			continue
		}
		l.sink(change)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Payload
// ─────────────────────────────────────────────────────────────────────────────

type changePayload struct {
	ID     string          `json:"id"`
	Before *sourceSnapshot `json:"before"`
	After  *sourceSnapshot `json:"after"`
}

type sourceSnapshot struct {
	AttendancePercent    nullableFloat `json:"attendance_percent"`
	CGPA                 nullableFloat `json:"cgpa"`
	InternalMarksPercent nullableFloat `json:"internal_marks_percent"`
}

func (s *sourceSnapshot) record(id string) *student.Record {
	if s == nil {
		return nil
	}
	return &student.Record{
		ID:                   id,
		AttendancePercent:    s.AttendancePercent.v,
		CGPA:                 s.CGPA.v,
		InternalMarksPercent: s.InternalMarksPercent.v,
	}
}

// nullableFloat decodes a DOUBLE PRECISION column as Postgres renders it in
// JSON: a number, null, or a quoted "NaN", "Infinity" or "-Infinity".
type nullableFloat struct{ v *float64 }

func (f *nullableFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		f.v = nil
		return nil
	}

	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.v = &n
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	f.v = &n
	return nil
}

// DecodeChange parses a student_changes payload. The snapshots carry only the
// id and the risk inputs; a null "after" is a delete.
func DecodeChange(payload string) (student.Change, error) {
	var p changePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return student.Change{}, fmt.Errorf("decode student change: %w", err)
	}
	if p.ID == "" {
		return student.Change{}, errors.New("decode student change: missing id")
	}
	if p.Before == nil {
		return student.Change{}, errors.New("decode student change: missing before snapshot")
	}
	return student.Change{
		AccountID: p.ID,
		Before:    p.Before.record(p.ID),
		After:     p.After.record(p.ID),
	}, nil
}
