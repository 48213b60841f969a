// Package postgres persists telemetry history and escalated alerts. Writes
// are asynchronous and best-effort: the pipeline enqueues and moves on, and
// a full queue drops records rather than slowing ingestion.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Asadp3406/bus-tracking/internal/state"
	"github.com/Asadp3406/bus-tracking/internal/telemetry"
	"github.com/Asadp3406/bus-tracking/pkg/log"
	"github.com/Asadp3406/bus-tracking/pkg/options"
)

const (
	insertLocation = `INSERT INTO vehicle_locations
		(vehicle_id, route_id, latitude, longitude, speed, bearing, reported_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertStatus = `INSERT INTO vehicle_status_updates
		(vehicle_id, status, message, reported_at)
		VALUES ($1, $2, $3, $4)`

	insertAlert = `INSERT INTO alerts
		(source_id, kind, priority, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)`
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type record struct {
	sql  string
	args []any
}

// Sink buffers history writes and drains them on its own goroutine.
type Sink struct {
	db           execer
	queue        chan record
	writeTimeout time.Duration
	closer       func()
}

// New connects to PostgreSQL and returns a Sink. Run must be started for
// records to reach the database.
func New(ctx context.Context, opts *options.PostgresOptions) (*Sink, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = opts.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	s := newSink(pool, opts.QueueSize, opts.WriteTimeout)
	s.closer = pool.Close
	return s, nil
}

func newSink(db execer, queueSize int, writeTimeout time.Duration) *Sink {
	return &Sink{
		db:           db,
		queue:        make(chan record, queueSize),
		writeTimeout: writeTimeout,
	}
}

// Run drains the queue until ctx is done, then flushes what is buffered.
func (s *Sink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			if s.closer != nil {
				s.closer()
			}
			return nil
		case rec := <-s.queue:
			s.write(rec)
		}
	}
}

func (s *Sink) flush() {
	for {
		select {
		case rec := <-s.queue:
			s.write(rec)
		default:
			return
		}
	}
}

func (s *Sink) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, rec.sql, rec.args...); err != nil {
		log.Error(err, "history write failed")
	}
}

func (s *Sink) enqueue(rec record) {
	select {
	case s.queue <- rec:
	default:
		log.Warn("history queue full, dropping record")
	}
}

// RecordLocation enqueues one accepted location for history. Never blocks.
func (s *Sink) RecordLocation(st state.VehicleState) {
	s.enqueue(record{
		sql: insertLocation,
		args: []any{
			st.VehicleID, st.RouteID,
			st.Latitude, st.Longitude, st.Speed, st.Bearing,
			time.UnixMilli(int64(st.Timestamp)).UTC(), st.UpdatedAt.UTC(),
		},
	})
}

// RecordStatus enqueues one status change. Never blocks.
func (s *Sink) RecordStatus(upd telemetry.StatusUpdate) {
	s.enqueue(record{
		sql: insertStatus,
		args: []any{
			upd.VehicleID, string(upd.Status), upd.Message,
			time.UnixMilli(int64(upd.Timestamp)).UTC(),
		},
	})
}

// RecordAlert enqueues one escalated alert. Never blocks.
func (s *Sink) RecordAlert(event telemetry.AlertEvent) {
	s.enqueue(record{
		sql: insertAlert,
		args: []any{
			event.SourceID, string(event.Kind), event.Priority,
			[]byte(event.Payload), event.ReceivedAt.UTC(),
		},
	})
}
