/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements engine.TxStore using database/sql + go-sqlite3. In production
  the same patterns apply to PostgreSQL - only minor dialect differences.

UNIQUENESS ENFORCEMENT:
  The (user_id, event_id) invariant for both attendance records and
  excuse requests lives in UNIQUE indexes, and every write that may race
  goes through INSERT ... ON CONFLICT, never read-then-write. Constraint
  violations that are not absorbed by an upsert surface as
  engine.ErrConflict so callers can retry.

CASCADE:
  recurring_events -> events -> attendance_records / excuse_requests are
  linked with ON DELETE CASCADE foreign keys. Deleting a series removes
  everything it generated in one statement, inside one transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on:
  multiple readers don't block, a single writer at a time, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rosterly/attendance-engine/engine"
)

const timeLayout = time.RFC3339Nano

// Store implements engine.TxStore on SQLite.
type Store struct {
	*conn
	db *sql.DB
}

// conn holds the query methods; it runs over either the database or an
// open transaction.
type conn struct {
	q dbtx
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single pooled connection keeps ":memory:" databases coherent, since
	// every new sqlite connection to ":memory:" is a fresh empty database.
	db.SetMaxOpenConns(1)

	s := &Store{conn: &conn{q: db}, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recurring_events (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		days_of_week TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		recurring_event_id TEXT REFERENCES recurring_events(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_org_date
		ON events(organization_id, date);
	CREATE INDEX IF NOT EXISTS idx_events_series
		ON events(recurring_event_id) WHERE recurring_event_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		check_in_time TEXT,
		check_out_time TEXT,
		hours_logged TEXT NOT NULL DEFAULT '0',
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one record per (user, event). Concurrent
	-- check-ins race on this index and resolve via upsert.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_user_event
		ON attendance_records(user_id, event_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_user
		ON attendance_records(user_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_event
		ON attendance_records(event_id);

	-- Auto-checkout sweep hot path
	CREATE INDEX IF NOT EXISTS idx_attendance_open
		ON attendance_records(event_id)
		WHERE check_in_time IS NOT NULL AND check_out_time IS NULL;

	CREATE TABLE IF NOT EXISTS excuse_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		attempt_count INTEGER NOT NULL DEFAULT 1,
		auto_created BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_excuses_user_event
		ON excuse_requests(user_id, event_id);

	CREATE TABLE IF NOT EXISTS roster_members (
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (organization_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS pay_rates (
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		hourly_rate TEXT,
		salary_amount TEXT,
		PRIMARY KEY (organization_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS deductions (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		dtype TEXT NOT NULL,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deductions_member
		ON deductions(organization_id, user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// mapErr translates constraint violations into the engine taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", engine.ErrConflict, err)
	}
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	view := &conn{q: tx}
	if err := fn(view); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// EVENTS
// =============================================================================

func (c *conn) SaveEvent(ctx context.Context, ev engine.Event) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO events (id, organization_id, title, date, start_time, end_time, recurring_event_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time`,
		string(ev.ID), string(ev.OrganizationID), ev.Title,
		ev.Date.Format(engine.DateLayout), ev.StartTime, ev.EndTime,
		nullStr(ev.RecurringEventID), ev.CreatedAt.Format(timeLayout),
	)
	return mapErr(err)
}

const eventCols = `id, organization_id, title, date, start_time, end_time, recurring_event_id, created_at`

func (c *conn) GetEvent(ctx context.Context, id engine.EventID) (*engine.Event, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = ?`, string(id))
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func (c *conn) ListEventsBetween(ctx context.Context, org engine.OrgID, from, to time.Time) ([]engine.Event, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+eventCols+` FROM events
		WHERE organization_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		string(org),
		engine.DateOnly(from).Format(engine.DateLayout),
		engine.DateOnly(to).Format(engine.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []engine.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func (c *conn) SaveRecurringEvent(ctx context.Context, re engine.RecurringEvent) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO recurring_events (id, organization_id, title, frequency, days_of_week, start_date, end_date, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			frequency = excluded.frequency,
			days_of_week = excluded.days_of_week,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			start_time = excluded.start_time,
			end_time = excluded.end_time`,
		re.ID, string(re.OrganizationID), re.Title, string(re.Frequency),
		encodeWeekdays(re.DaysOfWeek),
		re.StartDate.Format(engine.DateLayout), re.EndDate.Format(engine.DateLayout),
		re.StartTime, re.EndTime, re.CreatedAt.Format(timeLayout),
	)
	return mapErr(err)
}

func (c *conn) GetRecurringEvent(ctx context.Context, id string) (*engine.RecurringEvent, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT id, organization_id, title, frequency, days_of_week, start_date, end_date, start_time, end_time, created_at
		FROM recurring_events WHERE id = ?`, id)

	var re engine.RecurringEvent
	var org, freq, days, startDate, endDate, createdAt string
	err := row.Scan(&re.ID, &org, &re.Title, &freq, &days, &startDate, &endDate, &re.StartTime, &re.EndTime, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	re.OrganizationID = engine.OrgID(org)
	re.Frequency = engine.Frequency(freq)
	re.DaysOfWeek = decodeWeekdays(days)
	if re.StartDate, err = time.Parse(engine.DateLayout, startDate); err != nil {
		return nil, err
	}
	if re.EndDate, err = time.Parse(engine.DateLayout, endDate); err != nil {
		return nil, err
	}
	if re.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	return &re, nil
}

func (c *conn) DeleteRecurringSeries(ctx context.Context, id string) error {
	// Foreign keys cascade: events, then their attendance and excuses.
	res, err := c.q.ExecContext(ctx, `DELETE FROM recurring_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &engine.NotFoundError{Kind: "recurring event", ID: id}
	}
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

const attendanceCols = `id, user_id, event_id, status, check_in_time, check_out_time, hours_logged, note, created_at, updated_at`

func (c *conn) UpsertAttendance(ctx context.Context, rec engine.AttendanceRecord) (*engine.AttendanceRecord, error) {
	// True atomic insert-or-update on the unique pair. A losing racer
	// updates the winner's row; id and created_at keep the first
	// writer's values.
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO attendance_records (id, user_id, event_id, status, check_in_time, check_out_time, hours_logged, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			check_in_time = excluded.check_in_time,
			check_out_time = excluded.check_out_time,
			hours_logged = excluded.hours_logged,
			note = excluded.note,
			updated_at = excluded.updated_at
		ON CONFLICT(user_id, event_id) DO UPDATE SET
			status = excluded.status,
			check_in_time = excluded.check_in_time,
			check_out_time = excluded.check_out_time,
			hours_logged = excluded.hours_logged,
			note = excluded.note,
			updated_at = excluded.updated_at`,
		rec.ID, string(rec.UserID), string(rec.EventID), string(rec.Status),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime),
		rec.HoursLogged.String(), rec.Note,
		rec.CreatedAt.Format(timeLayout), rec.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return c.GetAttendance(ctx, rec.UserID, rec.EventID)
}

func (c *conn) InsertAttendanceIfMissing(ctx context.Context, rec engine.AttendanceRecord) (bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO attendance_records (id, user_id, event_id, status, check_in_time, check_out_time, hours_logged, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, event_id) DO NOTHING`,
		rec.ID, string(rec.UserID), string(rec.EventID), string(rec.Status),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime),
		rec.HoursLogged.String(), rec.Note,
		rec.CreatedAt.Format(timeLayout), rec.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *conn) GetAttendance(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.AttendanceRecord, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+attendanceCols+` FROM attendance_records WHERE user_id = ? AND event_id = ?`,
		string(user), string(event))
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (c *conn) GetAttendanceByID(ctx context.Context, id string) (*engine.AttendanceRecord, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+attendanceCols+` FROM attendance_records WHERE id = ?`, id)
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (c *conn) DeleteAttendance(ctx context.Context, user engine.UserID, event engine.EventID) error {
	res, err := c.q.ExecContext(ctx,
		`DELETE FROM attendance_records WHERE user_id = ? AND event_id = ?`,
		string(user), string(event))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &engine.NotFoundError{Kind: "attendance record", ID: string(user) + "/" + string(event)}
	}
	return nil
}

func (c *conn) ListAttendanceByEvent(ctx context.Context, event engine.EventID) ([]engine.AttendanceRecord, error) {
	return c.listAttendance(ctx,
		`SELECT `+attendanceCols+` FROM attendance_records WHERE event_id = ? ORDER BY user_id`,
		string(event))
}

func (c *conn) ListAttendanceByUser(ctx context.Context, user engine.UserID) ([]engine.AttendanceRecord, error) {
	return c.listAttendance(ctx,
		`SELECT `+attendanceCols+` FROM attendance_records WHERE user_id = ? ORDER BY created_at, event_id`,
		string(user))
}

func (c *conn) ListAttendanceForPeriod(ctx context.Context, org engine.OrgID, from, to time.Time) ([]engine.AttendanceRecord, error) {
	return c.listAttendance(ctx, `
		SELECT a.id, a.user_id, a.event_id, a.status, a.check_in_time, a.check_out_time, a.hours_logged, a.note, a.created_at, a.updated_at
		FROM attendance_records a
		JOIN events e ON e.id = a.event_id
		WHERE e.organization_id = ? AND e.date >= ? AND e.date <= ?
		ORDER BY a.user_id, e.date`,
		string(org),
		engine.DateOnly(from).Format(engine.DateLayout),
		engine.DateOnly(to).Format(engine.DateLayout))
}

func (c *conn) listAttendance(ctx context.Context, query string, args ...any) ([]engine.AttendanceRecord, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []engine.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (c *conn) ListOpenCheckIns(ctx context.Context, from, to time.Time) ([]engine.OpenCheckIn, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.event_id, a.status, a.check_in_time, a.check_out_time, a.hours_logged, a.note, a.created_at, a.updated_at,
		       e.id, e.organization_id, e.title, e.date, e.start_time, e.end_time, e.recurring_event_id, e.created_at
		FROM attendance_records a
		JOIN events e ON e.id = a.event_id
		WHERE a.check_in_time IS NOT NULL AND a.check_out_time IS NULL
		  AND e.date >= ? AND e.date <= ?
		ORDER BY e.date, a.id`,
		engine.DateOnly(from).Format(engine.DateLayout),
		engine.DateOnly(to).Format(engine.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []engine.OpenCheckIn
	for rows.Next() {
		var (
			rec                            engine.AttendanceRecord
			ev                             engine.Event
			user, event, status, hours     string
			checkIn, checkOut              sql.NullString
			createdAt, updatedAt           string
			evID, evOrg, evDate, evCreated string
			evSeries                       sql.NullString
		)
		err := rows.Scan(
			&rec.ID, &user, &event, &status, &checkIn, &checkOut, &hours, &rec.Note, &createdAt, &updatedAt,
			&evID, &evOrg, &ev.Title, &evDate, &ev.StartTime, &ev.EndTime, &evSeries, &evCreated,
		)
		if err != nil {
			return nil, err
		}
		if err := fillAttendance(&rec, user, event, status, checkIn, checkOut, hours, createdAt, updatedAt); err != nil {
			return nil, err
		}
		ev.ID = engine.EventID(evID)
		ev.OrganizationID = engine.OrgID(evOrg)
		if ev.Date, err = time.Parse(engine.DateLayout, evDate); err != nil {
			return nil, err
		}
		if evSeries.Valid {
			series := evSeries.String
			ev.RecurringEventID = &series
		}
		if ev.CreatedAt, err = time.Parse(timeLayout, evCreated); err != nil {
			return nil, err
		}
		result = append(result, engine.OpenCheckIn{Record: rec, Event: ev})
	}
	return result, rows.Err()
}

func (c *conn) CountAttendanceByStatus(ctx context.Context, user engine.UserID) (map[engine.AttendanceStatus]int, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM attendance_records WHERE user_id = ? GROUP BY status`,
		string(user))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[engine.AttendanceStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[engine.AttendanceStatus(status)] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// EXCUSES
// =============================================================================

func (c *conn) UpsertExcuse(ctx context.Context, req engine.ExcuseRequest) (*engine.ExcuseRequest, error) {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO excuse_requests (id, user_id, event_id, status, reason, attempt_count, auto_created, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			attempt_count = excluded.attempt_count,
			auto_created = excluded.auto_created,
			updated_at = excluded.updated_at
		ON CONFLICT(user_id, event_id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			attempt_count = excluded.attempt_count,
			auto_created = excluded.auto_created,
			updated_at = excluded.updated_at`,
		req.ID, string(req.UserID), string(req.EventID), string(req.Status),
		req.Reason, req.AttemptCount, req.AutoCreated,
		req.CreatedAt.Format(timeLayout), req.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return c.GetExcuse(ctx, req.UserID, req.EventID)
}

func (c *conn) GetExcuse(ctx context.Context, user engine.UserID, event engine.EventID) (*engine.ExcuseRequest, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT id, user_id, event_id, status, reason, attempt_count, auto_created, created_at, updated_at
		FROM excuse_requests WHERE user_id = ? AND event_id = ?`,
		string(user), string(event))

	var req engine.ExcuseRequest
	var u, e, status, createdAt, updatedAt string
	err := row.Scan(&req.ID, &u, &e, &status, &req.Reason, &req.AttemptCount, &req.AutoCreated, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	req.UserID = engine.UserID(u)
	req.EventID = engine.EventID(e)
	req.Status = engine.ExcuseStatus(status)
	if req.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *conn) DeleteExcuse(ctx context.Context, user engine.UserID, event engine.EventID) error {
	res, err := c.q.ExecContext(ctx,
		`DELETE FROM excuse_requests WHERE user_id = ? AND event_id = ?`,
		string(user), string(event))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &engine.NotFoundError{Kind: "excuse request", ID: string(user) + "/" + string(event)}
	}
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (c *conn) UpsertRosterMember(ctx context.Context, m engine.RosterMember) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO roster_members (organization_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT(organization_id, user_id) DO UPDATE SET role = excluded.role`,
		string(m.OrganizationID), string(m.UserID), m.Role)
	return mapErr(err)
}

func (c *conn) ListRosterMembers(ctx context.Context, org engine.OrgID) ([]engine.RosterMember, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT organization_id, user_id, role FROM roster_members WHERE organization_id = ? ORDER BY user_id`,
		string(org))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []engine.RosterMember
	for rows.Next() {
		var o, u, role string
		if err := rows.Scan(&o, &u, &role); err != nil {
			return nil, err
		}
		members = append(members, engine.RosterMember{
			OrganizationID: engine.OrgID(o),
			UserID:         engine.UserID(u),
			Role:           role,
		})
	}
	return members, rows.Err()
}

func (c *conn) ListOrganizations(ctx context.Context) ([]engine.OrgID, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT DISTINCT organization_id FROM roster_members ORDER BY organization_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []engine.OrgID
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		orgs = append(orgs, engine.OrgID(o))
	}
	return orgs, rows.Err()
}

// =============================================================================
// PAY CONFIGURATION
// =============================================================================

func (c *conn) SavePayRate(ctx context.Context, cfg engine.PayRateConfig) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO pay_rates (organization_id, user_id, hourly_rate, salary_amount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(organization_id, user_id) DO UPDATE SET
			hourly_rate = excluded.hourly_rate,
			salary_amount = excluded.salary_amount`,
		string(cfg.OrganizationID), string(cfg.UserID),
		nullDecimal(cfg.HourlyRate), nullDecimal(cfg.SalaryAmount))
	return mapErr(err)
}

func (c *conn) GetPayRate(ctx context.Context, org engine.OrgID, user engine.UserID) (*engine.PayRateConfig, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT organization_id, user_id, hourly_rate, salary_amount FROM pay_rates WHERE organization_id = ? AND user_id = ?`,
		string(org), string(user))

	var o, u string
	var hourly, salary sql.NullString
	err := row.Scan(&o, &u, &hourly, &salary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := engine.PayRateConfig{OrganizationID: engine.OrgID(o), UserID: engine.UserID(u)}
	if cfg.HourlyRate, err = parseNullDecimal(hourly); err != nil {
		return nil, err
	}
	if cfg.SalaryAmount, err = parseNullDecimal(salary); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *conn) SaveDeduction(ctx context.Context, d engine.Deduction) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO deductions (id, organization_id, user_id, name, dtype, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			dtype = excluded.dtype,
			value = excluded.value`,
		d.ID, string(d.OrganizationID), string(d.UserID), d.Name, string(d.Type), d.Value.String())
	return mapErr(err)
}

func (c *conn) ListDeductions(ctx context.Context, org engine.OrgID, user engine.UserID) ([]engine.Deduction, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, organization_id, user_id, name, dtype, value FROM deductions WHERE organization_id = ? AND user_id = ? ORDER BY name`,
		string(org), string(user))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deductions []engine.Deduction
	for rows.Next() {
		var d engine.Deduction
		var o, u, dtype, value string
		if err := rows.Scan(&d.ID, &o, &u, &d.Name, &dtype, &value); err != nil {
			return nil, err
		}
		d.OrganizationID = engine.OrgID(o)
		d.UserID = engine.UserID(u)
		d.Type = engine.DeductionType(dtype)
		if d.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		deductions = append(deductions, d)
	}
	return deductions, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*engine.Event, error) {
	var ev engine.Event
	var id, org, date, createdAt string
	var series sql.NullString
	err := row.Scan(&id, &org, &ev.Title, &date, &ev.StartTime, &ev.EndTime, &series, &createdAt)
	if err != nil {
		return nil, err
	}
	ev.ID = engine.EventID(id)
	ev.OrganizationID = engine.OrgID(org)
	if ev.Date, err = time.Parse(engine.DateLayout, date); err != nil {
		return nil, err
	}
	if series.Valid {
		s := series.String
		ev.RecurringEventID = &s
	}
	if ev.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanAttendance(row scanner) (*engine.AttendanceRecord, error) {
	var rec engine.AttendanceRecord
	var user, event, status, hours, createdAt, updatedAt string
	var checkIn, checkOut sql.NullString
	err := row.Scan(&rec.ID, &user, &event, &status, &checkIn, &checkOut, &hours, &rec.Note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := fillAttendance(&rec, user, event, status, checkIn, checkOut, hours, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func fillAttendance(rec *engine.AttendanceRecord, user, event, status string, checkIn, checkOut sql.NullString, hours, createdAt, updatedAt string) error {
	rec.UserID = engine.UserID(user)
	rec.EventID = engine.EventID(event)
	rec.Status = engine.AttendanceStatus(status)

	var err error
	if rec.CheckInTime, err = parseNullTime(checkIn); err != nil {
		return err
	}
	if rec.CheckOutTime, err = parseNullTime(checkOut); err != nil {
		return err
	}
	if rec.HoursLogged, err = decimal.NewFromString(hours); err != nil {
		return err
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return err
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return err
	}
	return nil
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// WEEKDAY ENCODING
// =============================================================================

func encodeWeekdays(days []time.Weekday) string {
	out := make([]byte, 0, len(days)*2)
	for i, d := range days {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, byte('0'+int(d)))
	}
	return string(out)
}

func decodeWeekdays(s string) []time.Weekday {
	var days []time.Weekday
	for _, c := range s {
		if c >= '0' && c <= '6' {
			days = append(days, time.Weekday(c-'0'))
		}
	}
	return days
}
