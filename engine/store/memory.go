// Package store provides an in-memory engine.TxStore implementation,
// used by unit tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rosterly/attendance-engine/engine"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type pairKey struct {
	User  engine.UserID
	Event engine.EventID
}

type memberKey struct {
	Org  engine.OrgID
	User engine.UserID
}

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx blocks

	events         map[engine.EventID]engine.Event
	recurring      map[string]engine.RecurringEvent
	attendance     map[pairKey]engine.AttendanceRecord
	attendanceByID map[string]pairKey
	excuses        map[pairKey]engine.ExcuseRequest
	roster         map[memberKey]engine.RosterMember
	payRates       map[memberKey]engine.PayRateConfig
	deductions     map[memberKey][]engine.Deduction
}

func NewMemory() *Memory {
	return &Memory{
		events:         make(map[engine.EventID]engine.Event),
		recurring:      make(map[string]engine.RecurringEvent),
		attendance:     make(map[pairKey]engine.AttendanceRecord),
		attendanceByID: make(map[string]pairKey),
		excuses:        make(map[pairKey]engine.ExcuseRequest),
		roster:         make(map[memberKey]engine.RosterMember),
		payRates:       make(map[memberKey]engine.PayRateConfig),
		deductions:     make(map[memberKey][]engine.Deduction),
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func (m *Memory) SaveEvent(_ context.Context, ev engine.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id engine.EventID) (*engine.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (m *Memory) ListEventsBetween(_ context.Context, org engine.OrgID, from, to time.Time) ([]engine.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.Event
	for _, ev := range m.events {
		if ev.OrganizationID != org {
			continue
		}
		if ev.Date.Before(engine.DateOnly(from)) || ev.Date.After(engine.DateOnly(to)) {
			continue
		}
		result = append(result, ev)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) SaveRecurringEvent(_ context.Context, re engine.RecurringEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recurring[re.ID] = re
	return nil
}

func (m *Memory) GetRecurringEvent(_ context.Context, id string) (*engine.RecurringEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	re, ok := m.recurring[id]
	if !ok {
		return nil, nil
	}
	return &re, nil
}

func (m *Memory) DeleteRecurringSeries(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recurring[id]; !ok {
		return &engine.NotFoundError{Kind: "recurring event", ID: id}
	}
	delete(m.recurring, id)
	for evID, ev := range m.events {
		if ev.RecurringEventID == nil || *ev.RecurringEventID != id {
			continue
		}
		delete(m.events, evID)
		for k, rec := range m.attendance {
			if k.Event == evID {
				delete(m.attendance, k)
				delete(m.attendanceByID, rec.ID)
			}
		}
		for k := range m.excuses {
			if k.Event == evID {
				delete(m.excuses, k)
			}
		}
	}
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (m *Memory) UpsertAttendance(_ context.Context, rec engine.AttendanceRecord) (*engine.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{User: rec.UserID, Event: rec.EventID}
	if existing, ok := m.attendance[k]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	m.attendance[k] = rec
	m.attendanceByID[rec.ID] = k
	out := rec
	return &out, nil
}

func (m *Memory) InsertAttendanceIfMissing(_ context.Context, rec engine.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{User: rec.UserID, Event: rec.EventID}
	if _, ok := m.attendance[k]; ok {
		return false, nil
	}
	m.attendance[k] = rec
	m.attendanceByID[rec.ID] = k
	return true, nil
}

func (m *Memory) GetAttendance(_ context.Context, user engine.UserID, event engine.EventID) (*engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.attendance[pairKey{User: user, Event: event}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) GetAttendanceByID(_ context.Context, id string) (*engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.attendanceByID[id]
	if !ok {
		return nil, nil
	}
	rec := m.attendance[k]
	return &rec, nil
}

func (m *Memory) DeleteAttendance(_ context.Context, user engine.UserID, event engine.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{User: user, Event: event}
	rec, ok := m.attendance[k]
	if !ok {
		return &engine.NotFoundError{Kind: "attendance record", ID: string(user) + "/" + string(event)}
	}
	delete(m.attendance, k)
	delete(m.attendanceByID, rec.ID)
	return nil
}

func (m *Memory) ListAttendanceByEvent(_ context.Context, event engine.EventID) ([]engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.AttendanceRecord
	for k, rec := range m.attendance {
		if k.Event == event {
			result = append(result, rec)
		}
	}
	sortRecords(result)
	return result, nil
}

func (m *Memory) ListAttendanceByUser(_ context.Context, user engine.UserID) ([]engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.AttendanceRecord
	for k, rec := range m.attendance {
		if k.User == user {
			result = append(result, rec)
		}
	}
	sortRecords(result)
	return result, nil
}

func (m *Memory) ListAttendanceForPeriod(_ context.Context, org engine.OrgID, from, to time.Time) ([]engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.AttendanceRecord
	for k, rec := range m.attendance {
		ev, ok := m.events[k.Event]
		if !ok || ev.OrganizationID != org {
			continue
		}
		if ev.Date.Before(engine.DateOnly(from)) || ev.Date.After(engine.DateOnly(to)) {
			continue
		}
		result = append(result, rec)
	}
	sortRecords(result)
	return result, nil
}

func (m *Memory) ListOpenCheckIns(_ context.Context, from, to time.Time) ([]engine.OpenCheckIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.OpenCheckIn
	for k, rec := range m.attendance {
		if rec.CheckInTime == nil || rec.CheckOutTime != nil {
			continue
		}
		ev, ok := m.events[k.Event]
		if !ok {
			continue
		}
		if ev.Date.Before(engine.DateOnly(from)) || ev.Date.After(engine.DateOnly(to)) {
			continue
		}
		result = append(result, engine.OpenCheckIn{Record: rec, Event: ev})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Record.ID < result[j].Record.ID })
	return result, nil
}

func (m *Memory) CountAttendanceByStatus(_ context.Context, user engine.UserID) (map[engine.AttendanceStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[engine.AttendanceStatus]int)
	for k, rec := range m.attendance {
		if k.User == user {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func sortRecords(recs []engine.AttendanceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UserID != recs[j].UserID {
			return recs[i].UserID < recs[j].UserID
		}
		return recs[i].EventID < recs[j].EventID
	})
}

// =============================================================================
// EXCUSES
// =============================================================================

func (m *Memory) UpsertExcuse(_ context.Context, req engine.ExcuseRequest) (*engine.ExcuseRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{User: req.UserID, Event: req.EventID}
	if existing, ok := m.excuses[k]; ok {
		req.ID = existing.ID
		req.CreatedAt = existing.CreatedAt
	}
	m.excuses[k] = req
	out := req
	return &out, nil
}

func (m *Memory) GetExcuse(_ context.Context, user engine.UserID, event engine.EventID) (*engine.ExcuseRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.excuses[pairKey{User: user, Event: event}]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (m *Memory) DeleteExcuse(_ context.Context, user engine.UserID, event engine.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{User: user, Event: event}
	if _, ok := m.excuses[k]; !ok {
		return &engine.NotFoundError{Kind: "excuse request", ID: string(user) + "/" + string(event)}
	}
	delete(m.excuses, k)
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) UpsertRosterMember(_ context.Context, member engine.RosterMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster[memberKey{Org: member.OrganizationID, User: member.UserID}] = member
	return nil
}

func (m *Memory) ListRosterMembers(_ context.Context, org engine.OrgID) ([]engine.RosterMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.RosterMember
	for k, member := range m.roster {
		if k.Org == org {
			result = append(result, member)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (m *Memory) ListOrganizations(_ context.Context) ([]engine.OrgID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[engine.OrgID]bool)
	var result []engine.OrgID
	for k := range m.roster {
		if !seen[k.Org] {
			seen[k.Org] = true
			result = append(result, k.Org)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// =============================================================================
// PAY CONFIGURATION
// =============================================================================

func (m *Memory) SavePayRate(_ context.Context, cfg engine.PayRateConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payRates[memberKey{Org: cfg.OrganizationID, User: cfg.UserID}] = cfg
	return nil
}

func (m *Memory) GetPayRate(_ context.Context, org engine.OrgID, user engine.UserID) (*engine.PayRateConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.payRates[memberKey{Org: org, User: user}]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *Memory) SaveDeduction(_ context.Context, d engine.Deduction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{Org: d.OrganizationID, User: d.UserID}
	for i, existing := range m.deductions[k] {
		if existing.ID == d.ID {
			m.deductions[k][i] = d
			return nil
		}
	}
	m.deductions[k] = append(m.deductions[k], d)
	return nil
}

func (m *Memory) ListDeductions(_ context.Context, org engine.OrgID, user engine.UserID) ([]engine.Deduction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := memberKey{Org: org, User: user}
	result := make([]engine.Deduction, len(m.deductions[k]))
	copy(result, m.deductions[k])
	return result, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn with rollback-on-error semantics, simulated with a
// snapshot + restore. Transactions are serialized by txMu.
func (m *Memory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	events         map[engine.EventID]engine.Event
	recurring      map[string]engine.RecurringEvent
	attendance     map[pairKey]engine.AttendanceRecord
	attendanceByID map[string]pairKey
	excuses        map[pairKey]engine.ExcuseRequest
	roster         map[memberKey]engine.RosterMember
	payRates       map[memberKey]engine.PayRateConfig
	deductions     map[memberKey][]engine.Deduction
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := memorySnapshot{
		events:         make(map[engine.EventID]engine.Event, len(m.events)),
		recurring:      make(map[string]engine.RecurringEvent, len(m.recurring)),
		attendance:     make(map[pairKey]engine.AttendanceRecord, len(m.attendance)),
		attendanceByID: make(map[string]pairKey, len(m.attendanceByID)),
		excuses:        make(map[pairKey]engine.ExcuseRequest, len(m.excuses)),
		roster:         make(map[memberKey]engine.RosterMember, len(m.roster)),
		payRates:       make(map[memberKey]engine.PayRateConfig, len(m.payRates)),
		deductions:     make(map[memberKey][]engine.Deduction, len(m.deductions)),
	}
	for k, v := range m.events {
		s.events[k] = v
	}
	for k, v := range m.recurring {
		s.recurring[k] = v
	}
	for k, v := range m.attendance {
		s.attendance[k] = v
	}
	for k, v := range m.attendanceByID {
		s.attendanceByID[k] = v
	}
	for k, v := range m.excuses {
		s.excuses[k] = v
	}
	for k, v := range m.roster {
		s.roster[k] = v
	}
	for k, v := range m.payRates {
		s.payRates[k] = v
	}
	for k, v := range m.deductions {
		s.deductions[k] = append([]engine.Deduction{}, v...)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = s.events
	m.recurring = s.recurring
	m.attendance = s.attendance
	m.attendanceByID = s.attendanceByID
	m.excuses = s.excuses
	m.roster = s.roster
	m.payRates = s.payRates
	m.deductions = s.deductions
}
