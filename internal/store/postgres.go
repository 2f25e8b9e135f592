package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"carenav/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir in lexical order. Files must be idempotent.
func (p *Postgres) MigrateDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

const workerCols = `id, name, array_to_string(competencies, ','), home_lat, home_lng, weekly_hours, work_start_min, work_end_min`

func scanWorker(sc interface{ Scan(...any) error }) (model.Worker, error) {
	var w model.Worker
	var comps string
	err := sc.Scan(&w.ID, &w.Name, &comps, &w.Home.Lat, &w.Home.Lng, &w.WeeklyHours, &w.WorkStartMinutes, &w.WorkEndMinutes)
	w.Competencies = splitList(comps)
	return w, err
}

func (p *Postgres) ListWorkers(ctx context.Context, ids []string) ([]model.Worker, error) {
	var rows *sql.Rows
	var err error
	if len(ids) == 0 {
		rows, err = p.db.QueryContext(ctx, `SELECT `+workerCols+` FROM workers ORDER BY id`)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+workerCols+` FROM workers WHERE id = ANY($1)`, ids)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := map[string]model.Worker{}
	out := []model.Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		byID[w.ID] = w
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	// keep caller order; it decides which cluster each worker gets
	ordered := make([]model.Worker, 0, len(ids))
	for _, id := range ids {
		w, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("worker %s: %w", id, ErrNotFound)
		}
		ordered = append(ordered, w)
	}
	return ordered, nil
}

func (p *Postgres) GetWorker(ctx context.Context, id string) (model.Worker, error) {
	w, err := scanWorker(p.db.QueryRowContext(ctx, `SELECT `+workerCols+` FROM workers WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Worker{}, fmt.Errorf("worker %s: %w", id, ErrNotFound)
	}
	return w, err
}

func (p *Postgres) ListStops(ctx context.Context, date string, excludeLocked bool) ([]model.Stop, error) {
	q := `SELECT s.id, COALESCE(s.client_id,''), s.lat, s.lng, s.duration_min, s.priority,
        array_to_string(s.required_competencies, ','), s.window_start, s.window_end
        FROM stops s WHERE s.service_date = $1::date`
	if excludeLocked {
		q += ` AND NOT EXISTS (SELECT 1 FROM assignments a JOIN routes r ON r.id = a.route_id
            WHERE a.stop_id = s.id AND a.locked AND r.route_date = $1::date)`
	}
	q += ` ORDER BY s.id`
	rows, err := p.db.QueryContext(ctx, q, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Stop{}
	for rows.Next() {
		var s model.Stop
		var comps string
		var ws, we sql.NullTime
		if err := rows.Scan(&s.ID, &s.ClientID, &s.Location.Lat, &s.Location.Lng, &s.DurationMinutes, &s.Priority, &comps, &ws, &we); err != nil {
			return nil, err
		}
		s.RequiredCompetencies = splitList(comps)
		if ws.Valid || we.Valid {
			s.Window = &model.TimeWindow{}
			if ws.Valid {
				s.Window.Start = ws.Time
			}
			if we.Valid {
				s.Window.End = we.Time
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceRoute runs in one transaction: upsert the route row, keep locked assignments,
// delete the rest, insert the merged set. Any failure rolls everything back.
func (p *Postgres) ReplaceRoute(ctx context.Context, r model.Route, preserveLocked bool) (model.Route, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Route{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if r.Status == "" {
		r.Status = model.RouteStatusPlanned
	}
	var eff any
	if r.Efficiency != nil {
		eff = *r.Efficiency
	}
	err = tx.QueryRowContext(ctx, `INSERT INTO routes (id, employee_id, route_date, total_distance_km, total_duration_min, efficiency, status, updated_at)
        VALUES ($1,$2,$3::date,$4,$5,$6,$7,now())
        ON CONFLICT (employee_id, route_date) DO UPDATE SET total_distance_km=EXCLUDED.total_distance_km,
            total_duration_min=EXCLUDED.total_duration_min, efficiency=EXCLUDED.efficiency, status=EXCLUDED.status, updated_at=now()
        RETURNING id::text, updated_at`,
		uuid.New().String(), r.EmployeeID, r.Date, r.TotalDistanceKm, r.TotalDurationMinutes, eff, r.Status).Scan(&r.ID, &r.UpdatedAt)
	if err != nil {
		return model.Route{}, err
	}

	var locked []model.Assignment
	if preserveLocked {
		locked, err = queryAssignments(ctx, tx, `WHERE route_id=$1 AND locked ORDER BY start_time`, r.ID)
		if err != nil {
			return model.Route{}, err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE route_id=$1 AND NOT locked`, r.ID)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE route_id=$1`, r.ID)
	}
	if err != nil {
		return model.Route{}, err
	}

	fresh := make([]model.Assignment, len(r.Assignments))
	for i, a := range r.Assignments {
		a.ID = uuid.New().String()
		a.RouteID = r.ID
		a.EmployeeID = r.EmployeeID
		if a.Status == "" {
			a.Status = model.AssignmentStatusPending
		}
		fresh[i] = a
	}
	merged := mergeLocked(locked, fresh)
	for _, a := range merged {
		if a.Locked {
			if _, err := tx.ExecContext(ctx, `UPDATE assignments SET seq=$2 WHERE id=$1`, a.ID, a.Order); err != nil {
				return model.Route{}, err
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO assignments (id, route_id, stop_id, employee_id, start_time, end_time, seq, travel_min, locked, status)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9)`,
			a.ID, a.RouteID, a.StopID, a.EmployeeID, a.Start, a.End, a.Order, a.TravelMinutes, a.Status)
		if err != nil {
			return model.Route{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Route{}, err
	}
	r.Assignments = merged
	return r, nil
}

const routeCols = `id::text, employee_id, to_char(route_date, 'YYYY-MM-DD'), total_distance_km, total_duration_min, efficiency, status, updated_at`

func scanRoute(sc interface{ Scan(...any) error }) (model.Route, error) {
	var r model.Route
	var eff sql.NullFloat64
	if err := sc.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.TotalDistanceKm, &r.TotalDurationMinutes, &eff, &r.Status, &r.UpdatedAt); err != nil {
		return r, err
	}
	if eff.Valid {
		v := eff.Float64
		r.Efficiency = &v
	}
	return r, nil
}

func (p *Postgres) GetRoute(ctx context.Context, id string) (model.Route, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Route{}, fmt.Errorf("route %s: %w", id, ErrNotFound)
	}
	r, err := scanRoute(p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("route %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return r, err
	}
	r.Assignments, err = queryAssignments(ctx, p.db, `WHERE route_id=$1 ORDER BY seq`, r.ID)
	return r, err
}

func (p *Postgres) ListRoutes(ctx context.Context, date string) ([]model.Route, error) {
	q := `SELECT ` + routeCols + ` FROM routes`
	args := []any{}
	if date != "" {
		q += ` WHERE route_date = $1::date`
		args = append(args, date)
	}
	q += ` ORDER BY route_date, employee_id`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []model.Route{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	for i := range out {
		as, err := queryAssignments(ctx, p.db, `WHERE route_id=$1 ORDER BY seq`, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Assignments = as
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryAssignments(ctx context.Context, q querier, where string, args ...any) ([]model.Assignment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id::text, COALESCE(route_id::text,''), stop_id, employee_id, start_time, end_time, seq, travel_min, locked, status
        FROM assignments `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Assignment{}
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.RouteID, &a.StopID, &a.EmployeeID, &a.Start, &a.End, &a.Order, &a.TravelMinutes, &a.Locked, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) ListAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Assignment, error) {
	return queryAssignments(ctx, p.db, `WHERE employee_id=$1 AND start_time >= $2 AND start_time < $3 ORDER BY start_time`, employeeID, from, to)
}

func (p *Postgres) LatestAssignmentBefore(ctx context.Context, employeeID string, t time.Time) (*model.Assignment, error) {
	as, err := queryAssignments(ctx, p.db, `WHERE employee_id=$1 AND end_time < $2 ORDER BY end_time DESC LIMIT 1`, employeeID, t)
	if err != nil || len(as) == 0 {
		return nil, err
	}
	return &as[0], nil
}

// ComplianceSnapshot reads logs and schedules inside one repeatable-read transaction.
func (p *Postgres) ComplianceSnapshot(ctx context.Context, employeeID string, logsFrom, logsTo, schedulesFrom time.Time) (model.ComplianceSnapshot, error) {
	var snap model.ComplianceSnapshot
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return snap, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT log_date::timestamptz, start_time, end_time FROM work_logs
        WHERE employee_id=$1 AND log_date >= $2::date AND log_date <= $3::date ORDER BY log_date, start_time`,
		employeeID, logsFrom, logsTo)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		l := model.WorkLog{EmployeeID: employeeID}
		var st, en sql.NullTime
		if err := rows.Scan(&l.Date, &st, &en); err != nil {
			rows.Close()
			return snap, err
		}
		if st.Valid {
			t := st.Time
			l.Start = &t
		}
		if en.Valid {
			t := en.Time
			l.End = &t
		}
		snap.Logs = append(snap.Logs, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT week_start::timestamptz, planned_hours, actual_hours, compliance_status FROM schedules
        WHERE employee_id=$1 AND week_start >= $2::date AND week_start <= $3::date ORDER BY week_start`,
		employeeID, schedulesFrom, logsTo)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		s := model.Schedule{EmployeeID: employeeID}
		var actual sql.NullFloat64
		if err := rows.Scan(&s.WeekStart, &s.PlannedHours, &actual, &s.Status); err != nil {
			return snap, err
		}
		if actual.Valid {
			v := actual.Float64
			s.ActualHours = &v
		}
		snap.Schedules = append(snap.Schedules, s)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	return snap, tx.Commit()
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,'pending',0,now(),$6)
        ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs); err != nil {
		return err
	}
	// move to DLQ
	if _, err := tx.ExecContext(ctx, `INSERT INTO webhook_dlq (delivery_id, event_type, url, secret, payload, attempts, last_error)
        SELECT id, event_type, url, secret, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError)); err != nil {
		return err
	}
	return tx.Commit()
}

// computeDedupKey uses the event id when the payload carries one, a short content hash otherwise.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
