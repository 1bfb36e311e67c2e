package panel

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prw/warehouse-core/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.prw_id, p.sex, p.age, p.age_in_mo_under_3, p.city, p.state, p.pcp,
		       a.panel_provider, a.panel_location
		FROM prw_patients p
		LEFT JOIN prw_patient_panel a ON a.prw_id = p.prw_id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.PRWID, &p.Sex, &p.Age, &p.AgeInMoUnder3, &p.City, &p.State, &p.PCP,
			&p.PanelProvider, &p.PanelLocation); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, nil
}

func (r *repoPG) ListEncounters(ctx context.Context) ([]Encounter, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT prw_id, location, dept, encounter_date, encounter_type,
		       service_provider, with_pcp, appt_status, diagnoses, level_of_service
		FROM prw_encounters`)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	defer rows.Close()

	var encounters []Encounter
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.PRWID, &e.Location, &e.Dept, &e.Date, &e.EncounterType,
			&e.ServiceProvider, &e.WithPCP, &e.ApptStatus, &e.Diagnoses, &e.LevelOfService); err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		encounters = append(encounters, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encounters: %w", err)
	}
	return encounters, nil
}

func (r *repoPG) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin warehouse transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(db.ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit warehouse transaction: %w", err)
	}
	return nil
}

func (r *repoPG) ReplaceAssignments(ctx context.Context, assignments []Assignment) error {
	if db.TxFromContext(ctx) == nil {
		return r.WithTx(ctx, func(ctx context.Context) error {
			return r.ReplaceAssignments(ctx, assignments)
		})
	}
	c := r.conn(ctx)

	if _, err := c.Exec(ctx, `DELETE FROM prw_patient_panel`); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}

	if len(assignments) > 0 {
		src := make([][]interface{}, len(assignments))
		for i, a := range assignments {
			src[i] = []interface{}{a.PRWID, a.PanelLocation, a.PanelProvider, a.RuleTrace}
		}
		_, err := c.CopyFrom(ctx,
			pgx.Identifier{"prw_patient_panel"},
			[]string{"prw_id", "panel_location", "panel_provider", "rule_trace"},
			pgx.CopyFromRows(src),
		)
		if err != nil {
			return fmt.Errorf("write assignments: %w", err)
		}
	}
	return nil
}

func (r *repoPG) CountByTrace(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT rule_trace, COUNT(*) FROM prw_patient_panel GROUP BY rule_trace`)
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var trace string
		var n int
		if err := rows.Scan(&trace, &n); err != nil {
			return nil, fmt.Errorf("scan assignment count: %w", err)
		}
		counts[trace] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment counts: %w", err)
	}
	return counts, nil
}
