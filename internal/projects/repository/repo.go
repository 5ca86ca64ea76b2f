package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/infradash/infradash-backend/internal/projects/domain"
)

// ProjectRepository provides persistence operations for infrastructure
// projects.
type ProjectRepository struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const upsertSQL = `
INSERT INTO projects (
	contract_id, contract_name, contractors, implementing_office,
	contract_cost, effectivity_date, expiry_date, status,
	accomplishment, region, province, municipality, barangay, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (contract_id) DO UPDATE SET
	contract_name = EXCLUDED.contract_name,
	contractors = EXCLUDED.contractors,
	implementing_office = EXCLUDED.implementing_office,
	contract_cost = EXCLUDED.contract_cost,
	effectivity_date = EXCLUDED.effectivity_date,
	expiry_date = EXCLUDED.expiry_date,
	status = EXCLUDED.status,
	accomplishment = EXCLUDED.accomplishment,
	region = EXCLUDED.region,
	province = EXCLUDED.province,
	municipality = EXCLUDED.municipality,
	barangay = EXCLUDED.barangay,
	updated_at = now();
`

// StoreMany persists one batch of projects as a single transaction and
// returns the number of records stored. Upserts run per record inside
// the transaction, so a duplicate contract_id later in the batch
// overwrites the earlier one (last write wins). If any statement fails
// the transaction aborts and the whole batch counts as stored = 0;
// callers do not retry.
func (r *ProjectRepository) StoreMany(ctx context.Context, projects []domain.Project) (int, error) {
	if len(projects) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range projects {
		batch.Queue(upsertSQL,
			p.ContractID, p.ContractName, p.Contractors, p.ImplementingOffice,
			p.ContractCost.String(), p.EffectivityDate, p.ExpiryDate, string(p.Status),
			p.Accomplishment, p.Region, p.Province, p.Municipality, p.Barangay,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range projects {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert record %d (%s): %w", i, projects[i].ContractID, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return len(projects), nil
}

// List returns projects matching the filter, newest first.
func (r *ProjectRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Project, error) {
	q := `
SELECT contract_id, contract_name, contractors, implementing_office,
       contract_cost::text, effectivity_date, expiry_date, status,
       accomplishment, region, province, municipality, barangay, updated_at
FROM projects
WHERE ($1 = '' OR region = $1)
  AND ($2 = '' OR status = $2)
ORDER BY updated_at DESC
LIMIT $3 OFFSET $4;
`
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, q, filter.Region, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		var cost string
		if err := rows.Scan(
			&p.ContractID, &p.ContractName, &p.Contractors, &p.ImplementingOffice,
			&cost, &p.EffectivityDate, &p.ExpiryDate, &p.Status,
			&p.Accomplishment, &p.Region, &p.Province, &p.Municipality, &p.Barangay,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.ContractCost, err = decimal.NewFromString(cost)
		if err != nil {
			return nil, fmt.Errorf("stored cost for %s is not numeric: %w", p.ContractID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns one project by contract ID.
func (r *ProjectRepository) Get(ctx context.Context, contractID string) (*domain.Project, error) {
	const q = `
SELECT contract_id, contract_name, contractors, implementing_office,
       contract_cost::text, effectivity_date, expiry_date, status,
       accomplishment, region, province, municipality, barangay, updated_at
FROM projects
WHERE contract_id = $1;
`
	var p domain.Project
	var cost string
	err := r.db.QueryRow(ctx, q, contractID).Scan(
		&p.ContractID, &p.ContractName, &p.Contractors, &p.ImplementingOffice,
		&cost, &p.EffectivityDate, &p.ExpiryDate, &p.Status,
		&p.Accomplishment, &p.Region, &p.Province, &p.Municipality, &p.Barangay,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.ContractCost, err = decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("stored cost for %s is not numeric: %w", p.ContractID, err)
	}
	return &p, nil
}

// Summary aggregates the whole table for the dashboard charts.
func (r *ProjectRepository) Summary(ctx context.Context) (*domain.Summary, error) {
	const q = `
SELECT status, region, COUNT(*), COALESCE(SUM(contract_cost), 0)::text
FROM projects
GROUP BY status, region;
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &domain.Summary{
		TotalCost: decimal.Zero,
		ByStatus:  make(map[domain.Status]int),
		ByRegion:  make(map[string]int),
	}
	for rows.Next() {
		var status, region, cost string
		var count int
		if err := rows.Scan(&status, &region, &count, &cost); err != nil {
			return nil, err
		}
		groupCost, err := decimal.NewFromString(cost)
		if err != nil {
			return nil, fmt.Errorf("aggregated cost is not numeric: %w", err)
		}
		s.TotalProjects += count
		s.TotalCost = s.TotalCost.Add(groupCost)
		s.ByStatus[domain.Status(status)] += count
		s.ByRegion[region] += count
	}
	return s, rows.Err()
}
