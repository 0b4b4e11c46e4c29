package partners

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing partner row.
var ErrNotFound = errors.New("partners: not found")

// Repository persists partners in PostgreSQL.
type Repository interface {
	List(ctx context.Context, role Role) ([]Partner, error)
	Get(ctx context.Context, id string) (Partner, error)
	Create(ctx context.Context, partner Partner) (Partner, error)
	ExistsWithRole(ctx context.Context, id string, role Role) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the partner repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, role Role) ([]Partner, error) {
	rows, err := r.db.Query(ctx, `SELECT id, role, name, email, phone, created_at, updated_at
FROM partners WHERE role = $1 ORDER BY name ASC`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Partner, error) {
	row := r.db.QueryRow(ctx, `SELECT id, role, name, email, phone, created_at, updated_at
FROM partners WHERE id = $1`, id)
	p, err := scanPartner(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Partner{}, ErrNotFound
		}
		return Partner{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, partner Partner) (Partner, error) {
	now := time.Now().UTC()
	partner.CreatedAt = now
	partner.UpdatedAt = now
	_, err := r.db.Exec(ctx, `INSERT INTO partners (id, role, name, email, phone, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		partner.ID, string(partner.Role), partner.Name, partner.Email, partner.Phone, partner.CreatedAt, partner.UpdatedAt)
	if err != nil {
		return Partner{}, err
	}
	return partner, nil
}

func (r *repository) ExistsWithRole(ctx context.Context, id string, role Role) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM partners WHERE id = $1 AND role = $2)`, id, string(role)).Scan(&exists)
	return exists, err
}

func scanPartner(row pgx.Row) (Partner, error) {
	var p Partner
	var email, phone *string
	err := row.Scan(&p.ID, &p.Role, &p.Name, &email, &phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Partner{}, err
	}
	if email != nil {
		p.Email = *email
	}
	if phone != nil {
		p.Phone = *phone
	}
	return p, nil
}
