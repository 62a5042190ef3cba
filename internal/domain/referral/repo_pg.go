package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuis/rhuis/internal/domain/encounter"
	"github.com/rhuis/rhuis/internal/platform/db"
	"github.com/rhuis/rhuis/internal/platform/errs"
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
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const refCols = `id, first_name, last_name, birth_date, address, facility, reasons,
	other_reason, status, seen, bhw_id, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	ref.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referral (id, first_name, last_name, birth_date, address, facility,
			reasons, other_reason, status, seen, bhw_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		ref.ID, ref.FirstName, ref.LastName, ref.BirthDate, ref.Address, ref.Facility,
		ref.Reasons, ref.OtherReason, ref.Status, ref.Seen, ref.BHWID,
	)
	if err != nil {
		return errs.Transient(err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	ref, err := scanRef(r.conn(ctx).QueryRow(ctx,
		`SELECT `+refCols+` FROM referral WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("referral", id.String())
	}
	if err != nil {
		return nil, errs.Transient(err)
	}
	return ref, nil
}

func (r *repoPG) CreateIfAbsent(ctx context.Context, ref *Referral, normalizedFirst, normalizedLast string) error {
	ref.ID = uuid.New()
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO referral (id, first_name, last_name, birth_date, address, facility,
			reasons, other_reason, status, seen, bhw_id)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
		WHERE NOT EXISTS (
			SELECT 1 FROM referral
			WHERE lower(btrim(regexp_replace(first_name, '\s+', ' ', 'g'))) = $12
			  AND lower(btrim(regexp_replace(last_name, '\s+', ' ', 'g'))) = $13
		)`,
		ref.ID, ref.FirstName, ref.LastName, ref.BirthDate, ref.Address, ref.Facility,
		ref.Reasons, ref.OtherReason, ref.Status, ref.Seen, ref.BHWID,
		normalizedFirst, normalizedLast,
	)
	if err != nil {
		return errs.Transient(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict(fmt.Sprintf(
			"a referral for %s %s already exists", ref.FirstName, ref.LastName))
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE referral SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return errs.Transient(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("referral", id.String())
	}
	return nil
}

func (r *repoPG) MarkSeen(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE referral SET seen=TRUE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return errs.Transient(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("referral", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error) {
	where := `TRUE`
	args := []interface{}{}

	if f.Status != "" {
		// Legacy rows carry alias spellings, so the filter matches all of
		// them rather than the stored value verbatim.
		args = append(args, encounter.Spellings(f.Status))
		where += fmt.Sprintf(` AND lower(status) = ANY($%d)`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d OR facility ILIKE $%d)`,
			len(args), len(args), len(args))
	}
	if f.Unseen {
		where += ` AND NOT seen`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM referral WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.Transient(err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+refCols+` FROM referral WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, errs.Transient(err)
	}
	defer rows.Close()

	refs, err := collectRefs(rows)
	if err != nil {
		return nil, 0, err
	}
	return refs, total, nil
}

func scanRef(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.FirstName, &ref.LastName, &ref.BirthDate, &ref.Address,
		&ref.Facility, &ref.Reasons, &ref.OtherReason, &ref.Status, &ref.Seen,
		&ref.BHWID, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func collectRefs(rows pgx.Rows) ([]*Referral, error) {
	var refs []*Referral
	for rows.Next() {
		ref, err := scanRef(rows)
		if err != nil {
			return nil, errs.Transient(err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient(err)
	}
	return refs, nil
}
