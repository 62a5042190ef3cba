package consultation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const approvalCols = `id, treatment_record_id, diagnosis_text, diagnosis_type,
	is_primary, approved_by, revision, created_at`

const decisionCols = `id, treatment_record_id, doctor_id, status, medication_treatment,
	lab_findings_impression, lab_tests, is_draft, revision, created_at`

func (r *repoPG) NextRevision(ctx context.Context, recordID uuid.UUID) (int, error) {
	var rev int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(revision), 0) + 1
		FROM approved_diagnosis
		WHERE treatment_record_id = $1`, recordID).Scan(&rev)
	if err != nil {
		return 0, errs.Transient(err)
	}
	return rev, nil
}

func (r *repoPG) CreateApprovals(ctx context.Context, approvals []*ApprovedDiagnosis) error {
	q := r.conn(ctx)
	for _, a := range approvals {
		a.ID = uuid.New()
		_, err := q.Exec(ctx, `
			INSERT INTO approved_diagnosis (
				id, treatment_record_id, diagnosis_text, diagnosis_type,
				is_primary, approved_by, revision
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			a.ID, a.TreatmentRecordID, a.DiagnosisText, a.DiagnosisType,
			a.IsPrimary, a.ApprovedBy, a.Revision,
		)
		if err != nil {
			return errs.Transient(err)
		}
	}
	return nil
}

func (r *repoPG) GetApprovals(ctx context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+approvalCols+`
		FROM approved_diagnosis
		WHERE treatment_record_id = $1
		  AND revision = (
			SELECT COALESCE(MAX(revision), 0)
			FROM approved_diagnosis
			WHERE treatment_record_id = $1
		  )
		ORDER BY is_primary DESC, created_at`, recordID)
	if err != nil {
		return nil, errs.Transient(err)
	}
	defer rows.Close()
	return collectApprovals(rows)
}

func (r *repoPG) GetApprovalHistory(ctx context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+approvalCols+`
		FROM approved_diagnosis
		WHERE treatment_record_id = $1
		ORDER BY revision DESC, is_primary DESC, created_at`, recordID)
	if err != nil {
		return nil, errs.Transient(err)
	}
	defer rows.Close()
	return collectApprovals(rows)
}

func (r *repoPG) CreateDecision(ctx context.Context, d *Decision) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation_decision (
			id, treatment_record_id, doctor_id, status, medication_treatment,
			lab_findings_impression, lab_tests, is_draft, revision
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.TreatmentRecordID, d.DoctorID, d.Status, d.MedicationTreatment,
		d.LabFindingsImpression, d.LabTests, d.IsDraft, d.Revision,
	)
	if err != nil {
		return errs.Transient(err)
	}
	return nil
}

func (r *repoPG) LatestDecision(ctx context.Context, recordID uuid.UUID) (*Decision, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+decisionCols+`
		FROM consultation_decision
		WHERE treatment_record_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, recordID)
	d, err := scanDecision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("consultation decision", recordID.String())
	}
	if err != nil {
		return nil, errs.Transient(err)
	}
	return d, nil
}

func collectApprovals(rows pgx.Rows) ([]*ApprovedDiagnosis, error) {
	var out []*ApprovedDiagnosis
	for rows.Next() {
		var a ApprovedDiagnosis
		if err := rows.Scan(
			&a.ID, &a.TreatmentRecordID, &a.DiagnosisText, &a.DiagnosisType,
			&a.IsPrimary, &a.ApprovedBy, &a.Revision, &a.CreatedAt,
		); err != nil {
			return nil, errs.Transient(err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient(err)
	}
	return out, nil
}

func scanDecision(row pgx.Row) (*Decision, error) {
	var d Decision
	err := row.Scan(
		&d.ID, &d.TreatmentRecordID, &d.DoctorID, &d.Status, &d.MedicationTreatment,
		&d.LabFindingsImpression, &d.LabTests, &d.IsDraft, &d.Revision, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
