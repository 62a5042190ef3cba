package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuis/rhuis/internal/platform/aidx"
	"github.com/rhuis/rhuis/internal/platform/db"
	"github.com/rhuis/rhuis/internal/platform/errs"
)

// openPatientConstraint is the partial unique index on (patient_id) WHERE
// status is not Complete. It makes the at-most-one-open-encounter invariant
// a property of the store rather than a read-then-write check.
const openPatientConstraint = "treatment_record_open_patient_idx"

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

const encCols = `id, patient_id, patient_name, referral_id, visit_type, purpose_of_visit,
	consultation_date, blood_pressure, temperature_c, height_cm, weight_kg,
	heart_rate_bpm, resp_rate_cpm, suggestions, diagnosis, medication,
	lab_findings, lab_tests, status, data_type, bhw_id, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	suggestions, err := marshalSuggestions(enc.Suggestions)
	if err != nil {
		return err
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO treatment_record (
			id, patient_id, patient_name, referral_id, visit_type, purpose_of_visit,
			consultation_date, blood_pressure, temperature_c, height_cm, weight_kg,
			heart_rate_bpm, resp_rate_cpm, suggestions, diagnosis, medication,
			lab_findings, lab_tests, status, data_type, bhw_id
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
			$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
		)`,
		enc.ID, enc.PatientID, enc.PatientName, enc.ReferralID, enc.VisitType, enc.PurposeOfVisit,
		enc.ConsultationDate, enc.BloodPressure, enc.TemperatureC, enc.HeightCm, enc.WeightKg,
		enc.HeartRateBPM, enc.RespRateCPM, suggestions, enc.FinalDiagnosis, enc.Medication,
		enc.LabFindings, enc.LabTests, enc.Status, enc.DataType, enc.BHWID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == openPatientConstraint {
			return errs.Conflict("patient already has an open treatment record")
		}
		return errs.Transient(err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := scanEnc(r.conn(ctx).QueryRow(ctx,
		`SELECT `+encCols+` FROM treatment_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("treatment record", id.String())
	}
	if err != nil {
		return nil, errs.Transient(err)
	}
	return enc, nil
}

func (r *repoPG) Update(ctx context.Context, enc *Encounter) error {
	suggestions, err := marshalSuggestions(enc.Suggestions)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE treatment_record SET
			patient_id=$2, patient_name=$3, visit_type=$4, purpose_of_visit=$5,
			consultation_date=$6, blood_pressure=$7, temperature_c=$8, height_cm=$9,
			weight_kg=$10, heart_rate_bpm=$11, resp_rate_cpm=$12, suggestions=$13,
			diagnosis=$14, medication=$15, lab_findings=$16, lab_tests=$17,
			status=$18, updated_at=NOW()
		WHERE id = $1`,
		enc.ID, enc.PatientID, enc.PatientName, enc.VisitType, enc.PurposeOfVisit,
		enc.ConsultationDate, enc.BloodPressure, enc.TemperatureC, enc.HeightCm,
		enc.WeightKg, enc.HeartRateBPM, enc.RespRateCPM, suggestions,
		enc.FinalDiagnosis, enc.Medication, enc.LabFindings, enc.LabTests,
		enc.Status,
	)
	if err != nil {
		return errs.Transient(err)
	}
	return nil
}

func (r *repoPG) UpdateFields(ctx context.Context, id uuid.UUID, upd FieldUpdate) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE treatment_record SET
			status       = COALESCE($2, status),
			diagnosis    = COALESCE($3, diagnosis),
			medication   = COALESCE($4, medication),
			lab_findings = COALESCE($5, lab_findings),
			lab_tests    = COALESCE($6, lab_tests),
			updated_at   = NOW()
		WHERE id = $1`,
		id, upd.Status, upd.FinalDiagnosis, upd.Medication, upd.LabFindings, upd.LabTests,
	)
	if err != nil {
		return errs.Transient(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("treatment record", id.String())
	}
	return nil
}

func (r *repoPG) ListOpen(ctx context.Context, f Filter, limit, offset int) ([]*Encounter, int, error) {
	where := `lower(status) NOT IN ('complete','completed')`
	args := []interface{}{}

	if f.Status != "" {
		canonical, ok := CanonicalStatus(f.Status)
		if !ok {
			return nil, 0, errs.Validation("unknown status filter", map[string]string{
				"status": fmt.Sprintf("unrecognized value %q", f.Status),
			})
		}
		args = append(args, Spellings(canonical))
		where += fmt.Sprintf(` AND lower(status) = ANY($%d)`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where += fmt.Sprintf(` AND (patient_name ILIKE $%d OR purpose_of_visit ILIKE $%d)`,
			len(args), len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatment_record WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.Transient(err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM treatment_record WHERE `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, errs.Transient(err)
	}
	defer rows.Close()
	return collectEncs(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatment_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, errs.Transient(err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM treatment_record WHERE patient_id = $1
		 ORDER BY COALESCE(consultation_date, created_at) DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, errs.Transient(err)
	}
	defer rows.Close()
	return collectEncs(rows, total)
}

func (r *repoPG) ListAll(ctx context.Context) ([]*Encounter, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+encCols+` FROM treatment_record ORDER BY created_at DESC`)
	if err != nil {
		return nil, errs.Transient(err)
	}
	defer rows.Close()

	encs, _, err := collectEncs(rows, 0)
	return encs, err
}

func marshalSuggestions(s []aidx.Suggestion) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestions: %w", err)
	}
	return raw, nil
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	var suggestions []byte
	err := row.Scan(
		&e.ID, &e.PatientID, &e.PatientName, &e.ReferralID, &e.VisitType, &e.PurposeOfVisit,
		&e.ConsultationDate, &e.BloodPressure, &e.TemperatureC, &e.HeightCm, &e.WeightKg,
		&e.HeartRateBPM, &e.RespRateCPM, &suggestions, &e.FinalDiagnosis, &e.Medication,
		&e.LabFindings, &e.LabTests, &e.Status, &e.DataType, &e.BHWID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(suggestions) > 0 {
		if err := json.Unmarshal(suggestions, &e.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal suggestions: %w", err)
		}
	}
	return &e, nil
}

func collectEncs(rows pgx.Rows, total int) ([]*Encounter, int, error) {
	var encs []*Encounter
	for rows.Next() {
		enc, err := scanEnc(rows)
		if err != nil {
			return nil, 0, errs.Transient(err)
		}
		encs = append(encs, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.Transient(err)
	}
	return encs, total, nil
}
