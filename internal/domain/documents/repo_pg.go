package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed document repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const documentCols = `id, patient_id, name, type, storage_ref, is_signed, signed_at, expires_at,
	template_id, doctor_id, uploaded_by, custom_notes, created_at`

// Mirrors Type.Lifecycle.
const lifecycleTypesSQL = `('report','prescription','consent')`

func scanDocument(row pgx.Row) (*DocumentRecord, error) {
	var d DocumentRecord
	err := row.Scan(&d.ID, &d.PatientID, &d.Name, &d.Type, &d.StorageRef, &d.IsSigned,
		&d.SignedAt, &d.ExpiresAt,
		&d.Metadata.TemplateID, &d.Metadata.DoctorID, &d.Metadata.UploadedBy, &d.Metadata.CustomNotes,
		&d.CreatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, rec *DocumentRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO document (id, patient_id, name, type, storage_ref, is_signed, signed_at, expires_at,
			template_id, doctor_id, uploaded_by, custom_notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rec.ID, rec.PatientID, rec.Name, rec.Type, rec.StorageRef, rec.IsSigned, rec.SignedAt, rec.ExpiresAt,
		rec.Metadata.TemplateID, rec.Metadata.DoctorID, rec.Metadata.UploadedBy, rec.Metadata.CustomNotes,
		rec.CreatedAt)
	if err != nil {
		return &RegistryError{Op: "create", Err: err}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*DocumentRecord, error) {
	rec, err := scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM document WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &RegistryError{Op: "get", Err: err}
	}
	return rec, nil
}

func (r *repoPG) ReplaceArtifact(ctx context.Context, id uuid.UUID, storageRef string, signedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE document SET storage_ref = $2, is_signed = TRUE, signed_at = $3
		WHERE id = $1`, id, storageRef, signedAt)
	if err != nil {
		return &RegistryError{Op: "replace-artifact", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, f Filter, limit, offset int) ([]*DocumentRecord, int, error) {
	where := []string{"patient_id = $1"}
	args := []interface{}{patientID}

	if f.Text != "" {
		args = append(args, "%"+strings.ToLower(f.Text)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(type) LIKE $%d)", n, n))
	}
	switch f.Tab {
	case TabGenerated:
		where = append(where, "type IN "+lifecycleTypesSQL)
	case TabContributed:
		where = append(where, "type NOT IN "+lifecycleTypesSQL)
	case TabPending:
		where = append(where, "type IN "+lifecycleTypesSQL)
		where = append(where, "(is_signed = FALSE OR expires_at < NOW())")
	case "":
	default:
		return nil, 0, invalidf("unknown tab %q", f.Tab)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, &RegistryError{Op: "count", Err: err}
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM document WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		documentCols, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, &RegistryError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []*DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, 0, &RegistryError{Op: "list-scan", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &RegistryError{Op: "list", Err: err}
	}
	return out, total, nil
}
