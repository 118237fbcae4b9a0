package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bid2build/bid2build/internal/domain"
)

// DocumentRepository persists identity document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Document, error)
	ListByStatus(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error)
	// UpdateReview records a decision on a pending document. It returns ErrAlreadyReviewed
	// when the document is missing or already decided.
	UpdateReview(ctx context.Context, doc *domain.Document) error
}

type documentRepository struct {
	db DBTX
}

// NewDocumentRepository constructs repository.
func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepository{db: db}
}

const documentColumns = `id, user_id, kind, storage_key, file_name, mime_type, size_bytes, status, reviewer_id, review_note, reviewed_at, created_at`

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusPending
	}
	const query = `
        INSERT INTO documents (user_id, kind, storage_key, file_name, mime_type, size_bytes, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		doc.UserID,
		doc.Kind,
		doc.StorageKey,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.Status,
	).Scan(&doc.ID, &doc.CreatedAt)
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &docs[0], nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (r *documentRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE status=$1 ORDER BY created_at LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (r *documentRepository) UpdateReview(ctx context.Context, doc *domain.Document) error {
	const query = `
        UPDATE documents SET status=$1, reviewer_id=$2, review_note=$3, reviewed_at=$4
        WHERE id=$5 AND status=$6`
	cmd, err := r.db.Exec(ctx, query, doc.Status, doc.ReviewerID, doc.ReviewNote, doc.ReviewedAt, doc.ID, domain.DocumentStatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyReviewed
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]domain.Document, error) {
	defer rows.Close()

	var result []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Kind,
			&doc.StorageKey,
			&doc.FileName,
			&doc.MimeType,
			&doc.SizeBytes,
			&doc.Status,
			&doc.ReviewerID,
			&doc.ReviewNote,
			&doc.ReviewedAt,
			&doc.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}
