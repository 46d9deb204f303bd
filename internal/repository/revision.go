package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/policyhub/internal/domain/model"
)

// RevisionRepository — интерфейс доступа к журналу ревизий policy_revisions.
// Журнал append-only: записи создаются и единожды рецензируются,
// содержимое ревизии после создания не меняется.
type RevisionRepository interface {
	// Create создаёт запись ревизии.
	Create(ctx context.Context, rev *model.PolicyRevision) error
	// GetByID возвращает ревизию по UUID.
	GetByID(ctx context.Context, id string) (*model.PolicyRevision, error)
	// ListByPolicy возвращает ревизии политики, новые первыми.
	// При непустом fieldName — только ревизии этого поля.
	ListByPolicy(ctx context.Context, policyID string, fieldName *string) ([]*model.PolicyRevision, error)
	// UpdateReview фиксирует вердикт рецензента: статус, рецензента,
	// комментарий и время. Срабатывает только на pending-ревизии —
	// повторное рецензирование возвращает ErrConflict.
	UpdateReview(ctx context.Context, id, status, reviewedBy, comment string) (*model.PolicyRevision, error)
}

// revisionRepo — реализация RevisionRepository.
type revisionRepo struct {
	db DBTX
}

// NewRevisionRepository создаёт репозиторий ревизий.
func NewRevisionRepository(db DBTX) RevisionRepository {
	return &revisionRepo{db: db}
}

const revisionColumns = `id, policy_id, field_name, revision_number,
	original_content, modified_content, change_type, status,
	reviewed_by, reviewed_at, review_comment, created_by, created_at, change_metadata`

// scanRevision сканирует строку в модель ревизии.
func scanRevision(s rowScanner) (*model.PolicyRevision, error) {
	rev := &model.PolicyRevision{}
	err := s.Scan(
		&rev.ID, &rev.PolicyID, &rev.FieldName, &rev.RevisionNumber,
		&rev.OriginalContent, &rev.ModifiedContent, &rev.ChangeType, &rev.Status,
		&rev.ReviewedBy, &rev.ReviewedAt, &rev.ReviewComment,
		&rev.CreatedBy, &rev.CreatedAt, &rev.ChangeMetadata,
	)
	if err != nil {
		return nil, err
	}
	return rev, nil
}

func (r *revisionRepo) Create(ctx context.Context, rev *model.PolicyRevision) error {
	query := `
		INSERT INTO policy_revisions (id, policy_id, field_name, revision_number,
			original_content, modified_content, change_type, status,
			created_by, change_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		rev.ID, rev.PolicyID, rev.FieldName, rev.RevisionNumber,
		rev.OriginalContent, rev.ModifiedContent, rev.ChangeType, rev.Status,
		rev.CreatedBy, rev.ChangeMetadata,
	).Scan(&rev.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ревизия %d политики %s уже существует",
				ErrConflict, rev.RevisionNumber, rev.PolicyID)
		}
		return fmt.Errorf("ошибка создания ревизии: %w", err)
	}
	return nil
}

func (r *revisionRepo) GetByID(ctx context.Context, id string) (*model.PolicyRevision, error) {
	query := fmt.Sprintf(`SELECT %s FROM policy_revisions WHERE id = $1`, revisionColumns)

	rev, err := scanRevision(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ревизии: %w", err)
	}
	return rev, nil
}

func (r *revisionRepo) ListByPolicy(ctx context.Context, policyID string, fieldName *string) ([]*model.PolicyRevision, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM policy_revisions
		WHERE policy_id = $1`, revisionColumns)
	args := []any{policyID}

	if fieldName != nil {
		query += ` AND field_name = $2`
		args = append(args, *fieldName)
	}
	query += ` ORDER BY revision_number DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ревизий: %w", err)
	}
	defer rows.Close()

	var result []*model.PolicyRevision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ревизии: %w", err)
		}
		result = append(result, rev)
	}
	return result, rows.Err()
}

func (r *revisionRepo) UpdateReview(ctx context.Context, id, status, reviewedBy, comment string) (*model.PolicyRevision, error) {
	// Условие status = 'pending' в WHERE обеспечивает единственность
	// рецензирования на уровне SQL — конкурентные вердикты не перетирают
	// друг друга.
	query := fmt.Sprintf(`
		UPDATE policy_revisions
		SET status = $2, reviewed_by = $3, review_comment = $4, reviewed_at = now()
		WHERE id = $1 AND status = $5
		RETURNING %s`, revisionColumns)

	rev, err := scanRevision(r.db.QueryRow(ctx, query, id, status, reviewedBy, comment, model.RevisionPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо ревизии нет, либо она уже рассмотрена — различаем.
			if _, getErr := r.GetByID(ctx, id); getErr == nil {
				return nil, fmt.Errorf("%w: ревизия %s уже рассмотрена", ErrConflict, id)
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка рецензирования ревизии: %w", err)
	}
	return rev, nil
}
