package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/workflow"
)

// PolicyFilter — фильтры списка политик.
// nil-поле означает отсутствие фильтра.
type PolicyFilter struct {
	// Status — канонический статус (историческое написание under-review
	// учитывается в предикате автоматически).
	Status *string
	// PolicyType — тип политики.
	PolicyType *string
	// CreatorID — автор семейства версий.
	CreatorID *string
}

// PolicyRepository — интерфейс CRUD и запросов семейства версий
// для таблицы policies.
type PolicyRepository interface {
	// Create создаёт новую запись политики.
	Create(ctx context.Context, p *model.Policy) error
	// GetByID возвращает политику по UUID.
	GetByID(ctx context.Context, id string) (*model.Policy, error)
	// List возвращает список политик с фильтрацией.
	List(ctx context.Context, f PolicyFilter, limit, offset int) ([]*model.Policy, error)
	// Count возвращает количество политик с фильтрацией.
	Count(ctx context.Context, f PolicyFilter) (int, error)
	// Update обновляет политику целиком.
	Update(ctx context.Context, p *model.Policy) error
	// Delete физически удаляет политику. Ревизии удаляются каскадно (FK).
	Delete(ctx context.Context, id string) error
	// Family возвращает все версии семейства с корнем rootID
	// (сам корень + всех потомков), новые первыми.
	Family(ctx context.Context, rootID string) ([]*model.Policy, error)
	// ListPublishedByNumber возвращает опубликованные политики с указанным
	// номером, исключая excludeID. При forUpdate блокируются ВСЕ строки
	// семейства (SELECT ... FOR UPDATE без фильтра по статусу): конкурентная
	// публикация другого черновика того же номера ждёт коммита и видит его
	// результат. Фильтр по статусу в запросе здесь недостаточен — строка,
	// опубликованная параллельной транзакцией, не попала бы в снимок.
	ListPublishedByNumber(ctx context.Context, policyNumber, excludeID string, forUpdate bool) ([]*model.Policy, error)
}

// policyRepo — реализация PolicyRepository.
type policyRepo struct {
	db DBTX
}

// NewPolicyRepository создаёт репозиторий политик.
func NewPolicyRepository(db DBTX) PolicyRepository {
	return &policyRepo{db: db}
}

const policyColumns = `id, name, purpose, policy_text, procedure, policy_number, policy_type,
	status, creator_id, publisher_id, reviewer, parent_policy_id, reviewer_comment,
	created_at, updated_at, published_at, archived_at`

// rowScanner — общий интерфейс pgx.Row и pgx.Rows для сканирования.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPolicy сканирует строку в модель и нормализует статус.
// Нормализация написания under-review происходит здесь, на границе
// хранения, — выше репозитория историческое написание не поднимается.
func scanPolicy(s rowScanner) (*model.Policy, error) {
	p := &model.Policy{}
	err := s.Scan(
		&p.ID, &p.Name, &p.Purpose, &p.PolicyText, &p.Procedure,
		&p.PolicyNumber, &p.PolicyType, &p.Status, &p.CreatorID,
		&p.PublisherID, &p.Reviewer, &p.ParentPolicyID, &p.ReviewerComment,
		&p.CreatedAt, &p.UpdatedAt, &p.PublishedAt, &p.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = workflow.Canonical(p.Status)
	return p, nil
}

func (r *policyRepo) Create(ctx context.Context, p *model.Policy) error {
	query := `
		INSERT INTO policies (id, name, purpose, policy_text, procedure,
			policy_number, policy_type, status, creator_id, publisher_id,
			reviewer, parent_policy_id, reviewer_comment, published_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.Name, p.Purpose, p.PolicyText, p.Procedure,
		p.PolicyNumber, p.PolicyType, workflow.Canonical(p.Status), p.CreatorID, p.PublisherID,
		p.Reviewer, p.ParentPolicyID, p.ReviewerComment, p.PublishedAt, p.ArchivedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: политика с id %s уже существует", ErrConflict, p.ID)
		}
		return fmt.Errorf("ошибка создания политики: %w", err)
	}
	return nil
}

func (r *policyRepo) GetByID(ctx context.Context, id string) (*model.Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM policies WHERE id = $1`, policyColumns)

	p, err := scanPolicy(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения политики: %w", err)
	}
	return p, nil
}

// buildFilter строит WHERE-предикаты фильтра.
// Для статуса under-review предикат учитывает историческое написание
// "under review" — в таблице встречаются оба значения.
func buildFilter(f PolicyFilter, argNum int) (conditions []string, args []any, next int) {
	next = argNum

	if f.Status != nil {
		canonical := workflow.Canonical(*f.Status)
		if canonical == string(workflow.StatusUnderReview) {
			conditions = append(conditions, fmt.Sprintf("status IN ($%d, $%d)", next, next+1))
			args = append(args, canonical, "under review")
			next += 2
		} else {
			conditions = append(conditions, fmt.Sprintf("status = $%d", next))
			args = append(args, canonical)
			next++
		}
	}
	if f.PolicyType != nil {
		conditions = append(conditions, fmt.Sprintf("policy_type = $%d", next))
		args = append(args, *f.PolicyType)
		next++
	}
	if f.CreatorID != nil {
		conditions = append(conditions, fmt.Sprintf("creator_id = $%d", next))
		args = append(args, *f.CreatorID)
		next++
	}

	return conditions, args, next
}

func (r *policyRepo) List(ctx context.Context, f PolicyFilter, limit, offset int) ([]*model.Policy, error) {
	conditions, args, argNum := buildFilter(f, 1)

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM policies
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, policyColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка политик: %w", err)
	}
	defer rows.Close()

	var result []*model.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования политики: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *policyRepo) Count(ctx context.Context, f PolicyFilter) (int, error) {
	conditions, args, _ := buildFilter(f, 1)

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM policies %s`, where)

	var count int
	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта политик: %w", err)
	}
	return count, nil
}

func (r *policyRepo) Update(ctx context.Context, p *model.Policy) error {
	query := `
		UPDATE policies
		SET name = $2, purpose = $3, policy_text = $4, procedure = $5,
			status = $6, publisher_id = $7, reviewer = $8, reviewer_comment = $9,
			published_at = $10, archived_at = $11, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.Name, p.Purpose, p.PolicyText, p.Procedure,
		workflow.Canonical(p.Status), p.PublisherID, p.Reviewer, p.ReviewerComment,
		p.PublishedAt, p.ArchivedAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления политики: %w", err)
	}
	return nil
}

func (r *policyRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления политики: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *policyRepo) Family(ctx context.Context, rootID string) ([]*model.Policy, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM policies
		WHERE id = $1 OR parent_policy_id = $1
		ORDER BY created_at DESC`, policyColumns)

	rows, err := r.db.Query(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения семейства версий: %w", err)
	}
	defer rows.Close()

	var result []*model.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования политики: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *policyRepo) ListPublishedByNumber(ctx context.Context, policyNumber, excludeID string, forUpdate bool) ([]*model.Policy, error) {
	if forUpdate {
		return r.lockPublishedByNumber(ctx, policyNumber, excludeID)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM policies
		WHERE policy_number = $1 AND id <> $2 AND status = $3
		ORDER BY published_at DESC
		`, policyColumns)

	rows, err := r.db.Query(ctx, query, policyNumber, excludeID, string(workflow.StatusPublished))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска опубликованных версий: %w", err)
	}
	defer rows.Close()

	var result []*model.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования политики: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// lockPublishedByNumber блокирует все версии семейства и возвращает
// опубликованные. Статус фильтруется по актуальным (после ожидания
// блокировки) версиям строк, а не по снимку запроса: так вторая из двух
// конкурентных публикаций увидит результат первой и заархивирует его.
// Порядок блокировки по id — конкурентные публикации не взаимоблокируются.
func (r *policyRepo) lockPublishedByNumber(ctx context.Context, policyNumber, excludeID string) ([]*model.Policy, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM policies
		WHERE policy_number = $1 AND id <> $2
		ORDER BY id
		FOR UPDATE`, policyColumns)

	rows, err := r.db.Query(ctx, query, policyNumber, excludeID)
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки семейства версий: %w", err)
	}
	defer rows.Close()

	var result []*model.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования политики: %w", err)
		}
		if p.Status != string(workflow.StatusPublished) {
			continue
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
