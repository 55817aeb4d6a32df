package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goknowbase/internal/domain/model"
)

// fileColumns — список столбцов таблицы knowledge_files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, owner_id, file_name, file_type, file_size,
	content, binary_data, category, tags, metadata, created_at, updated_at`

// fileColumnsLight — проекция без тяжёлых полей (exclude_content=true):
// content и binary_data заменяются пустыми значениями, форма строки не меняется.
const fileColumnsLight = `id, owner_id, file_name, file_type, file_size,
	''::text AS content, NULL::bytea AS binary_data, category, tags, metadata, created_at, updated_at`

// SearchFilters — структурные фильтры и пре-фильтр кандидатов поиска.
// nil-поле = фильтр не применяется. Все фильтры комбинируются через AND.
type SearchFilters struct {
	// Category — точное совпадение категории
	Category *string
	// FileType — точное совпадение MIME-типа
	FileType *string
	// Tags — запись должна содержать все указанные теги (оператор @>)
	Tags []string
	// Tokens — токены запроса для ILIKE-префильтра:
	// запись-кандидат содержит хотя бы один токен в file_name, content или tags
	Tokens []string
	// CreatedAfter — записи, созданные после указанной даты
	CreatedAfter *time.Time
	// CreatedBefore — записи, созданные до указанной даты
	CreatedBefore *time.Time
	// CandidateLimit — верхняя граница числа кандидатов (ранжирование идёт в сервисе)
	CandidateLimit int
}

// KnowledgeRepository — интерфейс доступа к записям knowledge_files.
// Все операции жёстко ограничены ownerID.
type KnowledgeRepository interface {
	// Create сохраняет новую запись, проставляя created_at/updated_at.
	Create(ctx context.Context, f *model.KnowledgeFile) error
	// GetByID возвращает запись по id в пределах владельца.
	GetByID(ctx context.Context, id, ownerID string, includeContent bool) (*model.KnowledgeFile, error)
	// List возвращает страницу записей владельца (created_at DESC) и общее количество.
	List(ctx context.Context, ownerID string, limit, offset int, includeContent bool) ([]*model.KnowledgeFile, int, error)
	// Update применяет частичное обновление; updated_at продвигается всегда.
	Update(ctx context.Context, id, ownerID string, fields model.UpdateFields) (*model.KnowledgeFile, error)
	// Delete удаляет запись. Идемпотентна: отсутствующая или чужая запись — false без ошибки.
	Delete(ctx context.Context, id, ownerID string) (bool, error)
	// BulkDelete удаляет записи из ids, принадлежащие владельцу; чужие молча пропускаются.
	BulkDelete(ctx context.Context, ids []string, ownerID string) (int, error)
	// BulkUpdate применяет частичное обновление к записям из ids в пределах владельца.
	BulkUpdate(ctx context.Context, ids []string, ownerID string, fields model.UpdateFields) (int, error)
	// ListCategories возвращает различные категории владельца.
	ListCategories(ctx context.Context, ownerID string) ([]string, error)
	// ListTags возвращает различные теги владельца.
	ListTags(ctx context.Context, ownerID string) ([]string, error)
	// SearchCandidates возвращает кандидатов поиска после структурных фильтров
	// и ILIKE-префильтра по токенам (created_at DESC).
	SearchCandidates(ctx context.Context, ownerID string, filters SearchFilters) ([]*model.KnowledgeFile, error)
}

// knowledgeRepo — реализация KnowledgeRepository через pgx.
type knowledgeRepo struct {
	db DBTX
}

// NewKnowledgeRepository создаёт репозиторий базы знаний.
func NewKnowledgeRepository(db DBTX) KnowledgeRepository {
	return &knowledgeRepo{db: db}
}

// scanFile сканирует одну строку результата в KnowledgeFile.
func scanFile(row pgx.Row) (*model.KnowledgeFile, error) {
	f := &model.KnowledgeFile{}
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.FileName, &f.FileType, &f.FileSize,
		&f.Content, &f.BinaryData, &f.Category, &f.Tags, &f.Metadata,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *knowledgeRepo) Create(ctx context.Context, f *model.KnowledgeFile) error {
	// Инвариант размера проверяется до записи — БД его тоже держит (CHECK),
	// но нарушение не должно доходить до хранилища
	if f.FileSize <= 0 || f.FileSize > model.MaxFileSize {
		return fmt.Errorf("%w: %d байт", ErrInvalidSize, f.FileSize)
	}

	query := `
		INSERT INTO knowledge_files (id, owner_id, file_name, file_type, file_size,
			content, binary_data, category, tags, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.OwnerID, f.FileName, f.FileType, f.FileSize,
		f.Content, f.BinaryData, f.Category, f.Tags, f.Metadata,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания записи: %w", err)
	}
	return nil
}

func (r *knowledgeRepo) GetByID(ctx context.Context, id, ownerID string, includeContent bool) (*model.KnowledgeFile, error) {
	columns := fileColumns
	if !includeContent {
		columns = fileColumnsLight
	}
	query := fmt.Sprintf(`SELECT %s FROM knowledge_files WHERE id = $1 AND owner_id = $2`, columns)

	f, err := scanFile(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return f, nil
}

func (r *knowledgeRepo) List(ctx context.Context, ownerID string, limit, offset int, includeContent bool) ([]*model.KnowledgeFile, int, error) {
	columns := fileColumns
	if !includeContent {
		columns = fileColumnsLight
	}

	query := fmt.Sprintf(`
		SELECT %s FROM knowledge_files
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, columns)

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	result, err := collectFiles(rows)
	if err != nil {
		return nil, 0, err
	}

	// Общее количество допускает небольшое окно рассогласования
	// с конкурентными вставками — snapshot isolation не требуется
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_files WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}

	return result, total, nil
}

func (r *knowledgeRepo) Update(ctx context.Context, id, ownerID string, fields model.UpdateFields) (*model.KnowledgeFile, error) {
	set, args := buildUpdateSet(fields, 3)

	query := fmt.Sprintf(`
		UPDATE knowledge_files
		SET %s
		WHERE id = $1 AND owner_id = $2
		RETURNING %s`, set, fileColumns)

	allArgs := append([]any{id, ownerID}, args...)

	f, err := scanFile(r.db.QueryRow(ctx, query, allArgs...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления записи: %w", err)
	}
	return f, nil
}

func (r *knowledgeRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_files WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *knowledgeRepo) BulkDelete(ctx context.Context, ids []string, ownerID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_files WHERE id = ANY($1) AND owner_id = $2`, ids, ownerID)
	if err != nil {
		return 0, fmt.Errorf("ошибка массового удаления: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *knowledgeRepo) BulkUpdate(ctx context.Context, ids []string, ownerID string, fields model.UpdateFields) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	set, args := buildUpdateSet(fields, 3)
	query := fmt.Sprintf(`
		UPDATE knowledge_files
		SET %s
		WHERE id = ANY($1) AND owner_id = $2`, set)

	allArgs := append([]any{ids, ownerID}, args...)

	tag, err := r.db.Exec(ctx, query, allArgs...)
	if err != nil {
		return 0, fmt.Errorf("ошибка массового обновления: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *knowledgeRepo) ListCategories(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT category FROM knowledge_files
		WHERE owner_id = $1 AND category IS NOT NULL AND category != ''
		ORDER BY category`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения категорий: %w", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

func (r *knowledgeRepo) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT unnest(tags) AS tag FROM knowledge_files
		WHERE owner_id = $1
		ORDER BY tag`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тегов: %w", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

// defaultCandidateLimit — потолок кандидатов поиска по умолчанию.
const defaultCandidateLimit = 500

func (r *knowledgeRepo) SearchCandidates(ctx context.Context, ownerID string, filters SearchFilters) ([]*model.KnowledgeFile, error) {
	where, args := buildSearchWhere(ownerID, filters)

	limit := filters.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM knowledge_files
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, fileColumns, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска кандидатов: %w", err)
	}
	defer rows.Close()

	return collectFiles(rows)
}

// buildSearchWhere строит WHERE-условие поиска кандидатов.
// Структурные фильтры — AND; токены запроса — OR по полям и токенам
// (recall-favoring: достаточно одного токена в одном поле).
func buildSearchWhere(ownerID string, filters SearchFilters) (string, []any) {
	conditions := []string{"owner_id = $1"}
	args := []any{ownerID}
	argNum := 2

	if filters.Category != nil && *filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, *filters.Category)
		argNum++
	}

	if filters.FileType != nil && *filters.FileType != "" {
		conditions = append(conditions, fmt.Sprintf("file_type = $%d", argNum))
		args = append(args, *filters.FileType)
		argNum++
	}

	if len(filters.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", argNum))
		args = append(args, filters.Tags)
		argNum++
	}

	if filters.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *filters.CreatedAfter)
		argNum++
	}

	if filters.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argNum))
		args = append(args, *filters.CreatedBefore)
		argNum++
	}

	// ILIKE-префильтр: сужает кандидатов в SQL, точное токенное
	// совпадение и ранжирование выполняет сервисный слой
	if len(filters.Tokens) > 0 {
		var tokenConds []string
		for _, token := range filters.Tokens {
			pattern := "%" + escapeLike(token) + "%"
			tokenConds = append(tokenConds, fmt.Sprintf(
				"(file_name ILIKE $%d OR content ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE $%d))",
				argNum, argNum, argNum,
			))
			args = append(args, pattern)
			argNum++
		}
		conditions = append(conditions, "("+strings.Join(tokenConds, " OR ")+")")
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// escapeLike экранирует спецсимволы LIKE-шаблона в пользовательском токене.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// buildUpdateSet строит SET-часть частичного обновления.
// updated_at продвигается всегда, даже при пустом наборе полей.
func buildUpdateSet(fields model.UpdateFields, startArg int) (string, []any) {
	set := []string{"updated_at = now()"}
	var args []any
	argNum := startArg

	if fields.FileName != nil {
		set = append(set, fmt.Sprintf("file_name = $%d", argNum))
		args = append(args, *fields.FileName)
		argNum++
	}
	if fields.Category != nil {
		if *fields.Category == "" {
			// Пустая категория снимает метку
			set = append(set, "category = NULL")
		} else {
			set = append(set, fmt.Sprintf("category = $%d", argNum))
			args = append(args, *fields.Category)
			argNum++
		}
	}
	if fields.Tags != nil {
		set = append(set, fmt.Sprintf("tags = $%d", argNum))
		args = append(args, *fields.Tags)
		argNum++
	}
	if fields.Metadata != nil {
		set = append(set, fmt.Sprintf("metadata = $%d", argNum))
		args = append(args, *fields.Metadata)
		argNum++
	}
	if fields.Content != nil {
		set = append(set, fmt.Sprintf("content = $%d", argNum))
		args = append(args, *fields.Content)
	}

	return strings.Join(set, ", "), args
}

// collectFiles сканирует все строки результата в срез KnowledgeFile.
func collectFiles(rows pgx.Rows) ([]*model.KnowledgeFile, error) {
	var result []*model.KnowledgeFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// collectStrings сканирует все строки результата в срез строк.
func collectStrings(rows pgx.Rows) ([]string, error) {
	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ошибка сканирования значения: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}
