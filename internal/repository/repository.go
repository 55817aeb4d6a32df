// Пакет repository — слой доступа к данным PostgreSQL для Knowledge Module.
// Единственная таблица — knowledge_files; каждая операция ограничена
// owner_id в WHERE-условии, это жёсткий инвариант, а не опциональный фильтр.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена либо принадлежит другому владельцу.
	// Эти случаи намеренно неразличимы: существование чужих записей не раскрывается.
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidSize — нарушен инвариант размера файла (0 < size <= 10 MiB).
	ErrInvalidSize = errors.New("недопустимый размер файла")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, pgx.Tx, так и database.DualPool,
// что позволяет подменять путь доступа к хранилищу без изменения репозитория.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
