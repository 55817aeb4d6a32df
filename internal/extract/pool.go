// pool.go — ограниченный пул воркеров для CPU-bound извлечения.
// Извлечение больших документов не должно голодить обработчики запросов,
// поэтому конкурентность ограничена семафором, а ожидание и само
// извлечение подчиняются дедлайну запроса.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Pool — пул извлечения с ограниченной конкурентностью.
type Pool struct {
	sem    chan struct{}
	logger *slog.Logger
}

// NewPool создаёт пул с указанным числом одновременных извлечений.
// size <= 0 трактуется как 1.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		sem:    make(chan struct{}, size),
		logger: logger.With(slog.String("component", "extract_pool")),
	}
}

// Extract выполняет извлечение в пуле, уважая дедлайн контекста.
// Истёкший дедлайн — на ожидании слота или в процессе извлечения —
// возвращает ErrExtractionTimeout; отмена запроса — ctx.Err() как есть.
func (p *Pool) Extract(ctx context.Context, data []byte, fileType string) (*Result, error) {
	// Уже истёкший контекст не начинает извлечение
	if ctx.Err() != nil {
		return nil, poolCtxError(ctx)
	}

	// Ожидание свободного слота ограничено тем же дедлайном
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, poolCtxError(ctx)
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() { <-p.sem }()
		result, err := Extract(ctx, data, fileType)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		// Воркер завершится сам при ближайшей проверке ctx
		p.logger.Warn("Извлечение прервано по дедлайну",
			slog.String("file_type", fileType),
			slog.Int("size", len(data)),
		)
		return nil, poolCtxError(ctx)
	}
}

// poolCtxError конвертирует причину завершения контекста в ошибку пула.
func poolCtxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExtractionTimeout, ctx.Err())
	}
	return ctx.Err()
}
