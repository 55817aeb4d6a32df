package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fallbackTotal — счётчик запросов, ушедших на резервное прямое подключение.
var fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "km_store_fallback_total",
	Help: "Число запросов, выполненных через резервное прямое подключение к PostgreSQL",
})

// DualPool — канал доступа к PostgreSQL с резервом.
// Основной путь — пул подключений; при сетевой ошибке запрос
// повторяется один раз через одиночное прямое подключение.
// Реализует repository.DBTX.
type DualPool struct {
	pool      *pgxpool.Pool
	directDSN string
	logger    *slog.Logger

	// mu сериализует работу с direct: pgx.Conn не потокобезопасен
	mu     sync.Mutex
	direct *pgx.Conn
}

// NewDualPool оборачивает пул резервным прямым подключением.
// Прямое подключение открывается лениво, при первом сбое пула.
func NewDualPool(pool *pgxpool.Pool, directDSN string, logger *slog.Logger) *DualPool {
	return &DualPool{
		pool:      pool,
		directDSN: directDSN,
		logger:    logger.With(slog.String("component", "dualpool")),
	}
}

// Close закрывает резервное подключение. Пул закрывает владелец.
func (d *DualPool) Close(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.direct != nil {
		if err := d.direct.Close(ctx); err != nil {
			d.logger.Warn("Ошибка закрытия резервного подключения", slog.String("error", err.Error()))
		}
		d.direct = nil
	}
}

// Exec выполняет запрос без результата.
func (d *DualPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if !retryable(err) {
		return tag, err
	}

	d.noteFallback(err)
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, cerr := d.directConn(ctx)
	if cerr != nil {
		return tag, errors.Join(err, cerr)
	}
	return conn.Exec(ctx, sql, args...)
}

// Query выполняет запрос с множественным результатом.
// При резервном выполнении мьютекс удерживается до Close()
// возвращённых строк: подключение одно и делить его нельзя.
func (d *DualPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if !retryable(err) {
		return rows, err
	}

	d.noteFallback(err)
	d.mu.Lock()

	conn, cerr := d.directConn(ctx)
	if cerr != nil {
		d.mu.Unlock()
		return nil, errors.Join(err, cerr)
	}

	directRows, qerr := conn.Query(ctx, sql, args...)
	if qerr != nil {
		d.mu.Unlock()
		return nil, qerr
	}
	return &lockedRows{Rows: directRows, mu: &d.mu}, nil
}

// lockedRows — pgx.Rows, освобождающие мьютекс резервного
// подключения при Close. Close у pgx.Rows идемпотентен,
// повторный вызов не должен освобождать мьютекс второй раз.
type lockedRows struct {
	pgx.Rows
	mu       *sync.Mutex
	released bool
}

func (r *lockedRows) Close() {
	r.Rows.Close()
	if !r.released {
		r.released = true
		r.mu.Unlock()
	}
}

// QueryRow выполняет запрос с одной строкой результата.
// Ошибка основного пути проявится только при Scan, поэтому резервный
// повтор выполняется внутри возвращаемой строки.
func (d *DualPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &dualRow{d: d, ctx: ctx, sql: sql, args: args}
}

// dualRow — pgx.Row c отложенным резервным повтором.
type dualRow struct {
	d    *DualPool
	ctx  context.Context
	sql  string
	args []any
}

func (r *dualRow) Scan(dest ...any) error {
	err := r.d.pool.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
	if !retryable(err) {
		return err
	}

	r.d.noteFallback(err)
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	conn, cerr := r.d.directConn(r.ctx)
	if cerr != nil {
		return errors.Join(err, cerr)
	}
	return conn.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
}

// directConn возвращает живое резервное подключение, открывая его
// при необходимости. Вызывается под d.mu.
func (d *DualPool) directConn(ctx context.Context) (*pgx.Conn, error) {
	if d.direct != nil && !d.direct.IsClosed() {
		return d.direct, nil
	}

	conn, err := pgx.Connect(ctx, d.directDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия резервного подключения: %w", err)
	}
	d.direct = conn
	return conn, nil
}

// noteFallback фиксирует уход на резервный путь в логе и метрике.
func (d *DualPool) noteFallback(err error) {
	fallbackTotal.Inc()
	d.logger.Warn("Пул недоступен, запрос уходит на резервное подключение",
		slog.String("error", err.Error()),
	)
}

// retryable сообщает, имеет ли смысл повторить запрос на резервном
// подключении. Повторяются только сетевые сбои и ошибки, которые
// pgx считает безопасными для повтора; ошибки SQL и нарушение
// ограничений повторяться не должны.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

