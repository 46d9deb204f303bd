// Пакет numbering — выдача номеров политик и ревизий.
// Номера выдают SQL-функции в PostgreSQL (next_policy_number,
// next_revision_number), пакет оборачивает вызовы повторами
// с экспоненциальной задержкой.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/jackc/pgx/v5"
)

// ErrNumberGeneration — номер не выдан после всех попыток.
var ErrNumberGeneration = errors.New("не удалось сгенерировать номер")

// Generator — интерфейс выдачи номеров.
type Generator interface {
	// NextPolicyNumber возвращает следующий номер политики для типа,
	// например 'HR-007'.
	NextPolicyNumber(ctx context.Context, policyType string) (string, error)
	// NextRevisionNumber возвращает следующий номер ревизии в рамках политики.
	NextRevisionNumber(ctx context.Context, policyID string) (int, error)
}

// querier — подмножество pgxpool.Pool, достаточное для выдачи номеров.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config — параметры повторов генератора.
type Config struct {
	// MaxAttempts — число попыток, включая первую
	MaxAttempts int
	// InitialDelay — задержка перед вторым вызовом, далее удваивается
	InitialDelay time.Duration
}

// pgGenerator — реализация Generator поверх SQL-функций PostgreSQL.
type pgGenerator struct {
	db            querier
	logger        *slog.Logger
	policyRetry   retry.Retry[string]
	revisionRetry retry.Retry[int]
}

// NewPGGenerator создаёт генератор номеров с повторами.
func NewPGGenerator(db querier, cfg Config, logger *slog.Logger) Generator {
	return &pgGenerator{
		db:     db,
		logger: logger,
		policyRetry: retry.New[string](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
		revisionRetry: retry.New[int](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
	}
}

func (g *pgGenerator) NextPolicyNumber(ctx context.Context, policyType string) (string, error) {
	number, err := g.policyRetry.Do(ctx, func(ctx context.Context) (string, error) {
		var n string
		if err := g.db.QueryRow(ctx, `SELECT next_policy_number($1)`, policyType).Scan(&n); err != nil {
			g.logger.Warn("Попытка генерации номера политики не удалась",
				slog.String("policy_type", policyType),
				slog.String("error", err.Error()),
			)
			return "", err
		}
		return n, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: тип %s: %v", ErrNumberGeneration, policyType, err)
	}
	return number, nil
}

func (g *pgGenerator) NextRevisionNumber(ctx context.Context, policyID string) (int, error) {
	number, err := g.revisionRetry.Do(ctx, func(ctx context.Context) (int, error) {
		var n int
		if err := g.db.QueryRow(ctx, `SELECT next_revision_number($1)`, policyID).Scan(&n); err != nil {
			g.logger.Warn("Попытка генерации номера ревизии не удалась",
				slog.String("policy_id", policyID),
				slog.String("error", err.Error()),
			)
			return 0, err
		}
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: политика %s: %v", ErrNumberGeneration, policyID, err)
	}
	return number, nil
}
