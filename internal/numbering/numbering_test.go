package numbering

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// fakeRow — pgx.Row с фиксированным значением или ошибкой.
type fakeRow struct {
	value any
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *string:
		*d = r.value.(string)
	case *int:
		*d = r.value.(int)
	}
	return nil
}

// flakyQuerier отвечает ошибкой первые failures вызовов, затем значением.
type flakyQuerier struct {
	failures int
	calls    int
	value    any
}

func (q *flakyQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	q.calls++
	if q.calls <= q.failures {
		return fakeRow{err: errors.New("deadlock detected")}
	}
	return fakeRow{value: q.value}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	// Короткая задержка, чтобы тест не ждал реальных секунд
	return Config{MaxAttempts: 4, InitialDelay: time.Millisecond}
}

func TestNextPolicyNumber_FirstAttempt(t *testing.T) {
	q := &flakyQuerier{value: "HR-007"}
	gen := NewPGGenerator(q, testConfig(), testLogger())

	n, err := gen.NextPolicyNumber(context.Background(), "HR")
	if err != nil {
		t.Fatalf("NextPolicyNumber() ошибка: %v", err)
	}
	if n != "HR-007" {
		t.Errorf("номер = %q, хотели HR-007", n)
	}
	if q.calls != 1 {
		t.Errorf("вызовов = %d, хотели 1", q.calls)
	}
}

func TestNextPolicyNumber_RetriesThenSucceeds(t *testing.T) {
	q := &flakyQuerier{failures: 3, value: "IT-002"}
	gen := NewPGGenerator(q, testConfig(), testLogger())

	n, err := gen.NextPolicyNumber(context.Background(), "IT")
	if err != nil {
		t.Fatalf("NextPolicyNumber() ошибка: %v", err)
	}
	if n != "IT-002" {
		t.Errorf("номер = %q, хотели IT-002", n)
	}
	if q.calls != 4 {
		t.Errorf("вызовов = %d, хотели 4 (3 сбоя + успех)", q.calls)
	}
}

func TestNextPolicyNumber_Exhausted(t *testing.T) {
	q := &flakyQuerier{failures: 100}
	gen := NewPGGenerator(q, testConfig(), testLogger())

	_, err := gen.NextPolicyNumber(context.Background(), "FIN")
	if !errors.Is(err, ErrNumberGeneration) {
		t.Fatalf("ожидали ErrNumberGeneration, получили %v", err)
	}
	if q.calls != 4 {
		t.Errorf("вызовов = %d, хотели ровно MaxAttempts=4", q.calls)
	}
}

func TestNextRevisionNumber(t *testing.T) {
	q := &flakyQuerier{failures: 1, value: 5}
	gen := NewPGGenerator(q, testConfig(), testLogger())

	n, err := gen.NextRevisionNumber(context.Background(), "policy-uuid")
	if err != nil {
		t.Fatalf("NextRevisionNumber() ошибка: %v", err)
	}
	if n != 5 {
		t.Errorf("номер ревизии = %d, хотели 5", n)
	}
	if q.calls != 2 {
		t.Errorf("вызовов = %d, хотели 2", q.calls)
	}
}

func TestNextRevisionNumber_Exhausted(t *testing.T) {
	q := &flakyQuerier{failures: 100}
	gen := NewPGGenerator(q, testConfig(), testLogger())

	_, err := gen.NextRevisionNumber(context.Background(), "policy-uuid")
	if !errors.Is(err, ErrNumberGeneration) {
		t.Fatalf("ожидали ErrNumberGeneration, получили %v", err)
	}
}
