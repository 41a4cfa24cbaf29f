package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

// schemaLockKey: ключ pg_advisory_lock, под которым меняется схема витрины.
const schemaLockKey = int64(20261017)

const schemaHistoryDDL = `
CREATE TABLE IF NOT EXISTS storefront_schema (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

//go:embed sql/migrations/*.sql
var schemaFiles embed.FS

const schemaDir = "sql/migrations"

// schemaStep: пара up/down скриптов одной версии схемы.
type schemaStep struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

func (s schemaStep) label() string {
	return fmt.Sprintf("%04d_%s", s.Version, s.Name)
}

// script возвращает SQL нужного направления.
func (s schemaStep) script(forward bool) string {
	if forward {
		return s.Up
	}
	return s.Down
}

// MigrationState описывает схему базы относительно встроенных миграций.
type MigrationState struct {
	Version   int64
	Applied   int
	Available int
	Pending   []string
}

// MigrateUp применяет не применённые миграции по порядку; steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, true, steps)
}

// MigrateDown откатывает последние steps миграций; steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, false, steps)
}

// MigrationStatus сообщает текущую версию схемы и список ожидающих миграций.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}
	steps, err := readSchemaSteps(schemaFiles)
	if err != nil {
		return MigrationState{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaHistoryDDL); err != nil {
		return MigrationState{}, fmt.Errorf("prepare schema history: %w", err)
	}
	applied, err := appliedSchemaVersions(ctx, s.db)
	if err != nil {
		return MigrationState{}, err
	}
	return schemaState(steps, applied), nil
}

// schemaState сопоставляет встроенные шаги с применёнными версиями (по возрастанию).
func schemaState(steps []schemaStep, applied []int64) MigrationState {
	state := MigrationState{Available: len(steps), Applied: len(applied)}
	if len(applied) > 0 {
		state.Version = slices.Max(applied)
	}
	for _, step := range steps {
		if !slices.Contains(applied, step.Version) {
			state.Pending = append(state.Pending, step.label())
		}
	}
	return state
}

// planSchemaSteps выбирает шаги для прогона: вперёд по возрастанию, назад от последней применённой.
func planSchemaSteps(steps []schemaStep, applied []int64, forward bool, limit int) ([]schemaStep, error) {
	var plan []schemaStep
	if forward {
		for _, step := range steps {
			if slices.Contains(applied, step.Version) {
				continue
			}
			plan = append(plan, step)
		}
	} else {
		byVersion := make(map[int64]schemaStep, len(steps))
		for _, step := range steps {
			byVersion[step.Version] = step
		}
		for i := len(applied) - 1; i >= 0; i-- {
			step, ok := byVersion[applied[i]]
			if !ok {
				return nil, fmt.Errorf("schema version %d has no embedded rollback", applied[i])
			}
			plan = append(plan, step)
		}
	}
	if limit > 0 && len(plan) > limit {
		plan = plan[:limit]
	}
	return plan, nil
}

func (s *Store) migrate(ctx context.Context, forward bool, limit int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	steps, err := readSchemaSteps(schemaFiles)
	if err != nil {
		return err
	}

	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, schemaHistoryDDL); err != nil {
			return fmt.Errorf("prepare schema history: %w", err)
		}
		applied, err := appliedSchemaVersions(ctx, conn)
		if err != nil {
			return err
		}
		plan, err := planSchemaSteps(steps, applied, forward, limit)
		if err != nil {
			return err
		}
		for _, step := range plan {
			if err := runSchemaStep(ctx, conn, step, forward); err != nil {
				return err
			}
		}
		return nil
	})
}

// withSchemaLock держит advisory lock на выделенном соединении, пока выполняется fn.
func (s *Store) withSchemaLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("lock schema: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, schemaLockKey)
	}()

	return fn(conn)
}

// runSchemaStep выполняет скрипт и запись в storefront_schema одной транзакцией.
func runSchemaStep(ctx context.Context, conn *sql.Conn, step schemaStep, forward bool) error {
	direction := "down"
	record := `DELETE FROM storefront_schema WHERE version = $1`
	args := []any{step.Version}
	if forward {
		direction = "up"
		record = `INSERT INTO storefront_schema (version, name) VALUES ($1, $2)`
		args = append(args, step.Name)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("schema %s %s: begin: %w", direction, step.label(), err)
	}
	if _, err := tx.ExecContext(ctx, step.script(forward)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("schema %s %s: %w", direction, step.label(), err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("schema %s %s: record version: %w", direction, step.label(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema %s %s: commit: %w", direction, step.label(), err)
	}
	return nil
}

type schemaQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// appliedSchemaVersions возвращает применённые версии по возрастанию.
func appliedSchemaVersions(ctx context.Context, q schemaQuerier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM storefront_schema ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("read schema history: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// parseSchemaFile разбирает имя вида 0002_orders.up.sql.
func parseSchemaFile(name string) (version int64, title string, forward bool, err error) {
	base, ok := strings.CutSuffix(name, ".sql")
	if !ok {
		return 0, "", false, fmt.Errorf("schema file %s: not an .sql file", name)
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		base, forward = strings.TrimSuffix(base, ".up"), true
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return 0, "", false, fmt.Errorf("schema file %s: expected .up.sql or .down.sql", name)
	}

	rawVersion, title, ok := strings.Cut(base, "_")
	if !ok || title == "" {
		return 0, "", false, fmt.Errorf("schema file %s: expected <version>_<name>", name)
	}
	version, err = strconv.ParseInt(rawVersion, 10, 64)
	if err != nil || version <= 0 {
		return 0, "", false, fmt.Errorf("schema file %s: bad version %q", name, rawVersion)
	}
	return version, title, forward, nil
}

// readSchemaSteps собирает шаги схемы из fsys; у каждой версии должны быть оба скрипта.
func readSchemaSteps(fsys fs.FS) ([]schemaStep, error) {
	entries, err := fs.ReadDir(fsys, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}

	byVersion := make(map[int64]*schemaStep)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, title, forward, err := parseSchemaFile(entry.Name())
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(fsys, path.Join(schemaDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", entry.Name(), err)
		}
		script := strings.TrimSpace(string(body))
		if script == "" {
			return nil, fmt.Errorf("schema file %s is empty", entry.Name())
		}

		step := byVersion[version]
		if step == nil {
			step = &schemaStep{Version: version, Name: title}
			byVersion[version] = step
		}
		if step.Name != title {
			return nil, fmt.Errorf("schema version %d is named both %s and %s", version, step.Name, title)
		}
		target := &step.Down
		if forward {
			target = &step.Up
		}
		if *target != "" {
			return nil, fmt.Errorf("schema file %s duplicates version %d", entry.Name(), version)
		}
		*target = script
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no schema files embedded")
	}

	steps := make([]schemaStep, 0, len(byVersion))
	for _, step := range byVersion {
		if step.Up == "" || step.Down == "" {
			return nil, fmt.Errorf("schema %s needs both up and down scripts", step.label())
		}
		steps = append(steps, *step)
	}
	slices.SortFunc(steps, func(a, b schemaStep) int { return cmp.Compare(a.Version, b.Version) })
	return steps, nil
}
