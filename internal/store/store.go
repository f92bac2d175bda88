package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"rootfind/internal/optimizer"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	func         TEXT NOT NULL,
	a            REAL NOT NULL,
	b            REAL NOT NULL,
	max_iter     INTEGER NOT NULL,
	status       TEXT NOT NULL,
	root         REAL,
	fx           REAL,
	iterations   INTEGER NOT NULL DEFAULT 0,
	err_kind     TEXT,
	err          TEXT,
	created_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS iterations (
	run_id  TEXT NOT NULL,
	k       INTEGER NOT NULL,
	a       REAL NOT NULL,
	b       REAL NOT NULL,
	mid     REAL NOT NULL,
	fmid    REAL,
	len     REAL NOT NULL,
	PRIMARY KEY (run_id, k),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
`

// Статусы запуска
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
	StatusStopped = "stopped"
)

// ErrNotFound — запуск с таким id не сохранён
var ErrNotFound = errors.New("store: run not found")

// Run — запись об одном запуске решателя
type Run struct {
	ID         string    `json:"id"`
	Func       string    `json:"func"`
	A          float64   `json:"a"`
	B          float64   `json:"b"`
	MaxIter    int       `json:"maxIter"`
	Status     string    `json:"status"`
	Root       float64   `json:"root,omitempty"`
	FX         float64   `json:"fx,omitempty"`
	Iterations int       `json:"iterations"`
	ErrKind    string    `json:"errKind,omitempty"`
	Err        string    `json:"err,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Store хранит историю запусков в SQLite
type Store struct {
	db *sql.DB
}

// NewStore открывает базу и применяет схему
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// одно соединение: :memory: иначе у каждого соединения своя база
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun сохраняет новый запуск
func (s *Store) SaveRun(r Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, func, a, b, max_iter, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Func, r.A, r.B, r.MaxIter, r.Status, r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun фиксирует итог запуска
func (s *Store) FinishRun(r Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	var root, fx interface{}
	if r.Status == StatusDone {
		root, fx = nullIfNaN(r.Root), nullIfNaN(r.FX)
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, root = ?, fx = ?, iterations = ?, err_kind = ?, err = ?, finished_at = ?
		 WHERE id = ?`,
		r.Status, root, fx, r.Iterations,
		nullIfEmpty(r.ErrKind), nullIfEmpty(r.Err),
		r.FinishedAt.Format(time.RFC3339Nano), r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// AppendIterations дописывает итерации запуска одной транзакцией
func (s *Store) AppendIterations(runID string, iters []optimizer.Iter) error {
	if len(iters) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO iterations (run_id, k, a, b, mid, fmid, len) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, it := range iters {
		if _, err := stmt.Exec(runID, it.K, it.A, it.B, it.XMid, nullIfNaN(it.FXMid), it.Len); err != nil {
			return fmt.Errorf("insert iteration %d: %w", it.K, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, func, a, b, max_iter, status, root, fx, iterations, err_kind, err, created_at, finished_at`

// GetRun возвращает запуск по id
func (s *Store) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns возвращает последние limit запусков, новые первыми
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Iterations возвращает сохранённые итерации запуска по порядку
func (s *Store) Iterations(runID string) ([]optimizer.Iter, error) {
	rows, err := s.db.Query(
		`SELECT k, a, b, mid, fmid, len FROM iterations WHERE run_id = ? ORDER BY k`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("iterations %s: %w", runID, err)
	}
	defer rows.Close()

	var iters []optimizer.Iter
	for rows.Next() {
		var it optimizer.Iter
		var fmid sql.NullFloat64
		if err := rows.Scan(&it.K, &it.A, &it.B, &it.XMid, &fmid, &it.Len); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		it.FXMid = fmid.Float64
		if !fmid.Valid {
			it.FXMid = math.NaN()
		}
		iters = append(iters, it)
	}
	return iters, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		root, fx          sql.NullFloat64
		errKind, errMsg   sql.NullString
		created, finished sql.NullString
	)
	err := sc.Scan(&r.ID, &r.Func, &r.A, &r.B, &r.MaxIter, &r.Status, &root, &fx,
		&r.Iterations, &errKind, &errMsg, &created, &finished)
	if err != nil {
		return Run{}, err
	}
	r.Root, r.FX = root.Float64, fx.Float64
	r.ErrKind, r.Err = errKind.String, errMsg.String
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created.String)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return r, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNaN(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
