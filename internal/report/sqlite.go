package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mwinfie/sonar-coldfusion/internal/analyzer"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMP NOT NULL,
	total_files  INTEGER NOT NULL DEFAULT 0,
	succeeded    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	timed_out    INTEGER NOT NULL DEFAULT 0,
	breaker      INTEGER NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 100.0
);

CREATE TABLE IF NOT EXISTS issues (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	file     TEXT NOT NULL,
	line     INTEGER NOT NULL,
	rule     TEXT NOT NULL,
	severity TEXT NOT NULL DEFAULT '',
	message  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
CREATE INDEX IF NOT EXISTS idx_issues_file ON issues(file);
`

// SQLiteSink persists located issues into a results database, one row per
// issue, stamped with a per-run identifier so successive runs can be
// compared.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens (creating if needed) the results database at path
// and registers a new run.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing results schema: %w", err)
	}

	s := &SQLiteSink{db: db, runID: uuid.NewString()}

	insert := sq.Insert("runs").Columns("id", "started_at").Values(s.runID, time.Now())
	query, args, err := insert.ToSql()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building run insert: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}

	return s, nil
}

// RunID returns the identifier of the run this sink writes into.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

// NewIssue returns a builder inserting the issue on Save. Insert failures
// are logged and dropped; the sink is fire-and-forget by contract.
func (s *SQLiteSink) NewIssue() IssueBuilder {
	return newBuilder(func(issue Issue) {
		file := ""
		if issue.File != nil {
			file = issue.File.Name()
		}
		insert := sq.Insert("issues").
			Columns("run_id", "file", "line", "rule", "severity", "message").
			Values(s.runID, file, issue.Line, issue.RuleKey, issue.Severity, issue.Message)
		query, args, err := insert.ToSql()
		if err != nil {
			logrus.Warnf("failed to build issue insert: %v", err)
			return
		}
		if _, err := s.db.Exec(query, args...); err != nil {
			logrus.Warnf("failed to persist issue for %s:%d: %v", file, issue.Line, err)
		}
	})
}

// FinishRun records the run's final counters.
func (s *SQLiteSink) FinishRun(report *analyzer.RunReport) error {
	update := sq.Update("runs").
		Set("total_files", report.TotalFiles).
		Set("succeeded", report.Succeeded).
		Set("failed", report.Failed).
		Set("timed_out", report.TimedOut).
		Set("breaker", report.BreakerTripped).
		Set("success_rate", report.SuccessRate).
		Where(sq.Eq{"id": s.runID})
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("building run update: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// RunSummary is one persisted run, as listed by the report command.
type RunSummary struct {
	ID          string
	StartedAt   time.Time
	TotalFiles  int
	Succeeded   int
	Failed      int
	TimedOut    int
	Breaker     bool
	SuccessRate float64
	IssueCount  int
}

// StoredIssue is one persisted issue row.
type StoredIssue struct {
	File     string
	Line     int
	Rule     string
	Severity string
	Message  string
}

// ListRuns returns persisted runs, most recent first.
func ListRuns(path string, limit int) ([]RunSummary, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	defer db.Close()

	query, args, err := sq.Select(
		"r.id", "r.started_at", "r.total_files", "r.succeeded", "r.failed",
		"r.timed_out", "r.breaker", "r.success_rate", "COUNT(i.id)").
		From("runs r").
		LeftJoin("issues i ON i.run_id = r.id").
		GroupBy("r.id").
		OrderBy("r.started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building run listing: %w", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.TotalFiles, &r.Succeeded, &r.Failed,
			&r.TimedOut, &r.Breaker, &r.SuccessRate, &r.IssueCount); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListIssues returns the persisted issues of one run in insertion order.
func ListIssues(path, runID string) ([]StoredIssue, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	defer db.Close()

	query, args, err := sq.Select("file", "line", "rule", "severity", "message").
		From("issues").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building issue listing: %w", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var issues []StoredIssue
	for rows.Next() {
		var i StoredIssue
		if err := rows.Scan(&i.File, &i.Line, &i.Rule, &i.Severity, &i.Message); err != nil {
			return nil, fmt.Errorf("scanning issue row: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}
