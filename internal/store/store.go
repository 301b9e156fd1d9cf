package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ihkcoach/ihkcoach/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a question id has no matching row.
var ErrNotFound = errors.New("question not found")

// Store provides the read-only question collection and anonymous
// answer statistics. Questions are written only at seed time; while
// the server runs the store sees concurrent reads and attempt
// inserts, which database/sql handles without extra locking.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_answer INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS import_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answer_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL,
		correct INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertQuestion stores a question. Called only while seeding.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	if len(q.Options) < 2 {
		return 0, fmt.Errorf("question needs at least 2 options, got %d", len(q.Options))
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return 0, fmt.Errorf("correct answer index %d out of range for %d options", q.CorrectAnswer, len(q.Options))
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (question, options, correct_answer) VALUES (?, ?, ?)`,
		q.Question, string(opts), q.CorrectAnswer,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	var q model.Question
	var opts string
	err := s.db.QueryRow(
		`SELECT id, question, options, correct_answer FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Question, &opts, &q.CorrectAnswer)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return q, fmt.Errorf("unmarshal options for question %d: %w", id, err)
	}
	return q, nil
}

// ListQuestions returns all questions in definition order.
func (s *Store) ListQuestions() ([]model.Question, error) {
	rows, err := s.db.Query(`SELECT id, question, options, correct_answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var opts string
		if err := rows.Scan(&q.ID, &q.Question, &opts, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// RecordAttempt logs one anonymous answer attempt for a question.
func (s *Store) RecordAttempt(questionID int64, correct bool) error {
	_, err := s.db.Exec(
		`INSERT INTO answer_attempts (question_id, correct, created_at) VALUES (?, ?, ?)`,
		questionID, correct, time.Now(),
	)
	return err
}

// AttemptStats aggregates answer attempts per question, in question order.
// Questions with no attempts are included with zero counts.
func (s *Store) AttemptStats() ([]model.AttemptStat, error) {
	rows, err := s.db.Query(`
		SELECT q.id, q.question,
			COUNT(a.id),
			COALESCE(SUM(a.correct), 0)
		FROM questions q
		LEFT JOIN answer_attempts a ON a.question_id = q.id
		GROUP BY q.id
		ORDER BY q.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []model.AttemptStat
	for rows.Next() {
		var st model.AttemptStat
		if err := rows.Scan(&st.QuestionID, &st.Question, &st.Attempts, &st.Correct); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
