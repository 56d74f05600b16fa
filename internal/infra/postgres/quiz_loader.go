package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"greenplay-service/internal/domain"
)

// QuestionLoader reads the quiz catalog from the quiz_questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, question, option_a, option_b, option_c, option_d, correct_option, fact, difficulty
		FROM quiz_questions
		ORDER BY id`)
	if err != nil {
		return nil, domain.Persistence("load questions", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var q domain.Question
		var correct int16
		if err := rows.Scan(&q.ID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &correct, &q.Fact, &q.Difficulty); err != nil {
			return nil, domain.Persistence("scan question", err)
		}
		q.CorrectOption = int(correct)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("load questions", err)
	}
	return out, nil
}

// SeedQuestions upserts the catalog in a single batch. Rows are keyed by id so
// reseeding updates wording and answers in place.
func (l *QuestionLoader) SeedQuestions(ctx context.Context, questions []domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("question %d: %w", q.ID, err)
		}
		batch.Queue(`
			INSERT INTO quiz_questions (id, question, option_a, option_b, option_c, option_d, correct_option, fact, difficulty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				question = EXCLUDED.question,
				option_a = EXCLUDED.option_a,
				option_b = EXCLUDED.option_b,
				option_c = EXCLUDED.option_c,
				option_d = EXCLUDED.option_d,
				correct_option = EXCLUDED.correct_option,
				fact = EXCLUDED.fact,
				difficulty = EXCLUDED.difficulty`,
			q.ID, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CorrectOption, q.Fact, q.Difficulty)
	}
	// keep the serial ahead of explicit ids
	batch.Queue(`SELECT setval(pg_get_serial_sequence('quiz_questions', 'id'), (SELECT MAX(id) FROM quiz_questions))`)

	br := l.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range questions {
		if _, err := br.Exec(); err != nil {
			return 0, domain.Persistence("seed questions", err)
		}
	}
	if _, err := br.Exec(); err != nil {
		return 0, domain.Persistence("seed questions", err)
	}
	return len(questions), nil
}
