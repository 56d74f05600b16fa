package domain

import (
	"math/rand/v2"
	"strings"
)

// Validate checks that a question is answerable.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return Validation("question %d has no text", q.ID)
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return Validation("question %d option %d is empty", q.ID, i+1)
		}
	}
	if q.CorrectOption < 1 || q.CorrectOption > len(q.Options) {
		return Validation("question %d correct option %d out of range", q.ID, q.CorrectOption)
	}
	return nil
}

// SampleQuestions returns up to n distinct questions from pool in random order.
func SampleQuestions(pool []Question, n int) []Question {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Question, 0, n)
	for _, i := range rand.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}
