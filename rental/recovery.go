/*
recovery.go - Security-question account recovery

PURPOSE:
  Verifies a user's identity against an ordered list of (question, expected
  answer) pairs. A single loop evaluates every pair; all answers must match.
  The list length is not fixed, so accounts can carry any number of
  questions. Password reset mechanics themselves live outside this engine.
*/
package rental

import (
	"context"
	"strings"
)

// RecoveryQuestion is one (question, expected answer) pair. Order matters
// only for presentation; verification checks all pairs.
type RecoveryQuestion struct {
	Question string
	Answer   string
}

// VerifyAnswers checks the given answers against the expected pairs.
// Answers must match exactly after whitespace trimming. A mismatched count
// is a failure, never a partial success.
func VerifyAnswers(questions []RecoveryQuestion, answers []string) bool {
	if len(questions) == 0 || len(answers) != len(questions) {
		return false
	}
	for i, q := range questions {
		if strings.TrimSpace(answers[i]) != strings.TrimSpace(q.Answer) {
			return false
		}
	}
	return true
}

// Recovery loads a user's questions from the store and verifies answers.
type Recovery struct {
	store Store
}

func NewRecovery(store Store) *Recovery {
	return &Recovery{store: store}
}

// Questions returns the user's recovery questions with answers blanked,
// suitable for display.
func (r *Recovery) Questions(ctx context.Context, userID UserID) ([]string, error) {
	qs, err := r.store.GetRecoveryQuestions(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Question
	}
	return out, nil
}

// SetQuestions replaces the user's recovery questions.
func (r *Recovery) SetQuestions(ctx context.Context, userID UserID, qs []RecoveryQuestion) error {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	return r.store.SaveRecoveryQuestions(ctx, userID, qs)
}

// Verify checks the supplied answers for the user.
func (r *Recovery) Verify(ctx context.Context, userID UserID, answers []string) (bool, error) {
	qs, err := r.store.GetRecoveryQuestions(ctx, userID)
	if err != nil {
		return false, err
	}
	return VerifyAnswers(qs, answers), nil
}
