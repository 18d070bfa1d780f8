package rental_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveway/rental-engine/rental"
)

func questions() []rental.RecoveryQuestion {
	return []rental.RecoveryQuestion{
		{Question: "First pet's name?", Answer: "Rex"},
		{Question: "City you were born in?", Answer: "Porto"},
		{Question: "Favorite teacher?", Answer: "Silva"},
	}
}

// =============================================================================
// ANSWER VERIFICATION
// =============================================================================

func TestVerifyAnswers_AllCorrect(t *testing.T) {
	assert.True(t, rental.VerifyAnswers(questions(), []string{"Rex", "Porto", "Silva"}))
}

func TestVerifyAnswers_OneWrong(t *testing.T) {
	assert.False(t, rental.VerifyAnswers(questions(), []string{"Rex", "Lisbon", "Silva"}))
}

func TestVerifyAnswers_OrderMatters(t *testing.T) {
	assert.False(t, rental.VerifyAnswers(questions(), []string{"Porto", "Rex", "Silva"}))
}

func TestVerifyAnswers_LengthMismatch(t *testing.T) {
	assert.False(t, rental.VerifyAnswers(questions(), []string{"Rex", "Porto"}))
	assert.False(t, rental.VerifyAnswers(questions(), []string{"Rex", "Porto", "Silva", "extra"}))
}

func TestVerifyAnswers_NoQuestions_NeverVerifies(t *testing.T) {
	assert.False(t, rental.VerifyAnswers(nil, nil))
	assert.False(t, rental.VerifyAnswers(nil, []string{"Rex"}))
}

func TestVerifyAnswers_TrimsWhitespaceOnly(t *testing.T) {
	// Surrounding whitespace is forgiven; case is not.
	qs := questions()
	assert.True(t, rental.VerifyAnswers(qs, []string{" Rex ", "Porto", "Silva"}))
	assert.False(t, rental.VerifyAnswers(qs, []string{"rex", "Porto", "Silva"}))
}

// =============================================================================
// STORED QUESTIONS
// =============================================================================

func TestRecovery_SetAndVerify(t *testing.T) {
	m, ctx := newMarket(t)
	recovery := rental.NewRecovery(m)

	require.NoError(t, recovery.SetQuestions(ctx, "renter-1", questions()))

	ok, err := recovery.Verify(ctx, "renter-1", []string{"Rex", "Porto", "Silva"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = recovery.Verify(ctx, "renter-1", []string{"Rex", "Porto", "wrong"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecovery_Questions_OmitAnswers(t *testing.T) {
	m, ctx := newMarket(t)
	recovery := rental.NewRecovery(m)
	require.NoError(t, recovery.SetQuestions(ctx, "renter-1", questions()))

	qs, err := recovery.Questions(ctx, "renter-1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"First pet's name?",
		"City you were born in?",
		"Favorite teacher?",
	}, qs)
}

func TestRecovery_SetQuestions_UnknownUser(t *testing.T) {
	m, ctx := newMarket(t)
	recovery := rental.NewRecovery(m)

	err := recovery.SetQuestions(ctx, "ghost", questions())
	assert.ErrorIs(t, err, rental.ErrUserNotFound)
}
