package services

import (
	"context"
	"testing"
	"time"

	"arena-engine/internal/models"

	"github.com/stretchr/testify/require"
)

func TestWithdrawEmptyBalance(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.es.Withdraw(context.Background(), "anna")
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestWithdrawIsOneShot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tokens.Mint(ctx, testEscrowAccount, 500))
	require.NoError(t, env.repo.CreditPendingBalance(ctx, "anna", 500))

	amount, err := env.es.Withdraw(ctx, "anna")
	require.NoError(t, err)
	require.Equal(t, uint64(500), amount)
	require.Equal(t, uint64(500), env.balance(t, "anna"))

	// The balance was zeroed by the first withdrawal; a second one finds
	// nothing.
	_, err = env.es.Withdraw(ctx, "anna")
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestWithdrawAccumulatedCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tokens.Mint(ctx, testEscrowAccount, 900))
	require.NoError(t, env.repo.CreditPendingBalance(ctx, "bob", 300))
	require.NoError(t, env.repo.CreditPendingBalance(ctx, "bob", 600))

	pending, err := env.es.PendingBalance(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, uint64(900), pending)

	amount, err := env.es.Withdraw(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, uint64(900), amount)
}

func TestRefundTimeoutBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	bobHandle := env.addParticipant(t, "bob", 2000)
	contest := env.createQuiz(t, 1000, 10, 2, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.NoError(t, err)
	env.startAnswering(t, contest.ID)

	// Before the answer deadline the refund is premature.
	err = env.cs.RefundTimeout(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindDeadlineNotReached))

	env.clock.Advance(301 * time.Second)
	require.NoError(t, env.cs.RefundTimeout(ctx, contest.ID, operatorAccount))

	// Treasury takes its 10% cut immediately; the joiners split the rest as
	// pending balances.
	require.Equal(t, uint64(200), env.balance(t, "treasury"))
	for _, account := range []string{"anna", "bob"} {
		pending, err := env.es.PendingBalance(ctx, account)
		require.NoError(t, err)
		require.Equal(t, uint64(900), pending)
	}

	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestPhaseRefunded, contest.Phase)
	require.Equal(t, uint64(2000), contest.DistributedTotal)

	// Each joiner pulls independently; one uncooperative recipient cannot
	// stall the other.
	amount, err := env.es.Withdraw(ctx, "anna")
	require.NoError(t, err)
	require.Equal(t, uint64(900), amount)
	amount, err = env.es.Withdraw(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, uint64(900), amount)

	require.Equal(t, uint64(0), env.balance(t, testEscrowAccount))

	// The batch cannot run twice.
	err = env.cs.RefundTimeout(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindPhaseMismatch))
}

func TestRefundTimeoutUnderfilledQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 2, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	require.NoError(t, env.cs.PostQuestion(ctx, contest.ID, operatorAccount, "deadbeef"))

	// One joiner short of the minimum, so answering can never open.
	err = env.cs.OpenAnswering(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindState))

	// While the join window is open the refund is premature.
	err = env.cs.RefundTimeout(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindDeadlineNotReached))

	env.clock.Advance(601 * time.Second)

	// Expire refuses while a live entry holds escrowed funds; the refund is
	// the only way out.
	err = env.cs.Expire(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindState))
	require.NoError(t, env.cs.RefundTimeout(ctx, contest.ID, operatorAccount))

	// The contest never ran, so the entry comes back whole and the treasury
	// takes nothing.
	require.Equal(t, uint64(0), env.balance(t, "treasury"))
	pending, err := env.es.PendingBalance(ctx, "anna")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pending)

	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestPhaseRefunded, contest.Phase)
	require.Equal(t, uint64(1000), contest.DistributedTotal)

	amount, err := env.es.Withdraw(ctx, "anna")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), amount)
	require.Equal(t, uint64(0), env.balance(t, testEscrowAccount))
}

func TestRefundTimeoutRefusesFilledOpenQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	bobHandle := env.addParticipant(t, "bob", 2000)
	contest := env.createQuiz(t, 1000, 10, 2, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.NoError(t, err)

	env.clock.Advance(601 * time.Second)

	// The minimum was reached: this contest can still open answering, so the
	// under-filled refund must not swallow it.
	err = env.cs.RefundTimeout(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestRefundTimeoutRejectsBountyPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addParticipant(t, "frank", 9000)
	contest := env.createBounty(t, "frank", 9000, 5)
	env.approveBounty(t, contest.ID)

	err := env.cs.RefundTimeout(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestExpireEmptyQuiz(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contest := env.createQuiz(t, 1000, 10, 1, 5)

	err := env.cs.Expire(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindDeadlineNotReached))

	env.clock.Advance(601 * time.Second)
	require.NoError(t, env.cs.Expire(ctx, contest.ID, operatorAccount))

	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestPhaseExpired, contest.Phase)
}

func TestExpireRefusesJoinedContest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)
	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)

	env.clock.Advance(601 * time.Second)
	err = env.cs.Expire(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestExpireBountyReturnsReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addParticipant(t, "frank", 9000)
	contest := env.createBounty(t, "frank", 9000, 5)
	env.approveBounty(t, contest.ID)

	env.clock.Advance(601 * time.Second)
	require.NoError(t, env.cs.Expire(ctx, contest.ID, operatorAccount))

	pending, err := env.es.PendingBalance(ctx, "frank")
	require.NoError(t, err)
	require.Equal(t, uint64(9000), pending)

	amount, err := env.es.Withdraw(ctx, "frank")
	require.NoError(t, err)
	require.Equal(t, uint64(9000), amount)
	require.Equal(t, uint64(9000), env.balance(t, "frank"))
}
