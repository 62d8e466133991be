package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"
	"arena-engine/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testEscrowAccount = "arena-escrow"
	operatorAccount   = "admin"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEnv struct {
	db     *gorm.DB
	repo   *repository.Repository
	tokens *ledger.TokenLedger
	dir    *ledger.Directory
	scores *ledger.ScoreStore
	cs     *ContestService
	es     *EscrowService
	admin  *AdminService
	clock  *testClock
}

// newTestEnv opens a fresh in-memory database per test. The shared-cache name
// is unique so parallel tests never see each other's schema.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Contest{},
		&models.ContestEntry{},
		&models.AnswerSubmission{},
		&models.PendingBalance{},
		&models.SettlementRecord{},
		&models.ValueTransaction{},
		&models.ParticipantStats{},
		&models.Operator{},
		&models.EngineSettings{},
		&ledger.TokenAccount{},
		&ledger.IdentityBinding{},
		&ledger.ReputationScore{},
	)
	require.NoError(t, err)

	repo := repository.NewRepository(db)
	tokens := ledger.NewTokenLedger(db)
	dir := ledger.NewDirectory(db)
	scores := ledger.NewScoreStore(db)

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cs := NewContestService(repo, tokens, dir, scores, testEscrowAccount)
	cs.SetClock(clock.Now)

	es := NewEscrowService(repo, tokens, testEscrowAccount)
	admin := NewAdminService(repo)
	require.NoError(t, admin.Bootstrap(context.Background(), operatorAccount))

	return &testEnv{
		db:     db,
		repo:   repo,
		tokens: tokens,
		dir:    dir,
		scores: scores,
		cs:     cs,
		es:     es,
		admin:  admin,
		clock:  clock,
	}
}

// addParticipant registers an identity handle controlled by the account and
// mints its starting balance. Account names must be base58-clean.
func (e *testEnv) addParticipant(t *testing.T, account string, funds uint64) string {
	t.Helper()
	ctx := context.Background()

	handle := account + "-handle"
	_, err := e.dir.Register(ctx, handle, account)
	require.NoError(t, err)

	if funds > 0 {
		require.NoError(t, e.tokens.Mint(ctx, account, funds))
	}
	return handle
}

func (e *testEnv) balance(t *testing.T, account string) uint64 {
	t.Helper()
	bal, err := e.tokens.Balance(context.Background(), account)
	require.NoError(t, err)
	return bal
}

func (e *testEnv) createQuiz(t *testing.T, entry, baseFee uint64, minP, maxP int) *models.Contest {
	t.Helper()
	contest, err := e.cs.CreateContest(context.Background(), operatorAccount, &models.CreateContestRequest{
		Kind:             "QUIZ_MATCH",
		Title:            "Capital cities",
		Prompt:           "Name the capital",
		EntryAmount:      entry,
		BaseFee:          baseFee,
		MinParticipants:  minP,
		MaxParticipants:  maxP,
		Difficulty:       2,
		JoinWindowSecs:   600,
		AnswerWindowSecs: 300,
		SettlementPolicy: "FIXED_SPLIT",
	})
	require.NoError(t, err)
	return contest
}

// startAnswering walks a quiz from OPEN to ACTIVE.
func (e *testEnv) startAnswering(t *testing.T, contestID uint) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.cs.PostQuestion(ctx, contestID, operatorAccount, "deadbeef"))
	require.NoError(t, e.cs.OpenAnswering(ctx, contestID, operatorAccount))
}

func TestCreateContestValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.CreateContestRequest
	}{
		{"quiz with creator-pick policy", models.CreateContestRequest{
			Kind: "QUIZ_MATCH", Title: "t", EntryAmount: 100, BaseFee: 10,
			MinParticipants: 1, MaxParticipants: 4, Difficulty: 2,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "CREATOR_PICK",
		}},
		{"quiz without entry amount", models.CreateContestRequest{
			Kind: "QUIZ_MATCH", Title: "t", BaseFee: 10,
			MinParticipants: 1, MaxParticipants: 4, Difficulty: 2,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "FIXED_SPLIT",
		}},
		{"bounty with entry deposit", models.CreateContestRequest{
			Kind: "BOUNTY", Title: "t", RewardAmount: 100, EntryAmount: 500, BaseFee: 10,
			CommitmentHash: "c0ffee", MaxParticipants: 4, Difficulty: 2,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "CREATOR_PICK",
		}},
		{"bounty without commitment", models.CreateContestRequest{
			Kind: "BOUNTY", Title: "t", RewardAmount: 100, BaseFee: 10,
			MaxParticipants: 4, Difficulty: 2,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "CREATOR_PICK",
		}},
		{"zero base fee", models.CreateContestRequest{
			Kind: "QUIZ_MATCH", Title: "t", EntryAmount: 100,
			MinParticipants: 1, MaxParticipants: 4, Difficulty: 2,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "FIXED_SPLIT",
		}},
		{"difficulty out of range", models.CreateContestRequest{
			Kind: "QUIZ_MATCH", Title: "t", EntryAmount: 100, BaseFee: 10,
			MinParticipants: 1, MaxParticipants: 4, Difficulty: 6,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "FIXED_SPLIT",
		}},
		{"min above max", models.CreateContestRequest{
			Kind: "QUIZ_MATCH", Title: "t", EntryAmount: 100, BaseFee: 10,
			MinParticipants: 5, MaxParticipants: 4, Difficulty: 2,
			JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "FIXED_SPLIT",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.cs.CreateContest(ctx, operatorAccount, &tc.req)
			require.True(t, models.IsKind(err, models.ErrKindConfig), "got %v", err)
		})
	}
}

func TestCreateQuizRequiresOperator(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.cs.CreateContest(context.Background(), "bob", &models.CreateContestRequest{
		Kind: "QUIZ_MATCH", Title: "t", EntryAmount: 100, BaseFee: 10,
		MinParticipants: 1, MaxParticipants: 4, Difficulty: 2,
		JoinWindowSecs: 60, AnswerWindowSecs: 60, SettlementPolicy: "FIXED_SPLIT",
	})
	require.True(t, models.IsKind(err, models.ErrKindCapability))
}

func TestQuizLifecycleSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	bobHandle := env.addParticipant(t, "bob", 2000)

	contest := env.createQuiz(t, 1000, 10, 2, 5)
	require.Equal(t, models.ContestPhaseOpen, contest.Phase)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.NoError(t, err)

	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(2000), contest.PoolTotal)
	require.Equal(t, 2, contest.ParticipantCount)
	require.Equal(t, uint64(2000), env.balance(t, testEscrowAccount))
	require.Equal(t, uint64(1000), env.balance(t, "anna"))

	env.startAnswering(t, contest.ID)
	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestPhaseActive, contest.Phase)
	require.NotNil(t, contest.AnswerDeadline)

	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "anna", "Paris")
	require.NoError(t, err)
	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "bob", "Lyon")
	require.NoError(t, err)

	record, err := env.cs.Settle(ctx, contest.ID, operatorAccount, "anna")
	require.NoError(t, err)
	require.Equal(t, uint64(1700), record.WinnerShare)
	require.Equal(t, uint64(200), record.TreasuryShare)
	require.Equal(t, uint64(100), record.ResidualShare)

	// Winner and treasury paid immediately, residual burned, escrow empty.
	require.Equal(t, uint64(1000-10+1700), env.balance(t, "anna"))
	require.Equal(t, uint64(200), env.balance(t, "treasury"))
	require.Equal(t, uint64(0), env.balance(t, testEscrowAccount))

	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContestPhaseSettled, contest.Phase)
	require.Equal(t, contest.PoolTotal, contest.DistributedTotal)
	require.NotNil(t, contest.WinnerAccount)
	require.Equal(t, "anna", *contest.WinnerAccount)

	stats, err := env.cs.GetParticipantStats(ctx, "anna")
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ContestsJoined)
	require.Equal(t, int64(1), stats.ContestsWon)
	require.Equal(t, uint64(1700), stats.TotalWon)

	// A settled contest cannot settle twice.
	_, err = env.cs.Settle(ctx, contest.ID, operatorAccount, "anna")
	require.True(t, models.IsKind(err, models.ErrKindPhaseMismatch))
}

func TestSettleRejectsNonAnsweringWinner(t *testing.T) {
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

	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "anna", "Paris")
	require.NoError(t, err)

	_, err = env.cs.Settle(ctx, contest.ID, operatorAccount, "bob")
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestJoinDeadlineBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	bobHandle := env.addParticipant(t, "bob", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)

	// Exactly at the deadline is still inside the window.
	env.clock.Advance(600 * time.Second)
	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)

	// One tick past it is not.
	env.clock.Advance(time.Second)
	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.True(t, models.IsKind(err, models.ErrKindDeadlinePassed))
}

func TestJoinRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 5000)
	bobHandle := env.addParticipant(t, "bob", 5000)
	caraHandle := env.addParticipant(t, "cara", 5000)
	env.addParticipant(t, "admin", 5000)

	contest := env.createQuiz(t, 1000, 10, 1, 2)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)

	// Duplicate join.
	_, err = env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.True(t, models.IsKind(err, models.ErrKindState))

	// The creator is excluded from its own contest.
	_, err = env.cs.JoinContest(ctx, contest.ID, operatorAccount, "admin-handle")
	require.True(t, models.IsKind(err, models.ErrKindCapability))

	// An identity the caller does not control.
	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", annaHandle)
	require.True(t, models.IsKind(err, models.ErrKindCapability))

	// Capacity: the contest holds two.
	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.NoError(t, err)
	_, err = env.cs.JoinContest(ctx, contest.ID, "cara", caraHandle)
	require.True(t, models.IsKind(err, models.ErrKindCapacity))
}

func TestJoinReputationGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 5000)
	bobHandle := env.addParticipant(t, "bob", 5000)
	require.NoError(t, env.scores.SetScore(ctx, annaHandle, decimal.NewFromInt(80)))
	require.NoError(t, env.scores.SetScore(ctx, bobHandle, decimal.NewFromInt(10)))

	minRep := "50"
	contest, err := env.cs.CreateContest(ctx, operatorAccount, &models.CreateContestRequest{
		Kind: "QUIZ_MATCH", Title: "gated", EntryAmount: 1000, BaseFee: 10,
		MinParticipants: 1, MaxParticipants: 4, Difficulty: 3, MinReputation: &minRep,
		JoinWindowSecs: 600, AnswerWindowSecs: 300, SettlementPolicy: "FIXED_SPLIT",
	})
	require.NoError(t, err)

	entry, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	require.True(t, entry.Reputation.Equal(decimal.NewFromInt(80)))

	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestSubmitAnswerFeeEscalation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	env.startAnswering(t, contest.ID)

	balanceBefore := env.balance(t, "anna")
	for attempt, wantFee := range []uint64{10, 20, 40} {
		sub, err := env.cs.SubmitAnswer(ctx, contest.ID, "anna", "guess")
		require.NoError(t, err)
		require.Equal(t, attempt, sub.Attempt)
		require.Equal(t, wantFee, sub.FeePaid)
	}

	// Fees burn from the caller and never enter the pool.
	require.Equal(t, balanceBefore-70, env.balance(t, "anna"))
	contest, err = env.cs.GetContest(ctx, contest.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), contest.PoolTotal)
	require.Equal(t, 1, contest.AnsweredCount)

	stats, err := env.cs.GetParticipantStats(ctx, "anna")
	require.NoError(t, err)
	require.Equal(t, uint64(70), stats.TotalFeesBurned)
}

func TestSubmitAnswerDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	env.startAnswering(t, contest.ID)

	// Submitting exactly at the answer deadline is allowed.
	env.clock.Advance(300 * time.Second)
	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "anna", "Paris")
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "anna", "Paris")
	require.True(t, models.IsKind(err, models.ErrKindDeadlinePassed))
}

func TestPhaseMismatchReportsBothPhases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)
	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)

	// Settling an OPEN contest must name both phases.
	_, err = env.cs.Settle(ctx, contest.ID, operatorAccount, "anna")
	var ee *models.EngineError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, models.ErrKindPhaseMismatch, ee.Kind)
	require.Equal(t, models.ContestPhaseActive, ee.Expected)
	require.Equal(t, models.ContestPhaseOpen, ee.Actual)
}

func TestOpenAnsweringRequiresMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 2, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	require.NoError(t, env.cs.PostQuestion(ctx, contest.ID, operatorAccount, "deadbeef"))

	err = env.cs.OpenAnswering(ctx, contest.ID, operatorAccount)
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestPauseBlocksEntrySideOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	bobHandle := env.addParticipant(t, "bob", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.NoError(t, err)
	env.startAnswering(t, contest.ID)
	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "anna", "Paris")
	require.NoError(t, err)

	require.NoError(t, env.admin.SetPaused(ctx, operatorAccount, true))

	_, err = env.cs.JoinContest(ctx, contest.ID, "bob", bobHandle)
	require.True(t, models.IsKind(err, models.ErrKindPaused))
	_, err = env.cs.SubmitAnswer(ctx, contest.ID, "anna", "again")
	require.True(t, models.IsKind(err, models.ErrKindPaused))

	// Settlement stays available while paused so funds are never stuck.
	_, err = env.cs.Settle(ctx, contest.ID, operatorAccount, "anna")
	require.NoError(t, err)
}

func TestContestLockBlocksReentry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	annaHandle := env.addParticipant(t, "anna", 2000)
	contest := env.createQuiz(t, 1000, 10, 1, 5)

	// Simulate a mutation in flight on the same contest.
	require.True(t, env.cs.locks.acquire(contestLockKey(contest.ID)))
	defer env.cs.locks.release(contestLockKey(contest.ID))

	_, err := env.cs.JoinContest(ctx, contest.ID, "anna", annaHandle)
	require.True(t, models.IsKind(err, models.ErrKindReentrancy))
}

func TestAdminSplitWeights(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.admin.UpdateSplitWeights(ctx, operatorAccount, 9000, 900, 100)
	require.NoError(t, err)

	settings, err := env.admin.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9000), settings.WinnerBps)

	err = env.admin.UpdateSplitWeights(ctx, operatorAccount, 9000, 900, 200)
	require.True(t, models.IsKind(err, models.ErrKindConfig))

	err = env.admin.UpdateSplitWeights(ctx, "bob", 8500, 1000, 500)
	require.True(t, models.IsKind(err, models.ErrKindCapability))
}
