package jobs

import (
	"context"
	"log"
	"time"

	"arena-engine/internal/models"
	"arena-engine/internal/repository"
	"arena-engine/internal/services"
)

// DeadlineSweeper periodically drives deadline-gated transitions. The engine
// has no timers of its own; a phase change past a deadline only happens when
// some caller asks for it, and the sweeper is that caller.
type DeadlineSweeper struct {
	repo            *repository.Repository
	contestService  *services.ContestService
	operatorAccount string
	interval        time.Duration
	stopChan        chan struct{}
}

func NewDeadlineSweeper(
	repo *repository.Repository,
	contestService *services.ContestService,
	operatorAccount string,
	interval time.Duration,
) *DeadlineSweeper {
	return &DeadlineSweeper{
		repo:            repo,
		contestService:  contestService,
		operatorAccount: operatorAccount,
		interval:        interval,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the sweep loop. Every transition the sweeper drives is an
// operator call, so without an operator account the loop could only fail;
// in that case Start logs once and returns.
func (ds *DeadlineSweeper) Start() {
	if ds.operatorAccount == "" {
		log.Println("[DeadlineSweeper] No operator account configured, sweeper disabled")
		return
	}
	log.Printf("[DeadlineSweeper] Starting sweep loop (interval: %v)", ds.interval)

	ticker := time.NewTicker(ds.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ds.sweep()
		case <-ds.stopChan:
			log.Println("[DeadlineSweeper] Stopping sweep loop")
			return
		}
	}
}

// Stop stops the sweep loop
func (ds *DeadlineSweeper) Stop() {
	close(ds.stopChan)
}

func (ds *DeadlineSweeper) sweep() {
	ctx := context.Background()

	contests, err := ds.repo.ListUnresolvedContests(ctx, 100)
	if err != nil {
		log.Printf("[DeadlineSweeper] Error listing contests: %v", err)
		return
	}

	now := time.Now()
	for _, contest := range contests {
		switch contest.Phase {
		case models.ContestPhaseOpen, models.ContestPhaseQuestionPosted:
			if !now.After(contest.JoinDeadline) {
				continue
			}
			switch {
			case contest.ParticipantCount == 0:
				if err := ds.contestService.Expire(ctx, contest.ID, ds.operatorAccount); err != nil {
					log.Printf("[DeadlineSweeper] Expire contest %d: %v", contest.ID, err)
				}
			case contest.SettlementPolicy == models.SettlementPolicyFixedSplit &&
				contest.ParticipantCount < contest.MinParticipants:
				if err := ds.contestService.RefundTimeout(ctx, contest.ID, ds.operatorAccount); err != nil {
					log.Printf("[DeadlineSweeper] Refund contest %d: %v", contest.ID, err)
				}
			}
		case models.ContestPhaseActive:
			// Only the batch-refund variant is swept; bounty fallbacks are
			// participant pulls and stay untouched.
			if contest.SettlementPolicy != models.SettlementPolicyFixedSplit {
				continue
			}
			if contest.AnswerDeadline != nil && now.After(*contest.AnswerDeadline) {
				if err := ds.contestService.RefundTimeout(ctx, contest.ID, ds.operatorAccount); err != nil {
					log.Printf("[DeadlineSweeper] Refund contest %d: %v", contest.ID, err)
				}
			}
		}
	}
}
