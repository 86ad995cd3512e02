/**
 * @description
 * Background job implementations for the wallet-service.
 */
package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lumapay/wallet-service/internal/domain"
)

const defaultRefreshBatchLimit = 100

// SessionLister feeds the refresh job the sessions worth sweeping.
type SessionLister interface {
	ListSessionsWithValidToken(ctx context.Context, asOf time.Time, limit int) ([]domain.Session, error)
}

// SnapshotRefresher is the slice of the coordinator the refresh job uses.
type SnapshotRefresher interface {
	RefreshAccounts(ctx context.Context, sessionID uuid.UUID) (*domain.AccountsResult, error)
	RefreshBeneficiaries(ctx context.Context, sessionID uuid.UUID, offset, limit int) (*domain.BeneficiariesResult, error)
}

// Jobs contains the logic for all background tasks.
type Jobs struct {
	sessions   SessionLister
	refresher  SnapshotRefresher
	batchLimit int
}

// NewJobs creates a new Jobs runner.
func NewJobs(sessions SessionLister, refresher SnapshotRefresher, batchLimit int) *Jobs {
	if batchLimit <= 0 {
		batchLimit = defaultRefreshBatchLimit
	}
	return &Jobs{
		sessions:   sessions,
		refresher:  refresher,
		batchLimit: batchLimit,
	}
}

// RefreshSnapshots re-pulls account and beneficiary snapshots for sessions
// whose tokens are still live, so cached data stays warm between logins. A
// failing session is skipped, never retried within the sweep.
func (j *Jobs) RefreshSnapshots() {
	log.Printf("RefreshSnapshots: starting snapshot refresh sweep")
	ctx := context.Background()

	sessions, err := j.sessions.ListSessionsWithValidToken(ctx, time.Now().UTC(), j.batchLimit)
	if err != nil {
		log.Printf("WARN: RefreshSnapshots: failed to list sessions: %v", err)
		return
	}
	if len(sessions) == 0 {
		log.Printf("RefreshSnapshots: no sessions with live tokens")
		return
	}

	fresh, degraded, failed := 0, 0, 0
	for _, session := range sessions {
		accounts, err := j.refresher.RefreshAccounts(ctx, session.ID)
		if err != nil {
			log.Printf("WARN: RefreshSnapshots: account refresh failed for session %s: %v", session.ID, err)
			failed++
			continue
		}
		beneficiaries, err := j.refresher.RefreshBeneficiaries(ctx, session.ID, 0, defaultBeneficiaryPageSize)
		if err != nil {
			log.Printf("WARN: RefreshSnapshots: beneficiary refresh failed for session %s: %v", session.ID, err)
			failed++
			continue
		}
		if accounts.Fresh && beneficiaries.Fresh {
			fresh++
		} else {
			degraded++
		}
	}

	log.Printf("RefreshSnapshots: sweep finished, sessions=%d fresh=%d degraded=%d failed=%d", len(sessions), fresh, degraded, failed)
}
