package service

import (
	"context"
	"sync"

	"chatzam/internal/models"
	"chatzam/internal/observability"
	"chatzam/internal/repository"
)

// SyncStatus is the aggregate outcome of a profile fan-out.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncSkipped SyncStatus = "skipped"
	SyncFailed  SyncStatus = "failed"
)

// SyncOutcome summarizes one profile synchronization run.
type SyncOutcome struct {
	Status            SyncStatus
	UserID            string
	ConversationCount int
	FailureCount      int
	FirstErr          error
}

// ProfileSyncService propagates a user's profile summary into the
// denormalized participant_summaries map of every conversation they belong
// to. Updates run in parallel, one per conversation, and the run always
// produces a single canonical log line.
type ProfileSyncService struct {
	convRepo repository.ConversationRepository
	userRepo repository.UserRepository
	log      *observability.Logger
}

// NewProfileSyncService returns a new ProfileSyncService.
func NewProfileSyncService(convRepo repository.ConversationRepository, userRepo repository.UserRepository, log *observability.Logger) *ProfileSyncService {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &ProfileSyncService{convRepo: convRepo, userRepo: userRepo, log: log}
}

// SyncProfile reads the user's current profile and writes its summary into
// each conversation the user participates in. A user with no conversations
// is a skip, not a failure. Per-conversation failures do not stop the rest
// of the fan-out; the outcome carries the failure count and the first error.
func (s *ProfileSyncService) SyncProfile(ctx context.Context, userID string) SyncOutcome {
	outcome := SyncOutcome{UserID: userID}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		outcome.Status = SyncFailed
		outcome.FirstErr = err
		s.finish(outcome)
		return outcome
	}

	convs, err := s.convRepo.ByParticipant(ctx, userID)
	if err != nil {
		outcome.Status = SyncFailed
		outcome.FirstErr = err
		s.finish(outcome)
		return outcome
	}
	if len(convs) == 0 {
		outcome.Status = SyncSkipped
		s.finish(outcome)
		return outcome
	}
	outcome.ConversationCount = len(convs)

	summary := user.Summary()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
		firstErr error
	)
	for _, conv := range convs {
		wg.Add(1)
		go func(convID string) {
			defer wg.Done()
			if err := s.convRepo.UpdateParticipantSummary(ctx, convID, userID, summary); err != nil {
				mu.Lock()
				failures++
				if firstErr == nil {
					firstErr = models.NewRemoteError("sync summary to "+convID, err)
				}
				mu.Unlock()
			}
		}(conv.ID)
	}
	wg.Wait()

	outcome.FailureCount = failures
	outcome.FirstErr = firstErr
	if failures > 0 {
		outcome.Status = SyncFailed
	} else {
		outcome.Status = SyncSuccess
	}
	s.finish(outcome)
	return outcome
}

func (s *ProfileSyncService) finish(o SyncOutcome) {
	observability.ProfileSyncOutcomes.WithLabelValues(string(o.Status)).Inc()
	s.log.SyncCanonicalLine(string(o.Status), o.UserID, o.ConversationCount, o.FirstErr)
}
