// Package progression records memorized verses and maintains each user's
// rank: the monotonic verse counter, the cached tier level, and the
// append-only level-up history.
package progression

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lampstack/versekeeper/internal/app/domain/rank"
	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/domain/verse"
	"github.com/lampstack/versekeeper/internal/app/metrics"
	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/pkg/logger"
)

// ErrUserNotFound is returned when the target user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidInput marks caller mistakes in the record payload, as opposed to
// persistence failures.
var ErrInvalidInput = errors.New("invalid input")

// Service records memorizations and answers progress queries.
type Service struct {
	users   storage.UserStore
	verses  storage.VerseStore
	history storage.RankHistoryStore
	log     *logger.Logger
}

// New constructs a progression service.
func New(users storage.UserStore, verses storage.VerseStore, history storage.RankHistoryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("progression")
	}
	return &Service{
		users:   users,
		verses:  verses,
		history: history,
		log:     log,
	}
}

// RecordInput identifies the verse being memorized.
type RecordInput struct {
	VerseID     string
	Reference   string
	Text        string
	ContextText string
}

// RecordResult reports the outcome of a memorization.
type RecordResult struct {
	Verse            verse.Memorized
	User             user.User
	Rank             rank.Info
	RankUp           bool
	PreviousRank     string
	AlreadyMemorized bool
}

// Record registers a memorized verse for the user. A first-time memorization
// increments the counter by exactly one, recomputes the tier, and appends a
// history entry when the tier changed. Repeat memorizations of the same verse
// only refresh the memorized-at timestamp; the counter never moves.
func (s *Service) Record(ctx context.Context, userID int64, in RecordInput) (RecordResult, error) {
	in.VerseID = strings.TrimSpace(in.VerseID)
	in.Reference = strings.TrimSpace(in.Reference)
	in.Text = strings.TrimSpace(in.Text)

	if userID <= 0 {
		return RecordResult{}, ErrUserNotFound
	}
	if in.VerseID == "" {
		return RecordResult{}, fmt.Errorf("%w: verse_id is required", ErrInvalidInput)
	}
	if in.Reference == "" {
		return RecordResult{}, fmt.Errorf("%w: verse_reference is required", ErrInvalidInput)
	}
	if in.Text == "" {
		return RecordResult{}, fmt.Errorf("%w: verse_text is required", ErrInvalidInput)
	}

	if existing, err := s.verses.GetMemorizedVerse(ctx, userID, in.VerseID); err == nil {
		return s.refresh(ctx, userID, existing)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return RecordResult{}, err
	}

	now := time.Now().UTC()
	rec := verse.Memorized{
		UserID:      userID,
		VerseID:     in.VerseID,
		Reference:   in.Reference,
		Text:        in.Text,
		ContextText: strings.TrimSpace(in.ContextText),
		MemorizedAt: now,
	}

	var (
		updated  user.User
		info     rank.Info
		previous string
		rankUp   bool
	)
	stored, err := s.verses.RecordMemorization(ctx, rec, func(current user.User) (storage.Mutation, error) {
		previous = current.CurrentRank
		updated = current
		updated.VersesMemorized = current.VersesMemorized + 1
		info = rank.Calculate(updated.VersesMemorized)
		rankUp = info.Current.Level != current.CurrentRank
		updated.CurrentRank = info.Current.Level
		// The rank is recomputed on every memorization, so the timestamp
		// always moves; leaderboard ties break on who reached the count
		// first.
		updated.RankUpdatedAt = now

		mut := storage.Mutation{User: updated}
		if rankUp {
			mut.RankChange = &verse.RankChange{
				UserID:       current.ID,
				PreviousRank: current.CurrentRank,
				NewRank:      info.Current.Level,
				VersesCount:  updated.VersesMemorized,
				AchievedAt:   now,
			}
		}
		return mut, nil
	})
	if err != nil {
		// A concurrent request may have inserted the same pair after our
		// existence check; fold that into the idempotent path.
		if errors.Is(err, storage.ErrDuplicate) {
			existing, getErr := s.verses.GetMemorizedVerse(ctx, userID, in.VerseID)
			if getErr != nil {
				return RecordResult{}, err
			}
			return s.refresh(ctx, userID, existing)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return RecordResult{}, ErrUserNotFound
		}
		metrics.RecordMemorization("error", false)
		return RecordResult{}, err
	}
	metrics.RecordMemorization("created", rankUp)

	entry := s.log.WithField("user_id", userID).WithField("verse_id", in.VerseID)
	if rankUp {
		entry.WithField("previous_rank", previous).
			WithField("new_rank", info.Current.Level).
			Infof("verse memorized, rank advanced to %s", info.Current.Level)
	} else {
		entry.Info("verse memorized")
	}

	return RecordResult{
		Verse:        stored,
		User:         updated,
		Rank:         info,
		RankUp:       rankUp,
		PreviousRank: previous,
	}, nil
}

// refresh handles a repeat memorization: bump the timestamp and report the
// unchanged standing.
func (s *Service) refresh(ctx context.Context, userID int64, existing verse.Memorized) (RecordResult, error) {
	touched, err := s.verses.TouchMemorizedVerse(ctx, existing.ID, time.Now().UTC())
	if err != nil {
		return RecordResult{}, err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return RecordResult{}, ErrUserNotFound
		}
		return RecordResult{}, err
	}
	metrics.RecordMemorization("repeat", false)
	s.log.WithField("user_id", userID).WithField("verse_id", existing.VerseID).
		Info("verse already memorized, refreshed timestamp")
	return RecordResult{
		Verse:            touched,
		User:             u,
		Rank:             rank.Calculate(u.VersesMemorized),
		PreviousRank:     u.CurrentRank,
		AlreadyMemorized: true,
	}, nil
}

// Report is a user's full standing: the verse counter plus the derived tier
// numbers.
type Report struct {
	User user.User
	Rank rank.Info
}

// Progress returns the user's current standing derived from the live counter.
func (s *Service) Progress(ctx context.Context, userID int64) (Report, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Report{}, ErrUserNotFound
		}
		return Report{}, err
	}
	return Report{User: u, Rank: rank.Calculate(u.VersesMemorized)}, nil
}

// History returns the user's level-up audit trail, most recent first.
func (s *Service) History(ctx context.Context, userID int64) ([]verse.RankChange, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.history.ListRankHistory(ctx, userID)
}

// Verses lists everything the user has memorized, newest first.
func (s *Service) Verses(ctx context.Context, userID int64) ([]verse.Memorized, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.verses.ListMemorizedVerses(ctx, userID)
}
