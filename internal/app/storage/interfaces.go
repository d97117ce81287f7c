package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lampstack/versekeeper/internal/app/domain/leaderboard"
	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/domain/verse"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a uniqueness constraint is violated.
var ErrDuplicate = errors.New("record already exists")

// Mutation is what the progression service computes inside the atomic
// memorization sequence: the updated user row to persist and, when the tier
// changed, the history entry to append alongside it.
type Mutation struct {
	User       user.User
	RankChange *verse.RankChange
}

// MutationFunc receives the user row snapshotted under lock and returns the
// state to persist. Returning an error aborts the whole sequence.
type MutationFunc func(current user.User) (Mutation, error)

// UserStore persists user accounts and their denormalized ranking state.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	SetUserPremium(ctx context.Context, id int64, premium bool) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	// UpdateUserRank repairs the cached rank level without touching the
	// verse counter. Only the reconciler calls this.
	UpdateUserRank(ctx context.Context, id int64, level string, at time.Time) error
}

// VerseStore persists memorized-verse records and applies the atomic
// memorization sequence.
type VerseStore interface {
	GetMemorizedVerse(ctx context.Context, userID int64, verseID string) (verse.Memorized, error)
	TouchMemorizedVerse(ctx context.Context, id int64, at time.Time) (verse.Memorized, error)
	ListMemorizedVerses(ctx context.Context, userID int64) ([]verse.Memorized, error)
	// RecordMemorization inserts rec and applies mutate to the owning user
	// row as one atomic unit: the user snapshot is taken under a row lock,
	// and the verse insert, user update, and optional history append all
	// commit together or not at all. ErrDuplicate is returned when the
	// (user, verse) pair already exists.
	RecordMemorization(ctx context.Context, rec verse.Memorized, mutate MutationFunc) (verse.Memorized, error)
}

// RankHistoryStore reads the append-only level-up audit trail. Entries are
// only ever written inside RecordMemorization.
type RankHistoryStore interface {
	ListRankHistory(ctx context.Context, userID int64) ([]verse.RankChange, error)
}

// LeaderboardStore serves read-only ranking queries over the user counters.
// Users with zero memorized verses are excluded everywhere.
type LeaderboardStore interface {
	// TopUsers returns a page ordered by verse count descending, ties
	// broken by earliest rank update, with dense positions populated.
	TopUsers(ctx context.Context, limit, offset int) ([]leaderboard.Entry, error)
	// UserStanding returns the ranked entry for one user; ErrNotFound when
	// the user is absent or has no memorized verses.
	UserStanding(ctx context.Context, userID int64) (leaderboard.Entry, error)
	CountRankedUsers(ctx context.Context) (int, error)
}
