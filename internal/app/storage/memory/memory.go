package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lampstack/versekeeper/internal/app/domain/leaderboard"
	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/domain/verse"
	"github.com/lampstack/versekeeper/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[int64]user.User
	userByEmail map[string]int64
	userByName  map[string]int64
	verses      map[int64]verse.Memorized
	verseByPair map[string]int64
	history     map[int64][]verse.RankChange
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.VerseStore = (*Store)(nil)
var _ storage.RankHistoryStore = (*Store)(nil)
var _ storage.LeaderboardStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		users:       make(map[int64]user.User),
		userByEmail: make(map[string]int64),
		userByName:  make(map[string]int64),
		verses:      make(map[int64]verse.Memorized),
		verseByPair: make(map[string]int64),
		history:     make(map[int64][]verse.RankChange),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func pairKey(userID int64, verseID string) string {
	return fmt.Sprintf("%d|%s", userID, verseID)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := strings.ToLower(strings.TrimSpace(u.Email))
	nameKey := strings.ToLower(strings.TrimSpace(u.Username))
	if _, exists := s.userByEmail[emailKey]; exists {
		return user.User{}, fmt.Errorf("email %s: %w", u.Email, storage.ErrDuplicate)
	}
	if _, exists := s.userByName[nameKey]; exists {
		return user.User{}, fmt.Errorf("username %s: %w", u.Username, storage.ErrDuplicate)
	}

	if u.ID == 0 {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %d: %w", u.ID, storage.ErrDuplicate)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.RankUpdatedAt.IsZero() {
		u.RankUpdatedAt = now
	}

	s.users[u.ID] = u
	s.userByEmail[emailKey] = u.ID
	s.userByName[nameKey] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) SetUserPremium(_ context.Context, id int64, premium bool) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	u.IsPremium = premium
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) UpdateUserRank(_ context.Context, id int64, level string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	u.CurrentRank = level
	u.RankUpdatedAt = at.UTC()
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

// VerseStore implementation ---------------------------------------------------

func (s *Store) GetMemorizedVerse(_ context.Context, userID int64, verseID string) (verse.Memorized, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.verseByPair[pairKey(userID, verseID)]
	if !ok {
		return verse.Memorized{}, fmt.Errorf("verse %s for user %d: %w", verseID, userID, storage.ErrNotFound)
	}
	return s.verses[id], nil
}

func (s *Store) TouchMemorizedVerse(_ context.Context, id int64, at time.Time) (verse.Memorized, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.verses[id]
	if !ok {
		return verse.Memorized{}, fmt.Errorf("memorized verse %d: %w", id, storage.ErrNotFound)
	}
	rec.MemorizedAt = at.UTC()
	s.verses[id] = rec
	return rec, nil
}

func (s *Store) ListMemorizedVerses(_ context.Context, userID int64) ([]verse.Memorized, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]verse.Memorized, 0)
	for _, rec := range s.verses {
		if rec.UserID == userID {
			result = append(result, rec)
		}
	}
	// Newest first, matching the postgres ordering.
	sort.Slice(result, func(i, j int) bool {
		if result[i].MemorizedAt.Equal(result[j].MemorizedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].MemorizedAt.After(result[j].MemorizedAt)
	})
	return result, nil
}

func (s *Store) RecordMemorization(_ context.Context, rec verse.Memorized, mutate storage.MutationFunc) (verse.Memorized, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(rec.UserID, rec.VerseID)
	if _, exists := s.verseByPair[key]; exists {
		return verse.Memorized{}, fmt.Errorf("verse %s for user %d: %w", rec.VerseID, rec.UserID, storage.ErrDuplicate)
	}

	current, ok := s.users[rec.UserID]
	if !ok {
		return verse.Memorized{}, fmt.Errorf("user %d: %w", rec.UserID, storage.ErrNotFound)
	}

	out, err := mutate(current)
	if err != nil {
		return verse.Memorized{}, err
	}

	rec.ID = s.nextIDLocked()
	if rec.MemorizedAt.IsZero() {
		rec.MemorizedAt = time.Now().UTC()
	}

	out.User.ID = current.ID
	out.User.CreatedAt = current.CreatedAt
	out.User.UpdatedAt = time.Now().UTC()

	s.verses[rec.ID] = rec
	s.verseByPair[key] = rec.ID
	s.users[current.ID] = out.User
	if out.RankChange != nil {
		change := *out.RankChange
		change.ID = s.nextIDLocked()
		change.UserID = current.ID
		if change.AchievedAt.IsZero() {
			change.AchievedAt = time.Now().UTC()
		}
		s.history[current.ID] = append(s.history[current.ID], change)
	}
	return rec, nil
}

// RankHistoryStore implementation ---------------------------------------------

func (s *Store) ListRankHistory(_ context.Context, userID int64) ([]verse.RankChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[userID]
	result := make([]verse.RankChange, len(entries))
	copy(result, entries)
	// Most recent achievement first.
	sort.Slice(result, func(i, j int) bool {
		if result[i].AchievedAt.Equal(result[j].AchievedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].AchievedAt.After(result[j].AchievedAt)
	})
	return result, nil
}

// LeaderboardStore implementation ---------------------------------------------

// rankedLocked returns all users with at least one memorized verse ordered by
// count descending, ties by earliest rank update, with dense positions set.
func (s *Store) rankedLocked() []leaderboard.Entry {
	ranked := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		if u.VersesMemorized > 0 {
			ranked = append(ranked, u)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].VersesMemorized != ranked[j].VersesMemorized {
			return ranked[i].VersesMemorized > ranked[j].VersesMemorized
		}
		if !ranked[i].RankUpdatedAt.Equal(ranked[j].RankUpdatedAt) {
			return ranked[i].RankUpdatedAt.Before(ranked[j].RankUpdatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})

	entries := make([]leaderboard.Entry, len(ranked))
	position := 0
	for i, u := range ranked {
		if i == 0 || u.VersesMemorized != ranked[i-1].VersesMemorized {
			position = i + 1
		}
		entries[i] = leaderboard.Entry{
			UserID:          u.ID,
			Username:        u.Username,
			VersesMemorized: u.VersesMemorized,
			CurrentRank:     u.CurrentRank,
			Position:        position,
		}
	}
	return entries
}

func (s *Store) TopUsers(_ context.Context, limit, offset int) ([]leaderboard.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.rankedLocked()
	if offset >= len(entries) {
		return []leaderboard.Entry{}, nil
	}
	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) UserStanding(_ context.Context, userID int64) (leaderboard.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.rankedLocked() {
		if e.UserID == userID {
			return e, nil
		}
	}
	return leaderboard.Entry{}, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
}

func (s *Store) CountRankedUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, u := range s.users {
		if u.VersesMemorized > 0 {
			count++
		}
	}
	return count, nil
}
