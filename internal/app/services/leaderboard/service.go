// Package leaderboard answers ranking queries: who has memorized the most
// verses, with dense positions and stable tie ordering.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lampstack/versekeeper/internal/app/domain/leaderboard"
	"github.com/lampstack/versekeeper/internal/app/metrics"
	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/pkg/logger"
)

// ErrInvalidPage is returned when limit or offset fall outside the allowed
// window.
var ErrInvalidPage = errors.New("invalid pagination parameters")

// MaxLimit caps a single page. DefaultLimit applies when the caller passes
// zero.
const (
	MaxLimit     = 500
	DefaultLimit = 10
)

// Service serves leaderboard pages, optionally through a redis cache.
type Service struct {
	store storage.LeaderboardStore
	cache *Cache
	log   *logger.Logger
}

// New constructs a leaderboard service. cache may be nil.
func New(store storage.LeaderboardStore, cache *Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("leaderboard")
	}
	return &Service{
		store: store,
		cache: cache,
		log:   log,
	}
}

// cachedPage is the user-independent slice of a page; the requesting user's
// own standing is always fetched live.
type cachedPage struct {
	Entries    []leaderboard.Entry `json:"entries"`
	TotalUsers int                 `json:"total_users"`
}

// Query returns one leaderboard page. limit of zero means DefaultLimit;
// anything negative, above MaxLimit, or a negative offset is rejected. When
// currentUserID is positive the user's own standing rides along, nil if they
// have not memorized anything yet.
func (s *Service) Query(ctx context.Context, limit, offset int, currentUserID int64) (leaderboard.Page, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return leaderboard.Page{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPage, MaxLimit)
	}
	if offset < 0 {
		return leaderboard.Page{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidPage)
	}

	start := time.Now()
	key := fmt.Sprintf("leaderboard:%d:%d", limit, offset)
	var cached cachedPage
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).Warn("leaderboard cache read failed")
	}
	if !hit {
		entries, err := s.store.TopUsers(ctx, limit, offset)
		if err != nil {
			return leaderboard.Page{}, err
		}
		total, err := s.store.CountRankedUsers(ctx)
		if err != nil {
			return leaderboard.Page{}, err
		}
		cached = cachedPage{Entries: entries, TotalUsers: total}
		if err := s.cache.Set(ctx, key, cached); err != nil {
			s.log.WithError(err).Warn("leaderboard cache write failed")
		}
	}
	metrics.RecordLeaderboardQuery(time.Since(start), hit)

	page := leaderboard.Page{Entries: cached.Entries, TotalUsers: cached.TotalUsers}
	if page.Entries == nil {
		page.Entries = []leaderboard.Entry{}
	}

	if currentUserID > 0 {
		standing, err := s.store.UserStanding(ctx, currentUserID)
		switch {
		case err == nil:
			page.CurrentUser = &standing
		case errors.Is(err, storage.ErrNotFound):
			// Users with nothing memorized simply have no standing.
		default:
			return leaderboard.Page{}, err
		}
	}
	return page, nil
}
