package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lampstack/versekeeper/internal/app/domain/leaderboard"
	"github.com/lampstack/versekeeper/internal/app/domain/user"
	"github.com/lampstack/versekeeper/internal/app/domain/verse"
	"github.com/lampstack/versekeeper/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.VerseStore = (*Store)(nil)
var _ storage.RankHistoryStore = (*Store)(nil)
var _ storage.LeaderboardStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the postgres error code for duplicate keys.
const uniqueViolation = "23505"

// translate maps driver errors onto the storage sentinels so callers can use
// errors.Is instead of matching driver types.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

const userColumns = `id, username, email, password_hash, is_premium,
	verses_memorized, current_rank, rank_updated_at, created_at, updated_at`

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.RankUpdatedAt.IsZero() {
		u.RankUpdatedAt = now
	}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_premium,
			verses_memorized, current_rank, rank_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, u.Username, u.Email, u.PasswordHash, u.IsPremium,
		u.VersesMemorized, u.CurrentRank, u.RankUpdatedAt, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) SetUserPremium(ctx context.Context, id int64, premium bool) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		UPDATE users
		SET is_premium = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id, premium)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	users := make([]user.User, 0)
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (s *Store) UpdateUserRank(ctx context.Context, id int64, level string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET current_rank = $2, rank_updated_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, level, at.UTC())
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const verseColumns = `id, user_id, verse_id, verse_reference, verse_text,
	context_text, memorized_at`

// --- VerseStore -------------------------------------------------------------

func (s *Store) GetMemorizedVerse(ctx context.Context, userID int64, verseID string) (verse.Memorized, error) {
	var rec verse.Memorized
	err := s.db.GetContext(ctx, &rec, `
		SELECT `+verseColumns+`
		FROM memorized_verses
		WHERE user_id = $1 AND verse_id = $2
	`, userID, verseID)
	if err != nil {
		return verse.Memorized{}, translate(err)
	}
	return rec, nil
}

func (s *Store) TouchMemorizedVerse(ctx context.Context, id int64, at time.Time) (verse.Memorized, error) {
	var rec verse.Memorized
	err := s.db.GetContext(ctx, &rec, `
		UPDATE memorized_verses
		SET memorized_at = $2
		WHERE id = $1
		RETURNING `+verseColumns+`
	`, id, at.UTC())
	if err != nil {
		return verse.Memorized{}, translate(err)
	}
	return rec, nil
}

func (s *Store) ListMemorizedVerses(ctx context.Context, userID int64) ([]verse.Memorized, error) {
	verses := make([]verse.Memorized, 0)
	err := s.db.SelectContext(ctx, &verses, `
		SELECT `+verseColumns+`
		FROM memorized_verses
		WHERE user_id = $1
		ORDER BY memorized_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return verses, nil
}

// RecordMemorization runs the whole memorization sequence in one transaction.
// The user row is locked with FOR UPDATE before mutate sees it, so concurrent
// recordings for the same user serialize and never lose counter increments.
func (s *Store) RecordMemorization(ctx context.Context, rec verse.Memorized, mutate storage.MutationFunc) (verse.Memorized, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return verse.Memorized{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var current user.User
	err = tx.GetContext(ctx, &current, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, rec.UserID)
	if err != nil {
		return verse.Memorized{}, translate(err)
	}

	out, err := mutate(current)
	if err != nil {
		return verse.Memorized{}, err
	}

	if rec.MemorizedAt.IsZero() {
		rec.MemorizedAt = time.Now().UTC()
	}
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO memorized_verses (user_id, verse_id, verse_reference,
			verse_text, context_text, memorized_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rec.UserID, rec.VerseID, rec.Reference, rec.Text, rec.ContextText, rec.MemorizedAt,
	).Scan(&rec.ID)
	if err != nil {
		return verse.Memorized{}, translate(err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET verses_memorized = $2, current_rank = $3, rank_updated_at = $4,
			updated_at = NOW()
		WHERE id = $1
	`, current.ID, out.User.VersesMemorized, out.User.CurrentRank, out.User.RankUpdatedAt.UTC())
	if err != nil {
		return verse.Memorized{}, translate(err)
	}

	if change := out.RankChange; change != nil {
		at := change.AchievedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rank_history (user_id, previous_rank, new_rank,
				verses_count, achieved_at)
			VALUES ($1, $2, $3, $4, $5)
		`, current.ID, change.PreviousRank, change.NewRank, change.VersesCount, at.UTC())
		if err != nil {
			return verse.Memorized{}, translate(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return verse.Memorized{}, fmt.Errorf("commit memorization: %w", err)
	}
	return rec, nil
}

// --- RankHistoryStore -------------------------------------------------------

func (s *Store) ListRankHistory(ctx context.Context, userID int64) ([]verse.RankChange, error) {
	entries := make([]verse.RankChange, 0)
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, previous_rank, new_rank, verses_count, achieved_at
		FROM rank_history
		WHERE user_id = $1
		ORDER BY achieved_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

// --- LeaderboardStore -------------------------------------------------------

// Position is the dense rank: one plus the number of users with a strictly
// greater count, so equal counts share a position. Ordering within a count
// goes to whoever reached it first.
const rankedQuery = `
	SELECT u.id, u.username, u.verses_memorized, u.current_rank,
		(SELECT COUNT(*) + 1 FROM users g
		 WHERE g.verses_memorized > u.verses_memorized) AS position
	FROM users u
	WHERE u.verses_memorized > 0
	ORDER BY u.verses_memorized DESC, u.rank_updated_at ASC, u.id ASC`

func (s *Store) TopUsers(ctx context.Context, limit, offset int) ([]leaderboard.Entry, error) {
	entries := make([]leaderboard.Entry, 0, limit)
	err := s.db.SelectContext(ctx, &entries, rankedQuery+`
	LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

func (s *Store) UserStanding(ctx context.Context, userID int64) (leaderboard.Entry, error) {
	var entry leaderboard.Entry
	err := s.db.GetContext(ctx, &entry, `
		SELECT u.id, u.username, u.verses_memorized, u.current_rank,
			(SELECT COUNT(*) + 1 FROM users g
			 WHERE g.verses_memorized > u.verses_memorized) AS position
		FROM users u
		WHERE u.id = $1 AND u.verses_memorized > 0
	`, userID)
	if err != nil {
		return leaderboard.Entry{}, translate(err)
	}
	return entry, nil
}

func (s *Store) CountRankedUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM users WHERE verses_memorized > 0
	`)
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}
