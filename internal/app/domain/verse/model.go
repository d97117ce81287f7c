package verse

import "time"

// Memorized associates a user with a verse they have memorized. At most one
// live record exists per (UserID, VerseID); repeat memorizations refresh
// MemorizedAt instead of creating a duplicate.
type Memorized struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	VerseID     string    `db:"verse_id" json:"verse_id"`
	Reference   string    `db:"verse_reference" json:"verse_reference"`
	Text        string    `db:"verse_text" json:"verse_text"`
	ContextText string    `db:"context_text" json:"context_text,omitempty"`
	MemorizedAt time.Time `db:"memorized_at" json:"memorized_at"`
}

// RankChange is an append-only audit record written exactly once per
// level-up. Entries are never mutated or deleted.
type RankChange struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	PreviousRank string    `db:"previous_rank" json:"previous_rank"`
	NewRank      string    `db:"new_rank" json:"new_rank"`
	VersesCount  int       `db:"verses_count" json:"verses_count"`
	AchievedAt   time.Time `db:"achieved_at" json:"achieved_at"`
}
