package user

import "time"

// User is an account holder with the denormalized ranking state the
// progression recorder maintains: VersesMemorized is the monotonic counter
// and CurrentRank caches the tier level derived from it.
type User struct {
	ID              int64     `db:"id" json:"id"`
	Username        string    `db:"username" json:"username"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	IsPremium       bool      `db:"is_premium" json:"is_premium"`
	VersesMemorized int       `db:"verses_memorized" json:"verses_memorized"`
	CurrentRank     string    `db:"current_rank" json:"current_rank"`
	RankUpdatedAt   time.Time `db:"rank_updated_at" json:"rank_updated_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
