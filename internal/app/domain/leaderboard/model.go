package leaderboard

// Entry is one ranked row. Position is the 1-based dense rank: one plus the
// number of users with a strictly greater verse count, so ties share a rank.
type Entry struct {
	UserID          int64  `db:"id" json:"user_id"`
	Username        string `db:"username" json:"username"`
	VersesMemorized int    `db:"verses_memorized" json:"verses_memorized"`
	CurrentRank     string `db:"current_rank" json:"current_rank"`
	Position        int    `db:"position" json:"position"`
}

// Page is a leaderboard response: the requested slice, the requesting
// user's own entry (nil when they have no memorized verses), and the total
// number of ranked users.
type Page struct {
	Entries     []Entry `json:"leaderboard"`
	CurrentUser *Entry  `json:"current_user,omitempty"`
	TotalUsers  int     `json:"total_users"`
}
