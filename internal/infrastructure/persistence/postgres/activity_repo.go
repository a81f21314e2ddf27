package postgres

import (
	"context"
	"fmt"
)

// ActivityRepository counts posts and comments per author. The tables are
// written by the content services; the engine only reads them.
type ActivityRepository struct {
	db Querier
}

// NewActivityRepository creates an ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{db: conn.Pool()}
}

// CountPosts returns the number of posts authored by userID.
func (r *ActivityRepository) CountPosts(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM posts WHERE author_id = $1`, userID)
}

// CountComments returns the number of comments authored by userID.
func (r *ActivityRepository) CountComments(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM comments WHERE author_id = $1`, userID)
}

func (r *ActivityRepository) count(ctx context.Context, query, userID string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activity for %s: %w", userID, err)
	}
	return n, nil
}
