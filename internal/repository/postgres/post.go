package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/snapgram/internal/domain"
)

const postSelect = `SELECT p.id, p.creator_id, p.caption, p.image_url, p.image_id, p.location, p.tags,
	p.created_at, p.updated_at, u.id, u.name, u.username, u.image_url
	FROM posts p JOIN users u ON u.id = p.creator_id`

type postRepo struct {
	db *pgxpool.Pool
}

func (r *postRepo) Create(ctx context.Context, post *domain.Post) error {
	now := timestamp()
	if post.ID == "" {
		post.ID = domain.NewID()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO posts (id, creator_id, caption, image_url, image_id, location, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.ID, post.CreatorID, post.Caption, post.ImageURL, post.ImageID,
		post.Location, nonNil(post.Tags), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []string{}
	}
	return nil
}

func (r *postRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	return getPost(ctx, r.db, id)
}

func (r *postRepo) Update(ctx context.Context, post *domain.Post) error {
	now := timestamp()
	tag, err := r.db.Exec(ctx,
		`UPDATE posts SET caption = $1, image_url = $2, image_id = $3, location = $4, tags = $5, updated_at = $6
		 WHERE id = $7`,
		post.Caption, post.ImageURL, post.ImageID, post.Location, nonNil(post.Tags), now, post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	post.UpdatedAt = now
	return nil
}

func (r *postRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) ListRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	return listPosts(ctx, r.db, postSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1`, limit)
}

func (r *postRepo) ListByUpdated(ctx context.Context, limit int, after string) ([]domain.Post, error) {
	if after == "" {
		return listPosts(ctx, r.db, postSelect+` ORDER BY p.updated_at DESC, p.id DESC LIMIT $1`, limit)
	}

	var cursor time.Time
	if err := r.db.QueryRow(ctx, "SELECT updated_at FROM posts WHERE id = $1", after).Scan(&cursor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: cursor post %s", domain.ErrNotFound, after)
		}
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	return listPosts(ctx, r.db, postSelect+` WHERE (p.updated_at, p.id) < ($1, $2)
		ORDER BY p.updated_at DESC, p.id DESC LIMIT $3`, cursor, after, limit)
}

// Search matches whole words of the caption with the simple text search
// configuration, so no stemming or stop words apply.
func (r *postRepo) Search(ctx context.Context, term string) ([]domain.Post, error) {
	return listPosts(ctx, r.db, postSelect+`
		WHERE to_tsvector('simple', p.caption) @@ plainto_tsquery('simple', $1)
		ORDER BY p.created_at DESC, p.id DESC`, term)
}

func (r *postRepo) ListByCreator(ctx context.Context, creatorID string) ([]domain.Post, error) {
	return listPosts(ctx, r.db, postSelect+` WHERE p.creator_id = $1
		ORDER BY p.created_at DESC, p.id DESC`, creatorID)
}

func (r *postRepo) ListLikedBy(ctx context.Context, userID string) ([]domain.Post, error) {
	return listPosts(ctx, r.db, postSelect+` JOIN post_likes l ON l.post_id = p.id
		WHERE l.user_id = $1 ORDER BY l.created_at DESC, p.id DESC`, userID)
}

func (r *postRepo) ListSavedBy(ctx context.Context, userID string) ([]domain.Post, error) {
	return listPosts(ctx, r.db, postSelect+` JOIN saves s ON s.post_id = p.id
		WHERE s.user_id = $1 ORDER BY s.created_at DESC, p.id DESC`, userID)
}

func (r *postRepo) SetLikes(ctx context.Context, postID string, userIDs []string) (*domain.Post, error) {
	var post *domain.Post
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		now := timestamp()
		if err := touchPost(ctx, tx, postID, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM post_likes WHERE post_id = $1", postID); err != nil {
			return fmt.Errorf("clear likes: %w", err)
		}
		for i, userID := range userIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
				 ON CONFLICT (post_id, user_id) DO NOTHING`,
				postID, userID, now.Add(time.Duration(i)*time.Microsecond))
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: unknown user %s", domain.ErrInvalidInput, userID)
			}
			if err != nil {
				return fmt.Errorf("insert like %d: %w", i, err)
			}
		}
		var err error
		post, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepo) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	var post *domain.Post
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		now := timestamp()
		// touchPost takes the row lock that serialises concurrent toggles.
		if err := touchPost(ctx, tx, postID, now); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, "DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2", postID, userID)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			_, err := tx.Exec(ctx,
				"INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)",
				postID, userID, now)
			if err != nil {
				return fmt.Errorf("add like: %w", err)
			}
		}
		post, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func getPost(ctx context.Context, q dbtx, id string) (*domain.Post, error) {
	p, err := scanPost(q.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get post")
	}
	posts := []domain.Post{*p}
	if err := attachLikes(ctx, q, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func listPosts(ctx context.Context, q dbtx, query string, args ...any) ([]domain.Post, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachLikes(ctx, q, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func touchPost(ctx context.Context, q dbtx, id string, now time.Time) error {
	tag, err := q.Exec(ctx, "UPDATE posts SET updated_at = $1 WHERE id = $2", now, id)
	if err != nil {
		return fmt.Errorf("touch post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func attachLikes(ctx context.Context, q dbtx, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	index := make(map[string]int, len(posts))
	ids := make([]string, len(posts))
	for i := range posts {
		posts[i].Likes = []string{}
		index[posts[i].ID] = i
		ids[i] = posts[i].ID
	}

	rows, err := q.Query(ctx,
		`SELECT post_id, user_id FROM post_likes WHERE post_id = ANY($1) ORDER BY created_at, user_id`, ids)
	if err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			return fmt.Errorf("scan like: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Likes = append(posts[i].Likes, userID)
		}
	}
	return rows.Err()
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	p := &domain.Post{Creator: &domain.Creator{}}
	err := row.Scan(&p.ID, &p.CreatorID, &p.Caption, &p.ImageURL, &p.ImageID, &p.Location, &p.Tags,
		&p.CreatedAt, &p.UpdatedAt, &p.Creator.ID, &p.Creator.Name, &p.Creator.Username, &p.Creator.ImageURL)
	if err != nil {
		return nil, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
