package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/snapgram/internal/domain"
)

const postSelect = `SELECT p.id, p.creator_id, p.caption, p.image_url, p.image_id, p.location, p.tags,
	p.created_at, p.updated_at, u.id, u.name, u.username, u.image_url
	FROM posts p JOIN users u ON u.id = p.creator_id`

// postRepo implements domain.PostRepository using SQLite.
type postRepo struct {
	db *sql.DB
}

func (r *postRepo) Create(ctx context.Context, post *domain.Post) error {
	tags, err := encodeTags(post.Tags)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if post.ID == "" {
		post.ID = domain.NewID()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO posts (id, creator_id, caption, image_url, image_id, location, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.CreatorID, post.Caption, post.ImageURL, post.ImageID,
		post.Location, tags, now, now,
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
	tags, err := encodeTags(post.Tags)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET caption = ?, image_url = ?, image_id = ?, location = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		post.Caption, post.ImageURL, post.ImageID, post.Location, tags, now, post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	post.UpdatedAt = now
	return nil
}

func (r *postRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) ListRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	return r.list(ctx, postSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT ?`, limit)
}

func (r *postRepo) ListByUpdated(ctx context.Context, limit int, after string) ([]domain.Post, error) {
	if after == "" {
		return r.list(ctx, postSelect+` ORDER BY p.updated_at DESC, p.id DESC LIMIT ?`, limit)
	}

	var cursorUpdated time.Time
	err := r.db.QueryRowContext(ctx, "SELECT updated_at FROM posts WHERE id = ?", after).Scan(&cursorUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: cursor post %s", domain.ErrNotFound, after)
		}
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	return r.list(ctx, postSelect+`
		WHERE p.updated_at < ? OR (p.updated_at = ? AND p.id < ?)
		ORDER BY p.updated_at DESC, p.id DESC LIMIT ?`,
		cursorUpdated, cursorUpdated, after, limit)
}

func (r *postRepo) Search(ctx context.Context, term string) ([]domain.Post, error) {
	return r.list(ctx, postSelect+` WHERE p.caption LIKE ? ESCAPE '\'
		ORDER BY p.created_at DESC, p.id DESC`, "%"+escapeLike(term)+"%")
}

func (r *postRepo) ListByCreator(ctx context.Context, creatorID string) ([]domain.Post, error) {
	return r.list(ctx, postSelect+` WHERE p.creator_id = ?
		ORDER BY p.created_at DESC, p.id DESC`, creatorID)
}

func (r *postRepo) ListLikedBy(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.list(ctx, postSelect+` JOIN post_likes l ON l.post_id = p.id
		WHERE l.user_id = ? ORDER BY l.created_at DESC, p.id DESC`, userID)
}

func (r *postRepo) ListSavedBy(ctx context.Context, userID string) ([]domain.Post, error) {
	return r.list(ctx, postSelect+` JOIN saves s ON s.post_id = p.id
		WHERE s.user_id = ? ORDER BY s.created_at DESC, p.id DESC`, userID)
}

func (r *postRepo) SetLikes(ctx context.Context, postID string, userIDs []string) (*domain.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := touchPost(ctx, tx, postID, now); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM post_likes WHERE post_id = ?", postID); err != nil {
		return nil, fmt.Errorf("clear likes: %w", err)
	}

	// Successive timestamps keep the caller's order when likes are read back.
	for i, userID := range userIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (post_id, user_id) DO NOTHING`,
			postID, userID, now.Add(time.Duration(i)*time.Microsecond),
		)
		if isForeignKeyError(err) {
			return nil, fmt.Errorf("%w: unknown user %s", domain.ErrInvalidInput, userID)
		}
		if err != nil {
			return nil, fmt.Errorf("insert like %d: %w", i, err)
		}
	}

	post, err := getPost(ctx, tx, postID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return post, nil
}

func (r *postRepo) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := touchPost(ctx, tx, postID, now); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM post_likes WHERE post_id = ? AND user_id = ?", postID, userID)
	if err != nil {
		return nil, fmt.Errorf("remove like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if removed == 0 {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)",
			postID, userID, now)
		if err != nil {
			return nil, fmt.Errorf("add like: %w", err)
		}
	}

	post, err := getPost(ctx, tx, postID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return post, nil
}

func (r *postRepo) list(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
	rows.Close()

	if err := attachLikes(ctx, r.db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPost(ctx context.Context, q querier, id string) (*domain.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	posts := []domain.Post{*p}
	if err := attachLikes(ctx, q, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func touchPost(ctx context.Context, q querier, id string, now time.Time) error {
	result, err := q.ExecContext(ctx, "UPDATE posts SET updated_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("touch post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// attachLikes loads the like sets of posts with one query, oldest like first.
func attachLikes(ctx context.Context, q querier, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	index := make(map[string]int, len(posts))
	args := make([]any, len(posts))
	for i := range posts {
		posts[i].Likes = []string{}
		index[posts[i].ID] = i
		args[i] = posts[i].ID
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(posts)), ",")
	rows, err := q.QueryContext(ctx,
		`SELECT post_id, user_id FROM post_likes WHERE post_id IN (`+placeholders+`)
		 ORDER BY created_at, user_id`, args...)
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

func scanPost(s scanner) (*domain.Post, error) {
	p := &domain.Post{Creator: &domain.Creator{}}
	var tags string
	err := s.Scan(&p.ID, &p.CreatorID, &p.Caption, &p.ImageURL, &p.ImageID, &p.Location, &tags,
		&p.CreatedAt, &p.UpdatedAt, &p.Creator.ID, &p.Creator.Name, &p.Creator.Username, &p.Creator.ImageURL)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
