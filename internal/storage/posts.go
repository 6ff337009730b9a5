package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateURL is returned when a post for the same source url already exists.
	ErrDuplicateURL = errors.New("post with this url already exists")
	// ErrDuplicateID is returned when the post id is already taken.
	ErrDuplicateID = errors.New("post with this id already exists")
	// ErrPostNotFound is returned for unknown post ids.
	ErrPostNotFound = errors.New("post not found")
	// ErrStatusFinal is returned when a post already left the pending state.
	ErrStatusFinal = errors.New("post status is final")
)

// PostStore persists moderation candidates.
type PostStore struct {
	db *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// Create inserts p as a new record. Status defaults to pending.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	if p.ID == "" || p.URL == "" {
		return fmt.Errorf("post id and url are required")
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	exists, err := s.urlExists(ctx, p.URL)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateURL, p.URL)
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert post %s: %w", p.ID, err)
		}
		// Lost a race with another insert; work out which key collided.
		if exists, _ := s.urlExists(ctx, p.URL); exists {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, p.URL)
		}
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}

	return nil
}

func (s *PostStore) urlExists(ctx context.Context, url string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("url = ?", url).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check post url: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus moves a pending post to status. The update is a single
// compare-and-set, so of two concurrent decisions exactly one succeeds and the
// other gets ErrStatusFinal.
func (s *PostStore) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if !models.StatusPending.CanTransitionTo(status) {
		return fmt.Errorf("invalid target status %q", status)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND status = ?", id, string(models.StatusPending)).
		Updates(map[string]any{
			"status":     string(status),
			"decided_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update post %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: post %s is %s", ErrStatusFinal, id, p.Status)
}

// Get returns the post with the given id.
func (s *PostStore) Get(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return &p, nil
}

// ListFilter selects a page of posts.
type ListFilter struct {
	Status   models.Status
	Page     int
	PageSize int
}

// List returns posts newest first together with the total matching count.
func (s *PostStore) List(ctx context.Context, f ListFilter) ([]models.Post, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}

	q := s.db.WithContext(ctx).Model(&models.Post{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	var posts []models.Post
	err := q.Order("created_at DESC").
		Order("id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	return posts, total, nil
}

// CountByStatus returns the number of posts in each status.
func (s *PostStore) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count posts by status: %w", err)
	}

	counts := map[models.Status]int64{
		models.StatusPending:   0,
		models.StatusPublished: 0,
		models.StatusRejected:  0,
	}
	for _, r := range rows {
		counts[models.Status(r.Status)] = r.N
	}
	return counts, nil
}
