package postgres

import (
	"context"
	"database/sql"

	"captionapi/internal/model"
	"captionapi/internal/repository"
)

// CaptionPostgres is a PostgreSQL implementation of repository.CaptionRepository.
type CaptionPostgres struct {
	db *sql.DB
}

// NewCaptionPostgres creates a new CaptionPostgres repository.
func NewCaptionPostgres(db *sql.DB) *CaptionPostgres {
	return &CaptionPostgres{db: db}
}

var _ repository.CaptionRepository = (*CaptionPostgres)(nil)

const captionColumns = `id, language, caption, translation,
	image_key, image_path, en_audio_key, en_audio_path,
	trans_audio_key, trans_audio_path, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCaption(s scanner) (*model.Caption, error) {
	var c model.Caption
	if err := s.Scan(
		&c.ID,
		&c.Language,
		&c.Caption,
		&c.Translation,
		&c.ImageKey,
		&c.ImagePath,
		&c.EnAudioKey,
		&c.EnAudioPath,
		&c.TransAudioKey,
		&c.TransAudioPath,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a caption row and returns the stored record.
func (r *CaptionPostgres) Create(ctx context.Context, c *model.Caption) (*model.Caption, error) {
	const q = `
		INSERT INTO captions (` + captionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + captionColumns
	row := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.Language,
		c.Caption,
		c.Translation,
		c.ImageKey,
		c.ImagePath,
		c.EnAudioKey,
		c.EnAudioPath,
		c.TransAudioKey,
		c.TransAudioPath,
		c.CreatedAt,
	)
	return scanCaption(row)
}

// FindByID fetches a single caption by its ID.
func (r *CaptionPostgres) FindByID(ctx context.Context, id string) (*model.Caption, error) {
	const q = `SELECT ` + captionColumns + ` FROM captions WHERE id = $1`
	return scanCaption(r.db.QueryRowContext(ctx, q, id))
}

// List returns captions using LIMIT/OFFSET pagination and a total count.
func (r *CaptionPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Caption], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captions`).Scan(&total); err != nil {
		return nil, err
	}

	const q = `SELECT ` + captionColumns + ` FROM captions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Caption, 0)
	for rows.Next() {
		c, err := scanCaption(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Caption]{Items: items, Total: total}, nil
}

// Delete removes a caption by ID. A missing row is not an error.
func (r *CaptionPostgres) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM captions WHERE id = $1`, id)
	return err
}
