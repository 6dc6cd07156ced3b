package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"captionapi/internal/model"
	"captionapi/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "language", "caption", "translation",
	"image_key", "image_path", "en_audio_key", "en_audio_path",
	"trans_audio_key", "trans_audio_path", "created_at",
}

func sampleCaption(now time.Time) *model.Caption {
	return &model.Caption{
		ID:             "8c2f6f0e-2b7c-4c55-9d5b-1f0d0c8f3e11",
		Language:       "hi",
		Caption:        "a dog on a couch",
		Translation:    "सोफे पर एक कुत्ता",
		ImageKey:       "captions/8c2f/image.png",
		ImagePath:      "static/uploads/captions/8c2f/image.png",
		EnAudioKey:     "captions/8c2f/caption_en.mp3",
		EnAudioPath:    "static/uploads/captions/8c2f/caption_en.mp3",
		TransAudioKey:  "captions/8c2f/translation_hi.mp3",
		TransAudioPath: "static/uploads/captions/8c2f/translation_hi.mp3",
		CreatedAt:      now,
	}
}

func rowOf(c *model.Caption) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(
		c.ID, c.Language, c.Caption, c.Translation,
		c.ImageKey, c.ImagePath, c.EnAudioKey, c.EnAudioPath,
		c.TransAudioKey, c.TransAudioPath, c.CreatedAt,
	)
}

func TestCaptionPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCaptionPostgres(db)
	c := sampleCaption(time.Now().UTC())

	mock.ExpectQuery("INSERT INTO captions").
		WithArgs(c.ID, c.Language, c.Caption, c.Translation,
			c.ImageKey, c.ImagePath, c.EnAudioKey, c.EnAudioPath,
			c.TransAudioKey, c.TransAudioPath, c.CreatedAt).
		WillReturnRows(rowOf(c))

	got, err := repo.Create(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaptionPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCaptionPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		c := sampleCaption(time.Now().UTC())
		mock.ExpectQuery("SELECT (.+) FROM captions WHERE id = ?").
			WithArgs(c.ID).
			WillReturnRows(rowOf(c))

		got, err := repo.FindByID(ctx, c.ID)

		require.NoError(t, err)
		assert.Equal(t, c.Translation, got.Translation)
		assert.Equal(t, c.TransAudioKey, got.TransAudioKey)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM captions WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaptionPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCaptionPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM captions").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT (.+) FROM captions ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(rowOf(sampleCaption(time.Now().UTC())))

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("count error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM captions").
			WillReturnError(errors.New("db down"))

		res, err := repo.List(ctx, repository.PageQuery{Limit: 10})

		assert.EqualError(t, err, "db down")
		assert.Nil(t, res)
	})

	t.Run("empty page", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM captions").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT (.+) FROM captions ORDER BY").
			WithArgs(5, 20).
			WillReturnRows(sqlmock.NewRows(columns))

		res, err := repo.List(ctx, repository.PageQuery{Limit: 5, Offset: 20})

		require.NoError(t, err)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaptionPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCaptionPostgres(db)

	mock.ExpectExec("DELETE FROM captions WHERE id = ?").
		WithArgs("test-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "test-id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
