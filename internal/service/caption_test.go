package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"captionapi/internal/events"
	eventMocks "captionapi/internal/events/mocks"
	infMocks "captionapi/internal/inference/mocks"
	"captionapi/internal/model"
	"captionapi/internal/repository"
	repoMocks "captionapi/internal/repository/mocks"
	"captionapi/internal/storage"
	storeMocks "captionapi/internal/storage/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type pipelineMocks struct {
	store      *storeMocks.MockStorage
	repo       *repoMocks.MockCaptionRepository
	captioner  *infMocks.MockCaptioner
	translator *infMocks.MockTranslator
	speech     *infMocks.MockSynthesizer
	events     *eventMocks.MockPublisher
}

func newPipelineMocks() *pipelineMocks {
	return &pipelineMocks{
		store:      new(storeMocks.MockStorage),
		repo:       new(repoMocks.MockCaptionRepository),
		captioner:  new(infMocks.MockCaptioner),
		translator: new(infMocks.MockTranslator),
		speech:     new(infMocks.MockSynthesizer),
		events:     new(eventMocks.MockPublisher),
	}
}

func (m *pipelineMocks) service(metrics *Metrics) *captionService {
	svc := NewCaptionService(Deps{
		Store:         m.store,
		Repo:          m.repo,
		Captioner:     m.captioner,
		Translator:    m.translator,
		Synthesizer:   m.speech,
		Events:        m.events,
		Metrics:       metrics,
		MaxImageBytes: 1 << 20,
	}).(*captionService)
	svc.newID = func() string { return "id-1" }
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func (m *pipelineMocks) assertExpectations(t *testing.T) {
	m.store.AssertExpectations(t)
	m.repo.AssertExpectations(t)
	m.captioner.AssertExpectations(t)
	m.translator.AssertExpectations(t)
	m.speech.AssertExpectations(t)
	m.events.AssertExpectations(t)
}

func putEcho(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	return storage.ObjectInfo{Key: key, Location: "/data/" + key, Size: opt.Size, ContentType: opt.ContentType}
}

func TestCaptionService_Process(t *testing.T) {
	img := pngFixture(t)
	hindi, _ := model.LookupLanguage("hi")

	m := newPipelineMocks()
	m.store.On("Put", mock.Anything, "captions/id-1/image.png", mock.Anything, storage.PutObjectOptions{
		Size:        int64(len(img)),
		ContentType: "image/png",
		Metadata:    map[string]string{"original-filename": "My_Photo.png"},
	}).Return(putEcho, nil)
	m.captioner.On("Caption", mock.Anything, img, "image/png").Return("a red pixel", nil)
	m.translator.On("Translate", mock.Anything, "a red pixel", hindi).Return("एक लाल पिक्सेल", nil)
	m.speech.On("Synthesize", mock.Anything, "a red pixel", "en").Return([]byte("en-mp3"), nil)
	m.speech.On("Synthesize", mock.Anything, "एक लाल पिक्सेल", "hi").Return([]byte("hi-mp3"), nil)
	m.store.On("Put", mock.Anything, "captions/id-1/caption_en.mp3", mock.Anything, mock.MatchedBy(func(o storage.PutObjectOptions) bool {
		return o.ContentType == "audio/mpeg" && o.Size == 6
	})).Return(putEcho, nil)
	m.store.On("Put", mock.Anything, "captions/id-1/translation_hi.mp3", mock.Anything, mock.Anything).Return(putEcho, nil)
	m.repo.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Caption) bool {
		return c.ID == "id-1" &&
			c.Language == "hi" &&
			c.Caption == "a red pixel" &&
			c.Translation == "एक लाल पिक्सेल" &&
			c.ImageKey == "captions/id-1/image.png" &&
			c.EnAudioPath == "/data/captions/id-1/caption_en.mp3" &&
			c.TransAudioKey == "captions/id-1/translation_hi.mp3"
	})).Return(&model.Caption{ID: "id-1", Language: "hi", Caption: "a red pixel"}, nil)
	m.events.On("PublishCaptionCompleted", mock.Anything, mock.MatchedBy(func(e events.CaptionCompleted) bool {
		return e.ID == "id-1"
	})).Return(nil)

	reg := prometheus.NewRegistry()
	svc := m.service(NewMetrics(reg))

	got, err := svc.Process(context.Background(), ProcessInput{
		Image:    bytes.NewReader(img),
		Filename: "../My Photo.png",
		Language: " HI ",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.processed.WithLabelValues("success")))
	m.assertExpectations(t)
}

func TestCaptionService_Process_Validation(t *testing.T) {
	img := pngFixture(t)

	tests := []struct {
		name    string
		in      ProcessInput
		wantErr error
	}{
		{
			name:    "nil reader",
			in:      ProcessInput{Language: "hi"},
			wantErr: ErrReaderNil,
		},
		{
			name:    "missing language",
			in:      ProcessInput{Image: bytes.NewReader(img), Language: "  "},
			wantErr: ErrLanguageRequired,
		},
		{
			name:    "unsupported language",
			in:      ProcessInput{Image: bytes.NewReader(img), Language: "fr"},
			wantErr: ErrUnsupportedLanguage,
		},
		{
			name:    "not an image",
			in:      ProcessInput{Image: strings.NewReader("plain text, not pixels"), Language: "hi"},
			wantErr: ErrInvalidImage,
		},
		{
			name:    "empty image",
			in:      ProcessInput{Image: strings.NewReader(""), Language: "hi"},
			wantErr: ErrInvalidImage,
		},
		{
			name:    "too large",
			in:      ProcessInput{Image: bytes.NewReader(make([]byte, 1<<20+1)), Language: "hi"},
			wantErr: ErrImageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPipelineMocks()
			svc := m.service(nil)

			got, err := svc.Process(context.Background(), tt.in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
			m.assertExpectations(t)
		})
	}
}

func TestCaptionService_Process_Failures(t *testing.T) {
	img := pngFixture(t)

	tests := []struct {
		name        string
		setupMocks  func(m *pipelineMocks)
		wantErrMsg  string
		wantDeletes int
	}{
		{
			name: "image upload fails",
			setupMocks: func(m *pipelineMocks) {
				m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("bucket down"))
			},
			wantErrMsg: "upload to storage: bucket down",
		},
		{
			name: "caption model fails",
			setupMocks: func(m *pipelineMocks) {
				m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(putEcho, nil)
				m.captioner.On("Caption", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("model loading"))
				m.store.On("Delete", mock.Anything, "captions/id-1/image.png").Return(nil)
			},
			wantErrMsg:  "generate caption: model loading",
			wantDeletes: 1,
		},
		{
			name: "translation fails",
			setupMocks: func(m *pipelineMocks) {
				m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(putEcho, nil)
				m.captioner.On("Caption", mock.Anything, mock.Anything, mock.Anything).Return("a dog", nil)
				m.speech.On("Synthesize", mock.Anything, "a dog", "en").Return([]byte("en"), nil)
				m.translator.On("Translate", mock.Anything, "a dog", mock.Anything).Return("", errors.New("oom"))
				m.store.On("Delete", mock.Anything, mock.Anything).Return(nil)
			},
			wantErrMsg:  "translate caption: oom",
			wantDeletes: 2,
		},
		{
			name: "speech fails",
			setupMocks: func(m *pipelineMocks) {
				m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(putEcho, nil)
				m.captioner.On("Caption", mock.Anything, mock.Anything, mock.Anything).Return("a dog", nil)
				m.translator.On("Translate", mock.Anything, "a dog", mock.Anything).Return("कुत्ता", nil)
				m.speech.On("Synthesize", mock.Anything, "a dog", "en").Return([]byte("en"), nil)
				m.speech.On("Synthesize", mock.Anything, "कुत्ता", "hi").Return(nil, errors.New("429"))
				m.store.On("Delete", mock.Anything, mock.Anything).Return(nil)
			},
			wantErrMsg:  "synthesize hi audio: 429",
			wantDeletes: 2,
		},
		{
			name: "repository fails and rollback fails",
			setupMocks: func(m *pipelineMocks) {
				m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(putEcho, nil)
				m.captioner.On("Caption", mock.Anything, mock.Anything, mock.Anything).Return("a dog", nil)
				m.translator.On("Translate", mock.Anything, "a dog", mock.Anything).Return("कुत्ता", nil)
				m.speech.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return([]byte("mp3"), nil)
				m.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				m.store.On("Delete", mock.Anything, mock.Anything).Return(errors.New("delete fail"))
			},
			wantErrMsg:  "db save failed: db fail",
			wantDeletes: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPipelineMocks()
			tt.setupMocks(m)
			reg := prometheus.NewRegistry()
			svc := m.service(NewMetrics(reg))

			got, err := svc.Process(context.Background(), ProcessInput{Image: bytes.NewReader(img), Language: "hi"})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErrMsg)
			assert.Nil(t, got)
			m.store.AssertNumberOfCalls(t, "Delete", tt.wantDeletes)
			assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.processed.WithLabelValues("error")))
			m.assertExpectations(t)
		})
	}
}

func TestCaptionService_Process_PublishFailureIgnored(t *testing.T) {
	img := pngFixture(t)

	m := newPipelineMocks()
	m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(putEcho, nil)
	m.captioner.On("Caption", mock.Anything, mock.Anything, mock.Anything).Return("a dog", nil)
	m.translator.On("Translate", mock.Anything, "a dog", mock.Anything).Return("কুকুর", nil)
	m.speech.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return([]byte("mp3"), nil)
	m.repo.On("Create", mock.Anything, mock.Anything).Return(&model.Caption{ID: "id-1"}, nil)
	m.events.On("PublishCaptionCompleted", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	got, err := m.service(nil).Process(context.Background(), ProcessInput{Image: bytes.NewReader(img), Language: "bn"})

	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	m.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestCaptionService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockCaptionRepository)
		wantErr    error
		checkRes   func(t *testing.T, res *CaptionListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Caption]{
						Items: []model.Caption{{ID: "1"}, {ID: "2"}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *CaptionListResult) {
				assert.Equal(t, 2, len(res.Items))
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Caption]{Items: []model.Caption{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockCaptionRepository)
			svc := NewCaptionService(Deps{Repo: mRepo})

			tt.setupMocks(mRepo)

			res, err := svc.List(ctx, tt.limit, tt.offset)

			if tt.wantErr != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestCaptionService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mRepo *repoMocks.MockCaptionRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Caption{ID: "valid-id"}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mRepo *repoMocks.MockCaptionRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			id:   "missing-id",
			setupMocks: func(mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockCaptionRepository)
			svc := NewCaptionService(Deps{Repo: mRepo})

			tt.setupMocks(mRepo)

			c, err := svc.Get(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.id, c.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestCaptionService_Delete(t *testing.T) {
	ctx := context.Background()
	stored := &model.Caption{
		ID:            "valid-id",
		ImageKey:      "captions/valid-id/image.jpg",
		EnAudioKey:    "captions/valid-id/caption_en.mp3",
		TransAudioKey: "captions/valid-id/translation_ta.mp3",
	}

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockCaptionRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(stored, nil)
				for _, key := range stored.Keys() {
					mStore.On("Delete", ctx, key).Return(nil)
				}
				mRepo.On("Delete", ctx, "valid-id").Return(nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockCaptionRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "storage delete error keeps the row",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(stored, nil)
				mStore.On("Delete", ctx, stored.ImageKey).Return(errors.New("storage fail"))
			},
			wantErr: errors.New("delete storage: storage fail"),
		},
		{
			name: "repository delete error",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockCaptionRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(stored, nil)
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
				mRepo.On("Delete", ctx, "valid-id").Return(errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockCaptionRepository)
			svc := NewCaptionService(Deps{Store: mStore, Repo: mRepo})

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestCaptionService_Artifacts(t *testing.T) {
	ctx := context.Background()
	stored := &model.Caption{ID: "c1", ImageKey: "captions/c1/image.png", EnAudioKey: "captions/c1/caption_en.mp3"}

	t.Run("open", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockCaptionRepository)
		mRepo.On("FindByID", ctx, "c1").Return(stored, nil)
		mStore.On("Get", ctx, "captions/c1/caption_en.mp3").
			Return(io.NopCloser(strings.NewReader("mp3")), storage.ObjectInfo{ContentType: "audio/mpeg", Size: 3}, nil)

		svc := NewCaptionService(Deps{Store: mStore, Repo: mRepo})
		rc, info, err := svc.OpenArtifact(ctx, "c1", model.ArtifactCaptionAudio)
		require.NoError(t, err)
		defer rc.Close()
		body, _ := io.ReadAll(rc)
		assert.Equal(t, "mp3", string(body))
		assert.Equal(t, "audio/mpeg", info.ContentType)
	})

	t.Run("missing object maps to not found", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockCaptionRepository)
		mRepo.On("FindByID", ctx, "c1").Return(stored, nil)
		mStore.On("Get", ctx, "captions/c1/image.png").Return(nil, storage.ObjectInfo{}, storage.ErrNotFound)

		svc := NewCaptionService(Deps{Store: mStore, Repo: mRepo})
		_, _, err := svc.OpenArtifact(ctx, "c1", model.ArtifactImage)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("artifact without key", func(t *testing.T) {
		mRepo := new(repoMocks.MockCaptionRepository)
		mRepo.On("FindByID", ctx, "c1").Return(stored, nil)

		svc := NewCaptionService(Deps{Repo: mRepo})
		_, _, err := svc.OpenArtifact(ctx, "c1", model.ArtifactTranslationAudio)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown kind", func(t *testing.T) {
		svc := NewCaptionService(Deps{})
		_, _, err := svc.OpenArtifact(ctx, "c1", "thumbnail")
		assert.ErrorIs(t, err, ErrInvalidArtifact)
		_, err = svc.PresignArtifact(ctx, "c1", "thumbnail", time.Minute)
		assert.ErrorIs(t, err, ErrInvalidArtifact)
	})

	t.Run("presign", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockCaptionRepository)
		mRepo.On("FindByID", ctx, "c1").Return(stored, nil)
		mStore.On("PresignGet", ctx, "captions/c1/image.png", 15*time.Minute).Return("https://minio/signed", nil)

		svc := NewCaptionService(Deps{Store: mStore, Repo: mRepo})
		url, err := svc.PresignArtifact(ctx, "c1", model.ArtifactImage, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "https://minio/signed", url)
	})
}

func TestCaptionService_Languages(t *testing.T) {
	langs := NewCaptionService(Deps{}).Languages()
	codes := make([]string, 0, len(langs))
	for _, l := range langs {
		codes = append(codes, l.Code)
	}
	assert.Equal(t, []string{"bn", "hi", "mr", "ta", "te"}, codes)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":            "photo.jpg",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\cat.png`:  "cat.png",
		"My Holiday Photo.JPG": "My_Holiday_Photo.JPG",
		"तस्वीर.png":           "png",
		"":                     "upload",
		"...":                  "upload",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
