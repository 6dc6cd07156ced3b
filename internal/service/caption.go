package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"captionapi/internal/events"
	"captionapi/internal/inference"
	"captionapi/internal/model"
	"captionapi/internal/repository"
	"captionapi/internal/storage"
)

var (
	ErrIDRequired          = errors.New("id is required")
	ErrNotFound            = errors.New("caption not found")
	ErrReaderNil           = errors.New("image reader is nil")
	ErrLanguageRequired    = errors.New("language is required")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidArtifact     = errors.New("unknown artifact kind")
)

const (
	defaultMaxImageBytes = 16 << 20
	rollbackTimeout      = 10 * time.Second
	audioContentType     = "audio/mpeg"
)

// ProcessInput is one upload to caption.
type ProcessInput struct {
	Image       io.Reader
	Filename    string
	ContentType string
	Language    string
}

// CaptionListResult is the service-level DTO for paginated captions.
type CaptionListResult struct {
	Items []model.Caption `json:"data"`
	Total int             `json:"total"`
}

// CaptionService defines the use cases around captioned uploads.
type CaptionService interface {
	// Process captions the image, translates the caption, speaks both texts and
	// stores the image and audio. Artifacts already stored are removed when a
	// later step fails.
	Process(ctx context.Context, in ProcessInput) (*model.Caption, error)

	// List returns captions using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*CaptionListResult, error)

	// Get returns a single caption by its ID.
	Get(ctx context.Context, id string) (*model.Caption, error)

	// Delete removes a caption's artifacts and then its record.
	Delete(ctx context.Context, id string) error

	// OpenArtifact streams one stored artifact of a caption.
	OpenArtifact(ctx context.Context, id string, kind model.ArtifactKind) (io.ReadCloser, storage.ObjectInfo, error)

	// PresignArtifact returns a time-limited download URL for an artifact.
	PresignArtifact(ctx context.Context, id string, kind model.ArtifactKind, expiry time.Duration) (string, error)

	// Languages lists the supported translation targets.
	Languages() []model.Language
}

// Deps are the collaborators of the caption service. Events, Metrics and
// Logger are optional.
type Deps struct {
	Store         storage.Storage
	Repo          repository.CaptionRepository
	Captioner     inference.Captioner
	Translator    inference.Translator
	Synthesizer   inference.Synthesizer
	Events        events.Publisher
	Metrics       *Metrics
	Logger        *slog.Logger
	MaxImageBytes int64
}

type captionService struct {
	store         storage.Storage
	repo          repository.CaptionRepository
	captioner     inference.Captioner
	translator    inference.Translator
	speech        inference.Synthesizer
	events        events.Publisher
	metrics       *Metrics
	log           *slog.Logger
	tracer        trace.Tracer
	maxImageBytes int64
	newID         func() string
	now           func() time.Time
}

// NewCaptionService constructs a new CaptionService.
func NewCaptionService(d Deps) CaptionService {
	s := &captionService{
		store:         d.Store,
		repo:          d.Repo,
		captioner:     d.Captioner,
		translator:    d.Translator,
		speech:        d.Synthesizer,
		events:        d.Events,
		metrics:       d.Metrics,
		log:           d.Logger,
		tracer:        otel.Tracer("captionapi/internal/service"),
		maxImageBytes: d.MaxImageBytes,
		newID:         uuid.NewString,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxImageBytes <= 0 {
		s.maxImageBytes = defaultMaxImageBytes
	}
	return s
}

func (s *captionService) Process(ctx context.Context, in ProcessInput) (_ *model.Caption, err error) {
	if in.Image == nil {
		return nil, ErrReaderNil
	}
	if strings.TrimSpace(in.Language) == "" {
		return nil, ErrLanguageRequired
	}
	lang, ok := model.LookupLanguage(in.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, in.Language)
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "caption.process", trace.WithAttributes(
		attribute.String("caption.language", lang.Code),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.observeResult(err, time.Since(start))
	}()

	img, err := readImage(in.Image, s.maxImageBytes)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	span.SetAttributes(attribute.String("caption.id", id))
	c := &model.Caption{ID: id, Language: lang.Code, CreatedAt: s.now()}

	var stored []string
	defer func() {
		if err != nil {
			s.rollback(ctx, id, stored)
		}
	}()

	info, err := s.put(ctx, imageKey(id, img.ext), img.data, img.contentType, map[string]string{
		"original-filename": sanitizeFilename(in.Filename),
	})
	if err != nil {
		return nil, err
	}
	stored = append(stored, info.Key)
	c.ImageKey, c.ImagePath = info.Key, info.Location

	err = s.stage(ctx, "caption", func(ctx context.Context) error {
		text, err := s.captioner.Caption(ctx, img.data, img.contentType)
		c.Caption = text
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("generate caption: %w", err)
	}

	var enAudio, trAudio storage.ObjectInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := s.speakAndStore(gctx, c.Caption, model.English.Code, englishAudioKey(id))
		enAudio = info
		return err
	})
	g.Go(func() error {
		var translation string
		err := s.stage(gctx, "translate", func(ctx context.Context) error {
			var err error
			translation, err = s.translator.Translate(ctx, c.Caption, lang)
			return err
		})
		if err != nil {
			return fmt.Errorf("translate caption: %w", err)
		}
		c.Translation = translation
		info, err := s.speakAndStore(gctx, translation, lang.Code, translationAudioKey(id, lang.Code))
		trAudio = info
		return err
	})
	err = g.Wait()
	for _, info := range []storage.ObjectInfo{enAudio, trAudio} {
		if info.Key != "" {
			stored = append(stored, info.Key)
		}
	}
	if err != nil {
		return nil, err
	}
	c.EnAudioKey, c.EnAudioPath = enAudio.Key, enAudio.Location
	c.TransAudioKey, c.TransAudioPath = trAudio.Key, trAudio.Location

	saved, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if perr := s.events.PublishCaptionCompleted(ctx, events.NewCaptionCompleted(saved)); perr != nil {
		s.log.Warn("caption_event_publish_failed", "caption_id", saved.ID, "error", perr)
	}
	s.log.Info("caption_created",
		"caption_id", saved.ID,
		"language", saved.Language,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return saved, nil
}

// speakAndStore synthesizes text and uploads the MP3 under key.
func (s *captionService) speakAndStore(ctx context.Context, text, lang, key string) (storage.ObjectInfo, error) {
	var audio []byte
	err := s.stage(ctx, "speech_"+lang, func(ctx context.Context) error {
		var err error
		audio, err = s.speech.Synthesize(ctx, text, lang)
		return err
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("synthesize %s audio: %w", lang, err)
	}
	return s.put(ctx, key, audio, audioContentType, map[string]string{"language": lang})
}

func (s *captionService) put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) (storage.ObjectInfo, error) {
	info, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata:    meta,
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload to storage: %w", err)
	}
	if info.Key == "" {
		info.Key = key
	}
	return info, nil
}

// stage runs fn inside a child span and records its duration.
func (s *captionService) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "caption."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.observeStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// rollback removes artifacts of a failed request. It outlives a canceled request context.
func (s *captionService) rollback(ctx context.Context, id string, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Error("caption_rollback_failed", "caption_id", id, "key", key, "error", err)
		}
	}
}

// List returns paginated captions without exposing repository types.
func (s *captionService) List(ctx context.Context, limit, offset int) (*CaptionListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &CaptionListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a caption by ID.
func (s *captionService) Get(ctx context.Context, id string) (*model.Caption, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Delete removes artifacts first; the row stays if storage fails so the keys are not lost.
func (s *captionService) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, key := range c.Keys() {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *captionService) artifactKey(ctx context.Context, id string, kind model.ArtifactKind) (string, error) {
	if !kind.Valid() {
		return "", ErrInvalidArtifact
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	key := c.Key(kind)
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

func (s *captionService) OpenArtifact(ctx context.Context, id string, kind model.ArtifactKind) (io.ReadCloser, storage.ObjectInfo, error) {
	key, err := s.artifactKey(ctx, id, kind)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	rc, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return rc, info, nil
}

func (s *captionService) PresignArtifact(ctx context.Context, id string, kind model.ArtifactKind, expiry time.Duration) (string, error) {
	key, err := s.artifactKey(ctx, id, kind)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, key, expiry)
}

func (s *captionService) Languages() []model.Language {
	return model.SupportedLanguages()
}

func imageKey(id, ext string) string {
	return storage.CaptionKey(id, "image"+ext)
}

func englishAudioKey(id string) string {
	return storage.CaptionKey(id, "caption_en.mp3")
}

func translationAudioKey(id, lang string) string {
	return storage.CaptionKey(id, "translation_"+lang+".mp3")
}
