package handler

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"captionapi/internal/model"
	"captionapi/internal/service"
)

const (
	defaultPresignExpiry = 15 * time.Minute
	maxPresignExpiry     = 7 * 24 * time.Hour
)

// presignResponse is returned by the artifact URL endpoint.
type presignResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProcessImage captions an uploaded image and translates the caption.
//
// @Summary      Caption, translate and speak an image
// @Tags         captions
// @Accept       multipart/form-data
// @Produce      json
// @Param        image     formData  file    true  "Image file"
// @Param        language  formData  string  true  "Target language code"  Enums(hi, bn, te, ta, mr)
// @Success      200  {object}  model.Caption
// @Failure      400  {object}  errorPayload
// @Failure      413  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /process [post]
func ProcessImage(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil || fh.Filename == "" {
			return writeError(c, fiber.StatusBadRequest, "IMAGE_REQUIRED", "No image uploaded")
		}
		lang := c.FormValue("language")
		if strings.TrimSpace(lang) == "" {
			return writeError(c, fiber.StatusBadRequest, "LANGUAGE_REQUIRED", "language is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Process(c.UserContext(), service.ProcessInput{
			Image:       f,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Language:    lang,
		})
		if err != nil {
			return writePipelineError(c, err)
		}
		return c.JSON(res)
	}
}

// ListLanguages returns the supported translation targets.
//
// @Summary  Supported languages
// @Tags     languages
// @Produce  json
// @Success  200  {array}  model.Language
// @Router   /languages [get]
func ListLanguages(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Languages())
	}
}

// ListCaptions returns stored captions, newest first.
//
// @Summary  List captions
// @Tags     captions
// @Produce  json
// @Param    limit   query  int  false  "Page size"  default(10)
// @Param    offset  query  int  false  "Offset"     default(0)
// @Success  200  {object}  service.CaptionListResult
// @Failure  400  {object}  errorPayload
// @Router   /captions [get]
func ListCaptions(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetCaption returns one caption.
//
// @Summary  Get caption
// @Tags     captions
// @Produce  json
// @Param    id  path  string  true  "Caption ID"
// @Success  200  {object}  model.Caption
// @Failure  400  {object}  errorPayload
// @Failure  404  {object}  errorPayload
// @Router   /captions/{id} [get]
func GetCaption(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := captionID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		res, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// DeleteCaption removes a caption and its stored artifacts.
//
// @Summary  Delete caption
// @Tags     captions
// @Param    id  path  string  true  "Caption ID"
// @Success  204
// @Failure  400  {object}  errorPayload
// @Failure  404  {object}  errorPayload
// @Router   /captions/{id} [delete]
func DeleteCaption(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := captionID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetArtifact streams the image or one of the audio files of a caption.
//
// @Summary  Download artifact
// @Tags     artifacts
// @Produce  octet-stream
// @Param    id    path  string  true  "Caption ID"
// @Param    kind  path  string  true  "Artifact kind"  Enums(image, caption_audio, translation_audio)
// @Success  200  {file}  binary
// @Failure  400  {object}  errorPayload
// @Failure  404  {object}  errorPayload
// @Router   /captions/{id}/artifacts/{kind} [get]
func GetArtifact(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := captionID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rc, info, err := svc.OpenArtifact(c.UserContext(), id, model.ArtifactKind(c.Params("kind")))
		if err != nil {
			return writeServiceError(c, err)
		}

		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		if info.Key != "" {
			c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", path.Base(info.Key)))
		}
		if info.ETag != "" {
			c.Set(fiber.HeaderETag, strconv.Quote(info.ETag))
		}
		size := int(info.Size)
		if size <= 0 {
			size = -1
		}
		return c.SendStream(rc, size)
	}
}

// PresignArtifact returns a time-limited download URL for an artifact.
//
// @Summary  Pre-signed artifact URL
// @Tags     artifacts
// @Produce  json
// @Param    id      path   string  true   "Caption ID"
// @Param    kind    path   string  true   "Artifact kind"  Enums(image, caption_audio, translation_audio)
// @Param    expiry  query  string  false  "Go duration, up to 168h"  default(15m)
// @Success  200  {object}  presignResponse
// @Failure  400  {object}  errorPayload
// @Failure  404  {object}  errorPayload
// @Failure  501  {object}  errorPayload
// @Router   /captions/{id}/artifacts/{kind}/url [get]
func PresignArtifact(svc service.CaptionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := captionID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		expiry := defaultPresignExpiry
		if raw := c.Query("expiry"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 || d > maxPresignExpiry {
				return writeError(c, fiber.StatusBadRequest, "INVALID_EXPIRY", "expiry must be a duration between 1s and 168h")
			}
			expiry = d
		}

		url, err := svc.PresignArtifact(c.UserContext(), id, model.ArtifactKind(c.Params("kind")), expiry)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(presignResponse{URL: url, ExpiresAt: time.Now().Add(expiry).UTC()})
	}
}

func captionID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
