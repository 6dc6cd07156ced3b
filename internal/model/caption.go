package model

import "time"

// Caption is the result of one processed upload: the English caption, its
// translation and the locations of the stored image and audio artifacts.
// Keys address artifacts inside the object store; paths are what the store
// reports as the artifact's location (a filesystem path or an s3:// URI).
type Caption struct {
	ID             string    `json:"id"`
	Language       string    `json:"language"`
	Caption        string    `json:"caption"`
	Translation    string    `json:"translation"`
	ImagePath      string    `json:"image_path"`
	EnAudioPath    string    `json:"en_audio_path"`
	TransAudioPath string    `json:"trans_audio_path"`
	ImageKey       string    `json:"-"`
	EnAudioKey     string    `json:"-"`
	TransAudioKey  string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// ArtifactKind names one of the files stored for a caption.
type ArtifactKind string

const (
	ArtifactImage            ArtifactKind = "image"
	ArtifactCaptionAudio     ArtifactKind = "caption_audio"
	ArtifactTranslationAudio ArtifactKind = "translation_audio"
)

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactImage, ArtifactCaptionAudio, ArtifactTranslationAudio:
		return true
	}
	return false
}

// Key returns the storage key of the artifact of kind k.
func (c *Caption) Key(k ArtifactKind) string {
	switch k {
	case ArtifactImage:
		return c.ImageKey
	case ArtifactCaptionAudio:
		return c.EnAudioKey
	case ArtifactTranslationAudio:
		return c.TransAudioKey
	}
	return ""
}

// Keys returns every non-empty artifact key of the caption.
func (c *Caption) Keys() []string {
	var keys []string
	for _, k := range []string{c.ImageKey, c.EnAudioKey, c.TransAudioKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
