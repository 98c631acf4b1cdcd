package validators

import (
	"net/url"
	"path"
	"strings"
)

// SourceDirect covers plain http(s) links that point straight at a media
// file, with no platform in between.
const SourceDirect SourceType = "direct"

var directExtensions = map[string]string{
	".mp3":  "audio",
	".m4a":  "audio",
	".aac":  "audio",
	".ogg":  "audio",
	".opus": "audio",
	".flac": "audio",
	".wav":  "audio",
	".mp4":  "video",
	".webm": "video",
	".mkv":  "video",
	".mov":  "video",
}

// DirectValidator accepts direct links to media files.
type DirectValidator struct{}

func NewDirectValidator() *DirectValidator {
	return &DirectValidator{}
}

func (v *DirectValidator) SourceType() SourceType {
	return SourceDirect
}

func (v *DirectValidator) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	_, ok := directExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

func (v *DirectValidator) Validate(rawURL string) ValidationResult {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceDirect,
			URL:        rawURL,
			Error:      "not a valid http(s) URL",
		}
	}

	mediaType, ok := directExtensions[strings.ToLower(path.Ext(u.Path))]
	if !ok {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceDirect,
			URL:        rawURL,
			Error:      "URL does not point at a recognized media file",
		}
	}

	return ValidationResult{
		Valid:      true,
		SourceType: SourceDirect,
		MediaID:    path.Base(u.Path),
		MediaType:  mediaType,
		URL:        rawURL,
		Canonical:  rawURL,
	}
}
