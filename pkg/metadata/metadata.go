// Package metadata extracts the header-derived fields (dimensions,
// duration, embedded title/author/comment) that Library merges with
// sidecar data when building a FileIndex record for an image or video
// file. Image dimensions and EXIF tags are read in-process; video
// dimensions and duration are obtained by shelling out to ffprobe.
package metadata

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

// Header is the set of fields recoverable from a media file's own header,
// independent of sidecar data.
type Header struct {
	Width    *int64
	Height   *int64
	Duration *float64
	Title    string
	Author   string
	Comment  string
}

var extraMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

// DetectMimeType classifies path by extension, falling back to the
// standard library's mime.TypeByExtension and finally
// "application/octet-stream" for anything unrecognized.
func DetectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := extraMimeTypes[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return strings.SplitN(mimeType, ";", 2)[0]
	}
	return "application/octet-stream"
}

// Probe reads header metadata for a file of the given mimeType. An image is
// opened with a plain os.Open, not with pathmodel's shared open; a video is
// opened by the ffprobe process itself. An unsupported or unreadable header
// yields a zero Header and no error: missing metadata is not a reconcile
// failure.
func Probe(path, mimeType string) Header {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return probeImage(path)
	case strings.HasPrefix(mimeType, "video/"):
		return probeVideo(path)
	default:
		return Header{}
	}
}

func probeImage(path string) Header {
	f, err := os.Open(path)
	if err != nil {
		return Header{}
	}
	defer f.Close()

	var header Header

	if x, err := exif.Decode(f); err == nil {
		if tag, err := x.Get(exif.Artist); err == nil {
			header.Author, _ = tag.StringVal()
		}
		if tag, err := x.Get(exif.ImageDescription); err == nil {
			header.Comment, _ = tag.StringVal()
		}
		if tag, err := x.Get(exif.PixelXDimension); err == nil {
			if w, err := tag.Int(0); err == nil {
				header.Width = int64Ptr(int64(w))
			}
		}
		if tag, err := x.Get(exif.PixelYDimension); err == nil {
			if h, err := tag.Int(0); err == nil {
				header.Height = int64Ptr(int64(h))
			}
		}
	}

	if header.Width == nil || header.Height == nil {
		if _, err := f.Seek(0, 0); err == nil {
			if cfg, _, err := image.DecodeConfig(f); err == nil {
				header.Width = int64Ptr(int64(cfg.Width))
				header.Height = int64Ptr(int64(cfg.Height))
			}
		}
	}

	return header
}

func probeVideo(path string) Header {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return Header{}
	}

	var header Header
	if duration := data.Format.DurationSeconds; duration > 0 {
		header.Duration = &duration
	}
	if stream := data.FirstVideoStream(); stream != nil {
		if stream.Width > 0 {
			header.Width = int64Ptr(int64(stream.Width))
		}
		if stream.Height > 0 {
			header.Height = int64Ptr(int64(stream.Height))
		}
	}
	if title, ok := data.Format.Tags["title"]; ok {
		header.Title = title
	}
	if comment, ok := data.Format.Tags["comment"]; ok {
		header.Comment = comment
	}

	return header
}

func int64Ptr(v int64) *int64 { return &v }
