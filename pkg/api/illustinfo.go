package api

import (
	"strings"
	"time"

	"medialib/pkg/fileindex"
)

// BuildIllustInfo converts an indexed Entry into the wire-level IllustInfo
// the web client expects, or nil if the entry's media type has no visible
// representation (neither a directory nor a recognized image/video).
// publicPath is the entry's "/libraryName/relative" address and baseURL is
// the server's externally-visible origin, used to build the file/thumb/
// poster/mjpeg-zip URLs.
func BuildIllustInfo(publicPath string, entry *fileindex.Entry, baseURL string) *IllustInfo {
	idType := "file"
	if entry.IsDirectory {
		idType = "folder"
	}
	id := idType + ":" + publicPath
	encodedID := encodeIllustID(id)

	filePath := baseURL + "/file/" + encodedID
	thumbPath := baseURL + "/thumb/" + encodedID
	posterPath := baseURL + "/poster/" + encodedID
	mjpegPath := baseURL + "/mjpeg-zip/" + encodedID

	if entry.Animation {
		filePath = posterPath
	}

	createDate := time.Unix(int64(entry.CTime), 0).UTC().Format(time.RFC3339)

	if entry.IsDirectory {
		title := entry.Name()
		if strings.HasSuffix(strings.ToLower(title), ".zip") {
			title = title[:len(title)-4]
		}
		return &IllustInfo{
			ID:           id,
			LocalPath:    entry.Path,
			IllustTitle:  title,
			UserID:       -1,
			CreateDate:   createDate,
			TagList:      []string{},
			BookmarkData: buildBookmarkData(entry),
			PreviewUrls:  []string{thumbPath},
		}
	}

	if entry.MediaType() != "image" && entry.MediaType() != "video" {
		return nil
	}

	urls := &illustUrls{Original: filePath, Small: thumbPath}
	if entry.MediaType() == "video" {
		urls.Poster = posterPath
	}
	if entry.Animation {
		urls.MjpegZip = mjpegPath
	}

	var illustType interface{}
	switch {
	case entry.Animation:
		illustType = 2
	case entry.MediaType() == "image":
		illustType = 0
	default:
		illustType = "video"
	}

	return &IllustInfo{
		ID:            id,
		LocalPath:     entry.Path,
		IllustTitle:   entry.Title,
		IllustType:    illustType,
		UserID:        -1,
		UserName:      entry.Author,
		IllustComment: entry.Comment,
		CreateDate:    createDate,
		Width:         entry.Width,
		Height:        entry.Height,
		Duration:      entry.Duration,
		TagList:       entry.Tags.Slice(),
		BookmarkData:  buildBookmarkData(entry),
		PreviewUrls:   []string{thumbPath},
		Urls:          urls,
	}
}

func buildBookmarkData(entry *fileindex.Entry) *BookmarkData {
	if !entry.Bookmarked {
		return nil
	}
	return &BookmarkData{Tags: entry.BookmarkTags.Slice(), Private: false}
}

// encodeIllustID percent-encodes id the way the original client expects:
// every byte except unreserved URL characters and the literal '/' and ':'
// separators that make up the ID grammar itself.
func encodeIllustID(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isUnreservedURLByte(c) || c == '/' || c == ':' {
			b.WriteByte(c)
		} else {
			const hex = "0123456789ABCDEF"
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xF])
		}
	}
	return b.String()
}

func isUnreservedURLByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
