package api

// BookmarkData is the bookmark portion of an IllustInfo, or nil when the
// entry isn't bookmarked, mirroring the Pixiv-shaped bookmark encoding the
// web client expects.
type BookmarkData struct {
	Tags    []string `json:"tags"`
	Private bool     `json:"private"`
}

// IllustInfo is the wire shape for one file or directory entry, shared by
// /illust and /list.
type IllustInfo struct {
	ID           string        `json:"id"`
	LocalPath    string        `json:"localPath"`
	IllustTitle  string        `json:"illustTitle"`
	IllustType   interface{}   `json:"illustType,omitempty"`
	UserID       int           `json:"userId"`
	UserName     string        `json:"userName,omitempty"`
	IllustComment string       `json:"illustComment,omitempty"`
	CreateDate   string        `json:"createDate"`
	Width        *int64        `json:"width,omitempty"`
	Height       *int64        `json:"height,omitempty"`
	Duration     *float64      `json:"duration,omitempty"`
	TagList      []string      `json:"tagList"`
	BookmarkData *BookmarkData `json:"bookmarkData"`
	PreviewUrls  []string      `json:"previewUrls"`
	Urls         *illustUrls   `json:"urls,omitempty"`
}

type illustUrls struct {
	Original string `json:"original"`
	Small    string `json:"small"`
	Poster   string `json:"poster,omitempty"`
	MjpegZip string `json:"mjpeg_zip,omitempty"`
}

// illustEnvelope, listEnvelope, bookmarkAddEnvelope, and tagsEnvelope are the
// top-level response shapes for each route.
type illustEnvelope struct {
	Success bool        `json:"success"`
	Illust  *IllustInfo `json:"illust"`
}

type pageIDs struct {
	This string `json:"this"`
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

type listEnvelope struct {
	Success    bool         `json:"success"`
	Results    []IllustInfo `json:"results"`
	Next       bool         `json:"next"`
	Offset     int          `json:"offset"`
	NextOffset int          `json:"next_offset"`
	Pages      pageIDs      `json:"pages"`
}

type bookmarkAddEnvelope struct {
	Success  bool          `json:"success"`
	Bookmark *BookmarkData `json:"bookmark"`
}

type successEnvelope struct {
	Success bool `json:"success"`
}

type tagsEnvelope struct {
	Success bool           `json:"success"`
	Tags    map[string]int `json:"tags"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
