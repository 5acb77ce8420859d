// Package api implements the HTTP/JSON binding: a thin net/http layer
// translating wire requests into Manager/Library calls and IllustInfo
// responses. Routing, (de)serialization, and the handlers themselves are
// the only things this package owns — thumbnail rendering, transcoding,
// and the web client are genuinely out of scope.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"medialib/pkg/apierror"
	"medialib/pkg/fileindex"
	"medialib/pkg/logging"
	"medialib/pkg/manager"
	"medialib/pkg/pagecache"
)

// Server binds a Manager to the HTTP/JSON routes.
type Server struct {
	manager   *manager.Manager
	baseURL   string
	logger    *logging.Logger
	pageSize  int
	authToken string
}

// NewServer constructs a Server. baseURL is the externally-visible origin
// used to build file/thumb/poster/mjpeg-zip URLs; pageSize is the default
// number of results per search/list page. authToken, if non-empty, requires
// HTTP basic authentication with that token as the username on every route.
func NewServer(mgr *manager.Manager, baseURL string, pageSize int, authToken string, logger *logging.Logger) *Server {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Server{manager: mgr, baseURL: strings.TrimSuffix(baseURL, "/"), pageSize: pageSize, authToken: authToken, logger: logger}
}

// Handler builds the routed, security-wrapped http.Handler for this Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /illust/{id...}", s.handleIllust)
	mux.HandleFunc("POST /list/{id...}", s.handleList)
	mux.HandleFunc("POST /bookmark/add/{id...}", s.handleBookmarkAdd)
	mux.HandleFunc("POST /bookmark/delete/{id...}", s.handleBookmarkDelete)
	mux.HandleFunc("POST /bookmark/tags", s.handleBookmarkTags)
	mux.HandleFunc("POST /view/{id...}", s.handleView)
	var handler http.Handler = mux
	if s.authToken != "" {
		handler = RequireAuthentication(handler, s.authToken)
	}
	return AddSecurityHeaders(handler)
}

// splitID parses "<type>:<publicPath>" preserving the publicPath verbatim
// (it may itself contain further colons or slashes).
func splitID(id string) (kind, publicPath string, err error) {
	kind, publicPath, ok := strings.Cut(id, ":")
	if !ok || (kind != "file" && kind != "folder") {
		return "", "", apierror.Newf(apierror.InvalidRequest, "malformed id: %q", id)
	}
	return kind, publicPath, nil
}

func (s *Server) handleIllust(w http.ResponseWriter, r *http.Request) {
	kind, publicPath, err := splitID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = kind

	lib, native, err := s.manager.Resolve(publicPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	entry, err := lib.Get(native)
	if err != nil {
		s.writeError(w, err)
		return
	}

	illust := BuildIllustInfo(publicPath, entry, s.baseURL)
	if illust == nil {
		s.writeError(w, apierror.New(apierror.NotFound, "file not in library"))
		return
	}

	writeJSON(w, http.StatusOK, illustEnvelope{Success: true, Illust: illust})
}

type listRequest struct {
	Search          string      `json:"search"`
	Bookmarked      *bool       `json:"bookmarked"`
	BookmarkTags    []string    `json:"bookmark_tags"`
	MediaType       string      `json:"media_type"`
	TotalPixels     interface{} `json:"total_pixels"`
	AspectRatio     interface{} `json:"aspect_ratio"`
	Order           string      `json:"order"`
	Skip            int         `json:"skip"`
	Page            string      `json:"page"`
	Limit           int         `json:"limit"`
	DirectoriesOnly bool        `json:"directories_only"`
}

func parseRange(v interface{}) (*fileindex.Range, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return fileindex.ScalarRange(value), nil
	case []interface{}:
		if len(value) != 2 {
			return nil, apierror.New(apierror.InvalidRequest, "range parameter must have exactly two elements")
		}
		low, lowOK := value[0].(float64)
		high, highOK := value[1].(float64)
		if !lowOK || !highOK {
			return nil, apierror.New(apierror.InvalidRequest, "range parameter elements must be numbers")
		}
		return &fileindex.Range{Low: low, High: high}, nil
	default:
		return nil, apierror.New(apierror.InvalidRequest, "invalid range parameter")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, publicPath, err := splitID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = kind

	var req listRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			s.writeError(w, apierror.Wrap(apierror.InvalidRequest, "malformed request body", err))
			return
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	order := req.Order
	if order == "" {
		order = "name"
	}
	sortOrder, err := fileindex.ParseSortOrder(order)
	if err != nil {
		s.writeError(w, apierror.Wrap(apierror.InvalidRequest, "invalid order parameter", err))
		return
	}

	totalPixelsRange, err := parseRange(req.TotalPixels)
	if err != nil {
		s.writeError(w, err)
		return
	}
	aspectRatioRange, err := parseRange(req.AspectRatio)
	if err != nil {
		s.writeError(w, err)
		return
	}

	noFilters := req.Search == "" && req.Bookmarked == nil && len(req.BookmarkTags) == 0 &&
		req.MediaType == "" && totalPixelsRange == nil && aspectRatioRange == nil

	// Listing the root with no filters yields one synthetic entry per
	// Library rather than delegating to any single Library's index.
	if noFilters && (publicPath == "" || publicPath == "/") {
		writeJSON(w, http.StatusOK, s.listMountpoints())
		return
	}

	lib, native, err := s.manager.Resolve(publicPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	includeFiles := !req.DirectoriesOnly
	opts := fileindex.SearchOptions{
		Path: native, Mode: fileindex.DirectChildren,
		Substr: req.Search, Bookmarked: req.Bookmarked, BookmarkTags: req.BookmarkTags,
		MediaType:        req.MediaType,
		TotalPixelsRange: totalPixelsRange, AspectRatioRange: aspectRatioRange,
		IncludeFiles: includeFiles, IncludeDirs: true,
		SortOrder: sortOrder,
	}

	factory := func() pagecache.Iterator[*fileindex.Entry] {
		return newSearchIterator(lib, opts)
	}

	page, err := s.manager.CachePage(req.Page, req.Skip, factory, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	results := make([]IllustInfo, 0, len(page.Results))
	for _, entry := range page.Results {
		public, ok := lib.PublicPath(entry.Path)
		if !ok {
			continue
		}
		if info := BuildIllustInfo(public, entry, s.baseURL); info != nil {
			results = append(results, *info)
		}
	}

	writeJSON(w, http.StatusOK, listEnvelope{
		Success: true, Results: results, Next: page.Next != "",
		Offset: page.Offset, NextOffset: page.NextOffset,
		Pages: pageIDs{This: page.This, Prev: page.Prev, Next: page.Next},
	})
}

// listMountpoints builds the synthetic root listing: one IllustInfo per
// configured Library, in sorted-name order.
func (s *Server) listMountpoints() listEnvelope {
	libs := s.manager.Libraries()
	results := make([]IllustInfo, 0, len(libs))
	for _, lib := range libs {
		entry := lib.MountEntry()
		public, _ := lib.PublicPath(entry.Path)
		if info := BuildIllustInfo(public, entry, s.baseURL); info != nil {
			results = append(results, *info)
		}
	}
	return listEnvelope{
		Success: true, Results: results, Next: false,
		Offset: 0, NextOffset: len(results),
		Pages: pageIDs{This: ""},
	}
}

type bookmarkAddRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleBookmarkAdd(w http.ResponseWriter, r *http.Request) {
	_, publicPath, err := splitID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req bookmarkAddRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			s.writeError(w, apierror.Wrap(apierror.InvalidRequest, "malformed request body", err))
			return
		}
	}

	lib, native, err := s.manager.Resolve(publicPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	entry, err := lib.BookmarkEdit(native, true, req.Tags)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bookmarkAddEnvelope{Success: true, Bookmark: buildBookmarkData(entry)})
}

func (s *Server) handleBookmarkDelete(w http.ResponseWriter, r *http.Request) {
	_, publicPath, err := splitID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	lib, native, err := s.manager.Resolve(publicPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := lib.BookmarkEdit(native, false, nil); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successEnvelope{Success: true})
}

// handleView asks the host desktop to reveal the requested entry in its
// file manager. This is a convenience outside the core search/index path;
// platforms without a registered launcher report backend-unavailable.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	_, publicPath, err := splitID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	lib, native, err := s.manager.Resolve(publicPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := lib.Reveal(native); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, successEnvelope{Success: true})
}

func (s *Server) handleBookmarkTags(w http.ResponseWriter, r *http.Request) {
	results := map[string]int{}
	for _, lib := range s.manager.Libraries() {
		tags, err := lib.GetAllBookmarkTags()
		if err != nil {
			s.writeError(w, err)
			return
		}
		for tag, count := range tags {
			results[tag] += count
		}
	}
	writeJSON(w, http.StatusOK, tagsEnvelope{Success: true, Tags: results})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	SetContentTypeJSON(w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError reports err to the caller as {success:false, code, message},
// logging it first when it carries an underlying Cause worth recording
// (an Internal or IO failure rather than an ordinary client mistake).
func (s *Server) writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierror.Error)
	if !ok {
		apiErr = apierror.Wrap(apierror.Internal, "unexpected error", err)
	}
	if apiErr.Code == apierror.Internal || apiErr.Code == apierror.IO {
		s.logger.Warn(apiErr)
	}
	SetContentTypeJSON(w)
	w.WriteHeader(apiErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorEnvelope{Success: false, Code: string(apiErr.Code), Message: apiErr.Message})
}
