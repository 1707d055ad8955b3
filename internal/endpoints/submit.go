package endpoints

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"airwave/internal/config"
	"airwave/internal/media"
	"airwave/internal/store"
)

const (
	maxFileSize            = 200 * 1024 * 1024
	maxPendingPerSubmitter = 5
	maxSubmitterLen        = 50
	maxTitleLen            = 200
	maxCommentLen          = 280
	duplicateSimilarityMin = 0.75
	duplicateMaxResults    = 3
)

var youtubeHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"youtu.be":        true,
	"m.youtube.com":   true,
}

// HandleSubmit accepts a new track: a multipart upload or a YouTube URL.
func HandleSubmit(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		submitter := strings.TrimSpace(c.PostForm("submitter"))
		if submitter == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "submitter is required"})
			return
		}
		submitter = clip(submitter, maxSubmitterLen)
		comment := clip(strings.TrimSpace(c.PostForm("comment")), maxCommentLen)

		pending, err := st.CountPendingBySubmitter(ctx, submitter)
		if err != nil {
			internalError(c, err)
			return
		}
		if pending >= maxPendingPerSubmitter {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "You already have songs being processed. Please wait for them to finish before adding more.",
			})
			return
		}

		fileHeader, fileErr := c.FormFile("file")
		youtubeURL := strings.TrimSpace(c.PostForm("youtube_url"))
		hasFile := fileErr == nil && fileHeader != nil && fileHeader.Filename != ""
		if hasFile == (youtubeURL != "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Provide exactly one of: file or youtube_url"})
			return
		}

		trackID := uuid.New().String()

		if hasFile {
			submitUpload(c, st, trackID, submitter, comment, fileHeader)
			return
		}
		submitYouTube(c, st, trackID, submitter, comment, youtubeURL)
	}
}

func submitUpload(c *gin.Context, st *store.Store, trackID, submitter, comment string, fh *multipart.FileHeader) {
	ctx := c.Request.Context()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtension(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type: " + ext})
		return
	}

	rawDir := config.RawDir()
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		internalError(c, err)
		return
	}
	dest := filepath.Join(rawDir, trackID+ext)

	src, err := fh.Open()
	if err != nil {
		internalError(c, err)
		return
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		internalError(c, err)
		return
	}
	written, err := io.Copy(out, io.LimitReader(src, maxFileSize+1))
	out.Close()
	if err != nil {
		os.Remove(dest)
		internalError(c, err)
		return
	}
	if written > maxFileSize {
		os.Remove(dest)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large (max 200MB)"})
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}
	artist := strings.TrimSpace(c.PostForm("artist"))
	if artist == "" {
		artist = submitter
	}

	err = st.CreateTrackWithJob(ctx, store.NewTrack{
		ID:         trackID,
		Title:      clip(title, maxTitleLen),
		Artist:     clip(artist, maxTitleLen),
		Submitter:  submitter,
		SourceType: store.SourceUpload,
		Comment:    comment,
	})
	if err != nil {
		os.Remove(dest)
		internalError(c, err)
		return
	}

	slog.Info("Upload submission", "track_id", trackID, "file", dest)
	c.JSON(http.StatusOK, gin.H{"track_id": trackID, "status": store.TrackPending})
}

func submitYouTube(c *gin.Context, st *store.Store, trackID, submitter, comment, rawURL string) {
	ctx := c.Request.Context()

	parsed, err := url.Parse(rawURL)
	if err != nil || !youtubeHosts[strings.ToLower(parsed.Hostname())] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Only YouTube URLs are supported (youtube.com, youtu.be)",
		})
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = "Pending..."
	}
	artist := strings.TrimSpace(c.PostForm("artist"))
	if artist == "" {
		artist = "Pending..."
	}

	err = st.CreateTrackWithJob(ctx, store.NewTrack{
		ID:             trackID,
		Title:          clip(title, maxTitleLen),
		Artist:         clip(artist, maxTitleLen),
		Submitter:      submitter,
		SourceType:     store.SourceYouTube,
		SourceURL:      rawURL,
		Comment:        comment,
		YouTubeVideoID: store.ExtractYouTubeVideoID(rawURL),
	})
	if err != nil {
		internalError(c, err)
		return
	}

	slog.Info("YouTube submission", "track_id", trackID, "url", rawURL)
	c.JSON(http.StatusOK, gin.H{"track_id": trackID, "status": store.TrackPending})
}

// DuplicateMatch is one possible duplicate of a submission being composed.
type DuplicateMatch struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Submitter  string  `json:"submitter"`
	Similarity float64 `json:"similarity"`
	MatchType  string  `json:"match_type"`
}

// HandleCheckDuplicate looks for existing tracks matching a video id exactly
// or a title/artist pair fuzzily, so the frontend can warn before submitting.
func HandleCheckDuplicate(st *store.Store) gin.HandlerFunc {
	similarity := metrics.NewSorensenDice()
	similarity.NgramSize = 2

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var matches []DuplicateMatch

		if videoID := c.Query("video_id"); videoID != "" {
			t, err := st.FindTrackByVideoID(ctx, videoID)
			if err != nil && err != store.ErrNotFound {
				internalError(c, err)
				return
			}
			if t != nil {
				matches = append(matches, DuplicateMatch{
					ID: t.ID, Title: t.Title, Artist: t.Artist, Submitter: t.Submitter,
					Similarity: 1.0, MatchType: "video_id",
				})
			}
		}

		title := c.Query("title")
		if len(matches) == 0 && title != "" {
			queryTitle := normalizeTitle(title)
			queryArtist := normalizeTitle(c.Query("artist"))

			tracks, err := st.ListActiveTracks(ctx)
			if err != nil {
				internalError(c, err)
				return
			}
			for _, t := range tracks {
				titleSim := strutil.Similarity(queryTitle, normalizeTitle(t.Title), similarity)
				sim := titleSim
				if queryArtist != "" && t.Artist != "" {
					artistSim := strutil.Similarity(queryArtist, normalizeTitle(t.Artist), similarity)
					sim = titleSim*0.8 + artistSim*0.2
				}
				if sim >= duplicateSimilarityMin {
					matches = append(matches, DuplicateMatch{
						ID: t.ID, Title: t.Title, Artist: t.Artist, Submitter: t.Submitter,
						Similarity: round3(sim), MatchType: "fuzzy",
					})
				}
			}
			sort.Slice(matches, func(i, j int) bool {
				return matches[i].Similarity > matches[j].Similarity
			})
			if len(matches) > duplicateMaxResults {
				matches = matches[:duplicateMaxResults]
			}
		}

		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

var bracketedRe = regexp.MustCompile(`[\(\[][^\)\]]*[\)\]]`)

// normalizeTitle lowercases, strips bracketed qualifiers like "(remix)" and
// collapses whitespace.
func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = bracketedRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func allowedExtension(ext string) bool {
	for _, allowed := range media.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func internalError(c *gin.Context, err error) {
	slog.Error("Request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
