package app

import (
	"net/http"
	"strconv"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/sdk/sqldb"
)

const (
	defaultBlogLimit = 10
	maxBlogLimit     = 50
)

// parseLimit reads ?limit=. Values above the cap are clamped.
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultBlogLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, maxBlogLimit), true
}

func (a *App) HandleListBlogPosts(c *gin.Context) {
	limit, ok := parseLimit(c.Query("limit"))
	if !ok {
		writeError(c, ErrInvalidLimit, map[string]string{"limit": "positive_integer"})
		return
	}

	posts, err := a.db.ListPublishedBlogPosts(c.Request.Context(), limit)
	if err != nil {
		a.toSentry(c, "list_blog_posts", "db", sentrygo.LevelError, err)
		writeError(c, ErrRetrievePosts, nil)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (a *App) HandleGetBlogPost(c *gin.Context) {
	post, err := a.db.GetBlogPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if sqldb.IsNotFound(err) {
			writeError(c, ErrPostNotFound, nil)
			return
		}
		a.toSentry(c, "get_blog_post", "db", sentrygo.LevelError, err)
		writeError(c, ErrRetrievePosts, nil)
		return
	}
	if !post.Published {
		writeError(c, ErrPostNotFound, nil)
		return
	}

	c.JSON(http.StatusOK, post)
}
