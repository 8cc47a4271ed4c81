package web

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mawdsley/glyptodon/activitypub"
)

const itemsPerPage = 20

// ParsePageParam parses a 1-based ?page= value. An absent value means the
// collection header is wanted, not a page.
func ParsePageParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q", raw)
	}
	return page, nil
}

// handleOutbox serves the outbox collection of a local account. Without a
// page parameter only the header with the total count is returned; pages
// carry Create activities for the account's public notes, newest first.
func (s *Server) handleOutbox(c *gin.Context) {
	c.Header("Content-Type", activityJSON)

	err, acc := s.Store.ReadAccByUsername(c.Param("actor"))
	if err != nil || acc == nil {
		c.JSON(404, gin.H{"error": "Not Found"})
		return
	}

	page, err := ParsePageParam(c.Query("page"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid page"})
		return
	}

	if page == 0 {
		err, total := s.Store.CountPublicNotesByUsername(acc.Username)
		if err != nil {
			c.JSON(500, gin.H{"error": "Internal error"})
			return
		}
		c.JSON(200, activitypub.RenderOutbox(s.Conf, acc, total))
		return
	}

	// fetch one extra row to know whether a next page exists
	offset := (page - 1) * itemsPerPage
	err, notes := s.Store.ReadPublicNotesByUsername(acc.Username, itemsPerPage+1, offset)
	if err != nil {
		c.JSON(500, gin.H{"error": "Internal error"})
		return
	}

	hasNext := false
	items := *notes
	if len(items) > itemsPerPage {
		hasNext = true
		items = items[:itemsPerPage]
	}
	c.JSON(200, activitypub.RenderOutboxPage(s.Conf, acc, items, page, hasNext))
}

// handleFollowers serves the followers collection header. Only the count is
// exposed.
func (s *Server) handleFollowers(c *gin.Context) {
	c.Header("Content-Type", activityJSON)

	err, acc := s.Store.ReadAccByUsername(c.Param("actor"))
	if err != nil || acc == nil {
		c.JSON(404, gin.H{"error": "Not Found"})
		return
	}

	err, total := s.Store.CountFollowersByAccountId(acc.Id)
	if err != nil {
		c.JSON(500, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(200, activitypub.RenderFollowers(s.Conf, acc, total))
}
