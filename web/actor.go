package web

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/activitypub"
	"github.com/mawdsley/glyptodon/domain"
)

const activityJSON = "application/activity+json; charset=utf-8"

// handleActor serves the ActivityPub profile document of a local account.
func (s *Server) handleActor(c *gin.Context) {
	c.Header("Content-Type", activityJSON)

	err, acc := s.Store.ReadAccByUsername(c.Param("actor"))
	if err != nil || acc == nil {
		c.JSON(404, gin.H{"error": "Not Found"})
		return
	}
	c.JSON(200, activitypub.RenderActor(s.Conf, acc))
}

// handleNote serves a local note as an ActivityPub object. Only public notes
// are dereferenceable; everything else is indistinguishable from missing.
func (s *Server) handleNote(c *gin.Context) {
	c.Header("Content-Type", activityJSON)

	noteId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "Not Found"})
		return
	}

	err, note := s.Store.ReadNoteId(noteId)
	if err != nil || note == nil || note.Visibility != domain.VisibilityPublic {
		c.JSON(404, gin.H{"error": "Not Found"})
		return
	}
	err, acc := s.Store.ReadAccByUsername(note.CreatedBy)
	if err != nil || acc == nil {
		c.JSON(404, gin.H{"error": "Not Found"})
		return
	}

	doc := activitypub.RenderNote(s.Conf, acc, note)
	doc["@context"] = "https://www.w3.org/ns/activitystreams"
	c.JSON(200, doc)
}
