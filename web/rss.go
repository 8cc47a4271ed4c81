package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
)

const federatedFeedLimit = 50

func (s *Server) handleFeed(c *gin.Context) {
	c.Header("Content-Type", "application/xml; charset=utf-8")

	var rss string
	var err error
	if c.Query("federated") == "true" {
		rss, err = s.federatedRSS()
	} else {
		rss, err = s.localRSS(c.Query("username"))
	}
	if err != nil {
		c.Render(404, render.String{Format: ""})
		return
	}
	c.Render(200, render.String{Format: rss})
}

func (s *Server) handleFeedItem(c *gin.Context) {
	c.Header("Content-Type", "application/xml; charset=utf-8")

	feedId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Render(404, render.String{Format: ""})
		return
	}
	rss, err := s.noteRSS(feedId)
	if err != nil {
		c.Render(404, render.String{Format: ""})
		return
	}
	c.Render(200, render.String{Format: rss})
}

// localRSS renders the notes of one account, or of all accounts when no
// username is given.
func (s *Server) localRSS(username string) (string, error) {
	var err error
	var notes *[]domain.Note
	var title string
	var createdBy string

	link := fmt.Sprintf("https://%s/feed", s.Conf.Conf.SslDomain)

	if username != "" {
		err, notes = s.Store.ReadNotesByUsername(username)
		if err != nil || notes == nil || len(*notes) == 0 {
			log.Printf("Feed: could not get notes of %s: %s", username, err)
			return "", errors.New("error retrieving notes by username")
		}
		title = fmt.Sprintf("%s Notes - %s", util.Name, username)
		createdBy = username
		link = fmt.Sprintf("%s?username=%s", link, username)
	} else {
		err, notes = s.Store.ReadAllNotes()
		if err != nil || notes == nil || len(*notes) == 0 {
			log.Printf("Feed: could not get notes: %s", err)
			return "", errors.New("error retrieving notes")
		}
		title = fmt.Sprintf("All %s Notes", util.Name)
		createdBy = "everyone"
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("notes published on %s", s.Conf.Conf.SslDomain),
		Author:      &feeds.Author{Name: createdBy, Email: fmt.Sprintf("%s@%s", createdBy, s.Conf.Conf.SslDomain)},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, note := range *notes {
		feedItems = append(feedItems, s.localFeedItem(&note))
	}
	feed.Items = feedItems
	return feed.ToRss()
}

// federatedRSS renders the most recent public notes received from remote
// actors.
func (s *Server) federatedRSS() (string, error) {
	err, notes := s.Store.ReadPublicRemoteNotes(federatedFeedLimit)
	if err != nil || notes == nil || len(*notes) == 0 {
		log.Printf("Feed: could not get federated notes: %s", err)
		return "", errors.New("error retrieving federated notes")
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s Federated Timeline", util.Name),
		Link:        &feeds.Link{Href: fmt.Sprintf("https://%s/feed?federated=true", s.Conf.Conf.SslDomain)},
		Description: fmt.Sprintf("public notes federated to %s", s.Conf.Conf.SslDomain),
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, note := range *notes {
		content := note.Content
		if note.Summary != "" {
			content = fmt.Sprintf("[%s] %s", note.Summary, content)
		}
		feedItems = append(feedItems, &feeds.Item{
			Id:      note.URI,
			Title:   note.Published.Format(util.DateTimeFormat()),
			Link:    &feeds.Link{Href: note.URI},
			Content: content,
			Author:  &feeds.Author{Name: note.ActorURI},
			Created: note.Published,
		})
	}
	feed.Items = feedItems
	return feed.ToRss()
}

func (s *Server) noteRSS(id uuid.UUID) (string, error) {
	err, note := s.Store.ReadNoteId(id)
	if err != nil || note == nil {
		log.Printf("Feed: could not get note %s: %s", id, err)
		return "", errors.New("error retrieving note by id")
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Single %s Note", util.Name),
		Link:        &feeds.Link{Href: fmt.Sprintf("https://%s/feed/%s", s.Conf.Conf.SslDomain, note.Id)},
		Description: fmt.Sprintf("notes published on %s", s.Conf.Conf.SslDomain),
		Author:      &feeds.Author{Name: note.CreatedBy, Email: fmt.Sprintf("%s@%s", note.CreatedBy, s.Conf.Conf.SslDomain)},
		Created:     time.Now(),
	}
	feed.Items = []*feeds.Item{s.localFeedItem(note)}
	return feed.ToRss()
}

func (s *Server) localFeedItem(note *domain.Note) *feeds.Item {
	return &feeds.Item{
		Id:      note.Id.String(),
		Title:   note.CreatedAt.Format(util.DateTimeFormat()),
		Link:    &feeds.Link{Href: fmt.Sprintf("https://%s/feed/%s", s.Conf.Conf.SslDomain, note.Id)},
		Content: note.Message,
		Author:  &feeds.Author{Name: note.CreatedBy, Email: fmt.Sprintf("%s@%s", note.CreatedBy, s.Conf.Conf.SslDomain)},
		Created: note.CreatedAt,
	}
}
