package web

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

// handleWebfinger answers acct: lookups for local accounts.
func (s *Server) handleWebfinger(c *gin.Context) {
	c.Header("Content-Type", "application/json; charset=utf-8")

	resource := c.Query("resource")
	if !strings.HasPrefix(resource, "acct:") {
		c.JSON(404, gin.H{"detail": "Not Found"})
		return
	}

	acct := strings.TrimPrefix(resource, "acct:")
	acct = strings.TrimPrefix(acct, "@")
	username, host, hasHost := strings.Cut(acct, "@")
	if hasHost && host != s.Conf.Conf.SslDomain {
		c.JSON(404, gin.H{"detail": "Not Found"})
		return
	}

	err, acc := s.Store.ReadAccByUsername(username)
	if err != nil || acc == nil {
		c.JSON(404, gin.H{"detail": "Not Found"})
		return
	}

	c.JSON(200, webfingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", acc.Username, s.Conf.Conf.SslDomain),
		Links: []webfingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: fmt.Sprintf("https://%s/users/%s", s.Conf.Conf.SslDomain, acc.Username),
			},
		},
	})
}
