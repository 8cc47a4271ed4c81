package web

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/mawdsley/glyptodon/activitypub"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/util"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"
)

// Server wires the HTTP surface to the federation engine. Inbound activities
// are verified here and handed to the queue; everything else is read-only
// rendering of local data.
type Server struct {
	Store      *db.DB
	Conf       *util.AppConfig
	Dispatcher *activitypub.Dispatcher
	Queue      *activitypub.InboxQueue
}

func NewServer(store *db.DB, conf *util.AppConfig, dispatcher *activitypub.Dispatcher, queue *activitypub.InboxQueue) *Server {
	return &Server{
		Store:      store,
		Conf:       conf,
		Dispatcher: dispatcher,
		Queue:      queue,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter rate limit for inbox posts: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for inbound activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

	// RSS
	g.GET("/feed", s.handleFeed)
	g.GET("/feed/:id", s.handleFeedItem)

	// ActivityPub documents
	g.GET("/.well-known/webfinger", s.handleWebfinger)
	g.GET("/users/:actor", s.handleActor)
	g.GET("/users/:actor/outbox", s.handleOutbox)
	g.GET("/users/:actor/followers", s.handleFollowers)
	g.GET("/notes/:id", s.handleNote)

	// Inbound federation
	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, s.handleInbox)
	g.POST("/users/:actor/inbox", RateLimitMiddleware(apLimiter), maxBodySize, s.handleInbox)

	return g
}

// Run serves the router until the listener fails. With autoTls enabled the
// certificate for sslDomain is obtained via ACME; otherwise plain HTTP on
// httpPort.
func (s *Server) Run() error {
	g := s.Router()

	if s.Conf.Conf.AutoTls {
		log.Printf("Web: serving https for %s with automatic certificates", s.Conf.Conf.SslDomain)
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.Conf.Conf.SslDomain),
			Cache:      autocert.DirCache(util.ResolveFilePath("autocert")),
		}
		server := &http.Server{
			Addr:      ":https",
			Handler:   g,
			TLSConfig: &tls.Config{GetCertificate: manager.GetCertificate},
		}
		// port 80 answers ACME challenges and redirects the rest
		go func() {
			if err := http.ListenAndServe(":http", manager.HTTPHandler(nil)); err != nil {
				log.Printf("Web: challenge listener stopped: %s", err)
			}
		}()
		return server.ListenAndServeTLS("", "")
	}

	log.Printf("Web: serving http on %s:%d", s.Conf.Conf.Host, s.Conf.Conf.HttpPort)
	return g.Run(fmt.Sprintf(":%d", s.Conf.Conf.HttpPort))
}
