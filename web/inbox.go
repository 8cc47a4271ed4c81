package web

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mawdsley/glyptodon/activitypub"
)

// inboxProbe is the minimal view of an inbound activity needed before
// signature verification.
type inboxProbe struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor string `json:"actor"`
}

// handleInbox verifies the HTTP signature of an inbound activity and hands
// the raw body to the inbox queue. Both the shared inbox and the per-user
// inboxes land here; addressing is resolved by the dispatcher, not the route.
func (s *Server) handleInbox(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		log.Printf("Inbox: failed to read body: %s", err)
		c.Status(400)
		return
	}

	if c.GetHeader("Signature") == "" {
		log.Printf("Inbox: missing HTTP signature")
		c.Status(401)
		return
	}

	var probe inboxProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		log.Printf("Inbox: failed to parse activity: %s", err)
		c.Status(400)
		return
	}
	if probe.Actor == "" {
		c.Status(400)
		return
	}

	if !digestMatches(c.GetHeader("Digest"), body) {
		log.Printf("Inbox: digest mismatch for %s from %s", probe.Type, probe.Actor)
		c.Status(401)
		return
	}

	keyId, err := activitypub.SignerKeyId(c.Request)
	if err != nil {
		log.Printf("Inbox: unreadable signature header: %s", err)
		c.Status(401)
		return
	}

	// The signing key must live on the actor's host, otherwise anyone could
	// sign on behalf of a foreign actor.
	if !sameAuthority(keyId, probe.Actor) {
		log.Printf("Inbox: key %s does not belong to actor %s", keyId, probe.Actor)
		c.Status(401)
		return
	}

	actor, err := s.Dispatcher.ActorForKey(keyId)
	if err != nil {
		status := classifyActorFailure(err, probe.Type)
		if status == 202 {
			log.Printf("Inbox: dropping %s from %s: %s", probe.Type, probe.Actor, err)
		} else {
			log.Printf("Inbox: failed to fetch actor %s: %s", probe.Actor, err)
		}
		c.Status(status)
		return
	}

	if _, err := activitypub.VerifyRequest(c.Request, actor.PublicKeyPem); err != nil {
		log.Printf("Inbox: signature verification failed for %s: %s", probe.Actor, err)
		c.Status(401)
		return
	}

	if !s.Queue.Submit(actor.ActorURI, body) {
		c.Status(503)
		return
	}
	c.Status(202)
}

// classifyActorFailure decides the response when the signer's profile cannot
// be fetched. Blocked hosts and Deletes from already-gone actors are
// acknowledged and dropped so the remote server stops retrying.
func classifyActorFailure(err error, activityType string) int {
	if errors.Is(err, activitypub.ErrHostBlocked) {
		return 202
	}
	if activityType == "Delete" {
		var fe *activitypub.FetchError
		if errors.Is(err, activitypub.ErrGone) {
			return 202
		}
		if errors.As(err, &fe) && !fe.Retryable() {
			return 202
		}
	}
	return 401
}

// digestMatches checks the Digest header against the body. The header is
// covered by the signature, so this binds the body to the signature.
func digestMatches(header string, body []byte) bool {
	if header == "" {
		return false
	}
	algo, value, found := strings.Cut(header, "=")
	if !found || !strings.EqualFold(algo, "SHA-256") {
		return false
	}
	sum := sha256.Sum256(body)
	return value == base64.StdEncoding.EncodeToString(sum[:])
}

func sameAuthority(a string, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return ua.Host != "" && ua.Host == ub.Host
}
