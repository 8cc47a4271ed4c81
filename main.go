package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mawdsley/glyptodon/activitypub"
	"github.com/mawdsley/glyptodon/db"
	"github.com/mawdsley/glyptodon/domain"
	"github.com/mawdsley/glyptodon/util"
	"github.com/mawdsley/glyptodon/web"
)

func main() {
	createAccount := flag.String("create-account", "", "create a local account with the given username and exit")
	backfill := flag.String("backfill", "", "crawl the outbox of the given remote actor URI and exit")
	includeAnnounces := flag.Bool("include-announces", false, "materialize announces during -backfill")
	follow := flag.String("follow", "", "send a follow request from -as to the given remote actor URI and exit")
	relay := flag.String("relay", "", "subscribe to the relay at the given actor URI (requires -relay-inbox) and exit")
	relayInbox := flag.String("relay-inbox", "", "inbox URI of the relay named by -relay")
	as := flag.String("as", "", "local username acting in -follow and -relay")
	flag.Parse()

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	log.Println("Running database migrations...")
	database := db.GetDB()
	if err := database.RunMigrations(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database migrations complete")

	dispatcher := activitypub.NewDispatcher(database, activitypub.NewHTTPFetcher(), conf)

	switch {
	case *createAccount != "":
		runCreateAccount(database, *createAccount)
		return
	case *backfill != "":
		runBackfill(dispatcher, *backfill, *includeAnnounces)
		return
	case *follow != "":
		runFollow(database, dispatcher, *as, *follow)
		return
	case *relay != "":
		runRelaySubscribe(database, conf, *as, *relay, *relayInbox)
		return
	}

	serve(database, conf, dispatcher)
}

func serve(database *db.DB, conf *util.AppConfig, dispatcher *activitypub.Dispatcher) {
	queue := activitypub.NewInboxQueue(dispatcher, 0, 0)
	activitypub.StartDeliveryWorker(database, conf)
	activitypub.StartJobWorker(database, dispatcher.Fetch, conf)

	server := web.NewServer(database, conf, dispatcher, queue)
	go func() {
		if err := server.Run(); err != nil {
			log.Fatalln(err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Stopping, draining inbox queue")
	queue.Close()
}

func runCreateAccount(database *db.DB, username string) {
	username = util.NormalizeInput(username)
	keys := util.GeneratePemKeypair()
	acc := &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		CreatedAt:     time.Now(),
		WebPublicKey:  keys.Public,
		WebPrivateKey: keys.Private,
	}
	if err := database.CreateAccount(acc); err != nil {
		log.Fatalf("Could not create account %s: %v", username, err)
	}
	log.Printf("Created account %s", username)
}

func runBackfill(dispatcher *activitypub.Dispatcher, actorURI string, includeAnnounces bool) {
	log.Printf("Backfilling outbox of %s", actorURI)
	report, err := dispatcher.Crawl(actorURI, activitypub.CrawlOptions{IncludeAnnounce: includeAnnounces})
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}
	log.Printf("Backfill done: %d pages, %d items, %d created, %d skipped, %d failed",
		report.Pages, report.Items, report.Created, report.Skipped, report.Failed)
}

func runFollow(database *db.DB, dispatcher *activitypub.Dispatcher, username string, actorURI string) {
	err, acc := database.ReadAccByUsername(username)
	if err != nil || acc == nil {
		log.Fatalf("Unknown local account %q, pass it with -as", username)
	}
	if err := dispatcher.SendFollow(acc, actorURI); err != nil {
		log.Fatalf("Could not follow %s: %v", actorURI, err)
	}
	log.Printf("Follow request for %s queued", actorURI)
}

func runRelaySubscribe(database *db.DB, conf *util.AppConfig, username string, relayActorURI string, relayInboxURI string) {
	if relayInboxURI == "" {
		log.Fatalln("-relay requires -relay-inbox")
	}
	err, acc := database.ReadAccByUsername(username)
	if err != nil || acc == nil {
		log.Fatalf("Unknown local account %q, pass it with -as", username)
	}
	if err := activitypub.SubscribeRelay(database, conf, acc, relayActorURI, relayInboxURI); err != nil {
		log.Fatalf("Could not subscribe to relay %s: %v", relayActorURI, err)
	}
	log.Printf("Relay subscription to %s queued", relayActorURI)
}
