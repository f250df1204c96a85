package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mahaj/chat-feed/pkg/api"
	"github.com/mahaj/chat-feed/pkg/backend"
	"github.com/mahaj/chat-feed/pkg/feed"
)

// Checks a running API service end to end: login, messages, feed and names.
func main() {
	apiAddr := flag.String("api", "http://localhost:8080", "api service address")
	email := flag.String("email", "ada@example.com", "account email")
	password := flag.String("password", backend.DemoPassword, "account password")
	groups := flag.String("groups", "", "comma separated group ids to check")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := api.NewClient(*apiAddr, 10*time.Second)

	// 1. Login
	sess, err := client.Login(ctx, *email, *password)
	if err != nil {
		log.Fatal("Login failed: ", err)
	}
	fmt.Printf("Token: %s... user %s\n", sess.Token[:10], sess.UserID)

	// 2. Messages and the feed built from them
	msgs, err := client.AllMessages(ctx, sess, 0, 50)
	if err != nil {
		log.Fatal("Messages request failed: ", err)
	}
	summaries := feed.BuildFeed(msgs, sess.UserID)
	fmt.Printf("%d messages, %d conversations\n", len(msgs), len(summaries))

	// 3. Names
	names := feed.ResolveNames(ctx, feed.Peers(summaries), nil, client.UserLookup(sess))
	for _, s := range summaries {
		fmt.Printf("  %-20s %s\n", names.Name(s.PeerID), s.LatestMessage.Content)
	}

	// 4. Groups
	if *groups == "" {
		return
	}
	ids := strings.Split(*groups, ",")
	pages, err := client.GroupPages(ctx, sess, ids)
	if err != nil {
		log.Fatal("Group messages request failed: ", err)
	}
	groupNames := client.GroupNames(ctx, sess, ids)
	for _, s := range feed.BuildGroupFeed(pages) {
		fmt.Printf("  #%-19s %s: %s\n", groupNames[s.PeerID], s.LatestMessage.SenderName, s.LatestMessage.Content)
	}
}
