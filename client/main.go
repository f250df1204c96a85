package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mahaj/chat-feed/pkg/api"
	"github.com/mahaj/chat-feed/pkg/config"
	"github.com/mahaj/chat-feed/pkg/feed"
	"github.com/mahaj/chat-feed/pkg/logger"
	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/mahaj/chat-feed/pkg/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	email := flag.String("email", os.Getenv("CHATFEED_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("CHATFEED_PASSWORD"), "account password")
	dmUser := flag.String("dm", "", "user id to open a direct conversation with")
	group := flag.String("group", "", "group id to open")
	groups := flag.String("groups", "", "comma separated group ids to list as chats")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ids, err := snowflake.NewGenerator(cfg.Snowflake.Node)
	if err != nil {
		log.Fatal("snowflake generator", zap.Error(err))
	}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout,
		api.WithLogger(log.Named("api")), api.WithIDGenerator(ids))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Logging in as %s...\n", *email)
	sess, err := client.Login(ctx, *email, *password)
	if err != nil {
		log.Fatal("login failed", zap.Error(err))
	}
	fmt.Printf("Login successful. User id: %s\n", sess.UserID)

	lookup := client.UserLookup(sess)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		lookup = feed.CachedLookup(feed.NewRedisNameStore(rdb, cfg.Redis.Key), lookup, log)
	}

	opts := feed.Options{
		Interval:    cfg.Poll.Interval,
		Concurrency: cfg.Names.Concurrency,
		Logger:      log.Named("poller"),
	}

	var (
		fetch      feed.FetchFunc
		send       func(ctx context.Context, content string) error
		groupNames map[string]string
	)
	switch {
	case *dmUser != "":
		opts.Mode = feed.ModeThread
		fetch = client.ConversationFetcher(*dmUser)
		send = func(ctx context.Context, content string) error {
			_, err := client.SendMessage(ctx, sess, *dmUser, content)
			return err
		}
	case *group != "":
		opts.Mode = feed.ModeThread
		fetch = client.GroupFetcher(*group)
		send = func(ctx context.Context, content string) error {
			_, err := client.SendGroupMessage(ctx, sess, *group, content)
			return err
		}
	case *groups != "":
		ids := splitIDs(*groups)
		groupNames = client.GroupNames(ctx, sess, ids)
		fetch = client.GroupsFetcher(ids)
	default:
		fetch = client.ChatsFetcher(cfg.Poll.PageSize)
	}

	p := feed.NewPoller(sess, fetch, lookup, opts)
	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()
	if err := p.Start(ctx); err != nil {
		log.Fatal("start poller", zap.Error(err))
	}
	defer p.Stop()

	if send != nil {
		go readInput(ctx, p, send)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case snap := <-updates:
			if opts.Mode == feed.ModeThread {
				printThread(snap, sess)
			} else {
				printFeed(snap, groupNames)
			}
		}
	}
}

// readInput sends every non-empty stdin line and refreshes the thread.
func readInput(ctx context.Context, p *feed.Poller, send func(context.Context, string) error) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
		case "/refresh":
			_ = p.Refresh()
		default:
			if err := send(ctx, text); err != nil {
				fmt.Printf("\rsend failed: %v\n", err)
			} else {
				_ = p.Refresh()
			}
		}
		fmt.Print("> ")
	}
}

func printFeed(snap feed.Snapshot, groupNames map[string]string) {
	fmt.Print("\033[H\033[2J")
	fmt.Printf("Chats (updated %s)\n\n", snap.UpdatedAt.Format("15:04:05"))
	if len(snap.Feed) == 0 {
		fmt.Println("  No conversations yet")
		return
	}
	for _, s := range snap.Feed {
		m := s.LatestMessage
		name := snap.Names.Name(s.PeerID)
		if m.IsGroup() {
			name = "# " + s.PeerID
			if n, ok := groupNames[s.PeerID]; ok {
				name = "# " + n
			}
		}
		fmt.Printf("  %-24s %-40s %s %s\n", name, preview(m.Content, 40), m.CreatedAt.Local().Format("Jan 2 15:04"), m.Status)
	}
}

func printThread(snap feed.Snapshot, sess session.Session) {
	fmt.Print("\033[H\033[2J")
	for _, m := range snap.Thread {
		who := snap.Names.Name(m.SenderID)
		if m.SenderID == sess.UserID {
			who = "You"
		} else if m.SenderName != "" {
			who = m.SenderName
		}
		fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content, ticks(m))
	}
	fmt.Print("> ")
}

func ticks(m model.Message) string {
	switch m.Status {
	case model.StatusRead:
		return " ✓✓"
	case model.StatusDelivered:
		return " ✓"
	}
	return ""
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
