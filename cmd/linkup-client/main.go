package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/linkup-chat/linkup/internal/chat"
	"github.com/linkup-chat/linkup/internal/client"
	"github.com/linkup-chat/linkup/internal/config"
	"github.com/linkup-chat/linkup/internal/observability"
	"github.com/linkup-chat/linkup/pkg/protocol"
)

// printNotifier surfaces activity in non-active conversations.
type printNotifier struct{}

func (printNotifier) Notify(conversationID string, msg protocol.Message) {
	fmt.Printf("*** new activity from %s in %s ***\n", msg.SenderName, conversationID)
}

func main() {
	userID := flag.String("user", "", "User id")
	name := flag.String("name", "", "Display name (defaults to user id)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(1)
	}
	if *name == "" {
		*name = *userID
	}

	cfg := config.Load()
	log := observability.NewLogger(cfg.Debug)
	defer log.Sync()

	session := chat.Session{UserID: *userID, DisplayName: *name}
	api := client.NewAPI(cfg.APIBaseURL, cfg.SubmitTimeout)
	store := chat.NewStore()

	mgr := client.NewManager(session, client.WebSocketDialer(cfg.WSURL), &client.Options{
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		MaxAttempts: cfg.MaxReconnects,
	}, log)

	tracker := chat.NewTracker(mgr, api, store, log)
	sender := chat.NewSender(session, store, api, mgr, cfg.SubmitTimeout, log)
	router := chat.NewRouter(store, tracker, printNotifier{}, log)

	mgr.SetHandler(func(ev protocol.Event) {
		router.HandleEvent(ev)
		if ev.Type == protocol.EventMessage && ev.Message != nil &&
			ev.ConversationID == tracker.Active() && ev.Message.SenderID != session.UserID {
			printMessage(*ev.Message)
		}
	})
	mgr.SetOnReconnect(func(ctx context.Context) {
		if err := tracker.Rejoin(ctx); err != nil {
			log.Warn("failed to re-join after reconnect")
		}
	})

	ctx := context.Background()
	if err := mgr.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Disconnect()

	fmt.Printf("Connected as %s. Commands: /open <conversation>, /retry <token>, /close, quit\n", *name)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			_ = tracker.Clear(ctx)
			return
		case line == "/close":
			_ = tracker.Clear(ctx)
			fmt.Println("conversation closed")
		case strings.HasPrefix(line, "/open "):
			openConversation(ctx, tracker, store, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		case strings.HasPrefix(line, "/retry "):
			token := strings.TrimSpace(strings.TrimPrefix(line, "/retry "))
			if err := sender.Retry(ctx, token); err != nil {
				fmt.Printf("retry failed: %v\n", err)
			} else {
				fmt.Println("delivered")
			}
		default:
			active := tracker.Active()
			if active == "" {
				fmt.Println("open a conversation first: /open <conversation>")
				continue
			}
			token, err := sender.Submit(ctx, active, line, protocol.KindText, "")
			if err != nil {
				fmt.Printf("send failed (%v), retry with: /retry %s\n", err, token)
			}
		}
	}
}

func openConversation(ctx context.Context, tracker *chat.Tracker, store *chat.Store, conversationID string) {
	if err := tracker.SetActive(ctx, conversationID); err != nil {
		fmt.Printf("join failed: %v\n", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := tracker.WaitHistory(waitCtx); err != nil {
		fmt.Printf("history not loaded yet: %v\n", err)
	}

	for _, group := range chat.Group(store.Messages(conversationID), time.Now()) {
		fmt.Printf("--- %s ---\n", group.Label)
		for _, msg := range group.Messages {
			printMessage(msg.Message)
		}
	}
}

func printMessage(msg protocol.Message) {
	body := msg.Body
	if msg.Kind != protocol.KindText && msg.AttachmentRef != "" {
		body = fmt.Sprintf("[%s] %s", msg.Kind, msg.AttachmentRef)
	}
	fmt.Printf("[%s] %s: %s\n", chat.ClockLabel(msg.CreatedAt), msg.SenderName, body)
}
