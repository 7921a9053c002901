// Package main provides a smoke testing tool for the chat sync layer: it
// signs up two users against a live Redis instance, opens a conversation,
// exchanges messages (one encrypted), and verifies the live subscription
// sees everything.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"chatzam/internal/auth"
	"chatzam/internal/blob"
	"chatzam/internal/config"
	"chatzam/internal/notifications"
	"chatzam/internal/observability"
	"chatzam/internal/repository"
	"chatzam/internal/service"
	"chatzam/internal/store"

	"github.com/google/uuid"
)

func main() {
	redisURL := flag.String("redis", "", "Redis address (overrides config)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall run timeout")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Config load failed: %v", err)
	}
	addr := cfg.RedisURL
	if *redisURL != "" {
		addr = *redisURL
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:  "chatzam",
			Environment:  cfg.Env,
			Enabled:      true,
			Exporter:     cfg.TraceExporter,
			OTLPEndpoint: cfg.OTLPEndpoint,
			SamplerRatio: cfg.SamplerRatio,
		})
		if err != nil {
			log.Fatalf("❌ Tracing init failed: %v", err)
		}
		defer shutdown(context.Background())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := store.NewRedisStore(addr)
	if err != nil {
		log.Fatalf("❌ Redis connection failed: %v", err)
	}
	defer st.Close()
	log.Printf("✅ Connected to Redis at %s", addr)

	blobs, err := blob.NewDiskStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		log.Fatalf("❌ Blob store init failed: %v", err)
	}

	convRepo := repository.NewConversationRepository(st)
	msgRepo := repository.NewMessageRepository(st)
	userRepo := repository.NewUserRepository(st)

	authMgr := auth.NewManager(st, userRepo, cfg.JWTSecret)
	syncSvc := service.NewProfileSyncService(convRepo, userRepo, nil)
	chatSvc := service.NewChatService(convRepo, userRepo, nil)
	msgSvc := service.NewMessageService(msgRepo, convRepo, blobs, nil)
	userSvc := service.NewUserService(userRepo, syncSvc, blobs, nil)
	tokens := service.NewTokenRegistry(userRepo, syncSvc, nil)
	dispatcher := notifications.NewDispatcher(logSender{}, userRepo, st, nil)

	// Unique emails so repeated runs against the same Redis don't collide.
	run := uuid.NewString()[:8]
	alice, err := authMgr.SignUp(ctx, "alice+"+run+"@example.com", "password123", "Alice")
	if err != nil {
		log.Fatalf("❌ Sign-up failed: %v", err)
	}
	bob, err := authMgr.SignUp(ctx, "bob+"+run+"@example.com", "password123", "Bob")
	if err != nil {
		log.Fatalf("❌ Sign-up failed: %v", err)
	}
	log.Printf("✅ Signed up alice=%s bob=%s", alice.UserID, bob.UserID)

	if err := tokens.RegisterToken(ctx, alice, "device-"+run); err != nil {
		log.Fatalf("❌ Token registration failed: %v", err)
	}

	conv, err := chatSvc.CreateIndividualConversation(ctx, alice, bob.UserID)
	if err != nil {
		log.Fatalf("❌ Conversation creation failed: %v", err)
	}
	log.Printf("✅ Conversation %s ready", conv.ID)

	tl := service.NewTimeline()
	updates, err := msgSvc.Subscribe(ctx, tl, conv.ID)
	if err != nil {
		log.Fatalf("❌ Subscription failed: %v", err)
	}

	results, err := msgSvc.Send(ctx, alice, tl, service.SendInput{
		ConversationID: conv.ID,
		Content:        "hello from the smoke test",
	})
	if err != nil {
		log.Fatalf("❌ Send failed: %v", err)
	}
	if res := <-results; res.Err != nil {
		log.Fatalf("❌ Send not confirmed: %v", res.Err)
	}
	log.Println("✅ Plain message sent")

	results, err = msgSvc.SendEncrypted(ctx, bob, tl, service.SendInput{
		ConversationID: conv.ID,
		Content:        "secret reply",
	}, chatSvc)
	if err != nil {
		log.Fatalf("❌ Encrypted send failed: %v", err)
	}
	if res := <-results; res.Err != nil {
		log.Fatalf("❌ Encrypted send not confirmed: %v", res.Err)
	}
	log.Println("✅ Encrypted message sent")

	deadline := time.After(5 * time.Second)
	for tl.Len() < 2 {
		select {
		case _, ok := <-updates:
			if !ok {
				log.Fatal("❌ Subscription closed early")
			}
		case <-deadline:
			log.Fatalf("❌ Timed out waiting for live updates (have %d messages)", tl.Len())
		}
	}
	log.Printf("✅ Live subscription delivered %d messages", tl.Len())

	for _, msg := range tl.Messages() {
		plain, err := msgSvc.Decrypt(ctx, msg, chatSvc)
		if err != nil {
			log.Fatalf("❌ Decrypt failed: %v", err)
		}
		log.Printf("   %s: %s", msg.SenderID, plain)
	}

	if outcome, err := userSvc.UpdateProfile(ctx, alice, "Alice Updated", ""); err != nil {
		log.Fatalf("❌ Profile update failed: %v", err)
	} else {
		log.Printf("✅ Profile sync: %s across %d conversations", outcome.Status, outcome.ConversationCount)
	}

	fresh, err := chatSvc.Get(ctx, conv.ID)
	if err != nil {
		log.Fatalf("❌ Conversation reload failed: %v", err)
	}
	msgs := tl.Messages()
	dispatcher.DispatchForMessage(ctx, fresh, &msgs[0])
	log.Println("✅ Notification dispatch complete")

	log.Println("🎉 Smoke test passed")
}

// logSender stands in for a real push gateway.
type logSender struct{}

func (logSender) Send(ctx context.Context, token string, msg notifications.DataMessage) error {
	log.Printf("   push → %s: conversation=%s message=%s", token, msg.ConversationID, msg.MessageID)
	return nil
}
