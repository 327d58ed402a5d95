package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

// Worker consumes attendance-marked events and logs them. It exists so the
// API never blocks on post-mark processing.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if cfg.QueueBackend != "redis" {
		// The in-memory backend lives inside the API process; a separate
		// worker can only drain the redis list.
		log.Fatalf("worker requires QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}
	q := queue.NewRedisQueue(redisClient.Client, "qrattend:events")

	repo := attendance.NewRepository(st.DB())

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeAttendanceMarked {
			continue
		}

		id := string(msg.Body)
		rec, err := repo.FindRecordByID(ctx, id)
		if err != nil {
			log.Printf("fetch record %s failed: %v", id, err)
			continue
		}
		log.Printf("attendance marked: record=%s session=%s user=%s at=%s", rec.ID, rec.SessionID, rec.UserID, rec.MarkedAt.Format("2006-01-02 15:04:05"))
	}

	log.Println("worker stopped")
}
