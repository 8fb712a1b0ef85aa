package main

import (
	"context"
	"log"
	"os"

	"ecolookapi/dbhelper"
	"ecolookapi/services"
	"ecolookapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
)

func runScheduler() {

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	cleanupTask, err := tasks.NewOrphanLookCleanupTask()
	if err != nil {
		log.Fatalf("Failed to build cleanup task: %v", err)
	}
	reminderTask, err := tasks.NewStyleReminderTask()
	if err != nil {
		log.Fatalf("Failed to build reminder task: %v", err)
	}

	scheduled := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "30 * * * *", // every hour at :30
			task: cleanupTask,
			desc: "Orphan look cleanup",
		},
		{
			cron: "0 9 * * *", // 9:00 AM daily
			task: reminderTask,
			desc: "Style reminder notifications",
		},
	}

	for _, t := range scheduled {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"images":  7,
			"default": 3,
		}},
	)
	awsService := &services.AWSService{}
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}
	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc("process:item_image", func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleItemImageProcessingTask(ctx, t, db, awsService, app)
	})
	mux.HandleFunc("cleanup:orphan_looks", func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleOrphanLookCleanupTask(ctx, t, db)
	})
	mux.HandleFunc("notify:style_reminder", func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleStyleReminderTask(ctx, t, db, app)
	})

	go runScheduler()
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
