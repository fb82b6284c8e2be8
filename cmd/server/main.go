package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	config "github.com/bskysched/bskysched/configs"
	"github.com/bskysched/bskysched/internal/api/handlers"
	"github.com/bskysched/bskysched/internal/api/middleware"
	"github.com/bskysched/bskysched/internal/blob"
	"github.com/bskysched/bskysched/internal/bluesky"
	"github.com/bskysched/bskysched/internal/pipeline"
	"github.com/bskysched/bskysched/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	var blobs blob.Store
	if cfg.S3.Bucket != "" {
		blobs, err = blob.NewS3Store(cfg.S3)
	} else {
		blobs, err = blob.NewLocalStore(cfg.ImageDir)
	}
	if err != nil {
		log.Fatalf("Failed to set up image storage: %v", err)
	}

	st, err := store.NewPostgres(db, blobs)
	if err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	client := bluesky.NewClient(cfg.BlueskyPDS)
	pipe := pipeline.New(st, client)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(st, cfg.CronSecret)

	health := handlers.NewHealthHandler(st)
	app.Get("/health", health.Health)

	auth := handlers.NewAuthHandler(st)
	app.Post("/api/auth/setup", auth.Setup)
	app.Get("/api/auth/check", auth.Check)

	cronTrigger := handlers.NewCronHandler(pipe)
	app.Post("/api/cron/check-posts", authMiddleware.RequireCronSecret(), cronTrigger.CheckPosts)

	api := app.Group("/api")
	api.Use(authMiddleware.RequireOperator())

	post := handlers.NewPostHandler(st)
	api.Get("/posts", post.GetAll)
	api.Get("/posts/pending", post.GetPending)
	api.Get("/posts/scheduled", post.GetScheduled)
	api.Get("/posts/published", post.GetPublished)
	api.Get("/posts/to-send", post.GetToSend)
	api.Post("/posts", post.Create)
	api.Patch("/posts/:id", post.Update)
	api.Delete("/posts/:id", post.Delete)

	repost := handlers.NewRepostHandler(st, client)
	api.Get("/reposts", repost.GetAll)
	api.Get("/reposts/scheduled", repost.GetScheduled)
	api.Get("/reposts/published", repost.GetPublished)
	api.Get("/reposts/to-send", repost.GetToSend)
	api.Post("/reposts", repost.Create)
	api.Patch("/reposts/:id", repost.Update)
	api.Delete("/reposts/:id", repost.Delete)

	creds := handlers.NewCredentialsHandler(st)
	api.Get("/credentials", creds.Get)
	api.Post("/credentials", creds.Set)
	api.Delete("/credentials", creds.Delete)

	image := handlers.NewImageHandler(st)
	api.Post("/post/image", image.Upload)
	api.Get("/post/image/:name", image.Get)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
