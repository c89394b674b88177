// Command memodate is the Memodate backend: a date-reminder API with Web
// Push notifications.
//
// Usage:
//
//	memodate serve
//	memodate cron
//	memodate vapid
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"memodate/internal/api"
	"memodate/internal/database"
	"memodate/internal/notify"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "memodate",
		Short: "Memodate date-reminder backend",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(cronCmd())
	root.AddCommand(vapidCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/memodate.db"
	}
	return database.Initialize(dbPath)
}

func newDispatcher(db *sql.DB) *notify.Dispatcher {
	var sender notify.Sender
	if s := notify.NewWebPushSenderFromEnv(); s != nil {
		sender = s
	} else {
		log.Println("WARNING: VAPID keys not set, push delivery disabled (run `memodate vapid` to generate a pair)")
	}
	mailer := notify.NewMailerFromEnv()
	if mailer == nil {
		log.Println("Email digest disabled (SMTP_HOST/SMTP_FROM not set)")
	}
	return notify.NewDispatcher(db, sender, mailer)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			dispatcher := newDispatcher(db)

			// Housekeeping: drop expired refresh tokens once a day
			go func() {
				ticker := time.NewTicker(24 * time.Hour)
				defer ticker.Stop()
				for range ticker.C {
					if err := api.PruneExpiredRefreshTokens(db); err != nil {
						log.Printf("Refresh token prune error: %v", err)
					}
				}
			}()

			app := fiber.New(fiber.Config{
				ErrorHandler: func(c *fiber.Ctx, err error) error {
					code := fiber.StatusInternalServerError
					if e, ok := err.(*fiber.Error); ok {
						code = e.Code
					}
					return c.Status(code).JSON(fiber.Map{
						"error": err.Error(),
					})
				},
			})

			app.Use(logger.New())

			// CORS configuration: restrict to specific origins
			allowedOrigins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
			if allowedOrigins == "" {
				allowedOrigins = "http://localhost:80,http://localhost:5173" // Default for local dev
				log.Println("WARNING: Using default ALLOWED_ORIGINS. Set ALLOWED_ORIGINS env var for production.")
			} else if allowedOrigins != "*" {
				parts := strings.Split(allowedOrigins, ",")
				for i, p := range parts {
					parts[i] = strings.TrimSpace(p)
				}
				allowedOrigins = strings.Join(parts, ",")
			}
			log.Printf("CORS allowed origins: %s", allowedOrigins)

			app.Use(cors.New(cors.Config{
				AllowOrigins:     allowedOrigins,
				AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
				AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
				AllowCredentials: true, // Required for the refresh cookie
			}))

			api.SetupRoutes(app, db, dispatcher)

			port := os.Getenv("PORT")
			if port == "" {
				port = "3000"
			}

			log.Printf("Server starting on port %s", port)
			return app.Listen(":" + port)
		},
	}
}

func cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run one daily notification pass and print the counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			result, err := newDispatcher(db).RunDailyPass(time.Now())
			if err != nil {
				return err
			}

			out, err := json.Marshal(result)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func vapidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Generate a VAPID key pair for push authentication",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
			fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
			return nil
		},
	}
}
