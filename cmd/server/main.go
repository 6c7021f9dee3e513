// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/colehaney/parlor/internal/archive"
	"github.com/colehaney/parlor/internal/auth"
	"github.com/colehaney/parlor/internal/dialogue"
	"github.com/colehaney/parlor/internal/handlers"
	"github.com/colehaney/parlor/internal/journal"
	"github.com/colehaney/parlor/internal/middleware"
	"github.com/colehaney/parlor/internal/textgen"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Optional backends. The service runs fine without either; event records
	// and final results are simply not persisted.
	if err := journal.ConnectRedis(); err != nil {
		logger.Warnf("journal disabled: %v", err)
		journal.Rdb = nil
	}
	if os.Getenv("PG_HOST") != "" {
		if err := archive.Connect(); err != nil {
			logger.Warnf("archive disabled: %v", err)
		}
	}

	orch := dialogue.NewOrchestrator(textgen.NewClientFromEnv())
	srv := handlers.NewSessionServer(orch)

	mux := http.NewServeMux()

	// session endpoints
	mux.Handle("/session/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateSessionHandler(srv),
	)))
	mux.Handle("/session/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListSessionsHandler(srv),
	)))

	// session ws; not wrapped in LogMiddleware, the recorder would mask the
	// Hijacker the upgrade needs
	mux.Handle("/session/ws/", http.HandlerFunc(
		handlers.SessionWSHandler(logger, srv),
	))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
