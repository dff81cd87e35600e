package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/themobileprof/mistral-go/internal/mockserver"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	port := getEnv("MOCK_PORT", "9090")
	apiKey := getEnv("MISTRAL_API_KEY", "")
	rps := getEnvFloat("MOCK_RPS", 0)
	burst := getEnvInt("MOCK_BURST", 10)
	delay := getEnvDuration("MOCK_FRAGMENT_DELAY", 0)

	if apiKey == "" {
		log.Println("⚠️  MISTRAL_API_KEY not set, any bearer token is accepted")
	}

	gin.SetMode(gin.ReleaseMode)
	router := mockserver.New(mockserver.Options{
		APIKey:            apiKey,
		RequestsPerSecond: rps,
		Burst:             burst,
		FragmentDelay:     delay,
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Mock Mistral API starting on http://localhost:%s", port)
		log.Printf("📝 API endpoints:")
		log.Printf("   GET    /health")
		log.Printf("   GET    /metrics")
		log.Printf("   GET    /v1/models")
		log.Printf("   POST   /v1/embeddings")
		log.Printf("   POST   /v1/chat/completions (stream=true for SSE)")
		if rps > 0 {
			log.Printf("⏱️  Rate limit: %.2f req/sec per key, burst %d", rps, burst)
		}
		log.Printf("")
		log.Printf("Press Ctrl+C to stop")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
