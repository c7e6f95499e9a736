// Command ofs-proxy exposes a local HTTP proxy in front of an OFS instance,
// adding the client's caching, rate limiting, and metrics to any consumer
// that can speak plain HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/btoron/ofs-go/pkg/client"
	"github.com/btoron/ofs-go/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})

	baseURL := getEnv("OFS_BASE_URL", "")
	instance := getEnv("OFS_INSTANCE", "")
	clientID := getEnv("OFS_CLIENT_ID", "")
	clientSecret := getEnv("OFS_CLIENT_SECRET", "")
	redisURL := getEnv("REDIS_URL", "")
	port := getEnv("PORT", "8080")

	cfg := client.DefaultConfig(baseURL, instance, clientID, clientSecret)

	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisURL,
		})
		ctx := context.Background()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		cfg.Redis = redisClient
		log.Info().Str("redis_url", redisURL).Msg("Connected to Redis")
	}

	ofsClient, err := client.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create OFS client")
	}
	defer ofsClient.Close()

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/ready", readyHandler(redisClient))
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/ofs/", ofsProxyHandler(ofsClient))

	addr := ":" + port
	log.Info().
		Str("addr", addr).
		Str("instance", instance).
		Msg("Starting OFS proxy server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness; with Redis configured it also verifies the
// connection.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// ofsProxyHandler forwards /ofs/... requests to the OFS instance.
// Example: /ofs/rest/ofscCore/v1/activities -> /rest/ofscCore/v1/activities
func ofsProxyHandler(ofsClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path[len("/ofs"):]

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		resp, err := ofsClient.Get(ctx, endpoint, r.URL.Query())
		if err != nil {
			http.Error(w, fmt.Sprintf("OFS request failed: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Warn().Err(err).Msg("Failed to write proxied response")
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
