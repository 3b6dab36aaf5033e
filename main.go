package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"mubeapp_server/config"
	"mubeapp_server/events"
	"mubeapp_server/routes"
	"mubeapp_server/services"
	"mubeapp_server/store"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	cfg := config.LoadConfig()

	// Pick the store backend
	var db store.Store
	switch cfg.StoreBackend {
	case "memory":
		log.Println("Using in-memory store")
		db = store.NewMemoryStore()
	default:
		log.Println("Initializing DynamoDB client...")
		client := store.NewDynamoDBClient(context.Background())
		db = &store.DynamoStore{Client: client, TablePrefix: cfg.TablePrefix}
		log.Println("DynamoDB client initialized.")
	}

	// Event bus wiring: interaction creations feed the stats aggregator
	bus := events.NewBus()
	statsService := &services.StatsService{Store: db}
	statsService.Register(bus)

	// Initialize Services
	quotaService := &services.QuotaService{Store: db}
	interactionService := &services.InteractionService{Store: db, Bus: bus}
	matchService := &services.MatchService{Store: db}
	matchpointService := &services.MatchpointService{
		Store:   db,
		Quota:   quotaService,
		Ledger:  interactionService,
		Matches: matchService,
	}
	conversationService := &services.ConversationService{Store: db}
	profileService := &services.UserProfileService{Store: db}

	// Periodic sweep of expired dislikes
	go runSweep(interactionService, cfg.SweepInterval)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to MubeApp")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods("GET")

	// Register routes
	routes.RegisterMatchpointRoutes(r, matchpointService)
	routes.RegisterChatRoutes(r, conversationService)
	routes.RegisterUserProfileRoutes(r, profileService)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-Id"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, corsHandler))
}

// runSweep reaps expired dislikes on a fixed interval.
func runSweep(interactions *services.InteractionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		deleted, err := interactions.SweepExpired(context.Background(), 100)
		if err != nil {
			log.Printf("⚠️ Interaction sweep failed: %v", err)
			continue
		}
		if deleted > 0 {
			log.Printf("🧹 Interaction sweep removed %d expired dislikes", deleted)
		}
	}
}
