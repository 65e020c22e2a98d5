package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	authUsecase "github.com/nayhtooyan/collabtask/internal/auth/usecase"
	"github.com/nayhtooyan/collabtask/internal/app"
	"github.com/nayhtooyan/collabtask/internal/prefs"
	taskRepo "github.com/nayhtooyan/collabtask/internal/task/repository"
	"github.com/nayhtooyan/collabtask/pkg/config"
	"github.com/nayhtooyan/collabtask/pkg/gemini"
	"github.com/nayhtooyan/collabtask/pkg/identity"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if cfg.FirebaseAPIKey == "" || cfg.FirebaseProject == "" {
		log.Fatal("FIREBASE_API_KEY and FIREBASE_PROJECT_ID must be configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase app and the Firestore document store
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatal("Failed to initialize Firebase app:", err)
	}
	firestoreClient, err := firebaseApp.Firestore(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Firestore client:", err)
	}
	defer firestoreClient.Close()

	// Initialize the identity provider client and session manager
	identityClient := identity.NewClient(cfg.FirebaseAPIKey)
	sessions := authUsecase.NewSessionManager(identityClient)

	// Initialize the task store
	tasks := taskRepo.NewFirestoreTaskRepository(firestoreClient, cfg.TasksCollection)

	// Initialize the AI task generator (mock when no key is configured)
	generator, err := gemini.NewTaskGenerator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal("Failed to initialize task generator:", err)
	}
	if svc, ok := generator.(*gemini.Service); ok {
		defer svc.Close()
	}

	// Local preferences, resolved before the first identity event
	prefStore := prefs.NewStore(cfg.PreferencesFile)

	controller := app.NewController(sessions, tasks, generator, prefStore)

	log.Println("CollabTask starting")
	controller.Run(ctx)
	log.Println("CollabTask stopped")
}
