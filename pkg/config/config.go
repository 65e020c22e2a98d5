package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	FirebaseAPIKey  string
	FirebaseProject string
	CredentialsFile string // service account for Firestore; empty = application default
	GeminiAPIKey    string // empty selects the offline mock generator
	PreferencesFile string
	TasksCollection string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	prefsFile := os.Getenv("COLLABTASK_PREFS")
	if prefsFile == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			prefsFile = filepath.Join(dir, "collabtask", "preferences.yaml")
		} else {
			prefsFile = "preferences.yaml"
		}
	}

	return &Config{
		FirebaseAPIKey:  getEnv("FIREBASE_API_KEY", ""),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		PreferencesFile: prefsFile,
		TasksCollection: getEnv("TASKS_COLLECTION", "tasks"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
