package config

import "os"

type S3 struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type Config struct {
	// StorageMode selects the persistence backend: "embedded" keeps
	// everything in a local SQLite file, "remote" talks to the API server.
	StorageMode string

	PostgresURI  string
	DatabasePath string
	ImageDir     string

	ListenAddr string
	APIBaseURL string
	APIUser    string
	APIPass    string

	CronSecret string

	BlueskyPDS string

	SweepInterval string

	S3 S3
}

func LoadConfig() *Config {
	return &Config{
		StorageMode:   getEnv("STORAGE_MODE", "embedded"),
		PostgresURI:   getEnv("DATABASE_URL", ""),
		DatabasePath:  getEnv("DATABASE_PATH", "bskysched.db"),
		ImageDir:      getEnv("IMAGE_DIR", "images"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":3000"),
		APIBaseURL:    getEnv("API_URL", "http://localhost:3000"),
		APIUser:       getEnv("API_USERNAME", ""),
		APIPass:       getEnv("API_PASSWORD", ""),
		CronSecret:    getEnv("CRON_SECRET", ""),
		BlueskyPDS:    getEnv("BLUESKY_PDS", "https://bsky.social"),
		SweepInterval: getEnv("SWEEP_INTERVAL", "60s"),
		S3: S3{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "auto"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
