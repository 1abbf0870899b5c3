package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds every environment-backed setting of the collab-service.
type Config struct {
	ServerPort string `env:"SERVER_PORT" env-default:"8084"`

	MongoURI    string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	MongoDBName string `env:"MONGO_DB_NAME" env-default:"collab_db"`

	CassandraHost string `env:"CASS_DB" env-default:"127.0.0.1"`

	RedisAddr string `env:"REDIS_ADDR" env-default:"localhost:6379"`

	JWTSecret     string `env:"JWT_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	UsersServiceURL   string `env:"USERS_SERVICE_URL" env-default:"http://localhost:8081"`
	StorageServiceURL string `env:"STORAGE_SERVICE_URL" env-default:"http://localhost:8082"`

	SMTPHost      string `env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	SMTPPort      string `env:"SMTP_PORT" env-default:"587"`
	EmailFrom     string `env:"EMAIL_FROM" env-default:"teamboard.notify@gmail.com"`
	EmailPassword string `env:"EMAIL_PASSWORD"`

	RetentionDays      int `env:"RETENTION_DAYS" env-default:"15"`
	SweepIntervalHours int `env:"SWEEP_INTERVAL_HOURS" env-default:"24"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine in containers where variables come from the runtime.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
