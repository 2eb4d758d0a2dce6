package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config - настройки оркестратора, агента и mathctl
type Config struct {
	Server struct {
		HTTPAddr     string `yaml:"http_addr"`
		InternalAddr string `yaml:"internal_addr"`
		GRPCAddr     string `yaml:"grpc_addr"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
		AgentKey  string `yaml:"agent_key"`
	} `yaml:"auth"`
	Worker struct {
		Local        int     `yaml:"local"`
		RatePerSec   float64 `yaml:"rate_per_sec"`
		LeaseTimeout string  `yaml:"lease_timeout"`
	} `yaml:"worker"`
	Agent struct {
		OrchestratorAddr string `yaml:"orchestrator_addr"`
		ComputingPower   int    `yaml:"computing_power"`
	} `yaml:"agent"`
}

var envFiles = []string{".env", "../.env", "../../.env"}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	var cfg Config
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.InternalAddr = ":8082"
	cfg.Server.GRPCAddr = ":8081"
	cfg.Database.Path = "./mathengine.db"
	cfg.Auth.JWTSecret = "default-jwt-secret-for-mathengine"
	cfg.Auth.TokenTTL = "60m"
	cfg.Worker.Local = 2
	cfg.Worker.LeaseTimeout = "30s"
	cfg.Agent.OrchestratorAddr = "localhost:8081"
	cfg.Agent.ComputingPower = 4
	return cfg
}

// Load читает YAML-файл поверх значений по умолчанию, затем .env и
// переменные окружения. Пустой path означает только окружение.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
			log.Printf("ВНИМАНИЕ: файл конфигурации %s не найден, используются значения по умолчанию", path)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	loadEnvFiles()
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := checkDurations(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func checkDurations(cfg Config) error {
	for name, raw := range map[string]string{
		"auth.token_ttl":       cfg.Auth.TokenTTL,
		"worker.lease_timeout": cfg.Worker.LeaseTimeout,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func loadEnvFiles() {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err == nil {
			log.Printf("Загружен файл с переменными окружения: %s", file)
			return
		}
	}
}

func applyEnv(cfg *Config) error {
	cfg.Server.HTTPAddr = getEnvOrDefault("MATH_HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.InternalAddr = getEnvOrDefault("MATH_INTERNAL_ADDR", cfg.Server.InternalAddr)
	cfg.Server.GRPCAddr = getEnvOrDefault("MATH_GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Database.Path = getEnvOrDefault("MATH_DB_PATH", cfg.Database.Path)
	cfg.Postgres.URL = getEnvOrDefault("MATH_POSTGRES_URL", cfg.Postgres.URL)
	cfg.Redis.Addr = getEnvOrDefault("MATH_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("MATH_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getEnvOrDefault("JWT_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.AgentKey = getEnvOrDefault("AGENT_KEY", cfg.Auth.AgentKey)
	cfg.Worker.LeaseTimeout = getEnvOrDefault("LEASE_TIMEOUT", cfg.Worker.LeaseTimeout)
	cfg.Agent.OrchestratorAddr = getEnvOrDefault("ORCHESTRATOR_GRPC_ADDR", cfg.Agent.OrchestratorAddr)

	var err error
	if cfg.Worker.Local, err = getIntOrDefault("LOCAL_WORKERS", cfg.Worker.Local); err != nil {
		return err
	}
	if cfg.Agent.ComputingPower, err = getIntOrDefault("COMPUTING_POWER", cfg.Agent.ComputingPower); err != nil {
		return err
	}
	if raw := os.Getenv("DISPATCH_RATE"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid DISPATCH_RATE: %w", err)
		}
		cfg.Worker.RatePerSec = rate
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// Duration разбирает строку длительности или возвращает fallback.
// Load уже отвергает некорректные значения.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func (c Config) TokenTTL() time.Duration {
	return Duration(c.Auth.TokenTTL, time.Hour)
}

func (c Config) LeaseTimeout() time.Duration {
	return Duration(c.Worker.LeaseTimeout, 30*time.Second)
}
