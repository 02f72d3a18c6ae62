package config

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Содержит секции EventBus, Sync, Server, World и Chat.

type Config struct {
	EventBus EventBusConfig `yaml:"eventbus"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	World    WorldConfig    `yaml:"world"`
	Chat     ChatConfig     `yaml:"chat"`
}

// ChatConfig points internal/chat at the Redis instance backing its
// recent-history ring (§4.4).
type ChatConfig struct {
	RedisAddr   string `yaml:"redis_addr"`
	HistorySize int    `yaml:"history_size"`
}

func (c *ChatConfig) GetRedisAddr() string {
	if c.RedisAddr != "" {
		return c.RedisAddr
	}
	return "127.0.0.1:6379"
}

// WorldConfig holds the tick loop and persistence parameters spec.md
// §4.5/§6 leave to the implementer: tick rate, chunk grid extent, and
// how often (and where) the world is saved.
type WorldConfig struct {
	TickRateHz       int     `yaml:"tick_rate_hz"`
	ChunkGridSize    int     `yaml:"chunk_grid_size"`
	ViewDistanceChunks int   `yaml:"view_distance_chunks"`
	SaveIntervalS    int     `yaml:"save_interval_seconds"`
	DataDir          string  `yaml:"data_dir"`
	PlanetGravity    float64 `yaml:"planet_gravity"`
	CornerRadius     float64 `yaml:"corner_radius"`
	Seed             int64   `yaml:"seed"`
}

func (w *WorldConfig) GetTickRateHz() int {
	if w.TickRateHz > 0 {
		return w.TickRateHz
	}
	return 30
}

func (w *WorldConfig) GetChunkGridSize() int {
	if w.ChunkGridSize > 0 {
		return w.ChunkGridSize
	}
	return 8
}

func (w *WorldConfig) GetViewDistanceChunks() int {
	if w.ViewDistanceChunks > 0 {
		return w.ViewDistanceChunks
	}
	return 3
}

func (w *WorldConfig) GetSaveInterval() int {
	if w.SaveIntervalS > 0 {
		return w.SaveIntervalS
	}
	return 30
}

func (w *WorldConfig) GetDataDir() string {
	if w.DataDir != "" {
		return w.DataDir
	}
	return "data"
}

func (w *WorldConfig) GetPlanetGravity() float64 {
	if w.PlanetGravity > 0 {
		return w.PlanetGravity
	}
	return 9.8
}

func (w *WorldConfig) GetCornerRadius() float64 {
	if w.CornerRadius > 0 {
		return w.CornerRadius
	}
	return 64
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type SyncConfig struct {
	RegionID     string `yaml:"region_id"`
	BatchSize    int    `yaml:"batch_size"`
	FlushEvery   int    `yaml:"flush_every_seconds"`
	UseGzipCompr bool   `yaml:"use_gzip_compression"`
}

type ServerConfig struct {
	TCPPort     int `yaml:"tcp_port"`
	UDPPort     int `yaml:"udp_port"`
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "GAME_TCP_PORT", 7777)
}

// GetUDPPort возвращает UDP порт с поддержкой fallback значений
func (s *ServerConfig) GetUDPPort() int {
	return getPortWithEnvFallback(s.UDPPort, "GAME_UDP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
