package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Store     Store     `envPrefix:"STORE_"`
		Upstream  Upstream  `envPrefix:"UPSTREAM_"`
		Pipeline  Pipeline  `envPrefix:"PIPELINE_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Admin   Server        `envPrefix:"ADMIN_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT,required" validate:"required,numeric"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level      string `env:"LEVEL,required"`
		File       string `env:"FILE" envDefault:""`
		MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100" validate:"gte=1"`
		MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3" validate:"gte=0"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"little-big-city"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"1h"`
	}

	// Store selects where raw tile payloads are kept between passes.
	Store struct {
		Driver    string `env:"DRIVER" envDefault:"memory" validate:"oneof=none memory sqlite redis"`
		SQLiteDSN string `env:"SQLITE_DSN" envDefault:"file:tiles?cache=shared&mode=memory"`
	}

	Upstream struct {
		URLTemplate string        `env:"URL_TEMPLATE" envDefault:"https://{s}.tile.nextzen.org/tilezen/vector/v1/256/all/{z}/{x}/{y}.mvt?api_key={key}" validate:"required"`
		APIKey      string        `env:"API_KEY" envDefault:""`
		Subdomains  []string      `env:"SUBDOMAINS" envDefault:"a,b,c" envSeparator:","`
		Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
		UserAgent   string        `env:"USER_AGENT" envDefault:"LittleBigCity/1.0 (https://github.com/pissang/little-big-city)"`
	}

	Pipeline struct {
		Style               string        `env:"STYLE" envDefault:"sphere" validate:"oneof=sphere tile"`
		StyleFile           string        `env:"STYLE_FILE" envDefault:""`
		Radius              float64       `env:"RADIUS" envDefault:"60" validate:"gt=0"`
		Curveness           float64       `env:"CURVENESS" envDefault:"1" validate:"gt=0,lte=1"`
		Zoom                uint32        `env:"ZOOM" envDefault:"16" validate:"lte=22"`
		MaxTiles            int           `env:"MAX_TILES" envDefault:"6" validate:"gte=1,lte=6"`
		CacheSize           int           `env:"CACHE_SIZE" envDefault:"50" validate:"gte=1"`
		Concurrency         int           `env:"CONCURRENCY" envDefault:"6" validate:"gte=1"`
		Debounce            time.Duration `env:"DEBOUNCE" envDefault:"500ms"`
		SubdivideDistance   float64       `env:"SUBDIVIDE_DISTANCE" envDefault:"4" validate:"gt=0"`
		TessellateTolerance float64       `env:"TESSELLATE_TOLERANCE" envDefault:"5" validate:"gt=0"`
		ScaleX              float64       `env:"SCALE_X" envDefault:"10000" validate:"gt=0"`
		ScaleY              float64       `env:"SCALE_Y" envDefault:"14000" validate:"gt=0"`
		LineWidth           float64       `env:"LINE_WIDTH" envDefault:"0.5" validate:"gt=0"`
		SimplifyTolerance   float64       `env:"SIMPLIFY_TOLERANCE" envDefault:"0.01" validate:"gte=0"`
		EarthDepth          float64       `env:"EARTH_DEPTH" envDefault:"4" validate:"gt=0"`
		EarthSegments       int           `env:"EARTH_SEGMENTS" envDefault:"20" validate:"gte=1"`
		EarthWidth          float64       `env:"EARTH_WIDTH" envDefault:"55" validate:"gt=0"`
		EarthHeight         float64       `env:"EARTH_HEIGHT" envDefault:"58.5" validate:"gt=0"`
		AnimationDelay      time.Duration `env:"ANIMATION_DELAY" envDefault:"1s"`
		AnimationDuration   time.Duration `env:"ANIMATION_DURATION" envDefault:"2s"`
		AnimationTick       time.Duration `env:"ANIMATION_TICK" envDefault:"16ms" validate:"gt=0"`
		CloudSeed           uint64        `env:"CLOUD_SEED" envDefault:"0"`
		CenterLng           float64       `env:"CENTER_LNG" envDefault:"-74.0130345" validate:"gte=-180,lte=180"`
		CenterLat           float64       `env:"CENTER_LAT" envDefault:"40.7063516" validate:"gte=-85,lte=85"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
