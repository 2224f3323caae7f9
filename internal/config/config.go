package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Road network and scenario.
	RoadNetworkFile string
	ScenarioStart   time.Time // zero means the wall clock at startup

	// Fusion and routing tunables.
	EventMatchRadiusDeg float64
	SegmentBufferDeg    float64
	SnapRadiusDeg       float64
	DamageMultiplier    float64
	FloodMultiplier     float64
	DecayAfter          time.Duration
	DecayHalfLife       time.Duration
	DecayFloor          float64
	StaleTolerance      time.Duration
	RouteTimeout        time.Duration
	EngineWorkers       int
	SpeedNormalKmh      float64
	SpeedDamagedKmh     float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s")
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mapboxCacheSize := parseMapboxCacheSize()

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	scenarioStart, err := parseScenarioStart()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaEnabled:       sharedcfg.EnvOrDefault("KAFKA_ENABLED", "true") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "hazard-reports"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hazard-events"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "hazard-routing"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,

		RoadNetworkFile: sharedcfg.EnvOrDefault("ROAD_NETWORK_FILE", "data/mock/network.geojson"),
		ScenarioStart:   scenarioStart,
	}

	p := parser{}
	cfg.EventMatchRadiusDeg = p.positiveFloat("EVENT_MATCH_RADIUS_DEG", 0.005)
	cfg.SegmentBufferDeg = p.positiveFloat("SEGMENT_BUFFER_DEG", 0.001)
	cfg.SnapRadiusDeg = p.positiveFloat("SNAP_RADIUS_DEG", 0.02)
	cfg.DamageMultiplier = p.positiveFloat("DAMAGE_MULTIPLIER", 3)
	cfg.FloodMultiplier = p.positiveFloat("FLOOD_MULTIPLIER", 5)
	cfg.DecayAfter = p.duration("DECAY_AFTER", 24*time.Hour)
	cfg.DecayHalfLife = p.duration("DECAY_HALF_LIFE", 12*time.Hour)
	cfg.DecayFloor = p.positiveFloat("DECAY_FLOOR", 0.2)
	cfg.StaleTolerance = p.duration("STALE_TOLERANCE", 15*time.Minute)
	cfg.RouteTimeout = p.duration("ROUTE_TIMEOUT", 2*time.Second)
	cfg.EngineWorkers = p.positiveInt("ENGINE_WORKERS", 8)
	cfg.SpeedNormalKmh = p.positiveFloat("SPEED_NORMAL_KMH", 50)
	cfg.SpeedDamagedKmh = p.positiveFloat("SPEED_DAMAGED_KMH", 20)
	if p.err != nil {
		return nil, p.err
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.DecayFloor > 1 {
		return nil, errors.New("invalid DECAY_FLOOR: must be within (0,1]")
	}
	if cfg.RoadNetworkFile == "" {
		return nil, errors.New("ROAD_NETWORK_FILE is required")
	}

	return cfg, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func parseScenarioStart() (time.Time, error) {
	s := os.Getenv("SCENARIO_START")
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("invalid SCENARIO_START: must be RFC3339")
	}
	return t.UTC(), nil
}

// parser reads numeric tunables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) positiveFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		p.err = fmt.Errorf("invalid %s: must be a positive number", key)
		return def
	}
	return f
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		p.err = fmt.Errorf("invalid %s: must be a positive integer", key)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" || p.err != nil {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.err = fmt.Errorf("invalid %s: must be a positive duration", key)
		return def
	}
	return d
}
