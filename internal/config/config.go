package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Transport TransportConfig `envPrefix:"TRANSPORT_"`
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`
	Providers ProvidersConfig `envPrefix:"AI_"`
	Lock      LockConfig      `envPrefix:"LOCK_"`
}

type ServerConfig struct {
	Addr string `env:"ADDR" envDefault:"0.0.0.0:8084"`
}

type DatabaseConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"signal_reactor"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	// Retention bounds how long messages and attachments are kept.
	// Zero disables purging.
	Retention time.Duration `env:"RETENTION" envDefault:"720h"`
}

// TransportConfig selects and tunes the signal-cli event source.
// Mode "daemon" keeps a persistent JSON-RPC connection and consumes pushed
// events; mode "polling" issues a receive call every PollInterval.
type TransportConfig struct {
	Mode             string        `env:"MODE" envDefault:"daemon"`
	Addr             string        `env:"ADDR" envDefault:"127.0.0.1:7583"`
	Account          string        `env:"ACCOUNT,required"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	ReceiveTimeout   time.Duration `env:"RECEIVE_TIMEOUT" envDefault:"5s"`
	CallTimeout      time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`
	ReconnectMax     time.Duration `env:"RECONNECT_MAX" envDefault:"2m"`
	SendRetries      int           `env:"SEND_RETRIES" envDefault:"3"`
	SendRetryBackoff time.Duration `env:"SEND_RETRY_BACKOFF" envDefault:"2s"`
}

type SchedulerConfig struct {
	Workers       int           `env:"WORKERS" envDefault:"4"`
	JobTimeout    time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	DrainGrace    time.Duration `env:"DRAIN_GRACE" envDefault:"15s"`
	MinMessages   int           `env:"MIN_MESSAGES" envDefault:"5"`
}

type ProvidersConfig struct {
	Ollama OllamaConfig `envPrefix:"OLLAMA_"`
	Gemini GeminiConfig `envPrefix:"GEMINI_"`

	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff   time.Duration `env:"RETRY_BACKOFF" envDefault:"2s"`
	LoadingBackoff time.Duration `env:"LOADING_BACKOFF" envDefault:"15s"`
	CallTimeout    time.Duration `env:"CALL_TIMEOUT" envDefault:"3m"`
}

type OllamaConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Host    string `env:"HOST" envDefault:"http://localhost:11434"`
	Model   string `env:"MODEL" envDefault:"llama3.2"`
}

type GeminiConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL" envDefault:"googleai/gemini-2.0-flash"`
}

type LockConfig struct {
	Name              string        `env:"NAME" envDefault:"pipeline"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"15s"`
	LivenessWindow    time.Duration `env:"LIVENESS_WINDOW" envDefault:"1m"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
