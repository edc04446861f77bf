package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Events   EventsConfig   `mapstructure:"events"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	Mode        string     `mapstructure:"mode"`
	UploadDir   string     `mapstructure:"upload_dir"`
	MaxUploadMB int64      `mapstructure:"max_upload_mb"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	Path     string `mapstructure:"path"`   // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	// ConfigPath points at a legacy INI file with a [postgresql] section.
	ConfigPath string `mapstructure:"config_path"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslmode)
}

// StorageConfig selects where uploaded documents are archived.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3 | r2 | s3compatible | minio
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	PublicURL string `mapstructure:"public_url"`
}

type WorkflowConfig struct {
	Name              string        `mapstructure:"name"`
	VLMConfig         string        `mapstructure:"vlm_config"`
	NERConfig1        string        `mapstructure:"ner_config1"`
	NERConfig2        string        `mapstructure:"ner_config2"`
	ReviewConfig      string        `mapstructure:"review_config"`
	TempDir           string        `mapstructure:"temp_dir"`
	KeepArtifacts     bool          `mapstructure:"keep_artifacts"`
	MaxConcurrentJobs int64         `mapstructure:"max_concurrent_jobs"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// StepPaths returns the step configuration files named by this section.
func (w WorkflowConfig) StepPaths() StepPaths {
	return StepPaths{
		VLM:    w.VLMConfig,
		NER1:   w.NERConfig1,
		NER2:   w.NERConfig2,
		Review: w.ReviewConfig,
	}
}

type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LLMConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	ChatPath string        `mapstructure:"chat_path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	FileOnly   bool   `mapstructure:"file_only"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("server.upload_dir", "UPLOAD_FOLDER")
	v.BindEnv("workflow.vlm_config", "VLM_CONFIG_PATH")
	v.BindEnv("workflow.ner_config1", "NER1_CONFIG_PATH")
	v.BindEnv("workflow.ner_config2", "NER2_CONFIG_PATH")
	v.BindEnv("workflow.review_config", "REVIEW_CONFIG_PATH")
	v.BindEnv("database.config_path", "DB_CONFIG_PATH")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("events.brokers", "KAFKA_BROKERS")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.ConfigPath != "" {
		if err := mergeLegacyDatabase(&cfg.Database); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.max_upload_mb", 16)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/nercompare.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "uploads")

	v.SetDefault("workflow.name", "vlm_ner_comparison_review")
	v.SetDefault("workflow.vlm_config", "vlm_config.ini")
	v.SetDefault("workflow.ner_config1", "ner_config1.ini")
	v.SetDefault("workflow.ner_config2", "ner_config2.ini")
	v.SetDefault("workflow.review_config", "")
	v.SetDefault("workflow.temp_dir", "")
	v.SetDefault("workflow.max_concurrent_jobs", 4)
	v.SetDefault("workflow.shutdown_timeout", 30*time.Second)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "nercompare.job-events")

	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.chat_path", "/api/v1/chat/completions")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

// mergeLegacyDatabase reads the [postgresql] section of an INI file and
// switches the database to postgres.
func mergeLegacyDatabase(db *DatabaseConfig) error {
	v := viper.New()
	v.SetConfigFile(db.ConfigPath)
	v.SetConfigType("ini")
	v.SetDefault("postgresql.host", "localhost")
	v.SetDefault("postgresql.port", 5432)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read database config %s: %w", db.ConfigPath, err)
	}

	db.Driver = "postgres"
	db.Host = v.GetString("postgresql.host")
	db.Port = v.GetInt("postgresql.port")
	db.User = v.GetString("postgresql.user")
	db.Password = v.GetString("postgresql.password")
	db.DBName = v.GetString("postgresql.dbname")
	return nil
}
