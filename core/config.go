package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                   string
		Addr                   string
		DebugHost              string
		ShutdownTimeout        time.Duration
		ReadTimeout            time.Duration
		WriteTimeout           time.Duration
		SessionExpirationDelta time.Duration
		DisableReqLogs         bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool
	}

	UploadsConfig struct {
		Backend     string // local | s3
		Dir         string
		MaxSize     int64 // bytes
		S3Bucket    string
		S3Region    string
		S3Endpoint  string
		S3AccessKey string
		S3SecretKey string
	}

	RedisConfig struct {
		URL            string
		CourseCacheTTL time.Duration
	}

	JobsConfig struct {
		SweepSchedule string
		OrphanMaxAge  time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		FrontendBaseURL  string
		WorkDir          string

		Server   ServerConfig
		Database DatabaseConfig
		Uploads  UploadsConfig
		Redis    RedisConfig
		Jobs     JobsConfig
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the app configuration.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
// Values are read from `config/.env.<env>` (if it exists) and from environment variables prefixed with ENV,
// eg. DEV_DATABASE_HOST for `database.host`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              v.GetString("env"),
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		WorkDir:          wd,
		Server: ServerConfig{
			Host:                   v.GetString("server.host"),
			Addr:                   v.GetString("server.addr"),
			DebugHost:              v.GetString("server.debugHost"),
			ShutdownTimeout:        v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:            v.GetDuration("server.readTimeout"),
			WriteTimeout:           v.GetDuration("server.writeTimeout"),
			SessionExpirationDelta: v.GetDuration("server.sessionExpirationDelta"),
			DisableReqLogs:         v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			InMemory:      v.GetBool("database.inMemory"),
		},
		Uploads: UploadsConfig{
			Backend:     v.GetString("uploads.backend"),
			Dir:         absPath(wd, v.GetString("uploads.dir")),
			MaxSize:     v.GetInt64("uploads.maxSize"),
			S3Bucket:    v.GetString("uploads.s3Bucket"),
			S3Region:    v.GetString("uploads.s3Region"),
			S3Endpoint:  v.GetString("uploads.s3Endpoint"),
			S3AccessKey: v.GetString("uploads.s3AccessKey"),
			S3SecretKey: v.GetString("uploads.s3SecretKey"),
		},
		Redis: RedisConfig{
			URL:            v.GetString("redis.url"),
			CourseCacheTTL: v.GetDuration("redis.courseCacheTTL"),
		},
		Jobs: JobsConfig{
			SweepSchedule: v.GetString("jobs.sweepSchedule"),
			OrphanMaxAge:  v.GetDuration("jobs.orphanMaxAge"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Wartburg MCSP Teachers")
	v.SetDefault("secretKey", "k$8n)t2w@1p=0f!xq7z^e5v+_r6bl3u#9m-yc4hd(oja&is")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.sessionExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mcsp")
	v.SetDefault("database.user", "mcsp")
	v.SetDefault("database.password", "mcsp")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.inMemory", false)

	v.SetDefault("uploads.backend", "local")
	v.SetDefault("uploads.dir", "class_htmls")
	v.SetDefault("uploads.maxSize", int64(10<<20))
	v.SetDefault("uploads.s3Bucket", "")
	v.SetDefault("uploads.s3Region", "us-east-1")
	v.SetDefault("uploads.s3Endpoint", "")
	v.SetDefault("uploads.s3AccessKey", "")
	v.SetDefault("uploads.s3SecretKey", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.courseCacheTTL", 5*time.Minute)

	v.SetDefault("jobs.sweepSchedule", "@daily")
	v.SetDefault("jobs.orphanMaxAge", 24*time.Hour)
}

func absPath(wd, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(wd, p)
}
