package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the client's runtime settings. It is populated once at
// startup and passed around explicitly.
type Config struct {
	Env      string
	Debug    bool
	TestMode bool
	AppName  string
	Build    string

	API struct {
		BaseURL string
		Timeout time.Duration
	}

	// TokenPath is where the bearer token is persisted between runs.
	TokenPath string

	RollbarToken string
}

// NewConfig loads the Config from defaults, an optional .env file and
// the environment.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Alama")
	conf.SetDefault("build", "dev")
	conf.SetDefault("apiBaseUrl", "http://localhost:5000/api")
	conf.SetDefault("apiTimeout", 30*time.Second)
	conf.SetDefault("tokenPath", defaultTokenPath())
	conf.SetDefault("rollbarToken", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		Env:          env,
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		Build:        conf.GetString("build"),
		TokenPath:    conf.GetString("tokenPath"),
		RollbarToken: conf.GetString("rollbarToken"),
	}
	c.API.BaseURL = conf.GetString("apiBaseUrl")
	c.API.Timeout = conf.GetDuration("apiTimeout")
	return c
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alama-token"
	}
	return filepath.Join(home, ".alama", "token")
}
