package cfg

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BotToken    string
	MiniAppURL  string
	LogLevel    string
	LogPretty   bool
	WebAddr     string
	MaxInFlight int
	PollTimeout time.Duration
}

var required = []string{"BOT_TOKEN"}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("WEB_ADDR", ":8080")
	v.SetDefault("MAX_IN_FLIGHT", 16)
	v.SetDefault("POLL_TIMEOUT", "30s")

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	c := Config{
		BotToken:    v.GetString("BOT_TOKEN"),
		MiniAppURL:  v.GetString("MINI_APP_URL"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogPretty:   v.GetBool("LOG_PRETTY"),
		WebAddr:     v.GetString("WEB_ADDR"),
		MaxInFlight: v.GetInt("MAX_IN_FLIGHT"),
		PollTimeout: v.GetDuration("POLL_TIMEOUT"),
	}
	if c.MiniAppURL == "" {
		c.MiniAppURL = v.GetString("WEB_APP_URL")
	}
	if c.MiniAppURL != "" {
		u, err := url.Parse(c.MiniAppURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Config{}, fmt.Errorf("invalid MINI_APP_URL %q", c.MiniAppURL)
		}
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 16
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Second
	}
	return c, nil
}
