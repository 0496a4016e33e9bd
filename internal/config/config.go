package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/validator"
)

const (
	BackendFirestore = "firestore"
	BackendRedis     = "redis"

	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

type Config struct {
	Env  string `validate:"required"`
	Port string `validate:"required"`

	DiscordToken      string `validate:"required"`
	DiscordAPIBaseURL string `validate:"required,url"`

	EnableForwarding bool
	PrivateChannelID string `validate:"required_if=EnableForwarding true"`
	PublicChannelID  string `validate:"required"`
	ApproveEmoji     string `validate:"required"`

	SlickdealsQueries []models.QuerySpec `validate:"dive"`

	FooterIcon string `validate:"omitempty,url"`
	FooterText string

	StoreBackend  string `validate:"oneof=firestore redis"`
	ProjectID     string `validate:"required_if=StoreBackend firestore"`
	RedisAddr     string `validate:"required_if=StoreBackend redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	FetchMode      string `validate:"oneof=http browser"`
	UserAgent      string
	HTTPTimeout    time.Duration `validate:"gt=0"`
	AllowedDomains []string      `validate:"min=1"`

	StartupDelay  time.Duration `validate:"gte=0"`
	PostDelay     time.Duration `validate:"gte=0"`
	QueryDelay    time.Duration `validate:"gte=0"`
	CycleInterval time.Duration `validate:"gt=0"`
}

// Load reads the optional config file (config.json / config.yaml, or the path in
// DEALBOT_CONFIG) and overlays DEALBOT_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEALBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("DEALBOT_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("No config file found, using environment and defaults")
	} else {
		slog.Info("Loaded config file", "path", v.ConfigFileUsed())
	}

	queries, err := decodeQueries(v.Get("slickdealsQueries"))
	if err != nil {
		return nil, err
	}

	token := v.GetString("discordToken")
	if token == "" {
		token = os.Getenv("DISCORD_TOKEN")
	}
	privateChannel, err := channelID(v, "privateChannelId")
	if err != nil {
		return nil, err
	}
	publicChannel, err := channelID(v, "publicChannelId")
	if err != nil {
		return nil, err
	}
	projectID := v.GetString("projectId")
	if projectID == "" {
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	cfg := &Config{
		Env:               v.GetString("env"),
		Port:              v.GetString("port"),
		DiscordToken:      token,
		DiscordAPIBaseURL: strings.TrimRight(v.GetString("discordApiBaseUrl"), "/"),
		EnableForwarding:  v.GetBool("enableForwarding"),
		PrivateChannelID:  privateChannel,
		PublicChannelID:   publicChannel,
		ApproveEmoji:      v.GetString("approveEmoji"),
		SlickdealsQueries: queries,
		FooterIcon:        v.GetString("footerIcon"),
		FooterText:        v.GetString("footerText"),
		StoreBackend:      strings.ToLower(v.GetString("storeBackend")),
		ProjectID:         projectID,
		RedisAddr:         v.GetString("redisAddr"),
		RedisPassword:     v.GetString("redisPassword"),
		RedisDB:           v.GetInt("redisDb"),
		FetchMode:         strings.ToLower(v.GetString("fetchMode")),
		UserAgent:         v.GetString("userAgent"),
		HTTPTimeout:       v.GetDuration("httpTimeout"),
		AllowedDomains:    v.GetStringSlice("allowedDomains"),
		StartupDelay:      v.GetDuration("startupDelay"),
		PostDelay:         v.GetDuration("postDelay"),
		QueryDelay:        v.GetDuration("queryDelay"),
		CycleInterval:     v.GetDuration("cycleInterval"),
	}

	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration (%s): %w", strings.Join(validator.FailedFields(err), ", "), err)
	}
	if len(cfg.SlickdealsQueries) == 0 {
		slog.Warn("slickdealsQueries is empty, the poll loop will have nothing to scrape")
	}

	return cfg, nil
}

// channelID reads a Discord snowflake. JSON numbers are decoded as float64 and have
// already lost precision by then, so only strings and exact integers are accepted.
func channelID(v *viper.Viper, key string) (string, error) {
	switch raw := v.Get(key).(type) {
	case nil:
		return "", nil
	case float32, float64:
		return "", fmt.Errorf("%s must be a quoted string, got number %v", key, raw)
	default:
		id, err := cast.ToStringE(raw)
		if err != nil {
			return "", fmt.Errorf("%s: %w", key, err)
		}
		return id, nil
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("port", "8080")
	v.SetDefault("discordApiBaseUrl", "https://discord.com/api/v10")
	v.SetDefault("enableForwarding", false)
	v.SetDefault("approveEmoji", "\U0001F4C8")
	v.SetDefault("storeBackend", BackendFirestore)
	v.SetDefault("redisAddr", "")
	v.SetDefault("redisDb", 0)
	v.SetDefault("fetchMode", FetchModeHTTP)
	v.SetDefault("userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("httpTimeout", 30*time.Second)
	v.SetDefault("allowedDomains", []string{"slickdeals.net"})
	v.SetDefault("startupDelay", 3*time.Second)
	v.SetDefault("postDelay", 3*time.Second)
	v.SetDefault("queryDelay", 60*time.Second)
	v.SetDefault("cycleInterval", time.Hour)

	// Registered so AutomaticEnv can see them without a default value.
	for _, key := range []string{"discordToken", "privateChannelId", "publicChannelId", "footerIcon", "footerText", "projectId", "redisPassword"} {
		_ = v.BindEnv(key)
	}
}

// decodeQueries accepts either plain search terms or {query, perPage, sort} objects.
func decodeQueries(raw interface{}) ([]models.QuerySpec, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		// From the environment: comma separated terms.
		var specs []models.QuerySpec
		for _, term := range strings.Split(s, ",") {
			if term = strings.TrimSpace(term); term != "" {
				specs = append(specs, models.QuerySpec{Query: term})
			}
		}
		return specs, nil
	}

	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("slickdealsQueries must be a list: %w", err)
	}

	specs := make([]models.QuerySpec, 0, len(items))
	for i, item := range items {
		var spec models.QuerySpec
		switch it := item.(type) {
		case string:
			spec.Query = it
		default:
			m, err := cast.ToStringMapE(it)
			if err != nil {
				return nil, fmt.Errorf("slickdealsQueries[%d]: unsupported entry %T", i, item)
			}
			spec.Query = cast.ToString(lookup(m, "query", "q"))
			if spec.PerPage, err = cast.ToIntE(orZero(lookup(m, "perPage", "pp"))); err != nil {
				return nil, fmt.Errorf("slickdealsQueries[%d].perPage: %w", i, err)
			}
			spec.Sort = cast.ToString(lookup(m, "sort"))
		}
		spec.Query = strings.TrimSpace(spec.Query)
		if spec.Query == "" {
			return nil, fmt.Errorf("slickdealsQueries[%d]: query term is empty", i)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// lookup returns the first present key; viper lower-cases nested map keys.
func lookup(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
		if v, ok := m[strings.ToLower(k)]; ok {
			return v
		}
	}
	return nil
}

func orZero(v interface{}) interface{} {
	if v == nil {
		return 0
	}
	return v
}
