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
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine     string // memory | postgres
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	RosterConfig struct {
		DefaultRecitationDays []int
		DefaultPassingScore   int
	}

	PlansConfig struct {
		FreeMaxCourses int
	}

	GoogleConfig struct {
		Simulated        bool
		SimulatedLatency time.Duration
		ClientID         string
		ClientSecret     string
		RedirectURL      string
		Timeout          time.Duration
		JobRetention     time.Duration // finished jobs are forgotten after this
	}

	MessagingConfig struct {
		TelegramBotToken string
		TelegramAPIURL   string
		TelegramRate     float64 // messages per second
		SendgridApiKey   string
	}

	Config struct {
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		SecretKey        string
		WorkDir          string
		DefaultFromEmail mail.Address
		RollbarToken     string

		Server    ServerConfig
		Database  DatabaseConfig
		Roster    RosterConfig
		Plans     PlansConfig
		Google    GoogleConfig
		Messaging MessagingConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) InMemory() bool {
	return c.Engine == "" || c.Engine == "memory"
}

// NewConfig reads the configuration from defaults, the optional config/.env.<env> file and the environment.
// Environment variables are prefixed with the ENV name, e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Halaqat")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "d3v-k3y!8f0c2a(halaqat)e6#4b19-cha4ng3-m3")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost:8000")
	conf.SetDefault("server.debugHost", "localhost:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("database.engine", "memory")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "halaqat")
	conf.SetDefault("database.user", "postgres")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("roster.defaultRecitationDays", "0,1,2,3,4") // Sun - Thu
	conf.SetDefault("roster.defaultPassingScore", 8)

	conf.SetDefault("plans.freeMaxCourses", 2)

	conf.SetDefault("google.simulated", true)
	conf.SetDefault("google.simulatedLatency", 1500*time.Millisecond)
	conf.SetDefault("google.clientID", "")
	conf.SetDefault("google.clientSecret", "")
	conf.SetDefault("google.redirectURL", "")
	conf.SetDefault("google.timeout", 30*time.Second)
	conf.SetDefault("google.jobRetention", time.Hour)

	conf.SetDefault("messaging.telegramBotToken", "")
	conf.SetDefault("messaging.telegramAPIURL", "https://api.telegram.org")
	conf.SetDefault("messaging.telegramRate", 25.0)
	conf.SetDefault("messaging.sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("google.simulatedLatency", time.Duration(0))
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		AppName:          conf.GetString("appName"),
		Build:            conf.GetString("build"),
		SecretKey:        conf.GetString("secretKey"),
		WorkDir:          wd,
		DefaultFromEmail: mail.Address{Name: conf.GetString("appName"), Address: conf.GetString("defaultFromEmail")},
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			DebugHost:          conf.GetString("server.debugHost"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:     conf.GetString("database.engine"),
			Host:       conf.GetString("database.host"),
			Port:       conf.GetInt("database.port"),
			Name:       conf.GetString("database.name"),
			User:       conf.GetString("database.user"),
			Password:   conf.GetString("database.password"),
			DisableTLS: conf.GetBool("database.disableTLS"),
		},
		Roster: RosterConfig{
			DefaultRecitationDays: parseWeekdays(conf.GetString("roster.defaultRecitationDays")),
			DefaultPassingScore:   conf.GetInt("roster.defaultPassingScore"),
		},
		Plans: PlansConfig{
			FreeMaxCourses: conf.GetInt("plans.freeMaxCourses"),
		},
		Google: GoogleConfig{
			Simulated:        conf.GetBool("google.simulated"),
			SimulatedLatency: conf.GetDuration("google.simulatedLatency"),
			ClientID:         conf.GetString("google.clientID"),
			ClientSecret:     conf.GetString("google.clientSecret"),
			RedirectURL:      conf.GetString("google.redirectURL"),
			Timeout:          conf.GetDuration("google.timeout"),
			JobRetention:     conf.GetDuration("google.jobRetention"),
		},
		Messaging: MessagingConfig{
			TelegramBotToken: conf.GetString("messaging.telegramBotToken"),
			TelegramAPIURL:   conf.GetString("messaging.telegramAPIURL"),
			TelegramRate:     conf.GetFloat64("messaging.telegramRate"),
			SendgridApiKey:   conf.GetString("messaging.sendgridApiKey"),
		},
	}
}

// parseWeekdays parses a comma separated list of weekdays (0 = Sunday), skipping invalid entries.
func parseWeekdays(s string) []int {
	days := make([]int, 0, 7)
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		days = append(days, d)
	}
	return days
}
