package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	Rounds     RoundConfig
	Payout     PayoutConfig
	Membership MembershipConfig
	Referral   ReferralConfig
	Payments   PaymentConfig
	Redis      RedisConfig
	Notify     NotifyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port        string
	FrontendURL string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret          string
	StartingBonus      int64
	ReferralCodePrefix string
}

// Slot is one fixed UTC time-of-day in the daily round schedule
type Slot struct {
	Hour   int
	Minute int
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// RoundConfig holds the round schedule and the timings derived from it
type RoundConfig struct {
	Schedule         []Slot
	CheckInterval    time.Duration
	BetCutoff        time.Duration
	PreRoundReminder time.Duration
}

// PayoutConfig holds the win multipliers applied to a stake
type PayoutConfig struct {
	SingleMultiplier      decimal.Decimal
	CombinationMultiplier decimal.Decimal
}

// Tier describes one membership level and the one-off bonus for reaching it
type Tier struct {
	Name      string
	Threshold int64
	Bonus     int64
}

// MembershipConfig holds the tier table in ascending order
type MembershipConfig struct {
	Tiers []Tier
}

// ReferralConfig holds the referral cascade constants
type ReferralConfig struct {
	QualifyingDeposit int64
	StepSize          int64
	StepBonus         int64
	MilestoneCount    int64
	MilestoneBonus    int64
}

// PaymentConfig holds deposit and withdrawal settings
type PaymentConfig struct {
	MinWithdrawal       int64
	AutoApproveDeposits bool
	OCRURL              string
	OCRAPIKey           string
	OCRTimeout          time.Duration
}

// RedisConfig holds the optional redis connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// NotifyConfig holds the notification fan-out settings
type NotifyConfig struct {
	WebhookURL string
	NATSURL    string
	PoolSize   int
}

// DefaultSchedule is the sixteen hourly UTC rounds from 08:00 to 23:00
const DefaultSchedule = "08:00,09:00,10:00,11:00,12:00,13:00,14:00,15:00,16:00,17:00,18:00,19:00,20:00,21:00,22:00,23:00"

// DefaultTiers is the membership tier table used when none is configured
var DefaultTiers = []Tier{
	{Name: "silver", Threshold: 10000, Bonus: 100},
	{Name: "gold", Threshold: 20000, Bonus: 200},
	{Name: "platinum", Threshold: 50000, Bonus: 500},
	{Name: "diamond", Threshold: 100000, Bonus: 1000},
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	schedule, err := ParseSchedule(getEnv("ROUND_SCHEDULE", DefaultSchedule))
	if err != nil {
		return nil, err
	}

	single, err := decimal.NewFromString(getEnv("PAYOUT_SINGLE_MULTIPLIER", "9"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYOUT_SINGLE_MULTIPLIER: %w", err)
	}
	combination, err := decimal.NewFromString(getEnv("PAYOUT_COMBINATION_MULTIPLIER", "18"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYOUT_COMBINATION_MULTIPLIER: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "round_lottery"),
			SQLitePath: getEnv("SQLITE_PATH", "round_lottery.db"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", ""),
		},
		App: AppConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			StartingBonus:      getEnvInt64("STARTING_BONUS", 20),
			ReferralCodePrefix: getEnv("REFERRAL_CODE_PREFIX", "DESSI"),
		},
		Rounds: RoundConfig{
			Schedule:         schedule,
			CheckInterval:    getEnvDuration("ROUND_CHECK_INTERVAL", 30*time.Second),
			BetCutoff:        getEnvDuration("BET_CUTOFF", 10*time.Minute),
			PreRoundReminder: getEnvDuration("PRE_ROUND_REMINDER", 10*time.Minute),
		},
		Payout: PayoutConfig{
			SingleMultiplier:      single,
			CombinationMultiplier: combination,
		},
		Membership: MembershipConfig{
			Tiers: DefaultTiers,
		},
		Referral: ReferralConfig{
			QualifyingDeposit: getEnvInt64("REFERRAL_QUALIFYING_DEPOSIT", 100),
			StepSize:          getEnvInt64("REFERRAL_STEP_SIZE", 10),
			StepBonus:         getEnvInt64("REFERRAL_STEP_BONUS", 100),
			MilestoneCount:    getEnvInt64("REFERRAL_MILESTONE_COUNT", 100),
			MilestoneBonus:    getEnvInt64("REFERRAL_MILESTONE_BONUS", 1000),
		},
		Payments: PaymentConfig{
			MinWithdrawal:       getEnvInt64("MIN_WITHDRAWAL", 500),
			AutoApproveDeposits: getEnvBool("AUTO_APPROVE_DEPOSITS", false),
			OCRURL:              getEnv("OCR_URL", ""),
			OCRAPIKey:           getEnv("OCR_API_KEY", ""),
			OCRTimeout:          getEnvDuration("OCR_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       int(getEnvInt64("REDIS_DB", 0)),
			LockTTL:  getEnvDuration("REDIS_LOCK_TTL", 2*time.Minute),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			NATSURL:    getEnv("NATS_URL", ""),
			PoolSize:   int(getEnvInt64("NOTIFY_POOL_SIZE", 32)),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the fields the service cannot start without
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if len(c.Rounds.Schedule) == 0 {
		return fmt.Errorf("ROUND_SCHEDULE must contain at least one slot")
	}

	if !c.Payout.SingleMultiplier.IsPositive() || !c.Payout.CombinationMultiplier.IsPositive() {
		return fmt.Errorf("payout multipliers must be positive")
	}

	return nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// ParseSchedule parses "HH:MM,HH:MM,..." into slots. Slots must be strictly ascending.
func ParseSchedule(raw string) ([]Slot, error) {
	var slots []Slot
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		t, err := time.Parse("15:04", part)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule slot %q: %w", part, err)
		}

		slot := Slot{Hour: t.Hour(), Minute: t.Minute()}
		if n := len(slots); n > 0 {
			prev := slots[n-1]
			if prev.Hour*60+prev.Minute >= slot.Hour*60+slot.Minute {
				return nil, fmt.Errorf("schedule slot %s is not after %s", slot, prev)
			}
		}
		slots = append(slots, slot)
	}

	if len(slots) == 0 {
		return nil, fmt.Errorf("ROUND_SCHEDULE must contain at least one slot")
	}

	return slots, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
