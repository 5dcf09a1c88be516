/**
 * @description
 * Configuration management for the family-budget backend. Settings come from
 * environment variables (or a local .env file loaded in main), with defaults
 * for the cron schedules and the HTTP port.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 */

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	AggregatorBaseURL  string `mapstructure:"AGGREGATOR_BASE_URL"`
	AggregatorClientID string `mapstructure:"AGGREGATOR_CLIENT_ID"`
	AggregatorSecret   string `mapstructure:"AGGREGATOR_SECRET"`

	PushGatewayURL    string `mapstructure:"PUSH_GATEWAY_URL"`
	PushGatewayAPIKey string `mapstructure:"PUSH_GATEWAY_API_KEY"`
	PushBundleID      string `mapstructure:"PUSH_BUNDLE_ID"`

	SMSBaseURL    string `mapstructure:"SMS_BASE_URL"`
	SMSAccountSID string `mapstructure:"SMS_ACCOUNT_SID"`
	SMSAuthToken  string `mapstructure:"SMS_AUTH_TOKEN"`
	SMSFromNumber string `mapstructure:"SMS_FROM_NUMBER"`

	SyncJobSchedule           string `mapstructure:"SYNC_JOB_SCHEDULE"`
	RenewalJobSchedule        string `mapstructure:"RENEWAL_JOB_SCHEDULE"`
	RollupJobSchedule         string `mapstructure:"ROLLUP_JOB_SCHEDULE"`
	WeeklySummaryJobSchedule  string `mapstructure:"WEEKLY_SUMMARY_JOB_SCHEDULE"`
	MonthlySummaryJobSchedule string `mapstructure:"MONTHLY_SUMMARY_JOB_SCHEDULE"`

	RenewalReminderDays int `mapstructure:"RENEWAL_REMINDER_DAYS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SYNC_JOB_SCHEDULE", "*/5 * * * *")          // every 5 minutes
	viper.SetDefault("RENEWAL_JOB_SCHEDULE", "0 9 * * *")         // daily at 09:00
	viper.SetDefault("ROLLUP_JOB_SCHEDULE", "30 * * * *")         // hourly at :30
	viper.SetDefault("WEEKLY_SUMMARY_JOB_SCHEDULE", "0 9 * * 0")  // Sundays at 09:00
	viper.SetDefault("MONTHLY_SUMMARY_JOB_SCHEDULE", "0 9 1 * *") // 1st at 09:00
	viper.SetDefault("RENEWAL_REMINDER_DAYS", 3)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("AGGREGATOR_BASE_URL")
	_ = viper.BindEnv("AGGREGATOR_CLIENT_ID")
	_ = viper.BindEnv("AGGREGATOR_SECRET")
	_ = viper.BindEnv("PUSH_GATEWAY_URL")
	_ = viper.BindEnv("PUSH_GATEWAY_API_KEY")
	_ = viper.BindEnv("PUSH_BUNDLE_ID")
	_ = viper.BindEnv("SMS_BASE_URL")
	_ = viper.BindEnv("SMS_ACCOUNT_SID")
	_ = viper.BindEnv("SMS_AUTH_TOKEN")
	_ = viper.BindEnv("SMS_FROM_NUMBER")
	_ = viper.BindEnv("SYNC_JOB_SCHEDULE")
	_ = viper.BindEnv("RENEWAL_JOB_SCHEDULE")
	_ = viper.BindEnv("ROLLUP_JOB_SCHEDULE")
	_ = viper.BindEnv("WEEKLY_SUMMARY_JOB_SCHEDULE")
	_ = viper.BindEnv("MONTHLY_SUMMARY_JOB_SCHEDULE")
	_ = viper.BindEnv("RENEWAL_REMINDER_DAYS")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if config.AggregatorBaseURL == "" {
		return nil, fmt.Errorf("AGGREGATOR_BASE_URL is required")
	}

	return &config, nil
}
