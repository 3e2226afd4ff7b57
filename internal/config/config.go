package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	DefaultProvider string `mapstructure:"default_provider" validate:"omitempty,oneof=twilio vapi"`
	CallbackBaseURL string `mapstructure:"callback_base_url" validate:"omitempty,url"`
	DefaultVoice    string `mapstructure:"default_voice"`
	DefaultLanguage string `mapstructure:"default_language"`

	HTTPPort    string `mapstructure:"http_port"`
	HTTPTimeout int    `mapstructure:"http_timeout"`

	TwilioAccountSID            string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken             string `mapstructure:"twilio_auth_token"`
	TwilioBaseUrl               string `mapstructure:"twilio_base_url"                validate:"omitempty,url"`
	TwilioFromNumber            string `mapstructure:"twilio_from_number"`
	TwilioTimeout               int    `mapstructure:"twilio_timeout"`
	TwilioRetryMaxAttempts      uint   `mapstructure:"twilio_retry_max_attempts"`
	TwilioRetryMinBackoff       int    `mapstructure:"twilio_retry_min_backoff"`
	TwilioRetryMaxBackoff       int    `mapstructure:"twilio_retry_max_backoff"`
	TwilioIntervalCB            uint32 `mapstructure:"twilio_interval_cb"`
	TwilioConsecutiveFailuresCB uint32 `mapstructure:"twilio_consecutive_failures_cb"`

	VapiAPIKey                string `mapstructure:"vapi_api_key"`
	VapiBaseUrl               string `mapstructure:"vapi_base_url"                validate:"omitempty,url"`
	VapiPhoneNumberID         string `mapstructure:"vapi_phone_number_id"`
	VapiAssistantID           string `mapstructure:"vapi_assistant_id"`
	VapiTimeout               int    `mapstructure:"vapi_timeout"`
	VapiRetryMaxAttempts      uint   `mapstructure:"vapi_retry_max_attempts"`
	VapiRetryMinBackoff       int    `mapstructure:"vapi_retry_min_backoff"`
	VapiRetryMaxBackoff       int    `mapstructure:"vapi_retry_max_backoff"`
	VapiIntervalCB            uint32 `mapstructure:"vapi_interval_cb"`
	VapiConsecutiveFailuresCB uint32 `mapstructure:"vapi_consecutive_failures_cb"`

	OpenAIAPIKey                  string `mapstructure:"openai_api_key"`
	OpenAIBaseUrl                 string `mapstructure:"openai_base_url"`
	InsightsModel                 string `mapstructure:"insights_model"`
	InsightsTimeout               int    `mapstructure:"insights_timeout"`
	InsightsRetryMaxAttempts      uint   `mapstructure:"insights_retry_max_attempts"`
	InsightsRetryMinBackoff       int    `mapstructure:"insights_retry_min_backoff"`
	InsightsRetryMaxBackoff       int    `mapstructure:"insights_retry_max_backoff"`
	InsightsIntervalCB            uint32 `mapstructure:"insights_interval_cb"`
	InsightsConsecutiveFailuresCB uint32 `mapstructure:"insights_consecutive_failures_cb"`

	PostgresHost            string `mapstructure:"postgres_host"`
	PostgresUsername        string `mapstructure:"postgres_username"`
	PostgresPassword        string `mapstructure:"postgres_password"`
	PostgresPort            string `mapstructure:"postgres_port"`
	PostgresDatabase        string `mapstructure:"postgres_database"`
	DBIntervalCB            uint32 `mapstructure:"db_interval_cb"`
	DBConsecutiveFailuresCB uint32 `mapstructure:"db_consecutive_failures_cb"`

	KafkaBootstrapServer       string `mapstructure:"kafka_bootstrap_server"`
	KafkaUsername              string `mapstructure:"kafka_username"`
	KafkaPassword              string `mapstructure:"kafka_password"`
	KafkaCallEventsTopic       string `mapstructure:"kafka_call_events_topic"`
	KafkaIntervalCB            uint32 `mapstructure:"kafka_interval_cb"`
	KafkaConsecutiveFailuresCB uint32 `mapstructure:"kafka_consecutive_failures_cb"`

	MinioEndpointURL            string `mapstructure:"minio_endpoint_url"`
	MinioAccessKey              string `mapstructure:"minio_access_key"`
	MinioSecretKey              string `mapstructure:"minio_secret_key"`
	MinioBucketName             string `mapstructure:"minio_bucket_name"`
	MinioPathPrefix             string `mapstructure:"minio_path_prefix"`
	MinioMaxRetryAttempts       uint   `mapstructure:"minio_max_retry_attempts"`
	MinioRetryBackoffMinSeconds int    `mapstructure:"minio_retry_backoff_min_seconds"`
	MinioRetryBackoffMaxSeconds int    `mapstructure:"minio_retry_backoff_max_seconds"`
	MinioTimeout                int    `mapstructure:"minio_timeout"`
	MinioIntervalCB             uint32 `mapstructure:"minio_interval_cb"`
	MinioConsecutiveFailuresCB  uint32 `mapstructure:"minio_consecutive_failures_cb"`
	RecordingMaxFileSize        int64  `mapstructure:"recording_max_file_size"`

	DispatchInterval   int `mapstructure:"dispatch_interval"`
	DispatchPoolSize   int `mapstructure:"dispatch_pool_size"`
	DispatchBatchLimit int `mapstructure:"dispatch_batch_limit"`

	LogLevel    string `mapstructure:"log_level"`
	LogFilePath string `mapstructure:"log_file_path"`

	HealthCheckerMonitorInterval int `mapstructure:"health_checker_monitor_interval"`

	PrometheusPort    string `mapstructure:"prometheus_port"`
	PrometheusTimeout int    `mapstructure:"prometheus_timeout"`
}

var Conf Config

func init() {
	err := loadEnvConfig(&Conf)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.String("error", err.Error()))
	}
}

func loadEnvConfig(cfg *Config) error {
	viper.AutomaticEnv()
	viper.AllowEmptyEnv(true)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setupDefaults()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError

		ok := errors.As(err, &configFileNotFoundError)
		if !ok {
			return err
		}
	}

	err = viper.Unmarshal(cfg)
	if err != nil {
		return err
	}

	err = validator.New().Struct(cfg)
	if err != nil {
		return err
	}

	return nil
}

func setupDefaults() {
	confType := reflect.TypeOf(Conf)
	for i := range confType.NumField() {
		field := confType.Field(i)
		viper.SetDefault(field.Tag.Get("mapstructure"), "")
	}

	viper.SetDefault("DEFAULT_PROVIDER", "twilio")
	viper.SetDefault("DEFAULT_VOICE", "alice")
	viper.SetDefault("DEFAULT_LANGUAGE", "en-US")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("HTTP_TIMEOUT", "30")
	viper.SetDefault("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01")
	viper.SetDefault("TWILIO_TIMEOUT", "30")
	viper.SetDefault("TWILIO_RETRY_MAX_ATTEMPTS", "3")
	viper.SetDefault("TWILIO_RETRY_MIN_BACKOFF", "1")
	viper.SetDefault("TWILIO_RETRY_MAX_BACKOFF", "10")
	viper.SetDefault("TWILIO_INTERVAL_CB", "30")
	viper.SetDefault("TWILIO_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("VAPI_BASE_URL", "https://api.vapi.ai")
	viper.SetDefault("VAPI_TIMEOUT", "30")
	viper.SetDefault("VAPI_RETRY_MAX_ATTEMPTS", "3")
	viper.SetDefault("VAPI_RETRY_MIN_BACKOFF", "1")
	viper.SetDefault("VAPI_RETRY_MAX_BACKOFF", "10")
	viper.SetDefault("VAPI_INTERVAL_CB", "30")
	viper.SetDefault("VAPI_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("INSIGHTS_MODEL", "gpt-4o-mini")
	viper.SetDefault("INSIGHTS_TIMEOUT", "60")
	viper.SetDefault("INSIGHTS_RETRY_MAX_ATTEMPTS", "3")
	viper.SetDefault("INSIGHTS_RETRY_MIN_BACKOFF", "1")
	viper.SetDefault("INSIGHTS_RETRY_MAX_BACKOFF", "10")
	viper.SetDefault("INSIGHTS_INTERVAL_CB", "30")
	viper.SetDefault("INSIGHTS_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("DB_INTERVAL_CB", "30")
	viper.SetDefault("DB_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("KAFKA_INTERVAL_CB", "30")
	viper.SetDefault("KAFKA_CONSECUTIVE_FAILURES_CB", "5")
	viper.SetDefault("MINIO_MAX_RETRY_ATTEMPTS", "3")
	viper.SetDefault("MINIO_RETRY_BACKOFF_MIN_SECONDS", "1")
	viper.SetDefault("MINIO_RETRY_BACKOFF_MAX_SECONDS", "10")
	viper.SetDefault("MINIO_TIMEOUT", "60")
	viper.SetDefault("MINIO_INTERVAL_CB", "300")
	viper.SetDefault("MINIO_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("RECORDING_MAX_FILE_SIZE", "52428800")
	viper.SetDefault("DISPATCH_INTERVAL", "30")
	viper.SetDefault("DISPATCH_POOL_SIZE", "4")
	viper.SetDefault("DISPATCH_BATCH_LIMIT", "50")
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("LOG_FILE_PATH", "./access.log")
	viper.SetDefault("HEALTH_CHECKER_MONITOR_INTERVAL", "60")
	viper.SetDefault("PROMETHEUS_PORT", "2112")
	viper.SetDefault("PROMETHEUS_TIMEOUT", "60")
}
