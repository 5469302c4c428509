package config

import (
	"os"
	"strconv"
	"time"
)

// MobileMoneyConfig holds eBilling provider settings and the msisdn
// patterns accepted per operator.
type MobileMoneyConfig struct {
	BaseURL         string
	Username        string
	SharedKey       string
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MinAmount       float64
	AirtelPattern   string
	MoovPattern     string
	ReferencePrefix string
}

func LoadMobileMoneyConfig() *MobileMoneyConfig {
	return &MobileMoneyConfig{
		BaseURL:         getEnv("EBILLING_BASE_URL", "https://lab.billing-easy.net/api/v1"),
		Username:        getEnv("EBILLING_USERNAME", ""),
		SharedKey:       getEnv("EBILLING_SHARED_KEY", ""),
		RequestTimeout:  getEnvAsDuration("EBILLING_TIMEOUT", 10*time.Second),
		MaxRetries:      getEnvAsInt("EBILLING_MAX_RETRIES", 3),
		RetryBackoff:    getEnvAsDuration("EBILLING_RETRY_BACKOFF", 2*time.Second),
		MinAmount:       getEnvAsFloat("EBILLING_MIN_AMOUNT", 100),
		AirtelPattern:   getEnv("MSISDN_AIRTEL_PATTERN", `^0(74|76|77)[0-9]{6}$`),
		MoovPattern:     getEnv("MSISDN_MOOV_PATTERN", `^0(60|62|65|66)[0-9]{6}$`),
		ReferencePrefix: getEnv("PAYMENT_REFERENCE_PREFIX", "FP"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
