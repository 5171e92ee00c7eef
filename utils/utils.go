package utils

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

// LoadEnvFile reads .env into the process environment. A missing file is not
// an error, the variables may come from the real environment.
func LoadEnvFile() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Msg("Error loading .env file")
	}
}

func GetEnvOrDefault(varName string, defaultValue string) string {
	if envVar := os.Getenv(varName); envVar != "" {
		return envVar
	}
	return defaultValue
}

// SplitCSV splits a comma separated env value, dropping empty entries.
func SplitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(date string) *time.Time {
	if parsedDate, err := time.Parse(dateLayout, date); err == nil {
		return &parsedDate
	}
	parsedDate, err := time.Parse(time.RFC3339, date)
	if err != nil {
		log.Debug().Err(err).Str("date", date).Msg("Error parsing date")
		return nil
	}
	return &parsedDate
}

// FormatDate renders t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
