package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvSenderEmail    = "SENDER_EMAIL"
	EnvSenderPassword = "SENDER_PASSWORD"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
)

// LoadEnv reads the first existing .env file among paths into the process
// environment. Variables already set in the environment win. A missing file
// is not an error; it reports whether a file was loaded.
func LoadEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		if err := godotenv.Load(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return "", nil
}

// Credentials are the SMTP login read from the environment.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Complete() bool { return c.Email != "" && c.Password != "" }

func CredentialsFromEnv() Credentials {
	return Credentials{
		Email:    strings.TrimSpace(os.Getenv(EnvSenderEmail)),
		Password: os.Getenv(EnvSenderPassword),
	}
}
