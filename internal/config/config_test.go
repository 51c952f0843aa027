package config

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	type want struct {
		serverAddress string
		databaseDSN   string
		botToken      string
		shouldError   bool
	}

	tests := []struct {
		name    string
		envVars map[string]string
		flags   []string
		want    want
	}{
		{
			name: "default values with token from env",
			envVars: map[string]string{
				"BOT_TOKEN": "token-from-env",
			},
			flags: []string{},
			want: want{
				serverAddress: "localhost:8080",
				databaseDSN:   "",
				botToken:      "token-from-env",
				shouldError:   false,
			},
		},
		{
			name: "environment variables only",
			envVars: map[string]string{
				"SERVER_ADDRESS": "localhost:8888",
				"DATABASE_DSN":   "postgres://localhost:5432/ipkeeper",
				"BOT_TOKEN":      "123:abc",
			},
			flags: []string{},
			want: want{
				serverAddress: "localhost:8888",
				databaseDSN:   "postgres://localhost:5432/ipkeeper",
				botToken:      "123:abc",
				shouldError:   false,
			},
		},
		{
			name:    "flags only",
			envVars: map[string]string{},
			flags:   []string{"-a", "localhost:9999", "-t", "456:def"},
			want: want{
				serverAddress: "localhost:9999",
				databaseDSN:   "",
				botToken:      "456:def",
				shouldError:   false,
			},
		},
		{
			name: "environment variables override flags",
			envVars: map[string]string{
				"SERVER_ADDRESS": "env-server:7777",
				"BOT_TOKEN":      "env-token",
			},
			flags: []string{"-a", "flag-server:8888", "-t", "flag-token"},
			want: want{
				serverAddress: "env-server:7777",
				databaseDSN:   "",
				botToken:      "env-token",
				shouldError:   false,
			},
		},
		{
			name:    "missing bot token",
			envVars: map[string]string{},
			flags:   []string{},
			want: want{
				shouldError: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}

			os.Args = append([]string{"test"}, tt.flags...)

			cfg, err := ParseFlags()

			if tt.want.shouldError {
				require.Error(t, err, "expected error but got none")
				assert.Contains(t, err.Error(), "cannot be empty")
			} else {
				require.NoError(t, err, "unexpected error")

				assert.Equal(t, tt.want.serverAddress, cfg.ServerAddress,
					"server address mismatch")
				assert.Equal(t, tt.want.databaseDSN, cfg.DatabaseDSN,
					"database DSN mismatch")
				assert.Equal(t, tt.want.botToken, cfg.BotToken,
					"bot token mismatch")
				assert.NotEmpty(t, cfg.WebhookSecret,
					"webhook secret gets a generated default")
			}
		})
	}
}
