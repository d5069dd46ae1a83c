package postgres

import (
	"net"
	"net/url"
	"strconv"

	"github.com/uday68/commandgrid-sub003/internal/config"
)

const applicationName = "commandgrid-realtime"

// BuildConnString renders cfg as a postgres:// URL. Credentials are escaped
// and sslmode falls back to "prefer".
func BuildConnString(cfg config.DBConfig) string {
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	if cfg.SSLMode == "" {
		q.Set("sslmode", "prefer")
	}
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
