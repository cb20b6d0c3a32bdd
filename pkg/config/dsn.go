package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPostgresPort = 5432
	defaultSSLMode      = "disable"
)

// ParsedDatabaseURL is a DATABASE_URL broken into the pieces the sqlx/pq
// stack wants. Deploy environments hand the services one URL; everything
// else in the database config derives from it.
type ParsedDatabaseURL struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Options  map[string]string
}

// ParseDatabaseURL parses postgres:// and postgresql:// connection URLs.
func ParseDatabaseURL(rawURL string) (*ParsedDatabaseURL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	rawURL = strings.Replace(rawURL, "postgresql://", "postgres://", 1)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" {
		return nil, fmt.Errorf("invalid database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}

	parsed := &ParsedDatabaseURL{
		Host:     u.Hostname(),
		Port:     defaultPostgresPort,
		Database: strings.TrimPrefix(u.Path, "/"),
		Options:  make(map[string]string),
	}

	if portStr := u.Port(); portStr != "" {
		parsed.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in database URL: %w", err)
		}
	}

	if u.User != nil {
		parsed.User = u.User.Username()
		parsed.Password, _ = u.User.Password()
	}

	for key, values := range u.Query() {
		if len(values) > 0 {
			parsed.Options[key] = values[0]
		}
	}

	// sslmode is a first-class field, not a passthrough option
	parsed.SSLMode = defaultSSLMode
	if mode, ok := parsed.Options["sslmode"]; ok {
		parsed.SSLMode = mode
		delete(parsed.Options, "sslmode")
	}

	return parsed, nil
}

// BuildDatabaseURL assembles a postgres:// URL from its components. The
// password is escaped so credentials with special characters survive.
func BuildDatabaseURL(host string, port int, user, password, database, sslMode string) string {
	if sslMode == "" {
		sslMode = defaultSSLMode
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, url.QueryEscape(password), host, port, database, sslMode,
	)
}

// ToDSN renders the libpq key=value form pq expects.
func (p *ParsedDatabaseURL) ToDSN() string {
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
	for key, value := range p.Options {
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}

// ToURL renders the URL form back out.
func (p *ParsedDatabaseURL) ToURL() string {
	return BuildDatabaseURL(p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
