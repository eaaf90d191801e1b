package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate checks the configuration and returns every problem found,
// joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	check("api.base-url", ValidateURL(c.API.BaseURL))
	if c.API.Timeout < 0 {
		check("api.timeout", fmt.Errorf("must not be negative"))
	}
	if c.API.CacheTTL < 0 {
		check("api.cache-ttl", fmt.Errorf("must not be negative"))
	}
	if c.API.Retry.Attempts == 0 {
		check("api.retry.attempts", fmt.Errorf("must be at least 1"))
	}
	if c.Fetch.CCIConcurrency < 0 {
		check("fetch.cci-concurrency", fmt.Errorf("must not be negative"))
	}
	check("store.path", ValidateNonEmpty(c.Store.Path))
	check("log.level", ValidateLogLevel(c.Log.Level))
	check("log.format", ValidateLogFormat(c.Log.Format))
	check("serve.addr", ValidateOptionalHostPort(c.Serve.Addr))

	if s3 := c.Export.S3; s3.Endpoint != "" || s3.Bucket != "" {
		check("export.s3.endpoint", ValidateNonEmpty(s3.Endpoint))
		check("export.s3.bucket", ValidateNonEmpty(s3.Bucket))
	}
	return errors.Join(errs...)
}

// ValidateURL checks that s is an absolute http(s) URL.
func ValidateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("URL host cannot be empty")
	}
	return nil
}

// ValidateHostPort checks that s is a valid host:port address. An empty
// host (":8080") listens on every interface.
func ValidateHostPort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("address is required")
	}
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("invalid address (expected host:port): %w", err)
	}
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	return nil
}

// ValidateOptionalHostPort checks a host:port only if non-empty.
func ValidateOptionalHostPort(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return ValidateHostPort(s)
}

// ValidateNonEmpty checks that s is not empty after trimming whitespace.
func ValidateNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// ValidateLogLevel checks that s names a logrus level.
func ValidateLogLevel(s string) error {
	if _, err := logrus.ParseLevel(s); err != nil {
		return fmt.Errorf("unknown log level %q", s)
	}
	return nil
}

// ValidateLogFormat checks that s is "text" or "json".
func ValidateLogFormat(s string) error {
	switch s {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("log format must be text or json")
}
