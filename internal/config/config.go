// Package config provides configuration types for the mirror tool.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mohaanymo/vodmirror/internal/models"
)

// Common errors.
var (
	ErrMissingURL         = errors.New("URL is required")
	ErrMissingOutput      = errors.New("output destination is required")
	ErrInvalidFormat      = errors.New("invalid manifest format")
	ErrInvalidAuthHeader  = errors.New("auth header must be a JSON object of strings")
	ErrInvalidDestination = errors.New("invalid output destination")
)

// Config holds all application configuration.
type Config struct {
	// Input
	URL    string
	Format string // dash, hls or empty for detection

	// Output: a local directory or s3://bucket/path
	Output string

	// Download settings
	Threads        int
	RPS            float64 // queued requests per second, 0 = unlimited
	RetryAttempts  int
	RetryDelay     time.Duration
	Timeout        time.Duration // overall run deadline, 0 = none
	DeadlineMargin time.Duration
	MaxBandwidth   int64 // bytes per second, 0 = unlimited

	// HTTP settings
	Headers    map[string]string
	AuthHeader string // JSON object, merged into Headers

	// Signing: auto, on, off
	Signing       string
	SigningRegion string

	// UI/Logging
	ResolveOnly bool
	NoProgress  bool
	LogLevel    string
	LogFormat   string
	ShowVersion bool
}

// Default configuration values.
const (
	DefaultThreads        = 5
	DefaultRPS            = 1000
	DefaultRetryAttempts  = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultDeadlineMargin = 2 * time.Minute
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultSigning        = "auto"

	MaxThreads = 20
	MinThreads = 1
)

// New returns a Config with sensible defaults.
func New() *Config {
	return &Config{
		Threads:        DefaultThreads,
		RPS:            DefaultRPS,
		RetryAttempts:  DefaultRetryAttempts,
		RetryDelay:     DefaultRetryDelay,
		DeadlineMargin: DefaultDeadlineMargin,
		Signing:        DefaultSigning,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
		Headers:        make(map[string]string),
	}
}

// Validate checks if the configuration is valid and normalizes values.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if !c.ResolveOnly && c.Output == "" {
		return ErrMissingOutput
	}
	if _, err := models.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}

	// Clamp threads to valid range
	if c.Threads < MinThreads {
		c.Threads = MinThreads
	}
	if c.Threads > MaxThreads {
		c.Threads = MaxThreads
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	if c.RPS < 0 {
		c.RPS = 0
	}

	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	if c.AuthHeader != "" {
		auth, err := ParseAuthHeaders(c.AuthHeader)
		if err != nil {
			return err
		}
		for k, v := range auth {
			c.Headers[k] = v
		}
	}

	switch strings.ToLower(c.Signing) {
	case "", "auto", "on", "off":
	default:
		return fmt.Errorf("invalid signing mode %q", c.Signing)
	}

	return nil
}

// ParseAuthHeaders decodes a JSON object of header names to values.
// The CDN identifier key used in the origin's documentation is renamed to
// the header the origin actually checks.
func ParseAuthHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuthHeader, err)
	}
	if v, ok := headers["MediaPackageCDNIdentifier"]; ok {
		headers["X-MediaPackage-CDNIdentifier"] = v
		delete(headers, "MediaPackageCDNIdentifier")
	}
	return headers, nil
}

// DestinationKind selects the store implementation.
type DestinationKind int

const (
	DestinationFile DestinationKind = iota
	DestinationS3
)

// Destination is a parsed output location.
type Destination struct {
	Kind   DestinationKind
	Bucket string // s3 only
	Root   string // local directory, file only
	Path   string // key prefix without leading or trailing slash
}

// ParseDestination parses "s3://bucket/path" or a local directory.
func ParseDestination(output string) (Destination, error) {
	if output == "" {
		return Destination{}, ErrMissingOutput
	}
	if !strings.HasPrefix(output, "s3://") {
		return Destination{Kind: DestinationFile, Root: output}, nil
	}

	u, err := url.Parse(output)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if u.Host == "" {
		return Destination{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidDestination, output)
	}
	return Destination{
		Kind:   DestinationS3,
		Bucket: u.Host,
		Path:   strings.Trim(u.Path, "/"),
	}, nil
}

// String renders the destination as a location a user can paste.
func (d Destination) String() string {
	switch d.Kind {
	case DestinationS3:
		if d.Path == "" {
			return fmt.Sprintf("s3://%s/", d.Bucket)
		}
		return fmt.Sprintf("s3://%s/%s/", d.Bucket, d.Path)
	default:
		if d.Path == "" {
			return strings.TrimSuffix(d.Root, "/") + "/"
		}
		return strings.TrimSuffix(d.Root, "/") + "/" + d.Path + "/"
	}
}
