package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/trackport/internal/output"
)

// GetOutputFormat retrieves the output format configuration.
// Returns output.FormatJSON if not set or invalid, warning on stderr for
// invalid values.
//
// Config key: output-format
// Valid values: json, yaml, yml, toml
func GetOutputFormat() output.Format {
	value := GetString(KeyOutputFormat)
	f, err := output.ParseFormat(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid output-format %q in config (valid: json, yaml, toml), using default 'json'\n", value)
		return output.FormatJSON
	}
	return f
}

// GetDownloadWorkers returns the attachment download concurrency, at
// least 1.
//
// Config key: download.workers
func GetDownloadWorkers() int {
	n := GetInt(KeyDownloadWorkers)
	if n < 1 {
		fmt.Fprintf(os.Stderr, "Warning: invalid download.workers %d in config, using 1\n", n)
		return 1
	}
	return n
}

// GetDownloadTimeout returns the per-attachment timeout. Zero disables it.
//
// Config key: download.timeout
func GetDownloadTimeout() time.Duration {
	d := GetDuration(KeyDownloadTimeout)
	if d < 0 {
		return 0
	}
	return d
}

// GetSectionSuffix returns the section title suffix, defaulting to ":".
//
// Config key: section-suffix
func GetSectionSuffix() string {
	if s := GetString(KeySectionSuffix); strings.TrimSpace(s) != "" {
		return s
	}
	return ":"
}
