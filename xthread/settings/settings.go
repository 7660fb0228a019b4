// Package settings resolves configuration defaults shared by the command line tools: an optional .env
// file, environment variables and an optional TOML defaults file. Flags are handled by each command
// and take precedence over everything here.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const DefaultFile = "x-thread-dl.toml"

// File is the shape of the TOML defaults file. Zero values mean "not set".
type File struct {
	Download DownloadSection `toml:"download"`
	Script   ScriptSection   `toml:"script"`
}

type DownloadSection struct {
	OutputDir       string `toml:"output_dir"`
	ReplyLimit      int    `toml:"reply_limit"`
	VideoDownloader string `toml:"video_downloader"`
	HistoryPath     string `toml:"history_path"`
}

type ScriptSection struct {
	Model          string   `toml:"model"`
	Style          string   `toml:"style"`
	Duration       int      `toml:"duration"`
	FallbackModels []string `toml:"fallback_models"`
	MaxConcurrent  int      `toml:"max_concurrent"`
	MaxAttempts    int      `toml:"max_attempts"`
}

// LoadDotEnv loads the first existing path into the process environment without overriding variables
// that are already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("LoadDotEnv: %w", err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("LoadDotEnv: %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// LoadFile decodes a TOML defaults file. A missing file yields the zero File and found=false.
func LoadFile(path string) (f File, found bool, err error) {
	if path == "" {
		return File{}, false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, false, nil
		}
		return File{}, false, fmt.Errorf("LoadFile: %w", err)
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, false, fmt.Errorf("LoadFile: decode %s: %w", path, err)
	}
	return f, true, nil
}

// Env returns the first non-empty value among keys.
func Env(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func EnvInt(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

// First returns the first non-empty string.
func First(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// FirstPositive returns the first value greater than zero, or 0.
func FirstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

const (
	EnvApifyToken    = "APIFY_API_TOKEN"
	EnvApifyTokenAlt = "APIFY_TOKEN"
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
	EnvOutputDir     = "XTHREAD_OUTPUT_DIR"
	EnvModel         = "XTHREAD_MODEL"
	EnvReplyLimit    = "XTHREAD_REPLY_LIMIT"
	EnvLogLevel      = "XTHREAD_LOG_LEVEL"
)

func ApifyToken() string    { return Env(EnvApifyToken, EnvApifyTokenAlt) }
func OpenRouterKey() string { return Env(EnvOpenRouterKey) }
