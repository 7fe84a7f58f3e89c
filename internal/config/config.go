// Package config loads operation documents and settings for memarchive.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"memarchive/internal/audit"
	"memarchive/internal/orchestrator"
	"memarchive/internal/watcher"
)

// EnvPrefix prefixes environment overrides, e.g. MEMARCHIVE_SETTINGS_CHUNK_SIZE.
const EnvPrefix = "MEMARCHIVE"

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound      ConfigErrorType = "FILE_NOT_FOUND"
	InvalidDocument   ConfigErrorType = "INVALID_DOCUMENT"
	MissingOperations ConfigErrorType = "MISSING_OPERATIONS"
	ValidationError   ConfigErrorType = "VALIDATION_ERROR"
)

// ErrConfiguration matches every *ConfigError with errors.Is.
var ErrConfiguration = errors.New("CONFIGURATION_ERROR")

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidDocument:
		return fmt.Sprintf("invalid configuration document %s: %s", e.Path, e.Message)
	case MissingOperations:
		return fmt.Sprintf("configuration %s must contain an 'operations' key", e.Path)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// WatchSettings configure the watch command.
type WatchSettings struct {
	Debounce time.Duration `mapstructure:"debounce" json:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" json:"ignore" yaml:"ignore"`
}

// Settings are the optional run settings of an operation document.
type Settings struct {
	Root               string            `mapstructure:"root" json:"root" yaml:"root"`
	CategoryDetection  string            `mapstructure:"category_detection" json:"category_detection" yaml:"category_detection"`
	ContentSampleLines int               `mapstructure:"content_sample_lines" json:"content_sample_lines" yaml:"content_sample_lines"`
	ChunkSize          int               `mapstructure:"chunk_size" json:"chunk_size" yaml:"chunk_size"`
	DocumentGlob       string            `mapstructure:"document_glob" json:"document_glob" yaml:"document_glob"`
	SymlinkPolicy      string            `mapstructure:"symlink_policy" json:"symlink_policy" yaml:"symlink_policy"`
	OrganizeByCategory bool              `mapstructure:"organize_by_category" json:"organize_by_category" yaml:"organize_by_category"`
	ForceOverwrite     bool              `mapstructure:"force_overwrite" json:"force_overwrite" yaml:"force_overwrite"`
	VerifyContent      bool              `mapstructure:"verify_content" json:"verify_content" yaml:"verify_content"`
	StorageLog         string            `mapstructure:"storage_log" json:"storage_log" yaml:"storage_log"`
	Audit              audit.AuditConfig `mapstructure:"audit" json:"audit" yaml:"audit"`
	Watch              WatchSettings     `mapstructure:"watch" json:"watch" yaml:"watch"`
}

// Document is a parsed operation document.
type Document struct {
	Path       string                   `mapstructure:"-" json:"-" yaml:"-"`
	Operations []orchestrator.Operation `mapstructure:"operations" json:"operations" yaml:"operations"`
	Settings   Settings                 `mapstructure:"settings" json:"settings" yaml:"settings"`
}

// StorageLogPath resolves the storage log against the root.
func (s Settings) StorageLogPath() string {
	if filepath.IsAbs(s.StorageLog) {
		return s.StorageLog
	}
	return filepath.Join(s.Root, s.StorageLog)
}

// AuditDir resolves the audit log directory against the root.
func (s Settings) AuditDir() string {
	dir := ExpandPath(s.Audit.LogDirectory)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.Root, dir)
}

func setDefaults(v *viper.Viper) {
	auditDefaults := audit.DefaultAuditConfig()

	v.SetDefault("settings.root", "")
	v.SetDefault("settings.category_detection", "smart")
	v.SetDefault("settings.content_sample_lines", 20)
	v.SetDefault("settings.chunk_size", 10)
	v.SetDefault("settings.document_glob", "*.md")
	v.SetDefault("settings.symlink_policy", "skip")
	v.SetDefault("settings.organize_by_category", false)
	v.SetDefault("settings.force_overwrite", false)
	v.SetDefault("settings.verify_content", false)
	v.SetDefault("settings.storage_log", "storage_log.md")

	v.SetDefault("settings.audit.enabled", auditDefaults.Enabled)
	v.SetDefault("settings.audit.log_directory", auditDefaults.LogDirectory)
	v.SetDefault("settings.audit.rotation_size_bytes", auditDefaults.RotationSize)

	v.SetDefault("settings.watch.debounce", "2s")
	v.SetDefault("settings.watch.ignore", watcher.DefaultIgnorePatterns())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func read(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ConfigError{Type: FileNotFound, Path: path, Err: err}
		}
		return &ConfigError{Type: FileNotFound, Path: path, Message: err.Error(), Err: err}
	}

	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	if err := v.ReadInConfig(); err != nil {
		return &ConfigError{Type: InvalidDocument, Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// Load reads an operation document from JSON or YAML. A document without an
// operations key is rejected before anything else is inspected.
func Load(path string) (*Document, error) {
	path = ExpandPath(path)
	v := newViper()
	if err := read(v, path); err != nil {
		return nil, err
	}

	if !v.InConfig("operations") {
		return nil, &ConfigError{Type: MissingOperations, Path: path}
	}

	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, &ConfigError{Type: InvalidDocument, Path: path, Message: err.Error(), Err: err}
	}
	doc.Path = path
	doc.Settings.Root = ExpandPath(doc.Settings.Root)
	return &doc, nil
}

// LoadSettings reads only the settings section. An empty path yields the
// defaults with environment overrides applied.
func LoadSettings(path string) (*Settings, error) {
	v := newViper()
	if path != "" {
		path = ExpandPath(path)
		if err := read(v, path); err != nil {
			return nil, err
		}
	}

	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, &ConfigError{Type: InvalidDocument, Path: path, Message: err.Error(), Err: err}
	}
	doc.Settings.Root = ExpandPath(doc.Settings.Root)
	return &doc.Settings, nil
}

// DefaultSettings returns the settings used when no document is supplied.
func DefaultSettings() Settings {
	s, err := LoadSettings("")
	if err != nil {
		return Settings{}
	}
	return *s
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
