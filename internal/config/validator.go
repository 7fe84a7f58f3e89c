package config

import (
	"fmt"
	"os"
	"path/filepath"

	"memarchive/internal/classifier"
	"memarchive/internal/orchestrator"
	"memarchive/internal/scanner"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string // e.g. "operations[2].source"
	Message  string
	Severity ValidationSeverity
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // no errors; warnings are allowed
}

// Err returns a ValidationError ConfigError summarizing the first error, or
// nil when the result is valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	first := r.Errors[0]
	msg := first.Field + ": " + first.Message
	if n := len(r.Errors) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return &ConfigError{Type: ValidationError, Message: msg}
}

func (r *ValidationResult) add(findings []ConfigValidationError) {
	for _, f := range findings {
		if f.Severity == SeverityError {
			r.Errors = append(r.Errors, f)
		} else {
			r.Warnings = append(r.Warnings, f)
		}
	}
}

// ValidateConfig checks the document for errors and returns all findings.
func ValidateConfig(doc *Document) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	result.add(ValidateOperations(doc.Operations))
	result.add(ValidateSettings(&doc.Settings))
	result.add(ValidatePaths(&doc.Settings))

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateEnvironment checks settings and paths for commands that take no
// operation list.
func ValidateEnvironment(s *Settings) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	result.add(ValidateSettings(s))
	result.add(ValidatePaths(s))

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateOperations checks each operation descriptor. Non-move operations
// are only warned about since the orchestrator skips them.
func ValidateOperations(ops []orchestrator.Operation) []ConfigValidationError {
	var errs []ConfigValidationError

	if len(ops) == 0 {
		errs = append(errs, ConfigValidationError{
			Field:    "operations",
			Message:  "no operations listed",
			Severity: SeverityWarning,
		})
	}

	seen := make(map[string]int)
	for i, op := range ops {
		field := formatField("operations", i)

		if op.OperationType != orchestrator.MoveOperation {
			errs = append(errs, ConfigValidationError{
				Field:    field + ".operation_type",
				Message:  fmt.Sprintf("unsupported operation type %q will be skipped", op.OperationType),
				Severity: SeverityWarning,
			})
		}
		if op.Source == "" {
			errs = append(errs, ConfigValidationError{
				Field:    field + ".source",
				Message:  "source cannot be empty",
				Severity: SeverityError,
			})
		}
		if op.DestinationFolder == "" {
			errs = append(errs, ConfigValidationError{
				Field:    field + ".destination_folder",
				Message:  "destination_folder cannot be empty",
				Severity: SeverityError,
			})
		}
		if op.MemoryType != "" && !knownMemoryType(op.MemoryType) {
			errs = append(errs, ConfigValidationError{
				Field:    field + ".memory_type",
				Message:  fmt.Sprintf("unknown memory type %q", op.MemoryType),
				Severity: SeverityWarning,
			})
		}

		if op.Source == "" {
			continue
		}
		key := filepath.Clean(op.Source)
		if first, ok := seen[key]; ok {
			errs = append(errs, ConfigValidationError{
				Field:    field + ".source",
				Message:  fmt.Sprintf("duplicate source %q also listed at index %d", op.Source, first),
				Severity: SeverityWarning,
			})
		} else {
			seen[key] = i
		}
	}

	return errs
}

// ValidateSettings checks that setting values are in range.
func ValidateSettings(s *Settings) []ConfigValidationError {
	var errs []ConfigValidationError

	if _, err := classifier.ParseMode(s.CategoryDetection); err != nil {
		errs = append(errs, ConfigValidationError{
			Field:    "settings.category_detection",
			Message:  err.Error(),
			Severity: SeverityError,
		})
	}
	if s.ChunkSize < 1 {
		errs = append(errs, ConfigValidationError{
			Field:    "settings.chunk_size",
			Message:  "chunk_size must be a positive integer",
			Severity: SeverityError,
		})
	}
	if s.ContentSampleLines < 1 {
		errs = append(errs, ConfigValidationError{
			Field:    "settings.content_sample_lines",
			Message:  "content_sample_lines must be a positive integer",
			Severity: SeverityError,
		})
	}
	if _, err := scanner.CompilePattern(s.DocumentGlob); err != nil {
		errs = append(errs, ConfigValidationError{
			Field:    "settings.document_glob",
			Message:  err.Error(),
			Severity: SeverityError,
		})
	}

	switch s.SymlinkPolicy {
	case "", scanner.SymlinkPolicyFollow, scanner.SymlinkPolicySkip, scanner.SymlinkPolicyError:
	default:
		errs = append(errs, ConfigValidationError{
			Field:    "settings.symlink_policy",
			Message:  fmt.Sprintf("invalid symlink policy %q; must be \"follow\", \"skip\", or \"error\"", s.SymlinkPolicy),
			Severity: SeverityError,
		})
	}

	if s.Audit.Enabled && s.Audit.RotationSize <= 0 {
		errs = append(errs, ConfigValidationError{
			Field:    "settings.audit.rotation_size_bytes",
			Message:  "rotation_size_bytes must be positive",
			Severity: SeverityError,
		})
	}
	if s.Watch.Debounce < 0 {
		errs = append(errs, ConfigValidationError{
			Field:    "settings.watch.debounce",
			Message:  "debounce cannot be negative",
			Severity: SeverityError,
		})
	}
	for i, pattern := range s.Watch.Ignore {
		if _, err := scanner.CompilePattern(pattern); err != nil {
			errs = append(errs, ConfigValidationError{
				Field:    formatField("settings.watch.ignore", i),
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// ValidatePaths checks that the root is an accessible directory and warns
// when the storage log is absent.
func ValidatePaths(s *Settings) []ConfigValidationError {
	var errs []ConfigValidationError

	if s.Root == "" {
		return append(errs, ConfigValidationError{
			Field:    "settings.root",
			Message:  "memory bank root is not set; pass --root or settings.root",
			Severity: SeverityError,
		})
	}

	info, err := os.Stat(s.Root)
	switch {
	case os.IsNotExist(err):
		return append(errs, ConfigValidationError{
			Field:    "settings.root",
			Message:  "directory does not exist: " + s.Root,
			Severity: SeverityError,
		})
	case os.IsPermission(err):
		return append(errs, ConfigValidationError{
			Field:    "settings.root",
			Message:  "directory is not accessible: " + s.Root,
			Severity: SeverityError,
		})
	case err != nil:
		return append(errs, ConfigValidationError{
			Field:    "settings.root",
			Message:  "error accessing directory: " + err.Error(),
			Severity: SeverityError,
		})
	case !info.IsDir():
		return append(errs, ConfigValidationError{
			Field:    "settings.root",
			Message:  "path is not a directory: " + s.Root,
			Severity: SeverityError,
		})
	}

	if s.StorageLog != "" {
		if _, err := os.Stat(s.StorageLogPath()); os.IsNotExist(err) {
			errs = append(errs, ConfigValidationError{
				Field:    "settings.storage_log",
				Message:  "storage log not found; entries will not be recorded: " + s.StorageLogPath(),
				Severity: SeverityWarning,
			})
		}
	}

	return errs
}

func knownMemoryType(name string) bool {
	for _, t := range classifier.MemoryTypes {
		if string(t) == name {
			return true
		}
	}
	return false
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return fmt.Sprintf("%s[%d]", name, index)
}
