package common

import (
	"fmt"
	"regexp"
	"strings"
)

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "password", "dsn")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement string
	Keys        []string       // Specific keys to mask (case-insensitive)
}

// DefaultSensitivePatterns contains the patterns relevant to database tooling:
// connection credentials in DSNs and password/secret configuration values.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=***MASKED***`,
		Keys:        []string{"password", "passwd", "pwd"},
	},
	{
		Name:        "dsn_credentials",
		Regex:       regexp.MustCompile(`(?i)((?:postgres|postgresql|mysql)://[^:/@\s]+:)([^@\s]+)(@)`),
		Replacement: `${1}***MASKED***${3}`,
		Keys:        []string{},
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)(secret)["'\s]*[:=]["'\s]*([^"',}\]\s]+)`),
		Replacement: `${1}=***MASKED***`,
		Keys:        []string{"secret"},
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{
		patterns: DefaultSensitivePatterns,
		enabled:  true,
	}
}

// NewMaskerWithPatterns creates a new masker with custom patterns
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	return &Masker{
		patterns: patterns,
		enabled:  true,
	}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled
}

// AddPattern adds a new sensitive pattern
func (m *Masker) AddPattern(pattern SensitivePattern) {
	if pattern.Regex == nil && len(pattern.Keys) > 0 {
		keyPattern := strings.Join(pattern.Keys, "|")
		regexPattern := fmt.Sprintf("(?i)\\b(%s)\\s*[:=]\\s*['\"]?([^'\",\\s}\\]]+)['\"]?", keyPattern)
		pattern.Regex = regexp.MustCompile(regexPattern)
		if pattern.Replacement == "" {
			pattern.Replacement = "$1=***MASKED***"
		}
	}
	m.patterns = append(m.patterns, pattern)
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled {
		return input
	}

	result := input
	for _, pattern := range m.patterns {
		if pattern.Regex == nil {
			continue
		}
		result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
	}
	return result
}

// MaskValue masks sensitive information based on key-value context
func (m *Masker) MaskValue(key string, value interface{}) interface{} {
	if !m.enabled {
		return value
	}

	strValue, ok := value.(string)
	if !ok {
		return value
	}

	// Keys that name a credential are masked wholesale
	lowerKey := strings.ToLower(key)
	for _, pattern := range m.patterns {
		for _, sensitiveKey := range pattern.Keys {
			if lowerKey == sensitiveKey {
				return "***MASKED***"
			}
		}
	}

	// Otherwise mask embedded credentials, e.g. a password inside a DSN
	return m.MaskString(strValue)
}

// MaskKeyValuePairs masks sensitive information in key-value pairs
func (m *Masker) MaskKeyValuePairs(pairs ...any) []any {
	if !m.enabled {
		return pairs
	}

	result := make([]any, len(pairs))
	for i := 0; i < len(pairs); i += 2 {
		if i+1 < len(pairs) {
			key := pairs[i]
			value := pairs[i+1]

			if keyStr, ok := key.(string); ok {
				result[i] = keyStr
				result[i+1] = m.MaskValue(keyStr, value)
			} else {
				result[i] = key
				result[i+1] = value
			}
		} else {
			result[i] = pairs[i]
		}
	}
	return result
}

// Global masker instance
var globalMasker = NewMasker()

// SetGlobalMasker sets the global masker instance
func SetGlobalMasker(masker *Masker) {
	globalMasker = masker
}

// GetGlobalMasker returns the global masker instance
func GetGlobalMasker() *Masker {
	return globalMasker
}

// EnableMasking toggles the global masker
func EnableMasking(enabled bool) {
	globalMasker.SetEnabled(enabled)
}

// MaskSensitive masks sensitive data in a string using the global masker
func MaskSensitive(input string) string {
	return globalMasker.MaskString(input)
}
