package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config keys.
const (
	KeySlackBotToken = "slack.bot-token"
	KeySlackAppToken = "slack.app-token"
	KeySlackDebug    = "slack.debug"

	KeyHealthPort = "health.port"

	KeyBackendKind        = "backend.kind"
	KeyBackendTimeout     = "backend.timeout"
	KeyBackendMockLatency = "backend.mock.latency"
	KeyTicketPrefix       = "ticket.prefix"

	KeyJiraURL         = "jira.url"
	KeyJiraUsername    = "jira.username"
	KeyJiraAPIToken    = "jira.api-token"
	KeyJiraProject     = "jira.project"
	KeyJiraSearchLimit = "jira.search-limit"

	KeyNATSURL     = "nats.url"
	KeyNATSToken   = "nats.token"
	KeyNATSSubject = "nats.subject"

	KeyLogLevel = "log.level"
	KeyLogJSON  = "log.json"
)

// Backend kinds.
const (
	BackendMock = "mock"
	BackendJira = "jira"
)

// Key describes one configuration key.
type Key struct {
	Key         string      // Full key name (e.g., "jira.url")
	Description string      // Human-readable description
	Secret      bool        // Masked by `config show`
	Default     interface{} // nil = no default
	Validate    func(string) error
}

// Keys defines every key jirabot reads.
var Keys = []Key{
	// Slack
	{Key: KeySlackBotToken, Description: "Slack bot token (xoxb-...)", Secret: true},
	{Key: KeySlackAppToken, Description: "Slack app-level token for Socket Mode (xapp-...)", Secret: true},
	{Key: KeySlackDebug, Description: "Log raw Slack client traffic", Default: false, Validate: validateBool},

	{Key: KeyHealthPort, Description: "Port for /healthz and /readyz", Default: 8080, Validate: validatePort},

	// Ticket backend
	{Key: KeyBackendKind, Description: "Ticket backend (mock, jira)", Default: BackendMock, Validate: validateBackend},
	{Key: KeyBackendTimeout, Description: "Per-call backend deadline (0 = none)", Default: "0s", Validate: validateDuration},
	{Key: KeyBackendMockLatency, Description: "Simulated latency of the mock backend", Default: "500ms", Validate: validateDuration},
	{Key: KeyTicketPrefix, Description: "Project key for ids minted by the mock backend", Default: "JIRA", Validate: validatePrefix},

	// Jira
	{Key: KeyJiraURL, Description: "Jira base URL (https://company.atlassian.net)", Validate: validateURL},
	{Key: KeyJiraUsername, Description: "Jira account email for basic auth (empty = bearer token)"},
	{Key: KeyJiraAPIToken, Description: "Jira API token or personal access token", Secret: true},
	{Key: KeyJiraProject, Description: "Default project key for new tickets"},
	{Key: KeyJiraSearchLimit, Description: "Most issues a free-text search returns", Default: 20, Validate: validatePositiveInt},

	// NATS
	{Key: KeyNATSURL, Description: "NATS server URL (empty = ticket events disabled)"},
	{Key: KeyNATSToken, Description: "NATS auth token", Secret: true},
	{Key: KeyNATSSubject, Description: "Subject prefix for ticket events", Default: "jirabot.tickets"},

	// Logging
	{Key: KeyLogLevel, Description: "Log level (debug, info, warn, error)", Default: "info", Validate: validateLogLevel},
	{Key: KeyLogJSON, Description: "Enable JSON structured logging", Default: false, Validate: validateBool},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the definition of key, or nil if it is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks that key is known and value is acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if k.Validate != nil && value != "" {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks the effective configuration. Every problem is reported,
// not just the first.
func Validate() error {
	var problems []string
	for _, k := range Keys {
		if err := ValidateKey(k.Key, GetString(k.Key)); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if GetString(KeyBackendKind) == BackendJira {
		for _, key := range []string{KeyJiraURL, KeyJiraAPIToken, KeyJiraProject} {
			if GetString(key) == "" {
				problems = append(problems, fmt.Sprintf("%s is required when %s is %q", key, KeyBackendKind, BackendJira))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// Setting is one effective value as shown to operators.
type Setting struct {
	Key         string `json:"key" yaml:"key"`
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// Effective lists every known key with its current value, secrets masked.
func Effective() []Setting {
	out := make([]Setting, 0, len(Keys))
	for _, k := range Keys {
		val := GetString(k.Key)
		if k.Secret {
			val = Mask(val)
		}
		out = append(out, Setting{Key: k.Key, Value: val, Description: k.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}

// Validation helpers

func validatePort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of: debug, info, warn, error; got %q", value)
	}
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}

func validateBackend(value string) error {
	switch value {
	case BackendMock, BackendJira:
		return nil
	default:
		return fmt.Errorf("must be %q or %q, got %q", BackendMock, BackendJira, value)
	}
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 500ms or 10s, got %q", value)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", value)
	}
	return nil
}

func validatePrefix(value string) error {
	for i, r := range value {
		isLetter := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !(isDigit && i > 0) {
			return fmt.Errorf("must be letters and digits starting with a letter, got %q", value)
		}
	}
	return nil
}

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL, got %q", value)
	}
	return nil
}
