package extentity

import (
	"net/url"
	"strings"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 50

// StorageConfig is the persisted configuration of a storage client.
// Parameter text is kept line by line, as stored.
type StorageConfig struct {
	Endpoint       string     `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SPARQLEndpoint string     `yaml:"sparql_endpoint,omitempty" json:"sparql_endpoint,omitempty"`
	RESTEndpoint   string     `yaml:"rest_endpoint,omitempty" json:"rest_endpoint,omitempty"`
	APIKey         APIKey     `yaml:"api_key" json:"api_key"`
	Pager          Pager      `yaml:"pager" json:"pager"`
	Parameters     Parameters `yaml:"parameters" json:"parameters"`
}

// APIKey is a static header attached to every request.
type APIKey struct {
	HeaderName string `yaml:"header_name,omitempty" json:"header_name,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
}

// Pager describes how a list endpoint pages.
type Pager struct {
	DefaultLimit          int    `yaml:"default_limit" json:"default_limit"`
	PageParameter         string `yaml:"page_parameter,omitempty" json:"page_parameter,omitempty"`
	PageParameterType     string `yaml:"page_parameter_type,omitempty" json:"page_parameter_type,omitempty"` // "pagenum", "startitem"
	PageSizeParameter     string `yaml:"page_size_parameter,omitempty" json:"page_size_parameter,omitempty"`
	PageSizeParameterType string `yaml:"page_size_parameter_type,omitempty" json:"page_size_parameter_type,omitempty"` // "pagesize", "enditem"
}

// Parameters holds the stored query templates.
type Parameters struct {
	Prefix []string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	List   []string `yaml:"list,omitempty" json:"list,omitempty"`
	Single []string `yaml:"single,omitempty" json:"single,omitempty"`
}

// DefaultStorageConfig returns a config with the default pager.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{Pager: Pager{DefaultLimit: DefaultLimit}}
}

// Form carries the values of the storage configuration form. Parameter
// fields are multi-line text exactly as the user typed them.
type Form struct {
	Endpoint       string         `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SPARQLEndpoint string         `yaml:"sparql_endpoint,omitempty" json:"sparql_endpoint,omitempty"`
	RESTEndpoint   string         `yaml:"rest_endpoint,omitempty" json:"rest_endpoint,omitempty"`
	APIKey         APIKey         `yaml:"api_key" json:"api_key"`
	Pager          Pager          `yaml:"pager" json:"pager"`
	Parameters     FormParameters `yaml:"parameters" json:"parameters"`
}

// FormParameters are the textarea values of the parameters fieldset.
type FormParameters struct {
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	List   string `yaml:"list,omitempty" json:"list,omitempty"`
	Single string `yaml:"single,omitempty" json:"single,omitempty"`
}

// SplitLines splits textarea input into trimmed, non-empty lines.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// JoinLines is the inverse of SplitLines for display.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// KeyValue is one "key|value" parameter line.
type KeyValue struct {
	Key   string
	Value string
}

// ParseKeyValueLines parses "key|value" lines, keeping order. A line
// without "|" is a key with an empty value.
func ParseKeyValueLines(lines []string) []KeyValue {
	out := make([]KeyValue, 0, len(lines))
	for _, l := range lines {
		k, v, _ := strings.Cut(l, "|")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, KeyValue{Key: k, Value: strings.TrimSpace(v)})
	}
	return out
}

// CheckEndpoint records a problem when raw is not an absolute http(s) URL.
// An empty value is reported as required.
func CheckEndpoint(ve *ValidationError, field, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		ve.Add(field, "is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add(field, "must be an absolute http(s) URL")
	}
}

// CheckPager records problems with the pager settings.
func CheckPager(ve *ValidationError, p Pager) {
	if p.DefaultLimit < 1 {
		ve.Add("pager.default_limit", "must be at least 1")
	}
	switch p.PageParameterType {
	case "", "pagenum", "startitem":
	default:
		ve.Add("pager.page_parameter_type", "must be pagenum or startitem")
	}
	switch p.PageSizeParameterType {
	case "", "pagesize", "enditem":
	default:
		ve.Add("pager.page_size_parameter_type", "must be pagesize or enditem")
	}
}
