package wikibase

import (
	"strings"

	"wikibridge/pkg/config"
	"wikibridge/pkg/extentity"
)

// ValidateForm checks a submitted storage form and converts it to the
// configuration to persist. Periods in the prefix and list templates are
// escaped; single-item parameters are stored as typed.
func ValidateForm(f extentity.Form) (extentity.StorageConfig, error) {
	var ve extentity.ValidationError
	extentity.CheckEndpoint(&ve, "sparql_endpoint", f.SPARQLEndpoint)
	extentity.CheckEndpoint(&ve, "rest_endpoint", f.RESTEndpoint)
	extentity.CheckPager(&ve, f.Pager)
	if err := ve.OrNil(); err != nil {
		return extentity.StorageConfig{}, err
	}

	return extentity.StorageConfig{
		SPARQLEndpoint: strings.TrimSpace(f.SPARQLEndpoint),
		RESTEndpoint:   strings.TrimSpace(f.RESTEndpoint),
		APIKey:         f.APIKey,
		Pager:          f.Pager,
		Parameters: extentity.Parameters{
			Prefix: config.EscapeLines(extentity.SplitLines(f.Parameters.Prefix)),
			List:   config.EscapeLines(extentity.SplitLines(f.Parameters.List)),
			Single: extentity.SplitLines(f.Parameters.Single),
		},
	}, nil
}

// FormDefaults renders a stored configuration as form values with the
// templates unescaped.
func FormDefaults(cfg extentity.StorageConfig) extentity.Form {
	return extentity.Form{
		SPARQLEndpoint: cfg.SPARQLEndpoint,
		RESTEndpoint:   cfg.RESTEndpoint,
		APIKey:         cfg.APIKey,
		Pager:          cfg.Pager,
		Parameters: extentity.FormParameters{
			Prefix: extentity.JoinLines(config.UnescapeLines(cfg.Parameters.Prefix)),
			List:   extentity.JoinLines(config.UnescapeLines(cfg.Parameters.List)),
			Single: extentity.JoinLines(cfg.Parameters.Single),
		},
	}
}

// ListTemplate returns the unescaped list template of a stored config.
func ListTemplate(cfg extentity.StorageConfig) string {
	return strings.Join(config.UnescapeLines(cfg.Parameters.List), "\n")
}
