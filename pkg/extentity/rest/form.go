package rest

import (
	"strings"

	"wikibridge/pkg/extentity"
)

// ValidateForm checks a submitted storage form and converts it to the
// configuration to persist.
func ValidateForm(f extentity.Form) (extentity.StorageConfig, error) {
	var ve extentity.ValidationError
	extentity.CheckEndpoint(&ve, "endpoint", f.Endpoint)
	extentity.CheckPager(&ve, f.Pager)
	if err := ve.OrNil(); err != nil {
		return extentity.StorageConfig{}, err
	}

	return extentity.StorageConfig{
		Endpoint: strings.TrimSpace(f.Endpoint),
		APIKey:   f.APIKey,
		Pager:    f.Pager,
		Parameters: extentity.Parameters{
			List:   extentity.SplitLines(f.Parameters.List),
			Single: extentity.SplitLines(f.Parameters.Single),
		},
	}, nil
}

// FormDefaults renders a stored configuration as form values.
func FormDefaults(cfg extentity.StorageConfig) extentity.Form {
	return extentity.Form{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Pager:    cfg.Pager,
		Parameters: extentity.FormParameters{
			List:   extentity.JoinLines(cfg.Parameters.List),
			Single: extentity.JoinLines(cfg.Parameters.Single),
		},
	}
}
