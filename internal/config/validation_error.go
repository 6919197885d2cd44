package config

import "strings"

// ValidationError collects every option failure so callers see the full list
// instead of fixing one field per restart.
type ValidationError struct {
	errs []error
}

func (v *ValidationError) Add(err error) {
	if err != nil {
		v.errs = append(v.errs, err)
	}
}

func (v *ValidationError) HasError() bool {
	return len(v.errs) > 0
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.errs))
	for _, err := range v.errs {
		msgs = append(msgs, err.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}
