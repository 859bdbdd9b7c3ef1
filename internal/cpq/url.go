package cpq

import (
	"net/url"

	"sjsage522/dealbridge/internal/deal"
	"sjsage522/dealbridge/pkg/errors"
)

// BuildURL appends every non-empty field of rec to base as a query parameter.
// Parameters already on base are kept. With nothing to add, base is returned as is.
func BuildURL(base string, rec deal.Record) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.NewConfiguration("invalid CPQ base URL", err)
	}

	q := u.Query()
	added := 0
	for _, f := range deal.Fields {
		if v := rec.Get(f); v != "" {
			q.Add(string(f), v)
			added++
		}
	}
	if added == 0 {
		return base, nil
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
