package aggregate

import (
	"strings"

	"github.com/banshee-data/collision.report/internal/collision"
)

// Normalize returns a new Dataset in which values of a categorical field
// are rewritten through mapping. Keys are matched case-insensitively after
// trimming; values not in mapping are left untouched. The input Dataset is
// not modified.
//
// Near-duplicate labels such as "Illnes" and "Illness" are only merged
// when a mapping asks for it.
func Normalize(ds *Dataset, field collision.Field, mapping map[string]string) (*Dataset, error) {
	if !field.IsCategorical() {
		return nil, &collision.InvalidFieldError{Field: string(field)}
	}

	folded := make(map[string]string, len(mapping))
	for from, to := range mapping {
		folded[foldLabel(from)] = to
	}

	records := ds.Records()
	for i := range records {
		v, err := records[i].Category(field)
		if err != nil {
			return nil, err
		}
		if v == "" {
			continue
		}
		to, ok := folded[foldLabel(v)]
		if !ok {
			continue
		}
		if err := records[i].SetCategory(field, to); err != nil {
			return nil, err
		}
	}
	return &Dataset{records: records}, nil
}

func foldLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
