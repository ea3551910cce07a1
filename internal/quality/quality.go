// Package quality implements schema validation (hard gate) and data-quality
// diagnostics (soft scoring) for lake record sets.
//
// Hard validation enumerates every violated field/check across the whole
// input before failing; it never salvages partial rows. Soft diagnostics
// (Describe, Score) always succeed and never gate the pipeline.
package quality

import (
	"fmt"
	"time"

	"github.com/bhmob/bhlake/internal/errors"
)

// Record is the column/field view the validator operates on. Field returns
// the value of the named column and whether it is non-null.
type Record interface {
	Columns() []string
	Field(name string) (any, bool)
}

// Kind is the expected value type of a schema field.
type Kind int

const (
	KindNumeric Kind = iota
	KindString
	KindTime
)

// FieldRule is one field's validation contract: nullability, expected type
// and an optional inclusive numeric range.
type FieldRule struct {
	Name     string
	Kind     Kind
	Required bool
	Min      *float64
	Max      *float64
}

// Schema is a set of field rules. Fields not named by any rule are
// permitted and ignored (permissive schemas).
type Schema struct {
	Name   string
	Fields []FieldRule
}

// Validate checks every record against the schema and returns nil if all
// configured checks hold. On failure it returns a ValidationErrors listing
// every violated field/check, not merely the first.
func Validate[T Record](records []T, schema Schema) error {
	verrs := errors.NewValidationErrors()

	for _, rule := range schema.Fields {
		var nulls, belowMin, aboveMax, badType int

		for i := range records {
			v, ok := records[i].Field(rule.Name)
			if !ok {
				if rule.Required {
					nulls++
				}
				continue
			}

			switch rule.Kind {
			case KindNumeric:
				f, isFloat := v.(float64)
				if !isFloat {
					badType++
					continue
				}
				if rule.Min != nil && f < *rule.Min {
					belowMin++
				}
				if rule.Max != nil && f > *rule.Max {
					aboveMax++
				}
			case KindTime:
				if _, isTime := v.(time.Time); !isTime {
					badType++
				}
			case KindString:
				if _, isString := v.(string); !isString {
					badType++
				}
			}
		}

		if nulls > 0 {
			verrs.AddField(rule.Name,
				fmt.Sprintf("%d null values in non-nullable column", nulls))
		}
		if badType > 0 {
			verrs.AddField(rule.Name,
				fmt.Sprintf("%d values of unexpected type", badType))
		}
		if belowMin > 0 {
			verrs.AddField(rule.Name,
				fmt.Sprintf("%d values below minimum %g", belowMin, *rule.Min))
		}
		if aboveMax > 0 {
			verrs.AddField(rule.Name,
				fmt.Sprintf("%d values above maximum %g", aboveMax, *rule.Max))
		}
	}

	return verrs.Err()
}

func bound(v float64) *float64 { return &v }
