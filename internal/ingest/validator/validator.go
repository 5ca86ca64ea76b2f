// Package validator turns loosely-typed upload records into canonical
// projects. Upstream exports are inconsistent (numbers as strings,
// single-or-array contractors, arbitrary status casing), so each field
// has an explicit normalization rule rather than a schema.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	ingest "github.com/infradash/infradash-backend/internal/ingest/domain"
	"github.com/infradash/infradash-backend/internal/projects/domain"
)

// Validate checks one raw record at positional index idx. All failures
// are returned as data; Validate never panics past the record.
func Validate(rec ingest.RawRecord, idx int) ingest.Outcome {
	var errs []string

	contractID := requiredString(rec, "contractId", &errs)
	contractName := requiredString(rec, "contractName", &errs)
	implementingOffice := requiredString(rec, "implementingOffice", &errs)
	region := requiredString(rec, "region", &errs)
	effectivity := requiredString(rec, "contractEffectivityDate", &errs)
	expiry := requiredString(rec, "contractExpiryDate", &errs)

	status := parseStatus(rec, &errs)
	contractors := parseContractors(rec, &errs)
	cost := parseCost(rec, &errs)
	accomplishment := parseAccomplishment(rec, &errs)

	if len(errs) > 0 {
		return ingest.Outcome{Failure: &ingest.ValidationFailure{
			Index:      idx,
			ContractID: contractID,
			Errors:     errs,
		}}
	}

	return ingest.Outcome{Project: &domain.Project{
		ContractID:         contractID,
		ContractName:       contractName,
		Contractors:        contractors,
		ImplementingOffice: implementingOffice,
		ContractCost:       cost,
		EffectivityDate:    effectivity,
		ExpiryDate:         expiry,
		Status:             status,
		Accomplishment:     accomplishment,
		Region:             region,
		Province:           optionalString(rec, "province"),
		Municipality:       optionalString(rec, "municipality"),
		Barangay:           optionalString(rec, "barangay"),
	}}
}

// requiredString extracts a non-blank string field, recording a missing-field
// error otherwise. The extracted value (possibly "") is still returned so the
// failure can carry a best-effort contract ID.
func requiredString(rec ingest.RawRecord, field string, errs *[]string) string {
	v, ok := rec[field]
	if !ok || v == nil {
		*errs = append(*errs, fmt.Sprintf("missing required field: %s", field))
		return ""
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		*errs = append(*errs, fmt.Sprintf("missing required field: %s", field))
		return ""
	}
	return strings.TrimSpace(s)
}

// optionalString normalizes null/absent location fields to "". These fields
// never fail validation.
func optionalString(rec ingest.RawRecord, field string) string {
	v, ok := rec[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func parseStatus(rec ingest.RawRecord, errs *[]string) domain.Status {
	v, ok := rec["status"]
	if !ok || v == nil {
		*errs = append(*errs, "missing required field: status")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		*errs = append(*errs, "status must be a string")
		return ""
	}
	status, ok := domain.ParseStatus(s)
	if !ok {
		*errs = append(*errs, fmt.Sprintf("unrecognized status: %q", strings.TrimSpace(s)))
		return ""
	}
	return status
}

// parseContractors accepts a single string or a list of strings and always
// normalizes to a non-empty, order-preserving, de-duplicated list.
func parseContractors(rec ingest.RawRecord, errs *[]string) []string {
	v, ok := rec["contractor"]
	if !ok || v == nil {
		*errs = append(*errs, "missing required field: contractor")
		return nil
	}

	var raw []string
	switch c := v.(type) {
	case string:
		raw = []string{c}
	case []interface{}:
		for _, item := range c {
			s, ok := item.(string)
			if !ok {
				*errs = append(*errs, "contractor list must contain only strings")
				return nil
			}
			raw = append(raw, s)
		}
	default:
		*errs = append(*errs, "contractor must be a string or a list of strings")
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		*errs = append(*errs, "contractor must not be empty")
		return nil
	}
	return out
}

// parseCost accepts a numeric value or a numeric string and parses it into a
// non-negative exact decimal. Binary floats would drift on peso amounts.
func parseCost(rec ingest.RawRecord, errs *[]string) decimal.Decimal {
	v, ok := rec["contractCost"]
	if !ok || v == nil {
		*errs = append(*errs, "missing required field: contractCost")
		return decimal.Zero
	}

	var text string
	switch c := v.(type) {
	case json.Number:
		text = c.String()
	case string:
		text = strings.TrimSpace(c)
	case float64:
		// payloads decoded without UseNumber
		text = fmt.Sprintf("%v", c)
	default:
		*errs = append(*errs, "contractCost must be a number or numeric string")
		return decimal.Zero
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("contractCost is not numeric: %q", text))
		return decimal.Zero
	}
	if d.IsNegative() {
		*errs = append(*errs, "contractCost must not be negative")
		return decimal.Zero
	}
	return d
}

// parseAccomplishment accepts numeric or numeric-string input, rounds to the
// nearest integer, and rejects values outside [0,100].
func parseAccomplishment(rec ingest.RawRecord, errs *[]string) int {
	v, ok := rec["accomplishmentInPercentage"]
	if !ok || v == nil {
		*errs = append(*errs, "missing required field: accomplishmentInPercentage")
		return 0
	}

	var f float64
	switch c := v.(type) {
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("accomplishmentInPercentage is not numeric: %q", c.String()))
			return 0
		}
		f = parsed
	case float64:
		f = c
	case string:
		var err error
		f, err = decimalFloat(strings.TrimSpace(c))
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("accomplishmentInPercentage is not numeric: %q", c))
			return 0
		}
	default:
		*errs = append(*errs, "accomplishmentInPercentage must be a number or numeric string")
		return 0
	}

	rounded := int(math.Round(f))
	if rounded < 0 || rounded > 100 {
		*errs = append(*errs, fmt.Sprintf("accomplishmentInPercentage out of range: %v", f))
		return 0
	}
	return rounded
}

func decimalFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
