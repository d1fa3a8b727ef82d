package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	apperrors "soulverse/internal/common/errors"
	"soulverse/internal/models"
)

//go:embed compat_input.schema.json
var compatInputSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func compatSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(compatInputSchema))
	})
	return compiledSchema, schemaErr
}

// requiredOrder is the order missing fields are reported in.
var requiredOrder = map[string]int{
	"man_birth":   0,
	"woman_birth": 1,
	"man_mbti":    2,
	"woman_mbti":  3,
}

// DecodeCompatInput parses and validates a compat request body. Keys holding null, false,
// "" or 0 count as absent. Errors are VALIDATION_FAILED StandardErrors.
func DecodeCompatInput(body []byte) (models.CompatInput, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return models.CompatInput{}, apperrors.NewValidationError("request body must be a JSON object")
	}
	return ValidateCompatInput(doc)
}

// ValidateCompatInput validates an already decoded document, e.g. job variables.
func ValidateCompatInput(doc map[string]interface{}) (models.CompatInput, error) {
	doc = dropEmpty(doc)
	if _, ok := doc["topic"].(string); !ok {
		delete(doc, "topic")
	}

	schema, err := compatSchema()
	if err != nil {
		return models.CompatInput{}, apperrors.NewInternalError(fmt.Errorf("compile schema: %w", err))
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return models.CompatInput{}, apperrors.NewValidationError(err.Error())
	}

	if !result.Valid() {
		return models.CompatInput{}, toStandardError(result.Errors())
	}

	return models.CompatInput{
		Topic:      text(doc["topic"]),
		ManBirth:   text(doc["man_birth"]),
		WomanBirth: text(doc["woman_birth"]),
		ManMBTI:    text(doc["man_mbti"]),
		WomanMBTI:  text(doc["woman_mbti"]),
		ManBlood:   text(doc["man_blood"]),
		WomanBlood: text(doc["woman_blood"]),
		ManTime:    text(doc["man_time"]),
		WomanTime:  text(doc["woman_time"]),
	}, nil
}

// toStandardError reports missing fields first; other violations only when nothing is missing.
func toStandardError(errs []gojsonschema.ResultError) *apperrors.StandardError {
	var missing, invalid []string
	for _, e := range errs {
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"].(string); ok {
				missing = append(missing, prop)
			}
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s: %s", e.Field(), describe(e)))
	}

	if len(missing) > 0 {
		sort.SliceStable(missing, func(i, j int) bool {
			return requiredOrder[missing[i]] < requiredOrder[missing[j]]
		})
		return apperrors.NewMissingFieldsError(missing)
	}

	sort.Strings(invalid)
	stdErr := apperrors.NewValidationError("invalid fields: " + strings.Join(invalid, "; "))
	stdErr.Metadata = map[string]interface{}{"invalidFields": invalid}
	return stdErr
}

func describe(e gojsonschema.ResultError) string {
	switch {
	case e.Type() == "pattern" && strings.HasSuffix(e.Field(), "_mbti"):
		return "must be one of the 16 MBTI types"
	case e.Type() == "pattern" && strings.HasSuffix(e.Field(), "_blood"):
		return "must be one of A, B, O, AB"
	default:
		return e.Description()
	}
}

func dropEmpty(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		switch t := v.(type) {
		case nil:
			continue
		case bool:
			if !t {
				continue
			}
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
		case float64:
			if t == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
