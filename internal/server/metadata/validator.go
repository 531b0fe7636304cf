package metadata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/definitions"
)

// Validator checks contents against their context and returns the contents
// with declared fields cast to their types.
type Validator interface {
	Validate(ctx context.Context, mc models.MetadataContext, contents map[string]any) (map[string]any, error)
}

// DefinitionValidator validates against MetadataDefinitions stored in the database.
type DefinitionValidator struct {
	defs definitions.Repository
}

func NewDefinitionValidator(defs definitions.Repository) *DefinitionValidator {
	return &DefinitionValidator{defs: defs}
}

func (v *DefinitionValidator) Validate(ctx context.Context, mc models.MetadataContext, contents map[string]any) (map[string]any, error) {
	if err := checkContext(mc); err != nil {
		return nil, err
	}
	if mc.Definition == "" {
		return contents, nil
	}

	def, err := v.defs.GetByName(ctx, mc.Definition)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown definition %q", common.ErrorValidation, mc.Definition)
		}
		return nil, err
	}

	out := make(map[string]any, len(contents))
	for k, val := range contents {
		out[k] = val
	}
	for _, f := range def.Fields {
		val, ok := contents[f.Name]
		if !ok || val == nil {
			if f.Required {
				return nil, fmt.Errorf("%w: field %q is required by %s", common.ErrorValidation, f.Name, def.Name)
			}
			continue
		}
		cast, err := castField(f.Type, val)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", common.ErrorValidation, f.Name, err)
		}
		out[f.Name] = cast
	}
	return out, nil
}

func checkContext(mc models.MetadataContext) error {
	set := 0
	if mc.Inline != nil {
		set++
	}
	if mc.URL != "" {
		set++
	}
	if mc.Definition != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of context, context_url or definition is required", common.ErrorValidation)
	}
	if mc.URL != "" {
		u, err := url.Parse(mc.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: context_url must be an absolute http(s) URL", common.ErrorValidation)
		}
	}
	return nil
}

func castField(t models.FieldType, val any) (any, error) {
	switch t {
	case models.FieldString:
		switch v := val.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case models.FieldInt:
		switch v := val.(type) {
		case float64:
			if v == math.Trunc(v) {
				return v, nil
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return float64(n), nil
			}
		}
	case models.FieldFloat:
		switch v := val.(type) {
		case float64:
			return v, nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, nil
			}
		}
	case models.FieldBool:
		switch v := val.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, nil
			}
		}
	case models.FieldDict:
		if v, ok := val.(map[string]any); ok {
			return v, nil
		}
	case models.FieldList:
		if v, ok := val.([]any); ok {
			return v, nil
		}
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
	return nil, fmt.Errorf("cannot use %v as %s", val, t)
}
