package metadata

import (
	"fmt"
	"maps"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"google.golang.org/protobuf/types/known/structpb"
)

// normalize converts decoded JSON-like data into the closed set of variant
// values: string, float64, bool, nil, map[string]any and []any. Values
// outside that set are rejected.
func normalize(in map[string]any) (map[string]any, error) {
	if in == nil {
		return map[string]any{}, nil
	}
	s, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported content value: %v", common.ErrorValidation, err)
	}
	return s.AsMap(), nil
}

// merge overlays patch onto base key by key. Neither input is modified.
func merge(base, patch map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
