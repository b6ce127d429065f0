package cli

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/plantitas/plantitas/pkg/shopapi"
)

// parseSetFlags turns key=value pairs into a map. Keys are lowercased and may repeat; the last wins.
func parseSetFlags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

// productPatchFromSet builds a product patch from --set values. Numbers are parsed from
// their text. Unknown keys are rejected.
func productPatchFromSet(pairs []string) (shopapi.ProductPatch, error) {
	var patch shopapi.ProductPatch
	values, err := parseSetFlags(pairs)
	if err != nil {
		return patch, err
	}
	if len(values) == 0 {
		return patch, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &patch,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return patch, err
	}
	if err := dec.Decode(values); err != nil {
		return patch, fmt.Errorf("invalid --set: %w (settable: sku, name, price, stock, category_id)", err)
	}
	return patch, nil
}
