package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// DecodeConfigResponse turns the string handed back by the configuration
// page when its web view closes into a Dict. The response is URI-component
// encoded JSON holding a flat options object. Booleans map to 1/0 and
// numbers are rounded to int32. An empty response yields an empty Dict.
func DecodeConfigResponse(response string) (Dict, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return Dict{}, nil
	}

	// PathUnescape keeps '+' literal, like decodeURIComponent
	decoded, err := url.PathUnescape(response)
	if err != nil {
		return nil, fmt.Errorf("decode config response: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(decoded), &raw); err != nil {
		return nil, fmt.Errorf("parse config response: %w", err)
	}

	d := make(Dict, len(raw))
	for name, v := range raw {
		if _, ok := appKeys[name]; !ok {
			return nil, fmt.Errorf("config response: unknown option %q", name)
		}
		n, err := toInt32(v)
		if err != nil {
			return nil, fmt.Errorf("config response: option %q: %w", name, err)
		}
		d[name] = n
	}
	return d, nil
}

func toInt32(v interface{}) (int32, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		r := math.Round(x)
		if r > math.MaxInt32 || r < math.MinInt32 {
			return 0, fmt.Errorf("value %v out of int32 range", x)
		}
		return int32(r), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", x)
		}
		return int32(n), nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
