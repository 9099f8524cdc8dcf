//go:build !sonic

package manifest

import "github.com/goccy/go-json"

// map keys are emitted in sorted order
var (
	jsonMarshal   = json.Marshal
	jsonUnmarshal = json.Unmarshal
)
