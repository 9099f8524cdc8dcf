//go:build sonic

package manifest

import "github.com/bytedance/sonic"

// ConfigStd sorts map keys, ConfigDefault does not
var (
	jsonMarshal   = sonic.ConfigStd.Marshal
	jsonUnmarshal = sonic.ConfigStd.Unmarshal
)
