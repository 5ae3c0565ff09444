package ripple

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec decodes bindings documents.
type Codec interface {
	Unmarshal(data []byte, v any) error

	// ContentType names the format in signals and errors.
	ContentType() string
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)

// JSONCodec decodes JSON with encoding/json. It is the Reloader default.
type JSONCodec struct{}

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSONCodec) ContentType() string { return "application/json" }

// YAMLCodec decodes YAML with gopkg.in/yaml.v3. JSON documents decode too.
type YAMLCodec struct{}

func (YAMLCodec) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

func (YAMLCodec) ContentType() string { return "application/x-yaml" }

// CodecFor picks a codec from a file name: YAMLCodec for .yaml and .yml,
// JSONCodec otherwise.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}
