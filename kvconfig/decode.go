package kvconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/ceyewan/warden/xerrors"
)

// 支持的配置格式
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
)

// Decoder 把原始配置解码到 v
type Decoder func(data []byte, v any) error

func decoderFor(format string) (Decoder, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return decodeJSON, nil
	case FormatYAML, "yml":
		return decodeYAML, nil
	case FormatMsgpack:
		return decodeMsgpack, nil
	default:
		return nil, xerrors.Wrapf(ErrInvalidArgument, "unsupported format %q", format)
	}
}

// decodeJSON 字段名大小写不敏感，与 encoding/json 的默认匹配规则一致
func decodeJSON(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return xerrors.New("empty document")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return xerrors.New("document is null")
	}
	return json.Unmarshal(trimmed, v)
}

func decodeYAML(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return xerrors.New("empty document")
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if len(node.Content) == 0 || node.Content[0].Tag == "!!null" {
		return xerrors.New("document is null")
	}
	if err := node.Decode(v); err != nil {
		// yaml.TypeError 的信息会带出原始值片段
		var typeErr *yaml.TypeError
		if xerrors.As(err, &typeErr) {
			return fmt.Errorf("yaml: %d field(s) have mismatched types", len(typeErr.Errors))
		}
		return err
	}
	return nil
}

// decodeMsgpack 按 json 标签匹配字段，与 JSON 文档共用同一结构体定义
func decodeMsgpack(data []byte, v any) error {
	if len(data) == 0 {
		return xerrors.New("empty document")
	}
	if len(data) == 1 && data[0] == msgpackNil {
		return xerrors.New("document is null")
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

const msgpackNil = 0xc0
