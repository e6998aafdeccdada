package transform

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	mappingURLComment = "/*# sourceMappingURL="
	inlineMapPrefix   = mappingURLComment + "data:application/json;base64,"
)

// InlineSourceMap appends sm to css as a base64 data URL comment, the form
// postcss reads as the previous map of its input.
func InlineSourceMap(css, sm []byte) []byte {
	out := make([]byte, 0, len(css)+len(inlineMapPrefix)+base64.StdEncoding.EncodedLen(len(sm))+4)
	out = append(out, css...)
	out = append(out, '\n')
	out = append(out, inlineMapPrefix...)
	out = base64.StdEncoding.AppendEncode(out, sm)
	return append(out, " */"...)
}

// ExtractInlineSourceMap removes the trailing sourceMappingURL comment from
// css. When the comment holds an inline base64 JSON map, that map is
// returned with ok set.
func ExtractInlineSourceMap(css []byte) (out, sm []byte, ok bool) {
	idx := bytes.LastIndex(css, []byte(mappingURLComment))
	if idx < 0 {
		return css, nil, false
	}
	out = bytes.TrimRight(css[:idx], "\n\r\t ")

	url := css[idx+len(mappingURLComment):]
	if end := bytes.Index(url, []byte("*/")); end >= 0 {
		url = url[:end]
	}
	url = bytes.TrimSpace(url)
	if !bytes.HasPrefix(url, []byte("data:application/json")) {
		return out, nil, false
	}
	comma := bytes.IndexByte(url, ',')
	if comma < 0 || !bytes.HasSuffix(url[:comma], []byte(";base64")) {
		return out, nil, false
	}
	sm, err := base64.StdEncoding.DecodeString(string(url[comma+1:]))
	if err != nil {
		return out, nil, false
	}
	return out, sm, true
}

// RebaseSourceMap points a v3 map at the file it is published next to.
// file names the generated stylesheet; a non-empty sourceRoot is the path
// from that stylesheet's directory back to the directory sources are
// relative to. Mappings and sources are left untouched.
func RebaseSourceMap(sm []byte, file, sourceRoot string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(sm, &fields); err != nil {
		return nil, fmt.Errorf("parse source map: %w", err)
	}
	if _, ok := fields["mappings"]; !ok {
		return nil, errors.New("source map has no mappings")
	}

	set := func(key, value string) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}
	if err := set("file", file); err != nil {
		return nil, err
	}
	if sourceRoot != "" {
		if err := set("sourceRoot", sourceRoot); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}
