package keymaterial

import (
	"encoding/base64"
	"encoding/json"
)

func decodeB64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
