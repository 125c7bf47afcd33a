package classifier

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func decodeImage(t *testing.T, b64 string) string {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Errorf("bad base64: %v", err)
	}
	return string(data)
}
