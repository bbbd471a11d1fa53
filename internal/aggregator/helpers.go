package aggregator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func decodeJSON(body []byte, v interface{}) error {
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}
