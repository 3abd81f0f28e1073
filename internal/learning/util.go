package learning

import "encoding/json"

func decodeInto(raw []byte, dest any) error {
	return json.Unmarshal(raw, dest)
}
