package scheduler

import (
	"encoding/json"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

func decodeInto(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return ferr.Wrap(ferr.Internal, "decode row", err)
	}
	return nil
}
