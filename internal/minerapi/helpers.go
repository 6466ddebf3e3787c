package minerapi

import (
	"encoding/json"
	"fmt"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/internal/codec"
)

func unmarshalParams(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("minerapi: bad params: %w", err)
	}
	return nil
}

func decodeHeaderForCommit(headerBytes []byte) (*chaintypes.Header, error) {
	return codec.DeserializeHeader(headerBytes)
}
