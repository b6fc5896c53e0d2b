package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Head is a decoded newHeads notification.
type Head struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
	// BaseFee is nil before London.
	BaseFee *uint256.Int
}

// rawHead is the subset of the header JSON we read. Quantities are hex strings.
type rawHead struct {
	Number        hexutil.Uint64 `json:"number"`
	Hash          common.Hash    `json:"hash"`
	ParentHash    common.Hash    `json:"parentHash"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas"`
}

type notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// DecodeHead parses the params of an eth_subscription newHeads message.
func DecodeHead(params json.RawMessage) (*Head, error) {
	var n notification
	if err := json.Unmarshal(params, &n); err != nil {
		return nil, fmt.Errorf("parsing notification: %w", err)
	}
	if len(n.Result) == 0 {
		return nil, fmt.Errorf("notification has no result")
	}

	var raw rawHead
	if err := json.Unmarshal(n.Result, &raw); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if raw.Hash == (common.Hash{}) {
		return nil, fmt.Errorf("header has no hash")
	}

	head := &Head{
		Number:     uint64(raw.Number),
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		Timestamp:  time.Unix(int64(raw.Timestamp), 0),
	}
	if raw.BaseFeePerGas != nil {
		fee, overflow := uint256.FromBig(raw.BaseFeePerGas.ToInt())
		if overflow {
			return nil, fmt.Errorf("base fee overflows 256 bits")
		}
		head.BaseFee = fee
	}
	return head, nil
}
