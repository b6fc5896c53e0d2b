package entities

import (
	"encoding/json"
	"fmt"
)

// TradeType says which side of the swap is fixed.
type TradeType int

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "EXACT_OUTPUT"
	}
	return "EXACT_INPUT"
}

// Protocol tags a route by the kind of pools it traverses.
type Protocol string

const (
	ProtocolV2    Protocol = "V2"
	ProtocolV3    Protocol = "V3"
	ProtocolMixed Protocol = "MIXED"
)

// UnmarshalJSON rejects unknown protocol tags.
func (p *Protocol) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Protocol(s) {
	case ProtocolV2, ProtocolV3, ProtocolMixed:
		*p = Protocol(s)
		return nil
	default:
		return fmt.Errorf("unknown protocol %q", s)
	}
}

// MethodParameters is the encoded router call for a route.
type MethodParameters struct {
	Calldata string `json:"calldata"`
	Value    string `json:"value"`
	To       string `json:"to"`
}
