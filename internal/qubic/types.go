package qubic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TickInfo is the payload of GET /tick-info.
type TickInfo struct {
	Tick        uint64 `json:"tick"`
	Duration    int64  `json:"duration"`
	Epoch       uint32 `json:"epoch"`
	InitialTick uint64 `json:"initialTick"`
}

// Stats is the payload of GET /latest-stats. Several counters arrive as JSON
// strings upstream, hence the flexible number types.
type Stats struct {
	Timestamp                Int   `json:"timestamp"`
	CirculatingSupply        Int   `json:"circulatingSupply"`
	ActiveAddresses          Int   `json:"activeAddresses"`
	Price                    Float `json:"price"`
	MarketCap                Int   `json:"marketCap"`
	Epoch                    Int   `json:"epoch"`
	CurrentTick              Int   `json:"currentTick"`
	TicksInCurrentEpoch      Int   `json:"ticksInCurrentEpoch"`
	EmptyTicksInCurrentEpoch Int   `json:"emptyTicksInCurrentEpoch"`
	EpochTickQuality         Float `json:"epochTickQuality"`
	BurnedQus                Int   `json:"burnedQus"`
}

// Status is the subset of GET /status used for tick duration estimation.
// Every field is optional.
type Status struct {
	LastProcessedTick *struct {
		TickNumber uint64 `json:"tickNumber"`
		Epoch      uint32 `json:"epoch"`
	} `json:"lastProcessedTick,omitempty"`
	TimestampMs         *Int `json:"timestamp_ms,omitempty"`
	PreviousTimestampMs *Int `json:"previous_timestamp_ms,omitempty"`
	Timestamp           *Int `json:"timestamp,omitempty"`
	PreviousTimestamp   *Int `json:"previous_timestamp,omitempty"`
	Duration            *Int `json:"duration,omitempty"`
}

// Int decodes from either a JSON number or a numeric string.
type Int int64

func (n *Int) UnmarshalJSON(b []byte) error {
	s, err := unquoteNumber(b)
	if err != nil || s == "" {
		*n = 0
		return err
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = Int(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("qubic: invalid integer %q", s)
	}
	*n = Int(f)
	return nil
}

// Float decodes from either a JSON number or a numeric string.
type Float float64

func (n *Float) UnmarshalJSON(b []byte) error {
	s, err := unquoteNumber(b)
	if err != nil || s == "" {
		*n = 0
		return err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("qubic: invalid number %q", s)
	}
	*n = Float(f)
	return nil
}

func unquoteNumber(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(b), nil
}
