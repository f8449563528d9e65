package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Tick is a single inbound market-data message from the live feed.
//
// Wire shape:
//
//	{"id":"TCS.NS","price":3521.4,"changePercent":0.42,"dayVolume":1200345,"timestamp":"1718000000000"}
//
// Only id and price are required; price must be positive.
type Tick struct {
	Symbol        string  `json:"id"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
	DayVolume     float64 `json:"dayVolume"`
	Timestamp     string  `json:"timestamp"`
}

// DecodeTick parses one raw feed message. Any malformed payload is reported
// as ErrFeedDecode so the ingestor can log and skip it.
func DecodeTick(raw []byte) (Tick, error) {
	var wire struct {
		ID            string          `json:"id"`
		Price         *float64        `json:"price"`
		ChangePercent float64         `json:"changePercent"`
		DayVolume     float64         `json:"dayVolume"`
		Timestamp     json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Tick{}, fmt.Errorf("%w: %v", ErrFeedDecode, err)
	}
	if wire.ID == "" {
		return Tick{}, fmt.Errorf("%w: missing id", ErrFeedDecode)
	}
	if wire.Price == nil {
		return Tick{}, fmt.Errorf("%w: missing price for %s", ErrFeedDecode, wire.ID)
	}
	if *wire.Price <= 0 {
		return Tick{}, fmt.Errorf("%w: non-positive price %v for %s", ErrFeedDecode, *wire.Price, wire.ID)
	}

	ts, err := timestampString(wire.Timestamp)
	if err != nil {
		return Tick{}, fmt.Errorf("%w: timestamp for %s: %v", ErrFeedDecode, wire.ID, err)
	}

	return Tick{
		Symbol:        wire.ID,
		Price:         *wire.Price,
		ChangePercent: wire.ChangePercent,
		DayVolume:     wire.DayVolume,
		Timestamp:     ts,
	}, nil
}

// timestampString accepts the feed timestamp either as a JSON string or a
// bare number (epoch millis) and returns it verbatim as text.
func timestampString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
