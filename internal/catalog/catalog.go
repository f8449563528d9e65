// Package catalog holds the fixed set of tradable symbols and their display
// names.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog maps symbol to display name. It is immutable after construction.
type Catalog struct {
	names map[string]string
}

// New builds a catalog from a symbol → name map.
func New(names map[string]string) *Catalog {
	c := &Catalog{names: make(map[string]string, len(names))}
	for sym, name := range names {
		c.names[sym] = name
	}
	return c
}

// Default returns the built-in NSE large-cap catalog.
func Default() *Catalog {
	return New(map[string]string{
		"RELIANCE.NS":  "Reliance Industries",
		"TCS.NS":       "Tata Consultancy Services",
		"HDFCBANK.NS":  "HDFC Bank",
		"INFY.NS":      "Infosys",
		"WIPRO.NS":     "Wipro",
		"ICICIBANK.NS": "ICICI Bank",
		"ITC.NS":       "ITC",
		"SBIN.NS":      "State Bank of India",
	})
}

type fileFormat struct {
	Symbols []struct {
		Symbol string `yaml:"symbol"`
		Name   string `yaml:"name"`
	} `yaml:"symbols"`
}

// LoadFile reads a YAML catalog:
//
//	symbols:
//	  - symbol: TCS.NS
//	    name: Tata Consultancy Services
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	names := make(map[string]string, len(f.Symbols))
	for _, s := range f.Symbols {
		if s.Symbol == "" {
			return nil, fmt.Errorf("catalog: %s: entry with empty symbol", path)
		}
		if _, dup := names[s.Symbol]; dup {
			return nil, fmt.Errorf("catalog: %s: duplicate symbol %s", path, s.Symbol)
		}
		name := s.Name
		if name == "" {
			name = s.Symbol
		}
		names[s.Symbol] = name
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog: %s: no symbols", path)
	}
	return New(names), nil
}

// Contains reports whether sym is tradable.
func (c *Catalog) Contains(sym string) bool {
	_, ok := c.names[sym]
	return ok
}

// Name returns the display name of sym.
func (c *Catalog) Name(sym string) (string, bool) {
	n, ok := c.names[sym]
	return n, ok
}

// Symbols returns all symbols in sorted order.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.names))
	for s := range c.names {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Names returns a copy of the symbol → name map.
func (c *Catalog) Names() map[string]string {
	out := make(map[string]string, len(c.names))
	for k, v := range c.names {
		out[k] = v
	}
	return out
}
