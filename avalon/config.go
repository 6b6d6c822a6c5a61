// Package avalon holds what the Avalon-MM and Avalon-ST components share:
// option tables and their resolution, error categories, and hook positions.
package avalon

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/pkg/errors"
)

// Option names, as used by Avalon interface properties.
const (
	OptFirstSymbolInHighOrderBits = "firstSymbolInHighOrderBits"
	OptDataBitsPerSymbol          = "dataBitsPerSymbol"
	OptMaxChannel                 = "maxChannel"
	OptReadyLatency               = "readyLatency"
	OptInvalidTimeout             = "invalidTimeout"
	OptBurstCountUnits            = "burstCountUnits"
	OptAddressUnits               = "addressUnits"
	OptReadLatency                = "readLatency"
	OptWriteBurstWaitReq          = "WriteBurstWaitReq"
	OptMaxWaitReqLen              = "MaxWaitReqLen"
	OptReadLatencyMin             = "readlatency_min"
	OptReadLatencyMax             = "readlatency_max"
)

// UnitsSymbols is the only supported value of the address and burst count
// units.
const UnitsSymbols = "symbols"

// MaxChannelWidth is the widest channel signal that Avalon-ST allows.
const MaxChannelWidth = 128

// Options are the option values that a user sets on a component. Values are
// bool, int or string, depending on the option.
type Options map[string]interface{}

// A Table lists the options that a component accepts, with their defaults.
type Table map[string]interface{}

// With returns a copy of the table with the default of one option changed.
func (t Table) With(name string, value interface{}) Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}

	out[name] = value

	return out
}

// STTable returns the options of the word-level Avalon-ST driver and
// monitor.
func STTable() Table {
	return Table{
		OptFirstSymbolInHighOrderBits: true,
	}
}

// STPacketTable returns the options of the packetized Avalon-ST driver.
func STPacketTable() Table {
	return Table{
		OptDataBitsPerSymbol:          8,
		OptFirstSymbolInHighOrderBits: true,
		OptMaxChannel:                 0,
		OptReadyLatency:               0,
	}
}

// STPacketMonitorTable returns the options of the packetized Avalon-ST
// monitor.
func STPacketMonitorTable() Table {
	return STPacketTable().With(OptInvalidTimeout, 0)
}

// MemoryTable returns the options of the Avalon-MM memory.
func MemoryTable() Table {
	return Table{
		OptBurstCountUnits:   UnitsSymbols,
		OptAddressUnits:      UnitsSymbols,
		OptReadLatency:       1,
		OptWriteBurstWaitReq: true,
		OptMaxWaitReqLen:     4,
		OptReadLatencyMin:    1,
		OptReadLatencyMax:    1,
	}
}

// MasterTable returns the options of the Avalon-MM master. The master has no
// option.
func MasterTable() Table {
	return Table{}
}

// A Config is the resolved set of options of a component. It does not change
// after it is resolved.
type Config struct {
	values map[string]interface{}
}

// Resolve merges the overrides over the defaults of the table. Unknown option
// names and values of the wrong type are errors.
func Resolve(table Table, overrides Options) (Config, error) {
	c := Config{values: make(map[string]interface{}, len(table))}
	for k, v := range table {
		c.values[k] = v
	}

	for _, name := range sortedKeys(overrides) {
		def, ok := table[name]
		if !ok {
			return Config{}, errors.Errorf("unknown option %q", name)
		}

		v, err := convert(def, overrides[name])
		if err != nil {
			return Config{}, errors.Wrapf(err, "option %q", name)
		}

		c.values[name] = v
	}

	return c, nil
}

func sortedKeys(o Options) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func convert(def, v interface{}) (interface{}, error) {
	switch def.(type) {
	case bool:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Errorf("expecting a bool, got %T", v)
		}

		return b, nil
	case int:
		return toInt(v)
	case string:
		s, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("expecting a string, got %T", v)
		}

		return s, nil
	default:
		panic(fmt.Sprintf("unsupported option type %T", def))
	}
}

func toInt(v interface{}) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	default:
		return 0, errors.Errorf("expecting an integer, got %T", v)
	}
}

// Bool returns the value of a bool option.
func (c Config) Bool(name string) bool {
	return c.mustGet(name).(bool)
}

// Int returns the value of an integer option.
func (c Config) Int(name string) int {
	return c.mustGet(name).(int)
}

// String returns the value of a string option.
func (c Config) String(name string) string {
	return c.mustGet(name).(string)
}

// Has tells if the config has an option.
func (c Config) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

func (c Config) mustGet(name string) interface{} {
	v, ok := c.values[name]
	if !ok {
		panic("option " + name + " is not defined")
	}

	return v
}

// MaxChannelFor returns the largest channel that a channel signal of the given
// width can carry. Widths of 63 bits or more are capped to the largest int.
func MaxChannelFor(width int) int {
	if width >= 63 {
		return int(^uint(0) >> 1)
	}

	return 1<<uint(width) - 1
}

// ChannelFits tells if maxChannel fits in a channel signal of the given
// width.
func ChannelFits(maxChannel, width int) bool {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(width))
	limit.Sub(limit, big.NewInt(1))

	return big.NewInt(int64(maxChannel)).Cmp(limit) <= 0
}

// SymbolsPerWord returns the number of symbols in a data word.
func SymbolsPerWord(dataWidth, bitsPerSymbol int) (int, error) {
	if bitsPerSymbol <= 0 {
		return 0, errors.Errorf(
			"%s must be positive, got %d", OptDataBitsPerSymbol, bitsPerSymbol)
	}

	if dataWidth%bitsPerSymbol != 0 {
		return 0, errors.Errorf(
			"data width %d is not a multiple of %d bits per symbol",
			dataWidth, bitsPerSymbol)
	}

	return dataWidth / bitsPerSymbol, nil
}
