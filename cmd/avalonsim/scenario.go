package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/avalonbus/avalon"
)

// A scenario describes the buses and the stimulus of a run. Fields that a
// scenario file leaves out keep their defaults.
type scenario struct {
	Stream streamScenario `yaml:"stream"`
	Memory memoryScenario `yaml:"memory"`
}

type streamScenario struct {
	DataWidth    int `yaml:"data_width"`
	ChannelWidth int `yaml:"channel_width"`
	Packets      int `yaml:"packets"`
	MaxPacketLen int `yaml:"max_packet_len"`

	// The driver holds valid for up to MaxOn words and drops it for up to
	// MaxOff cycles. A MaxOn of 0 keeps valid asserted.
	MaxOn  int `yaml:"max_on"`
	MaxOff int `yaml:"max_off"`

	// ReadyPercent is the chance that the sink is ready in a cycle. A value
	// of 100 or more leaves out the ready signal.
	ReadyPercent int `yaml:"ready_percent"`

	DriverOptions  avalon.Options `yaml:"driver_options"`
	MonitorOptions avalon.Options `yaml:"monitor_options"`
}

type memoryScenario struct {
	DataWidth      int `yaml:"data_width"`
	AddressWidth   int `yaml:"address_width"`
	BurstWidth     int `yaml:"burst_width"`
	Transactions   int `yaml:"transactions"`
	AddressSpace   int `yaml:"address_space"`
	MaxBurstLength int `yaml:"max_burst_length"`

	Options avalon.Options `yaml:"options"`
}

func defaultScenario() scenario {
	return scenario{
		Stream: streamScenario{
			DataWidth:    32,
			ChannelWidth: 4,
			Packets:      100,
			MaxPacketLen: 64,
			MaxOn:        4,
			MaxOff:       2,
			ReadyPercent: 70,
			DriverOptions: avalon.Options{},
			MonitorOptions: avalon.Options{
				avalon.OptInvalidTimeout: 64,
			},
		},
		Memory: memoryScenario{
			DataWidth:      32,
			AddressWidth:   16,
			BurstWidth:     4,
			Transactions:   200,
			AddressSpace:   1024,
			MaxBurstLength: 8,
			Options: avalon.Options{
				avalon.OptReadLatency:    2,
				avalon.OptMaxWaitReqLen:  3,
				avalon.OptReadLatencyMax: 3,
			},
		},
	}
}

// loadScenario reads a scenario file over the defaults. An empty path gives
// the defaults.
func loadScenario(path string) (scenario, error) {
	sc := defaultScenario()

	if path == "" {
		return sc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sc, errors.Wrap(err, "cannot read scenario")
	}

	err = parseScenario(data, &sc)
	if err != nil {
		return sc, errors.Wrapf(err, "scenario %s", path)
	}

	return sc, nil
}

func parseScenario(data []byte, sc *scenario) error {
	err := yaml.Unmarshal(data, sc)
	if err != nil {
		return err
	}

	err = sc.Stream.validate()
	if err != nil {
		return errors.Wrap(err, "stream")
	}

	err = sc.Memory.validate()
	if err != nil {
		return errors.Wrap(err, "memory")
	}

	return nil
}

func (s streamScenario) validate() error {
	switch {
	case s.DataWidth <= 0 || s.DataWidth%8 != 0:
		return errors.Errorf("data width %d is not a positive multiple of 8",
			s.DataWidth)
	case s.ChannelWidth < 0 || s.ChannelWidth > 31:
		return errors.Errorf("channel width %d is out of range", s.ChannelWidth)
	case s.Packets < 0:
		return errors.Errorf("negative packet count %d", s.Packets)
	case s.MaxPacketLen < 1:
		return errors.Errorf("max packet length %d is less than 1",
			s.MaxPacketLen)
	case s.MaxOn < 0 || s.MaxOff < 0:
		return errors.Errorf("negative throttle %d/%d", s.MaxOn, s.MaxOff)
	case s.ReadyPercent < 1:
		return errors.Errorf("ready percent %d is less than 1",
			s.ReadyPercent)
	}

	return nil
}

func (s memoryScenario) validate() error {
	wordBytes := s.DataWidth / 8

	switch {
	case s.DataWidth <= 0 || s.DataWidth%8 != 0 || s.DataWidth > 64:
		return errors.Errorf("data width %d is not a multiple of 8 up to 64",
			s.DataWidth)
	case s.AddressWidth < 1 || s.AddressWidth > 64:
		return errors.Errorf("address width %d is out of range",
			s.AddressWidth)
	case s.BurstWidth < 0:
		return errors.Errorf("negative burst width %d", s.BurstWidth)
	case s.Transactions < 0:
		return errors.Errorf("negative transaction count %d",
			s.Transactions)
	case s.AddressSpace < wordBytes || s.AddressSpace%wordBytes != 0:
		return errors.Errorf("address space %d is not a multiple of %d bytes",
			s.AddressSpace, wordBytes)
	case s.AddressWidth < 64 && uint64(s.AddressSpace) > 1<<uint(s.AddressWidth):
		return errors.Errorf("address space %d does not fit in %d bits",
			s.AddressSpace, s.AddressWidth)
	case s.BurstWidth > 0 && s.MaxBurstLength < 1:
		return errors.Errorf("max burst length %d is less than 1",
			s.MaxBurstLength)
	}

	return nil
}

// maxBurst returns the longest burst that the burstcount signal and the
// address space allow.
func (s memoryScenario) maxBurst() int {
	n := s.MaxBurstLength

	if s.BurstWidth < 31 && n > (1<<uint(s.BurstWidth))-1 {
		n = (1 << uint(s.BurstWidth)) - 1
	}

	if words := s.AddressSpace / (s.DataWidth / 8); n > words {
		n = words
	}

	return n
}
