package mm

import "github.com/sarchlab/avalonbus/signal"

// A Store keeps the bytes of an emulated memory.
//
// The store manages the bytes in units of 4 KiB. A unit is allocated when a
// byte in it is first written. Bytes that were never written are
// uninitialized. A store can be shared by two Memory components to model a
// dual-port memory.
type Store struct {
	unitSize uint64
	units    map[uint64]*storeUnit
}

type storeUnit struct {
	data    []byte
	written []bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		unitSize: 4096,
		units:    make(map[uint64]*storeUnit),
	}
}

func (s *Store) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Store) createOrGetUnit(addr uint64) *storeUnit {
	baseAddr, _ := s.parseAddress(addr)

	unit, ok := s.units[baseAddr]
	if !ok {
		unit = &storeUnit{
			data:    make([]byte, s.unitSize),
			written: make([]bool, s.unitSize),
		}
		s.units[baseAddr] = unit
	}

	return unit
}

// ByteAt returns the byte at the address, and false if the byte was never
// written.
func (s *Store) ByteAt(addr uint64) (byte, bool) {
	baseAddr, inUnitAddr := s.parseAddress(addr)

	unit, ok := s.units[baseAddr]
	if !ok || !unit.written[inUnitAddr] {
		return 0, false
	}

	return unit.data[inUnitAddr], true
}

// SetByte sets the byte at the address.
func (s *Store) SetByte(addr uint64, b byte) {
	unit := s.createOrGetUnit(addr)
	_, inUnitAddr := s.parseAddress(addr)

	unit.data[inUnitAddr] = b
	unit.written[inUnitAddr] = true
}

// Read returns n bytes starting from the address. Bytes that were never
// written read as 0. The second return value is false if any of the bytes
// was never written.
func (s *Store) Read(addr uint64, n int) ([]byte, bool) {
	res := make([]byte, n)
	initialized := true

	for i := range res {
		b, ok := s.ByteAt(addr + uint64(i))
		if !ok {
			initialized = false
		}

		res[i] = b
	}

	return res, initialized
}

// Write sets the bytes starting from the address.
func (s *Store) Write(addr uint64, data []byte) {
	for i, b := range data {
		s.SetByte(addr+uint64(i), b)
	}
}

// IsInitialized tells if all the n bytes starting from the address were
// written.
func (s *Store) IsInitialized(addr uint64, n int) bool {
	_, ok := s.Read(addr, n)
	return ok
}

// ReadWord returns the word of the given width stored from the address, with
// the byte at the address in the least significant lane. The word is unknown
// if any of its bytes was never written.
func (s *Store) ReadWord(addr uint64, width int) signal.Word {
	data, ok := s.Read(addr, width/8)
	if !ok {
		return signal.Unknown(width)
	}

	return signal.FromBytes(width, data, false)
}

// WriteWord stores a word from the address, least significant lane first.
func (s *Store) WriteWord(addr uint64, w signal.Word) error {
	data, err := w.Bytes(false)
	if err != nil {
		return err
	}

	s.Write(addr, data)

	return nil
}
