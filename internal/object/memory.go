package object

import "encoding/binary"

// Memory is a sparse virtual-address-space byte map. It is the uniform
// representation chosen for the "single-word GOT writes" design point:
// code/data bytes and pointer-width GOT words both live in the same
// map[uint64]byte, with ReadWord/WriteWord layering width- and
// endianness-aware access on top of the byte-level storage.
type Memory struct {
	bytes map[uint64]byte
}

// NewMemory returns an empty sparse memory map.
func NewMemory() *Memory {
	return &Memory{bytes: make(map[uint64]byte)}
}

// Get returns the byte at addr and whether it has been populated.
func (m *Memory) Get(addr uint64) (byte, bool) {
	b, ok := m.bytes[addr]
	return b, ok
}

// TrySet writes b at addr if addr is unpopulated, returning false
// (and leaving memory unchanged) if something is already there. This is
// the overlap check used while loading a single object's segments.
func (m *Memory) TrySet(addr uint64, b byte) bool {
	if _, exists := m.bytes[addr]; exists {
		return false
	}
	m.bytes[addr] = b
	return true
}

// Set writes b at addr unconditionally, overwriting any prior value.
// Used for GOT overrides and relocation writes, where "already
// populated" is the expected, desired case.
func (m *Memory) Set(addr uint64, b byte) {
	m.bytes[addr] = b
}

// Len returns the number of populated addresses.
func (m *Memory) Len() int { return len(m.bytes) }

// Range calls fn once per populated address, in no particular order.
func (m *Memory) Range(fn func(addr uint64, b byte)) {
	for a, b := range m.bytes {
		fn(a, b)
	}
}

// ReadBytes reads n contiguous bytes starting at addr. ok is false if
// any byte in the range is unpopulated.
func (m *Memory) ReadBytes(addr uint64, n int) (data []byte, ok bool) {
	data = make([]byte, n)
	for i := 0; i < n; i++ {
		b, present := m.bytes[addr+uint64(i)]
		if !present {
			return nil, false
		}
		data[i] = b
	}
	return data, true
}

// WriteBytes writes data starting at addr, overwriting any prior
// values.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.bytes[addr+uint64(i)] = b
	}
}

// ReadWord reads a width-byte (4 or 8) word at addr using order. ok is
// false if any byte of the word is unpopulated.
func (m *Memory) ReadWord(addr uint64, width int, order binary.ByteOrder) (value uint64, ok bool) {
	data, present := m.ReadBytes(addr, width)
	if !present {
		return 0, false
	}
	switch width {
	case 4:
		return uint64(order.Uint32(data)), true
	case 8:
		return order.Uint64(data), true
	default:
		return 0, false
	}
}

// WriteWord writes value as a width-byte (4 or 8) word at addr using
// order, overwriting any prior bytes.
func (m *Memory) WriteWord(addr uint64, value uint64, width int, order binary.ByteOrder) {
	buf := make([]byte, width)
	switch width {
	case 4:
		order.PutUint32(buf, uint32(value))
	case 8:
		order.PutUint64(buf, value)
	default:
		return
	}
	m.WriteBytes(addr, buf)
}

// Clone returns an independent copy of m. The object loader's private
// byte map is immutable file-relative data; cloning it is how the
// linker takes the "read-through copy" into the composed image without
// letting later mutation of the image leak back into the object.
func (m *Memory) Clone() *Memory {
	out := make(map[uint64]byte, len(m.bytes))
	for a, b := range m.bytes {
		out[a] = b
	}
	return &Memory{bytes: out}
}
