package signingblock

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"
	"math"
)

// Pairs is an insertion-ordered mapping of APK Signing Block IDs to values.
// Order matters: encoding the same Pairs always yields the same bytes.
type Pairs struct {
	ids    []uint32
	values map[uint32][]byte
}

func NewPairs() *Pairs {
	return &Pairs{values: make(map[uint32][]byte)}
}

func (p *Pairs) Len() int {
	return len(p.ids)
}

func (p *Pairs) Has(id uint32) bool {
	_, ok := p.values[id]
	return ok
}

func (p *Pairs) Get(id uint32) ([]byte, bool) {
	v, ok := p.values[id]
	return v, ok
}

// Set stores value under id. An existing id keeps its position.
func (p *Pairs) Set(id uint32, value []byte) {
	if _, ok := p.values[id]; !ok {
		p.ids = append(p.ids, id)
	}
	p.values[id] = value
}

// Delete removes id and reports whether it was present.
func (p *Pairs) Delete(id uint32) bool {
	if _, ok := p.values[id]; !ok {
		return false
	}
	delete(p.values, id)
	for i, cur := range p.ids {
		if cur == id {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns the ids in order.
func (p *Pairs) IDs() []uint32 {
	return append([]uint32(nil), p.ids...)
}

// All iterates over the pairs in order.
func (p *Pairs) All() iter.Seq2[uint32, []byte] {
	return func(yield func(uint32, []byte) bool) {
		for _, id := range p.ids {
			if !yield(id, p.values[id]) {
				return
			}
		}
	}
}

// Clone returns a copy sharing no mutable state with p.
func (p *Pairs) Clone() *Pairs {
	res := &Pairs{
		ids:    append([]uint32(nil), p.ids...),
		values: make(map[uint32][]byte, len(p.values)),
	}
	for id, v := range p.values {
		res.values[id] = bytes.Clone(v)
	}
	return res
}

// Equal reports whether both mappings hold the same pairs in the same order.
func (p *Pairs) Equal(o *Pairs) bool {
	if p.Len() != o.Len() {
		return false
	}
	for i, id := range p.ids {
		if o.ids[i] != id || !bytes.Equal(p.values[id], o.values[id]) {
			return false
		}
	}
	return true
}

// EncodedSize is the length of EncodePairs(p).
func (p *Pairs) EncodedSize() int64 {
	size := int64(8 + apkSigBlockFooterSize)
	for _, v := range p.values {
		size += 8 + 4 + int64(len(v))
	}
	return size
}

func (p *Pairs) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range p.ids {
		if i != 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "0x%08x: %d bytes", id, len(p.values[id]))
	}
	buf.WriteByte('}')
	return buf.String()
}

// DecodePairs parses the ID-value pairs of a complete APK Signing Block,
// both size fields and the magic included.
func DecodePairs(block []byte) (*Pairs, error) {
	window, err := sliceWindow(block, 8, len(block)-apkSigBlockFooterSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTruncatedEntry, err.Error())
	}

	res := NewPairs()
	entryCount := 0
	for len(window) > 0 {
		entryCount++

		if len(window) < 8 {
			return nil, fmt.Errorf("%w: insufficient data to read size of APK Signing Block entry #%d",
				ErrTruncatedEntry, entryCount)
		}

		entryLen := binary.LittleEndian.Uint64(window)
		window = window[8:]
		if entryLen < 4 || entryLen > math.MaxInt32 {
			return nil, fmt.Errorf("%w: APK Signing Block entry #%d size out of range: %d",
				ErrTruncatedEntry, entryCount, entryLen)
		}
		if entryLen > uint64(len(window)) {
			return nil, fmt.Errorf("%w: APK Signing Block entry #%d size out of range: %d, available: %d",
				ErrTruncatedEntry, entryCount, entryLen, len(window))
		}

		id := binary.LittleEndian.Uint32(window)
		if res.Has(id) {
			return nil, fmt.Errorf("%w: APK Signing Block entry #%d repeats ID 0x%08x",
				ErrDuplicateID, entryCount, id)
		}

		value := make([]byte, entryLen-4)
		copy(value, window[4:entryLen])
		res.Set(id, value)
		window = window[entryLen:]
	}

	if res.Len() == 0 {
		return nil, ErrEmptyContainer
	}
	return res, nil
}

// EncodePairs serializes p into a complete APK Signing Block.
func EncodePairs(p *Pairs) []byte {
	total := p.EncodedSize()
	buf := make([]byte, 0, total)

	sizeField := uint64(total - 8)
	buf = binary.LittleEndian.AppendUint64(buf, sizeField)
	for id, v := range p.All() {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(4+len(v)))
		buf = binary.LittleEndian.AppendUint32(buf, id)
		buf = append(buf, v...)
	}
	buf = binary.LittleEndian.AppendUint64(buf, sizeField)
	buf = binary.LittleEndian.AppendUint64(buf, apkSigBlockMagicLo)
	buf = binary.LittleEndian.AppendUint64(buf, apkSigBlockMagicHi)
	return buf
}
