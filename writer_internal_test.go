package apkchannel

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkchannel/internal/apktest"
	"github.com/avast/apkchannel/signingblock"
)

// memFile is an in-memory tailFile. The write that crosses dropAt loses its last byte
// while still reporting the full length, like a device that silently drops data.
type memFile struct {
	data      []byte
	pos       int64
	dropAt    int64
	truncated bool
}

func (m *memFile) Write(p []byte) (int, error) {
	n := len(p)
	keep := p
	if m.dropAt > 0 && m.pos <= m.dropAt && m.pos+int64(n) > m.dropAt {
		keep = p[:n-1]
		m.dropAt = 0
	}

	if end := m.pos + int64(len(keep)); end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[m.pos:], keep)
	m.pos += int64(len(keep))
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.data)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	return m.pos, nil
}

func (m *memFile) Truncate(size int64) error {
	m.truncated = true
	m.data = m.data[:size]
	return nil
}

func readTestSections(t *testing.T, data []byte) *signingblock.Sections {
	t.Helper()

	s, err := signingblock.NewSections(bytes.NewReader(data), int64(len(data)), signingblock.ReadOptions{})
	require.NoError(t, err)
	return s
}

func TestRewriteTail(t *testing.T) {
	a := apktest.Build(t, apktest.Options{})
	s := readTestSections(t, a.Data)

	pairs := s.Pairs()
	pairs.Set(ChannelBlockID, []byte("huawei"))

	f := &memFile{data: bytes.Clone(a.Data)}
	require.NoError(t, rewriteTail(f, s, pairs, slog.New(slog.DiscardHandler)))
	assert.True(t, f.truncated)

	rewritten := readTestSections(t, f.data)
	v, ok := rewritten.Pairs().Get(ChannelBlockID)
	require.True(t, ok)
	assert.Equal(t, "huawei", string(v))
}

func TestRewriteTailCorruptWrite(t *testing.T) {
	a := apktest.Build(t, apktest.Options{})
	s := readTestSections(t, a.Data)

	pairs := s.Pairs()
	pairs.Set(ChannelBlockID, []byte("huawei"))

	// The central directory copy starts right after the new signing block.
	f := &memFile{
		data:   bytes.Clone(a.Data),
		dropAt: a.SigningBlockOffset + pairs.EncodedSize(),
	}
	err := rewriteTail(f, s, pairs, slog.New(slog.DiscardHandler))
	require.ErrorIs(t, err, ErrCorruptWrite)
	assert.False(t, f.truncated)
}
