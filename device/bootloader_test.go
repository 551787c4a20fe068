package device

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendps/godps/bootcom"
	"github.com/opendps/godps/protocol"
	"github.com/opendps/godps/uframe"
)

// failStore wraps MemStore so tests can make Set fail.
type failStore struct {
	*bootcom.MemStore
	failSet bool
}

func (s *failStore) Set(key string, value []byte) error {
	if s.failSet {
		return fmt.Errorf("set failed")
	}
	return s.MemStore.Set(key, value)
}

func unframe(t *testing.T, frame []byte) []byte {
	t.Helper()
	payload, err := uframe.Unframe(frame)
	require.NoError(t, err)
	return payload
}

func startPayload(t *testing.T, chunkSize, crc uint16) []byte {
	t.Helper()
	frame, err := protocol.CreateUpgradeStart(chunkSize, crc)
	require.NoError(t, err)
	return unframe(t, frame)
}

func dataPayload(t *testing.T, chunk []byte) []byte {
	t.Helper()
	frame, err := protocol.CreateUpgradeData(chunk)
	require.NoError(t, err)
	return unframe(t, frame)
}

func startAck(t *testing.T, frame []byte) *protocol.UpgradeAck {
	t.Helper()
	ack, err := protocol.UnpackUpgradeStartResponse(unframe(t, frame))
	require.NoError(t, err)
	return ack
}

func dataStatus(t *testing.T, frame []byte) protocol.UpgradeStatus {
	t.Helper()
	status, err := protocol.UnpackUpgradeDataResponse(unframe(t, frame))
	require.NoError(t, err)
	return status
}

func testImage(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestNewBootloaderPanics(t *testing.T) {
	assert.Panics(t, func() { NewBootloader(nil, NewMemFlash(16)) })
	assert.Panics(t, func() { NewBootloader(bootcom.NewMemStore(), nil) })
}

func TestBootReason(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(16))
		assert.Equal(t, protocol.ReasonUnknown, b.Reason())
	})

	t.Run("forced via option", func(t *testing.T) {
		b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(16),
			WithReason(protocol.ReasonForced))
		assert.Equal(t, protocol.ReasonForced, b.Reason())
	})

	t.Run("upgrade record", func(t *testing.T) {
		store := bootcom.NewMemStore()
		rec := bootcom.Record{ChunkSize: 64, CRC: 0x1234}
		require.NoError(t, store.Set(bootcom.KeyUpgrade, rec.Encode()))

		b := NewBootloader(store, NewMemFlash(16))
		assert.Equal(t, protocol.ReasonBootcom, b.Reason())
	})

	t.Run("in-progress flag outranks record", func(t *testing.T) {
		store := bootcom.NewMemStore()
		rec := bootcom.Record{ChunkSize: 64, CRC: 0x1234}
		require.NoError(t, store.Set(bootcom.KeyUpgrade, rec.Encode()))
		require.NoError(t, store.Set(bootcom.KeyInProgress, []byte{1}))

		b := NewBootloader(store, NewMemFlash(16))
		assert.Equal(t, protocol.ReasonUnfinishedUpgrade, b.Reason())
	})
}

func TestStartQuietWithoutRecord(t *testing.T) {
	b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(16))

	greeting, err := b.Start()
	require.NoError(t, err)
	assert.Nil(t, greeting)
	assert.Equal(t, StateIdle, b.State())
}

func TestUpgradeHappyPath(t *testing.T) {
	image := testImage(200)
	crc := uframe.CRC16(image)

	store := bootcom.NewMemStore()
	rec := bootcom.Record{ChunkSize: 64, CRC: crc}
	require.NoError(t, store.Set(bootcom.KeyUpgrade, rec.Encode()))

	flash := NewMemFlash(1024)
	b := NewBootloader(store, flash)

	greeting, err := b.Start()
	require.NoError(t, err)
	require.NotNil(t, greeting)

	ack := startAck(t, greeting)
	assert.Equal(t, protocol.UpgradeContinue, ack.Status)
	assert.Equal(t, uint16(64), ack.ChunkSize)
	assert.Equal(t, protocol.ReasonBootcom, ack.Reason)
	assert.Equal(t, StateTransferring, b.State())

	// the in-progress flag must be set for the whole transfer
	_, inProgress := store.Get(bootcom.KeyInProgress)
	assert.True(t, inProgress)

	for sent := 0; sent < len(image); sent += 64 {
		end := sent + 64
		if end > len(image) {
			end = len(image)
		}
		resp, err := b.HandleFrame(dataPayload(t, image[sent:end]))
		require.NoError(t, err)

		if end < len(image) {
			assert.Equal(t, protocol.UpgradeContinue, dataStatus(t, resp))
		} else {
			// 200 is not a multiple of 64: the short final chunk ends the image
			assert.Equal(t, protocol.UpgradeSuccess, dataStatus(t, resp))
		}
	}

	assert.Equal(t, StateSuccess, b.State())
	assert.Equal(t, image, flash.Bytes(len(image)))

	_, inProgress = store.Get(bootcom.KeyInProgress)
	assert.False(t, inProgress)
	_, recordPresent := store.Get(bootcom.KeyUpgrade)
	assert.False(t, recordPresent)
}

func TestUpgradeEmptyTerminator(t *testing.T) {
	image := testImage(128)
	crc := uframe.CRC16(image)

	flash := NewMemFlash(1024)
	b := NewBootloader(bootcom.NewMemStore(), flash)

	resp, err := b.HandleFrame(startPayload(t, 64, crc))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, resp).Status)

	for sent := 0; sent < len(image); sent += 64 {
		resp, err := b.HandleFrame(dataPayload(t, image[sent:sent+64]))
		require.NoError(t, err)
		require.Equal(t, protocol.UpgradeContinue, dataStatus(t, resp))
	}

	// image length is a multiple of the chunk size: an empty chunk ends it
	resp, err = b.HandleFrame(dataPayload(t, nil))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeSuccess, dataStatus(t, resp))
	assert.Equal(t, image, flash.Bytes(len(image)))
}

func TestUpgradeCRCMismatch(t *testing.T) {
	image := testImage(100)

	store := bootcom.NewMemStore()
	rec := bootcom.Record{ChunkSize: 64, CRC: 0xDEAD}
	require.NoError(t, store.Set(bootcom.KeyUpgrade, rec.Encode()))

	b := NewBootloader(store, NewMemFlash(1024))

	greeting, err := b.Start()
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, greeting).Status)

	resp, err := b.HandleFrame(dataPayload(t, image[:64]))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, dataStatus(t, resp))

	resp, err = b.HandleFrame(dataPayload(t, image[64:]))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeCRCError, dataStatus(t, resp))
	assert.Equal(t, StateFailed, b.State())

	// the flag survives so the next boot reports the unfinished upgrade
	_, inProgress := store.Get(bootcom.KeyInProgress)
	assert.True(t, inProgress)

	next := NewBootloader(store, NewMemFlash(1024))
	assert.Equal(t, protocol.ReasonUnfinishedUpgrade, next.Reason())
}

func TestUpgradeDataWithoutSession(t *testing.T) {
	flash := NewMemFlash(1024)
	b := NewBootloader(bootcom.NewMemStore(), flash)

	resp, err := b.HandleFrame(dataPayload(t, []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeProtocolError, dataStatus(t, resp))
	assert.Zero(t, flash.Writes)
}

func TestNonUpgradeCommandMidTransfer(t *testing.T) {
	b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(1024))

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, resp).Status)

	ping, err := protocol.CreatePing()
	require.NoError(t, err)

	resp, err = b.HandleFrame(unframe(t, ping))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeProtocolError, dataStatus(t, resp))
	assert.Equal(t, StateFailed, b.State())
}

func TestNonUpgradeCommandWhileIdle(t *testing.T) {
	b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(1024))

	ping, err := protocol.CreatePing()
	require.NoError(t, err)

	resp, err := b.HandleFrame(unframe(t, ping))
	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, StateIdle, b.State())
}

func TestUpgradeStartMidTransfer(t *testing.T) {
	b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(1024))

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, resp).Status)

	resp, err = b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeProtocolError, dataStatus(t, resp))
}

func TestChunkCapping(t *testing.T) {
	tests := []struct {
		name      string
		requested uint16
		opts      []Option
		want      uint16
	}{
		{name: "above protocol maximum", requested: 4096, want: protocol.MaxChunkSize},
		{name: "zero request", requested: 0, want: protocol.MaxChunkSize},
		{name: "within limit", requested: 128, want: 128},
		{
			name:      "device limit below request",
			requested: 512,
			opts:      []Option{WithChunkLimit(64)},
			want:      64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(1024), tt.opts...)

			resp, err := b.HandleFrame(startPayload(t, tt.requested, 0x1234))
			require.NoError(t, err)
			assert.Equal(t, tt.want, startAck(t, resp).ChunkSize)
		})
	}
}

func TestOversizeChunkRejected(t *testing.T) {
	flash := NewMemFlash(1024)
	b := NewBootloader(bootcom.NewMemStore(), flash)

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, resp).Status)

	resp, err = b.HandleFrame(dataPayload(t, make([]byte, 128)))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeProtocolError, dataStatus(t, resp))
	assert.Zero(t, flash.Writes)
}

func TestCorruptRecord(t *testing.T) {
	store := bootcom.NewMemStore()
	require.NoError(t, store.Set(bootcom.KeyUpgrade, []byte{1, 2, 3}))

	b := NewBootloader(store, NewMemFlash(1024))

	greeting, err := b.Start()
	require.NoError(t, err)
	require.NotNil(t, greeting)
	assert.Equal(t, protocol.UpgradeBootcomError, startAck(t, greeting).Status)
	assert.Equal(t, StateFailed, b.State())
}

func TestEraseFailure(t *testing.T) {
	flash := NewMemFlash(1024)
	flash.FailErase = true
	b := NewBootloader(bootcom.NewMemStore(), flash)

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeEraseError, startAck(t, resp).Status)
	assert.Equal(t, StateFailed, b.State())
}

func TestFlashWriteFailure(t *testing.T) {
	flash := NewMemFlash(1024)
	b := NewBootloader(bootcom.NewMemStore(), flash)

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, resp).Status)

	flash.FailWrite = true
	resp, err = b.HandleFrame(dataPayload(t, make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeFlashError, dataStatus(t, resp))
}

func TestFlashOverflow(t *testing.T) {
	flash := NewMemFlash(100)
	b := NewBootloader(bootcom.NewMemStore(), flash)

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, startAck(t, resp).Status)

	resp, err = b.HandleFrame(dataPayload(t, make([]byte, 64)))
	require.NoError(t, err)
	require.Equal(t, protocol.UpgradeContinue, dataStatus(t, resp))

	resp, err = b.HandleFrame(dataPayload(t, make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeOverflowError, dataStatus(t, resp))
}

func TestStoreSetFailure(t *testing.T) {
	store := &failStore{MemStore: bootcom.NewMemStore(), failSet: true}
	b := NewBootloader(store, NewMemFlash(1024))

	resp, err := b.HandleFrame(startPayload(t, 64, 0x1234))
	require.NoError(t, err)
	assert.Equal(t, protocol.UpgradeBootcomError, startAck(t, resp).Status)
	assert.Equal(t, StateFailed, b.State())
}

func TestResponseFrameRejected(t *testing.T) {
	b := NewBootloader(bootcom.NewMemStore(), NewMemFlash(1024))

	ackFrame, err := protocol.CreateUpgradeDataResponse(protocol.UpgradeContinue)
	require.NoError(t, err)

	resp, err := b.HandleFrame(unframe(t, ackFrame))
	assert.Error(t, err)
	assert.Nil(t, resp)
}
