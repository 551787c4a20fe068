package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/opendps/godps/uframe"
)

// deframe unwraps a wire frame back to the raw payload for inspection.
func deframe(t *testing.T, frame []byte) []byte {
	t.Helper()
	payload, err := uframe.Unframe(frame)
	if err != nil {
		t.Fatalf("Unframe: %v", err)
	}
	return payload
}

func TestCreateCommands(t *testing.T) {
	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  []byte
	}{
		{
			name:  "ping",
			build: CreatePing,
			want:  []byte{0x01},
		},
		{
			name:  "set vout 3300mV",
			build: func() ([]byte, error) { return CreateVOut(3300) },
			want:  []byte{0x02, 0x0C, 0xE4},
		},
		{
			name:  "set ilimit 500mA",
			build: func() ([]byte, error) { return CreateILimit(500) },
			want:  []byte{0x03, 0x01, 0xF4},
		},
		{
			name:  "status",
			build: CreateStatus,
			want:  []byte{0x04},
		},
		{
			name:  "power enable on",
			build: func() ([]byte, error) { return CreatePowerEnable(true) },
			want:  []byte{0x05, 0x01},
		},
		{
			name:  "power enable off",
			build: func() ([]byte, error) { return CreatePowerEnable(false) },
			want:  []byte{0x05, 0x00},
		},
		{
			name:  "wifi status connected",
			build: func() ([]byte, error) { return CreateWifiStatus(WifiConnected) },
			want:  []byte{0x06, 0x02},
		},
		{
			name:  "lock",
			build: func() ([]byte, error) { return CreateLock(true) },
			want:  []byte{0x07, 0x01},
		},
		{
			name:  "ocp event 1500mA",
			build: func() ([]byte, error) { return CreateOCP(1500) },
			want:  []byte{0x08, 0x05, 0xDC},
		},
		{
			name:  "upgrade start",
			build: func() ([]byte, error) { return CreateUpgradeStart(1024, 0xBEEF) },
			want:  []byte{0x09, 0x04, 0x00, 0xBE, 0xEF},
		},
		{
			name:  "upgrade data",
			build: func() ([]byte, error) { return CreateUpgradeData([]byte{0x11, 0x22, 0x33}) },
			want:  []byte{0x0A, 0x11, 0x22, 0x33},
		},
		{
			name:  "upgrade data terminator",
			build: func() ([]byte, error) { return CreateUpgradeData(nil) },
			want:  []byte{0x0A},
		},
		{
			name:  "generic response",
			build: func() ([]byte, error) { return CreateResponse(CmdPing, true) },
			want:  []byte{0x81, 0x01},
		},
		{
			name:  "upgrade start response",
			build: func() ([]byte, error) { return CreateUpgradeStartResponse(UpgradeContinue, 256, ReasonBootcom) },
			want:  []byte{0x89, 0x00, 0x01, 0x00, 0x03},
		},
		{
			name:  "upgrade data response",
			build: func() ([]byte, error) { return CreateUpgradeDataResponse(UpgradeCRCError) },
			want:  []byte{0x8A, 0x02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := tt.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(frame) > MaxUpgradeFrameLength {
				t.Errorf("frame length %d exceeds %d", len(frame), MaxUpgradeFrameLength)
			}
			got := deframe(t, frame)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("payload = % 02X, want % 02X", got, tt.want)
			}
		})
	}
}

func TestCreateStatusResponse(t *testing.T) {
	st := Status{
		VIn:          12500,
		VOutSetting:  3300,
		VOut:         3297,
		IOut:         512,
		ILimit:       1000,
		PowerEnabled: true,
	}

	frame, err := CreateStatusResponse(st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame) > MaxFrameLength {
		t.Errorf("frame length %d exceeds %d", len(frame), MaxFrameLength)
	}

	got, err := UnpackStatusResponse(deframe(t, frame))
	if err != nil {
		t.Fatalf("UnpackStatusResponse: %v", err)
	}
	if *got != st {
		t.Errorf("status = %+v, want %+v", *got, st)
	}
}

// Every 16-bit field set to an escape-heavy value must still fit the frame
// budget; MaxFrameLength is derived from exactly this case.
func TestCreateStatusResponseWorstCase(t *testing.T) {
	st := Status{
		VIn:          0x7E7E,
		VOutSetting:  0x7E7E,
		VOut:         0x7D7D,
		IOut:         0x7F7F,
		ILimit:       0x7E7D,
		PowerEnabled: true,
	}

	frame, err := CreateStatusResponse(st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame) > MaxFrameLength {
		t.Errorf("frame length %d exceeds %d", len(frame), MaxFrameLength)
	}
}

func TestCreateWifiStatusInvalid(t *testing.T) {
	frame, err := CreateWifiStatus(WifiStatus(9))
	if err == nil {
		t.Fatal("expected error for out-of-range wifi status, got nil")
	}
	if frame != nil {
		t.Errorf("frame = % 02X, want nil", frame)
	}
}

func TestCreateUpgradeDataOversize(t *testing.T) {
	frame, err := CreateUpgradeData(make([]byte, MaxChunkSize+1))
	if err == nil {
		t.Fatal("expected error for oversize chunk, got nil")
	}
	if frame != nil {
		t.Errorf("frame = % 02X, want nil", frame)
	}
}

func TestCreateUpgradeDataMaxChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x7E}, MaxChunkSize)
	frame, err := CreateUpgradeData(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame) > MaxUpgradeFrameLength {
		t.Errorf("frame length %d exceeds %d", len(frame), MaxUpgradeFrameLength)
	}
	got := deframe(t, frame)
	if got[0] != byte(CmdUpgradeData) {
		t.Errorf("command = 0x%02X, want 0x%02X", got[0], byte(CmdUpgradeData))
	}
	if !bytes.Equal(got[1:], data) {
		t.Error("chunk bytes do not round trip")
	}
}

func TestCreateResponseUnknownCommand(t *testing.T) {
	_, err := CreateResponse(Command(0x55), true)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var unknownErr *UnknownCommandError
	if !errors.As(err, &unknownErr) {
		t.Errorf("error = %T, want *UnknownCommandError", err)
	}
}

func TestCommandValid(t *testing.T) {
	for c := CmdPing; c <= CmdUpgradeData; c++ {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	for _, c := range []Command{0, 11, 0x55, 0x7F} {
		if c.Valid() {
			t.Errorf("command 0x%02X should be invalid", byte(c))
		}
	}
}
