package serial

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaudRate != 115200 {
		t.Errorf("default baud = %d, want 115200", cfg.BaudRate)
	}
	if cfg.ReadTimeout != time.Second {
		t.Errorf("default read timeout = %v, want 1s", cfg.ReadTimeout)
	}
}

func TestBaudRateToSpeed(t *testing.T) {
	for _, baud := range []int{9600, 57600, 115200, 230400} {
		if _, err := baudRateToSpeed(baud); err != nil {
			t.Errorf("baudRateToSpeed(%d) failed: %v", baud, err)
		}
	}

	if _, err := baudRateToSpeed(12345); err == nil {
		t.Error("expected error for unsupported baud rate")
	}
}

func TestOpenRequiresDevice(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open with empty device must fail")
	}
}

func TestIsDeviceAvailableMissing(t *testing.T) {
	if IsDeviceAvailable("/dev/does-not-exist-ttyUSB99") {
		t.Error("missing device reported available")
	}
}
