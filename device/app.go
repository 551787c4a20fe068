package device

import (
	"fmt"

	"github.com/opendps/godps/bootcom"
	"github.com/opendps/godps/protocol"
)

// App is the application-side half of the upgrade hand-off. It does not
// transfer anything: on upgrade_start it parks the session parameters in
// the boot-reason store and restarts the device. The bootloader picks the
// session up on the other side of the reboot and sends the upgrade_start
// response from there, so the application itself never acknowledges.
type App struct {
	store   bootcom.Store
	restart func()
}

// NewApp creates the application-side handler. restart must reset the
// device and never return; tests inject a function that does return.
func NewApp(store bootcom.Store, restart func()) *App {
	if store == nil {
		panic("store cannot be nil")
	}
	if restart == nil {
		panic("restart cannot be nil")
	}
	return &App{store: store, restart: restart}
}

// HandleUpgradeStart processes an upgrade_start payload received while
// running as the application: it persists the record and triggers the
// restart. On a healthy device this function does not return.
func (a *App) HandleUpgradeStart(payload []byte) error {
	chunkSize, crc, err := protocol.UnpackUpgradeStart(payload)
	if err != nil {
		return err
	}

	rec := bootcom.Record{ChunkSize: chunkSize, CRC: crc}
	if err := a.store.Set(bootcom.KeyUpgrade, rec.Encode()); err != nil {
		return fmt.Errorf("persist upgrade record: %w", err)
	}

	a.restart()
	return nil
}
