// Package device implements the device side of the firmware upgrade
// handshake: the application's hand-off into the bootloader and the
// bootloader's transfer session.
//
// An upgrade necessarily spans a device reboot and a context switch from
// application code to bootloader code. The application never performs the
// transfer itself: on upgrade_start it persists the negotiated parameters
// into the boot-reason store and restarts. The bootloader re-derives the
// session from that store after reboot; no session state lives in volatile
// memory across the boundary.
//
//	Idle -> Transferring -> Verifying -> Success | Failed
//
// Flash writes are irreversible and slow, so fast rejections (chunk
// overflow, store failures) happen before any byte is committed, and
// integrity is judged once, by a single full-image CRC after the final
// chunk.
//
// Hardware is injected: a bootcom.Store for the persisted hand-off, a
// Flash for the application region, and a restart function. In-memory
// fakes of all three make the whole handshake testable in-process.
package device
