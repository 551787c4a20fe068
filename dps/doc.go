// Package dps provides a high-level host client for an OpenDPS power
// supply over any byte stream.
//
// # Basic usage
//
//	conn, err := transport.Dial("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := dps.New(conn)
//	if err := client.Ping(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err = client.SetVoltage(ctx, 3300) // millivolts
//	st, err := client.Status(ctx)
//
// # Firmware upgrade
//
//	img, err := firmware.Load("opendps.bin")
//	err = client.Upgrade(ctx, img)
//
// The upgrade drives the full hand-off: the application persists the
// session and reboots into its bootloader, which acknowledges from the
// other side of the reset, receives the image in negotiated chunks and
// verifies it before booting the new application. The client always uses
// the chunk size the device echoes back, not the one it requested.
//
// # Configuration
//
//	client := dps.New(conn,
//	    dps.WithLogger(log),
//	    dps.WithChunkSize(512),
//	    dps.WithProgressCallback(func(p dps.Progress) { ... }),
//	    dps.WithOCPCallback(func(iCutMA uint16) { ... }),
//	)
//
// The protocol is strictly request/response with one frame in flight;
// nothing is retried automatically. Retry policy, if any, belongs to the
// caller.
package dps
