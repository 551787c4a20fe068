package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/opendps/godps/dps"
	"github.com/opendps/godps/firmware"
)

var (
	upgradeProgress *mpb.Progress
	upgradeBar      *mpb.Bar
)

func runUpgrade(ctx context.Context, client *dps.Client, path string) error {
	img, err := firmware.Load(path)
	if err != nil {
		return err
	}

	upgradeProgress = mpb.New(
		mpb.WithOutput(color.Output),
		mpb.WithAutoRefresh(),
	)
	upgradeBar = upgradeProgress.AddBar(int64(img.Size()),
		mpb.PrependDecorators(
			decor.Name("upgrade", decor.WCSyncSpaceR),
			decor.CountersKiloByte("%d/%d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)

	if err := client.Upgrade(ctx, img); err != nil {
		upgradeBar.Abort(true)
		return err
	}
	upgradeProgress.Wait()
	return nil
}

// updateUpgradeBar feeds client progress into the bar. Registered as the
// progress callback at client construction, before the bar exists.
func updateUpgradeBar(p dps.Progress) {
	if upgradeBar != nil {
		upgradeBar.SetCurrent(int64(p.BytesWritten))
	}
}
