// internal/entity/switch.go
package entity

import (
	"context"

	"github.com/tamzrod/zentec-bridge/internal/status"
)

// PowerSwitch reports the unit power state.
func PowerSwitch(s status.Snapshot, hasData bool) status.Opt[bool] {
	if !hasData {
		return status.Opt[bool]{}
	}
	return s.Power
}

func SetPowerSwitch(ctx context.Context, ctl Controller, on bool) error {
	return ctl.SetPower(ctx, on)
}
