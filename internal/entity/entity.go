// internal/entity/entity.go
//
// Package entity projects the controller state onto the user-facing
// entities (climate, fan, switch, number, sensor) and turns entity
// commands into coordinator writes. Projections are pure; commands go
// through Controller.
package entity

import (
	"context"
	"errors"
	"math"

	"github.com/tamzrod/zentec-bridge/internal/config"
)

var (
	ErrUnknownMode       = errors.New("entity: unknown hvac mode")
	ErrUnsupportedPreset = errors.New("entity: unsupported preset mode")
)

// Controller is the write side of the coordinator.
type Controller interface {
	SetPower(ctx context.Context, on bool) error
	SetFanSpeed(ctx context.Context, speed int) error
	SetModeValue(ctx context.Context, value int) error
	SetTargetTemp(ctx context.Context, v float64) error
	SetMinHeatTemp(ctx context.Context, v float64) error
	SetMaxHeatTemp(ctx context.Context, v float64) error
}

// Policy holds the configured interpretation of mode and fan codes.
type Policy struct {
	HeatValue       int
	VentValue       int
	LegacyModeCodes bool
	MaxFanSpeed     int
	FanOff          string // config.FanOffPower | config.FanOffMinSpeed
	AlarmBanks      int
}

func PolicyFrom(p config.PolicyConfig) Policy {
	return Policy{
		HeatValue:       p.ModeHeatValue,
		VentValue:       p.ModeVentValue,
		LegacyModeCodes: p.LegacyModeCodes,
		MaxFanSpeed:     p.MaxFanSpeed,
		FanOff:          p.FanOff,
		AlarmBanks:      p.AlarmBanks,
	}
}

// Temperature limits shared by the climate and number entities.
const (
	MinTemp  = 10.0
	MaxTemp  = 30.0
	TempStep = 0.5
)

// ClampTemp bounds v to [MinTemp, MaxTemp] on the TempStep grid.
func ClampTemp(v float64) float64 {
	if math.IsNaN(v) {
		return MinTemp
	}
	v = math.Round(v/TempStep) * TempStep
	return math.Min(math.Max(v, MinTemp), MaxTemp)
}

// roundHalfEven matches the rounding used for fan percentages.
func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}
