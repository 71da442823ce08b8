/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kamikaze

type Sound string

const (
	SoundWhoosh Sound = "whoosh"
	SoundClick  Sound = "click"
)

// HapticTick is a short, subtle vibration.
const HapticTick = 10

// Effects triggers sounds and vibration on the device. Calls must not block
// and failures stay inside the implementation.
type Effects interface {
	PlaySound(kind Sound)
	TriggerHaptic(pattern ...int)
}

type NopEffects struct{}

func (NopEffects) PlaySound(Sound)      {}
func (NopEffects) TriggerHaptic(...int) {}

// SettingsEffects drops effects the player has switched off.
type SettingsEffects struct {
	Inner    Effects
	Settings Settings
}

func (e SettingsEffects) PlaySound(kind Sound) {
	if e.Inner == nil || !e.Settings.EnableSounds {
		return
	}
	e.Inner.PlaySound(kind)
}

func (e SettingsEffects) TriggerHaptic(pattern ...int) {
	if e.Inner == nil || !e.Settings.EnableVibration {
		return
	}
	if len(pattern) == 0 {
		pattern = []int{HapticTick}
	}
	e.Inner.TriggerHaptic(pattern...)
}
