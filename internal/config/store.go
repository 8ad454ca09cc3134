package config

import "github.com/spf13/viper"

// Store reads live preference values from the backing viper instance, so a
// preference flipped mid-session takes effect on the next action rather than
// at the next restart.
type Store struct {
	v *viper.Viper
}

// NewStore wraps v and, when a config file is in use, watches it for edits.
func NewStore(v *viper.Viper) *Store {
	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
	}
	return &Store{v: v}
}

// SoundEnabled reports whether audio cues should play.
func (s *Store) SoundEnabled() bool {
	return s.v.GetBool("sound.enabled")
}

// SoundVolume returns the cue tone volume in [0, 1].
func (s *Store) SoundVolume() float64 {
	return s.v.GetFloat64("sound.volume")
}
