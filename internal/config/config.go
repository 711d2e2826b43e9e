// Package config provides configuration management for personaface
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	User      UserConfig      `mapstructure:"user"`
	Audio     AudioConfig     `mapstructure:"audio"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Animation AnimationConfig `mapstructure:"animation"`
	Stream    StreamConfig    `mapstructure:"stream"`
}

// UserConfig identifies the user and active persona
type UserConfig struct {
	ID        string `mapstructure:"id"`
	PersonaID string `mapstructure:"persona_id"`
}

// AudioConfig configures audio output and analysis
type AudioConfig struct {
	OutputDevice string `mapstructure:"output_device"`
	SampleRate   int    `mapstructure:"sample_rate"`
	BufferSize   int    `mapstructure:"buffer_size"`
	OutputVolume int    `mapstructure:"output_volume"` // 0-100
}

// TTSConfig configures speech synthesis
type TTSConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	VoiceID    string        `mapstructure:"voice_id"`
	ModelID    string        `mapstructure:"model_id"`
	Stability  float64       `mapstructure:"stability"`
	Similarity float64       `mapstructure:"similarity"`
	Pacing     string        `mapstructure:"pacing"` // slow, normal, fast
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AnimationConfig configures the animation core
type AnimationConfig struct {
	TickRate           int     `mapstructure:"tick_rate"` // frames per second
	Archetype          string  `mapstructure:"archetype"`
	EyeContactStrength float64 `mapstructure:"eye_contact_strength"`
	IdleAnimation      bool    `mapstructure:"idle_animation"`
}

// StreamConfig configures the renderer-facing frame stream
type StreamConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Persona binds a display identity to a voice and movement archetype
type Persona struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VoiceID   string `json:"voice_id"`
	Archetype string `json:"archetype"`
}

// AvailablePersonas returns the built-in personas
func AvailablePersonas() []Persona {
	return []Persona{
		{
			ID:        "hannah",
			Name:      "Hannah",
			VoiceID:   "nova",
			Archetype: "warm",
		},
		{
			ID:        "henry",
			Name:      "Henry",
			VoiceID:   "onyx",
			Archetype: "professional",
		},
		{
			ID:        "piper",
			Name:      "Piper",
			VoiceID:   "shimmer",
			Archetype: "energetic",
		},
		{
			ID:        "sage",
			Name:      "Sage",
			VoiceID:   "fable",
			Archetype: "calm",
		},
	}
}

// GetPersona returns a persona by ID
func GetPersona(id string) *Persona {
	for _, p := range AvailablePersonas() {
		if p.ID == id {
			return &p
		}
	}
	return nil
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		User: UserConfig{
			ID:        "default-user",
			PersonaID: "hannah",
		},
		Audio: AudioConfig{
			OutputDevice: "",
			SampleRate:   16000,
			BufferSize:   4096,
			OutputVolume: 100,
		},
		TTS: TTSConfig{
			VoiceID:    "nova",
			ModelID:    "eleven_monolingual_v1",
			Stability:  0.5,
			Similarity: 0.75,
			Pacing:     "normal",
			Timeout:    30 * time.Second,
		},
		Animation: AnimationConfig{
			TickRate:           60,
			Archetype:          "warm",
			EyeContactStrength: 0.85,
			IdleAnimation:      true,
		},
		Stream: StreamConfig{
			Enabled:    true,
			ListenAddr: "localhost:8793",
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".personaface")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("PERSONAFACE")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Watch re-reads the config on file change and hands the fresh copy to fn.
// Animation tuning picks up the new values on the next tick.
func Watch(fn func(*Config)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		fn(cfg)
	})
	viper.WatchConfig()
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".personaface")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("user", cfg.User)
	viper.Set("audio", cfg.Audio)
	viper.Set("tts", cfg.TTS)
	viper.Set("animation", cfg.Animation)
	viper.Set("stream", cfg.Stream)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".personaface"), nil
}
