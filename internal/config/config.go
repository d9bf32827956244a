package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Dialogue DialogueConfig `mapstructure:"dialogue"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Member   MemberConfig   `mapstructure:"member"`
}

type ServerConfig struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	// RequestRate caps request_next/request_skip per member per RequestWindow; 0 disables it.
	RequestRate   int           `mapstructure:"request_rate"`
	RequestWindow time.Duration `mapstructure:"request_window"`
	ICEServers    []string      `mapstructure:"ice_servers"`
}

type EntryConfig struct {
	Speaker string       `mapstructure:"speaker"`
	Text    string       `mapstructure:"text"`
	Color   domain.Color `mapstructure:"color"`
	// Audio is a WAV file under member.audio_dir; empty means synthesize.
	Audio string `mapstructure:"audio"`
}

type DialogueConfig struct {
	SnapshotInterval  time.Duration `mapstructure:"snapshot_interval"`
	TypewriterSpeed   time.Duration `mapstructure:"typewriter_speed"`
	AutoAdvance       bool          `mapstructure:"auto_advance"`
	AutoAdvanceDelay  time.Duration `mapstructure:"auto_advance_delay"`
	HoldWhileSpeaking bool          `mapstructure:"hold_while_speaking"`
	// MaxLineDuration is the longest line whose audio must fit one relay frame.
	MaxLineDuration time.Duration `mapstructure:"max_line_duration"`
	Script          []EntryConfig `mapstructure:"script"`
}

type TTSConfig struct {
	Provider            string        `mapstructure:"provider"`
	APIURL              string        `mapstructure:"api_url"`
	APIKey              string        `mapstructure:"api_key"`
	VoiceID             string        `mapstructure:"voice_id"`
	ModelID             string        `mapstructure:"model_id"`
	Streaming           bool          `mapstructure:"streaming"`
	LatencyOptimization int           `mapstructure:"latency_optimization"`
	SampleRate          int           `mapstructure:"sample_rate"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Stability           float64       `mapstructure:"stability"`
	SimilarityBoost     float64       `mapstructure:"similarity_boost"`
	Style               float64       `mapstructure:"style"`
	SpeakerBoost        bool          `mapstructure:"speaker_boost"`
}

type MemberConfig struct {
	ServerURL      string `mapstructure:"server_url"`
	Room           string `mapstructure:"room"`
	Name           string `mapstructure:"name"`
	AudioDir       string `mapstructure:"audio_dir"`
	UseDataChannel bool   `mapstructure:"use_datachannel"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_path", "./web")
	v.SetDefault("server.read_limit", 8<<20)
	v.SetDefault("server.ping_period", "54s")
	v.SetDefault("server.secret", "")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.request_rate", 5)
	v.SetDefault("server.request_window", "1s")
	v.SetDefault("server.ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("dialogue.snapshot_interval", "100ms")
	v.SetDefault("dialogue.typewriter_speed", "50ms")
	v.SetDefault("dialogue.auto_advance", false)
	v.SetDefault("dialogue.auto_advance_delay", "1s")
	v.SetDefault("dialogue.hold_while_speaking", false)
	v.SetDefault("dialogue.max_line_duration", "60s")

	v.SetDefault("tts.provider", "elevenlabs")
	v.SetDefault("tts.api_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("tts.model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.streaming", false)
	v.SetDefault("tts.latency_optimization", 0)
	v.SetDefault("tts.sample_rate", 24000)
	v.SetDefault("tts.timeout", "30s")
	v.SetDefault("tts.stability", 0.5)
	v.SetDefault("tts.similarity_boost", 0.75)
	v.SetDefault("tts.style", 0.0)
	v.SetDefault("tts.speaker_boost", true)

	v.SetDefault("member.server_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("member.room", "")
	v.SetDefault("member.name", "member")
	v.SetDefault("member.audio_dir", "./audio")
	v.SetDefault("member.use_datachannel", true)
	v.SetDefault("member.metrics_addr", "")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Every key can
// be overridden from the environment, e.g. SERVER_PORT or TTS_API_KEY.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit file. A missing file leaves the defaults.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Server.Mode).Int("port", cfg.Server.Port).Str("static", cfg.Server.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Dialogue.SnapshotInterval <= 0 {
		return fmt.Errorf("dialogue.snapshot_interval must be positive, got %s", c.Dialogue.SnapshotInterval)
	}
	if c.Dialogue.TypewriterSpeed < 0 || c.Dialogue.AutoAdvanceDelay < 0 {
		return fmt.Errorf("dialogue timings must not be negative")
	}
	if c.Server.RequestRate < 0 {
		return fmt.Errorf("server.request_rate must not be negative")
	}
	if c.Server.ReadLimit > 0 {
		if need := c.AudioFrameLimit(); c.Server.ReadLimit < need {
			return fmt.Errorf("server.read_limit %d is below %d bytes, the audio frame of a %s line at %d Hz",
				c.Server.ReadLimit, need, c.Dialogue.MaxLineDuration, c.TTS.SampleRate)
		}
	}
	return nil
}

// AudioFrameLimit is the wire size of the audio frame for a mono line of
// dialogue.max_line_duration at tts.sample_rate.
func (c *Config) AudioFrameLimit() int64 {
	samples := int(c.Dialogue.MaxLineDuration.Seconds() * float64(c.TTS.SampleRate))
	return dialogue.AudioFrameSize(samples * 4)
}

// Node converts the dialogue and voice sections into the node's settings.
func (c *Config) Node() dialogue.Config {
	return dialogue.Config{
		SnapshotInterval:  c.Dialogue.SnapshotInterval,
		TypewriterSpeed:   c.Dialogue.TypewriterSpeed,
		AutoAdvance:       c.Dialogue.AutoAdvance,
		AutoAdvanceDelay:  c.Dialogue.AutoAdvanceDelay,
		HoldWhileSpeaking: c.Dialogue.HoldWhileSpeaking,
		MaxFrameBytes:     c.Server.ReadLimit,
		Voice: dialogue.VoiceConfig{
			VoiceID:         c.TTS.VoiceID,
			ModelID:         c.TTS.ModelID,
			Stability:       c.TTS.Stability,
			SimilarityBoost: c.TTS.SimilarityBoost,
			Style:           c.TTS.Style,
			SpeakerBoost:    c.TTS.SpeakerBoost,
		},
	}
}
