// Package config loads the simulator configuration through viper and
// configures the default slog logger.
package config

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/emberfold/usbaudio/pkg/audioclass"
)

func setViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	// 48 kHz / 16-bit / stereo, 192 byte packets, 16 packets of buffer.
	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("bitdepth", 16)
	viper.SetDefault("buffersize", 3072)
	viper.SetDefault("controlpacketsize", 64)
	viper.SetDefault("outendpoint", 0x01)
	viper.SetDefault("muteunit", 0x02)

	viper.SetDefault("inputwav", "input.wav")
	viper.SetDefault("outputwav", "playback.wav")
	viper.SetDefault("outputsamplerate", 0) // 0: same as samplerate
	viper.SetDefault("loopinput", false)
}

// Load reads the config file into viper, falling back to defaults if
// the file does not exist.
func Load(configFilePath string) {
	setViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			slog.Info("no config file found, using defaults", "configFilePath", configFilePath)
		} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("no config file found, using defaults", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}

// Stream builds the streaming session configuration from the loaded
// values.
func Stream() audioclass.StreamConfig {
	return audioclass.StreamConfig{
		SampleRate:        viper.GetInt("samplerate"),
		NumChannels:       viper.GetInt("channels"),
		BitDepth:          viper.GetInt("bitdepth"),
		BufferSize:        viper.GetInt("buffersize"),
		ControlPacketSize: viper.GetInt("controlpacketsize"),
		OutEndpoint:       uint8(viper.GetInt("outendpoint")),
		MuteUnitID:        uint8(viper.GetInt("muteunit")),
	}
}

// ConfigureLogger points the default slog logger at stdout (text) or
// the configured log file (JSON) at the configured level.
//
// Returns the os.File slog writes to, so it may be gracefully closed
// by the caller, or nil when logging to stdout.
func ConfigureLogger() (*os.File, error) {
	var options slog.HandlerOptions

	switch level := viper.GetString("loglevel"); level {
	case "none":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	case "error":
		options.Level = slog.LevelError
	case "warn":
		options.Level = slog.LevelWarn
	case "info":
		options.Level = slog.LevelInfo
	case "debug":
		options.Level = slog.LevelDebug
	default:
		return nil, errors.New("unexpected log level " + level)
	}

	logFile := viper.GetString("logfile")
	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &options)))
		return nil, nil
	}

	logFilePointer, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logFilePointer, &options)))
	return logFilePointer, nil
}
