// audiosim streams a WAV file through the USB audio class core as if
// a host were sending it over the isochronous endpoint, and records
// what the playback sink consumes to another WAV file. Halfway through
// it toggles the mute control with SET_CUR requests over the simulated
// control endpoint.
package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/emberfold/usbaudio/internal/config"
	"github.com/emberfold/usbaudio/internal/isotransport"
	"github.com/emberfold/usbaudio/pkg/audioclass"
	"github.com/emberfold/usbaudio/pkg/sink"
)

// ep0Port is a loopback control dispatcher: data stages complete
// immediately within the process.
type ep0Port struct {
	armed []byte
}

func (p *ep0Port) SendData(data []byte) {
	slog.Debug("EP0 IN data stage", "len", len(data), "data", data)
}

func (p *ep0Port) PrepareReceive(dst []byte) {
	p.armed = dst
}

// setMute plays the host's part of a SET_CUR mute transfer.
func (p *ep0Port) setMute(control *audioclass.ControlHandler, unit uint8, muted bool) {
	req := audioclass.SetupPacket{
		RequestType: audioclass.RequestTypeClass | 0x01,
		Request:     audioclass.RequestSetCurrent,
		Index:       uint16(unit) << 8,
		Length:      1,
	}
	if err := control.OnSetup(req); err != nil {
		slog.Error("SET_CUR rejected", "err", err)
		return
	}
	p.armed[0] = 0
	if muted {
		p.armed[0] = 1
	}
	control.OnDataStageComplete()
}

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	flag.Parse()

	config.Load(*configFilePath)
	logFilePointer, err := config.ConfigureLogger()
	if err != nil {
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	streamConfig := config.Stream()

	source, err := isotransport.NewWAVSource(viper.GetString("inputwav"), viper.GetBool("loopinput"))
	if err != nil {
		slog.Error("could not open input", "err", err)
		panic(err)
	}
	if source.SampleRate() != streamConfig.SampleRate || source.NumChannels() != streamConfig.NumChannels {
		slog.Error(
			"input file does not match the stream format",
			"fileSampleRate", source.SampleRate(),
			"fileChannels", source.NumChannels(),
			"sampleRate", streamConfig.SampleRate,
			"channels", streamConfig.NumChannels,
		)
		panic("input format mismatch")
	}

	outRate := viper.GetInt("outputsamplerate")
	if outRate == 0 {
		outRate = streamConfig.SampleRate
	}
	wavSink, err := sink.NewWAVSink(
		viper.GetString("outputwav"),
		streamConfig.SampleRate,
		streamConfig.NumChannels,
		outRate,
	)
	if err != nil {
		slog.Error("could not open output", "err", err)
		panic(err)
	}
	defer wavSink.Close()

	// --------------------------------------------------------------------------------

	pipe := isotransport.NewPipe(source, streamConfig.PacketSize())
	port := &ep0Port{}

	session, err := audioclass.NewSession(streamConfig, pipe, wavSink, port, wavSink)
	if err != nil {
		slog.Error("could not open audio session", "err", err)
		panic(err)
	}
	defer session.Close()

	pipe.Bind(session.Engine())

	// The host selects the operational alternate setting before
	// streaming.
	session.Control().OnSetup(audioclass.SetupPacket{
		RequestType: audioclass.RequestTypeStandard | 0x01,
		Request:     audioclass.RequestSetInterface,
		Value:       audioclass.AltSettingOperational,
	})

	// --------------------------------------------------------------------------------

	// Scripted control traffic: mute two seconds in, unmute two
	// seconds later.
	muteAt := time.AfterFunc(2*time.Second, func() {
		port.setMute(session.Control(), streamConfig.MuteUnitID, true)
	})
	defer muteAt.Stop()
	unmuteAt := time.AfterFunc(4*time.Second, func() {
		port.setMute(session.Control(), streamConfig.MuteUnitID, false)
	})
	defer unmuteAt.Stop()

	ctx := context.Background()
	if timeout := viper.GetDuration("duration"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := pipe.Run(ctx); err != nil && err != context.DeadlineExceeded {
		slog.Error("streaming ended with error", "err", err)
	}

	slog.Info(
		"simulation finished",
		"overruns", session.Engine().Overruns(),
		"unsupportedControlRequests", session.Control().UnsupportedRequests(),
	)
}
