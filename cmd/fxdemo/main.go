// Command fxdemo plays a sine tone through the signal graph engine.
//
// Usage:
//
//	fxdemo [flags]
//
// Examples:
//
//	fxdemo -duration 5s
//	fxdemo -freq 220 -preset mychain.json
//	fxdemo -config engine.yaml -duration 10s
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
	"github.com/cwbudde/algo-fxgraph/engine"
	"github.com/cwbudde/algo-fxgraph/graph"
	"github.com/cwbudde/algo-fxgraph/internal/metrics"
	"github.com/cwbudde/algo-fxgraph/kernel"
	"github.com/cwbudde/algo-fxgraph/ring"
)

func main() {
	configPath := flag.String("config", "", "engine YAML config file")
	presetPath := flag.String("preset", "", "graph preset JSON file")
	duration := flag.Duration("duration", 5*time.Second, "playback duration")
	freq := flag.Float64("freq", 440, "test tone frequency in Hz")
	flag.Parse()

	if err := run(*configPath, *presetPath, *duration, *freq); err != nil {
		fmt.Fprintln(os.Stderr, "fxdemo:", err)
		os.Exit(1)
	}
}

func run(configPath, presetPath string, duration time.Duration, freq float64) error {
	log := logrus.New()

	cfg := engine.DefaultConfig()

	if configPath != "" {
		loaded, err := engine.LoadConfig(configPath)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	eng, err := engine.New(cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer eng.Close()

	if presetPath != "" {
		data, err := os.ReadFile(presetPath)
		if err != nil {
			return err
		}

		if err := eng.LoadPreset(data); err != nil {
			return err
		}
	} else {
		// A small default chain so the tone is audibly processed.
		id := eng.AddNode(kernel.TypeTremolo, graph.LaneLeft, map[string]float64{
			"depth": 0.6,
			"rate":  4,
		})
		eng.SetLinearChain([]string{id})
	}

	eng.Commit()

	bridge, err := ring.New(cfg.RingCapacityFrames, cfg.Channels, cfg.RingPrimingFrames)
	if err != nil {
		return err
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(cfg.SampleRate),
		ChannelCount: cfg.Channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(&ringReader{bridge: bridge})
	player.Play()
	defer player.Close()

	log.WithFields(logrus.Fields{
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
		"freq":        freq,
		"duration":    duration,
	}).Info("playing")

	produce(eng, bridge, cfg, duration, freq)

	log.WithFields(logrus.Fields{
		"dropped":   bridge.DroppedFrames(),
		"underruns": bridge.Underruns(),
		"levels":    eng.Levels(),
	}).Info("done")

	return nil
}

// produce drives blocks through the engine into the bridge at real-time
// pace, staying one block ahead of the player.
func produce(eng *engine.Engine, bridge *ring.Buffer, cfg engine.Config, duration time.Duration, freq float64) {
	block := make([][]float64, cfg.Channels)
	for ch := range block {
		block[ch] = make([]float64, cfg.BlockFrames)
	}

	interleaved := make([]float32, cfg.BlockFrames*cfg.Channels)
	blockDur := time.Duration(float64(cfg.BlockFrames) / cfg.SampleRate * float64(time.Second))
	totalBlocks := int(duration / blockDur)
	phaseStep := 2 * math.Pi * freq / cfg.SampleRate

	var (
		phase        float64
		lastDropped  uint64
		lastUnderrun uint64
	)

	ticker := time.NewTicker(blockDur)
	defer ticker.Stop()

	for b := 0; b < totalBlocks; b++ {
		for i := 0; i < cfg.BlockFrames; i++ {
			sample := 0.25 * math.Sin(phase)
			phase += phaseStep

			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}

			for ch := range block {
				block[ch][i] = sample
			}
		}

		eng.Process(block)

		core.Interleave(interleaved, block, cfg.BlockFrames)
		bridge.WriteFrames(interleaved)

		if d := bridge.DroppedFrames(); d > lastDropped {
			metrics.RingDroppedFrames.Add(float64(d - lastDropped))
			lastDropped = d
		}

		if u := bridge.Underruns(); u > lastUnderrun {
			metrics.RingUnderruns.Add(float64(u - lastUnderrun))
			lastUnderrun = u
		}

		<-ticker.C
	}
}

// ringReader adapts the bridge to the io.Reader the player pulls from.
// Frames the bridge cannot deliver are padded with silence.
type ringReader struct {
	bridge  *ring.Buffer
	samples []float32
}

func (r *ringReader) Read(p []byte) (int, error) {
	count := len(p) / 4

	if len(r.samples) < count {
		r.samples = make([]float32, count)
	}

	samples := r.samples[:count]

	channels := r.bridge.Channels()
	got := r.bridge.ReadFrames(samples) * channels

	for i := got; i < count; i++ {
		samples[i] = 0
	}

	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}

	return count * 4, nil
}
