// Package kernel implements the stateful DSP effect kernels executed per
// graph node, plus the registry that maps effect types to factories.
package kernel

import (
	"errors"
	"fmt"
)

// Effect type identifiers. These are the values stored in graph nodes and
// persisted presets.
const (
	TypeBassBoost   = "bassboost"
	TypeClarity     = "clarity"
	TypeDeMud       = "demud"
	TypeCompressor  = "compressor"
	TypeEQ10        = "eq10"
	TypeReverb      = "reverb"
	TypeDelay       = "delay"
	TypeChorus      = "chorus"
	TypeFlanger     = "flanger"
	TypePhaser      = "phaser"
	TypeTremolo     = "tremolo"
	TypeBitCrusher  = "bitcrusher"
	TypeSaturation  = "saturation"
	TypeDistortion  = "distortion"
	TypeStereoWidth = "stereowidth"
	TypeResampler   = "resampler"
	TypePitchShift  = "pitchshift"
)

// ErrUnknownEffect is returned when a node references an unregistered effect type.
var ErrUnknownEffect = errors.New("kernel: unknown effect type")

// Context provides the environment a kernel processes in. Kernels compare it
// against their cached dimensions on Configure and resize state lazily,
// outside the per-sample loop.
type Context struct {
	SampleRate float64
	Channels   int
}

func (c Context) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("kernel: sample rate must be > 0: %f", c.SampleRate)
	}

	if c.Channels < 1 {
		return fmt.Errorf("kernel: channel count must be >= 1: %d", c.Channels)
	}

	return nil
}

// Processor is the per-node processing contract. Process mutates the
// deinterleaved block in place and returns the post-effect RMS level.
// A kernel whose primary intensity parameter is <= 0 must leave the block
// untouched and report level 0.
type Processor interface {
	Configure(ctx Context, p Params) error
	Process(block [][]float64) float64
	Reset()
}

// Factory builds one Processor instance for a node.
type Factory func(ctx Context) (Processor, error)

// Registry maps effect type names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given effect type.
func (r *Registry) Register(effectType string, factory Factory) error {
	if effectType == "" {
		return errors.New("kernel: empty effect type")
	}

	if factory == nil {
		return errors.New("kernel: nil factory")
	}

	if _, exists := r.factories[effectType]; exists {
		return fmt.Errorf("kernel: duplicate effect type: %s", effectType)
	}

	r.factories[effectType] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(effectType string, factory Factory) {
	err := r.Register(effectType, factory)
	if err != nil {
		panic("kernel registry: " + err.Error())
	}
}

// Lookup returns the factory for the given effect type, or nil.
func (r *Registry) Lookup(effectType string) Factory {
	return r.factories[effectType]
}

// New builds a configured processor for the given effect type.
func (r *Registry) New(effectType string, ctx Context) (Processor, error) {
	factory := r.Lookup(effectType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, effectType)
	}

	return factory(ctx)
}

// RegistryOption configures DefaultRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	newPitch func() PitchProcessor
}

// WithPitchProcessor supplies the external pitch-shift implementation used by
// the pitchshift kernel. Without it the kernel degrades to silence.
func WithPitchProcessor(newPitch func() PitchProcessor) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.newPitch = newPitch
	}
}

// DefaultRegistry returns a registry with every built-in kernel registered.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	var cfg registryConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r := NewRegistry()

	r.MustRegister(TypeBassBoost, func(ctx Context) (Processor, error) { return newShelfKernel(ctx, shelfBassBoost) })
	r.MustRegister(TypeClarity, func(ctx Context) (Processor, error) { return newShelfKernel(ctx, shelfClarity) })
	r.MustRegister(TypeDeMud, func(ctx Context) (Processor, error) { return newShelfKernel(ctx, shelfDeMud) })
	r.MustRegister(TypeCompressor, func(ctx Context) (Processor, error) { return newCompressor(ctx) })
	r.MustRegister(TypeEQ10, func(ctx Context) (Processor, error) { return newEQ10(ctx) })
	r.MustRegister(TypeReverb, func(ctx Context) (Processor, error) { return newReverb(ctx) })
	r.MustRegister(TypeDelay, func(ctx Context) (Processor, error) { return newDelay(ctx) })
	r.MustRegister(TypeChorus, func(ctx Context) (Processor, error) { return newModDelay(ctx, modChorus) })
	r.MustRegister(TypeFlanger, func(ctx Context) (Processor, error) { return newModDelay(ctx, modFlanger) })
	r.MustRegister(TypePhaser, func(ctx Context) (Processor, error) { return newPhaser(ctx) })
	r.MustRegister(TypeTremolo, func(ctx Context) (Processor, error) { return newTremolo(ctx) })
	r.MustRegister(TypeBitCrusher, func(ctx Context) (Processor, error) { return newBitCrusher(ctx) })
	r.MustRegister(TypeSaturation, func(ctx Context) (Processor, error) { return newWaveshaper(ctx, shaperTape) })
	r.MustRegister(TypeDistortion, func(ctx Context) (Processor, error) { return newWaveshaper(ctx, shaperHard) })
	r.MustRegister(TypeStereoWidth, func(ctx Context) (Processor, error) { return newStereoWidth(ctx) })
	r.MustRegister(TypeResampler, func(ctx Context) (Processor, error) { return newResampler(ctx) })
	r.MustRegister(TypePitchShift, func(ctx Context) (Processor, error) { return newPitchShift(ctx, cfg.newPitch) })

	return r
}
