package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/voxloop/domain"
	"github.com/voxloop/voxloop/metrics"
	"github.com/voxloop/voxloop/utils/log"
)

// State is a pipeline stage. A turn walks the stages strictly in order:
// idle -> recording -> transcribing -> generating -> synthesizing -> playing
// and back to idle.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateGenerating   State = "generating"
	StateSynthesizing State = "synthesizing"
	StatePlaying      State = "playing"
)

// Artifact filenames are fixed: every capture overwrites audio.wav and every
// synthesis overwrites output.mp3. There is deliberately no per-turn
// uniqueness and no concurrent-write protection.
const (
	CaptureFilename = "audio.wav"
	SpeechFilename  = "output.mp3"
)

// PipelineDeps wires the collaborators into a Pipeline. All of them are
// injected; the pipeline owns no clients of its own.
type PipelineDeps struct {
	Recorder    domain.Recorder
	Transcriber domain.Transcriber
	Responder   *Responder
	Synthesizer domain.Synthesizer
	Player      domain.Player

	Conversation *domain.Conversation

	// Voice selects the synthesis voice; empty means provider default.
	Voice string

	// ArtifactDir is where the fixed-name artifacts live. Empty means the
	// working directory.
	ArtifactDir string

	// Metrics is optional; when nil no instrumentation is recorded.
	Metrics *metrics.Metrics
}

// Pipeline sequences one conversation turn across the external collaborators.
// It is single-threaded: the owning session serializes turns.
type Pipeline struct {
	deps  PipelineDeps
	state State
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps, state: StateIdle}
}

// State returns the pipeline's current stage.
func (p *Pipeline) State() State {
	return p.state
}

// RunTurn executes one full turn: capture for exactly the given duration,
// transcribe, generate an assistant reply, synthesize it, and hand it to the
// playback sink. The transcribed user text is the turn's result.
func (p *Pipeline) RunTurn(ctx context.Context, duration time.Duration) (string, error) {
	p.turnStarted()

	clip, err := p.capture(ctx, duration)
	if err != nil {
		return "", p.turnFailed(err)
	}

	transcript, _, err := p.run(ctx, clip)
	if err != nil {
		return "", p.turnFailed(err)
	}

	p.turnCompleted()
	return transcript, nil
}

// TurnFromAudio executes a turn on a clip captured elsewhere (for example an
// HTTP upload): the recording stage is skipped, everything downstream runs as
// in RunTurn. It returns both the transcript and the assistant reply.
func (p *Pipeline) TurnFromAudio(ctx context.Context, clip []byte) (string, string, error) {
	p.turnStarted()

	if err := p.writeArtifact(CaptureFilename, clip); err != nil {
		return "", "", p.turnFailed(err)
	}

	transcript, reply, err := p.run(ctx, clip)
	if err != nil {
		return "", "", p.turnFailed(err)
	}

	p.turnCompleted()
	return transcript, reply, nil
}

// CaptureAndTranscribe is a reduced entry point: it stops after the
// transcribing stage and never touches the conversation.
func (p *Pipeline) CaptureAndTranscribe(ctx context.Context, duration time.Duration) (string, error) {
	defer p.transition(context.Background(), StateIdle)

	clip, err := p.capture(ctx, duration)
	if err != nil {
		return "", err
	}

	return p.transcribe(ctx, clip)
}

// SynthesizeAndPlay is a reduced entry point: it starts at the synthesizing
// stage, never touches the conversation, and returns the path of the speech
// artifact.
func (p *Pipeline) SynthesizeAndPlay(ctx context.Context, text string, autoplay bool) (string, error) {
	defer p.transition(context.Background(), StateIdle)

	audio, err := p.synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	p.play(ctx, audio, autoplay)
	return filepath.Join(p.deps.ArtifactDir, SpeechFilename), nil
}

// run drives transcribing through playing on an already captured clip.
func (p *Pipeline) run(ctx context.Context, clip []byte) (string, string, error) {
	transcript, err := p.transcribe(ctx, clip)
	if err != nil {
		return "", "", err
	}

	p.transition(ctx, StateGenerating)
	start := time.Now()
	reply, err := p.deps.Responder.Generate(ctx, p.deps.Conversation, transcript)
	p.observe(StateGenerating, start)
	if err != nil {
		return "", "", err
	}

	audio, err := p.synthesize(ctx, reply)
	if err != nil {
		// The assistant reply is already appended; the turn is not rolled
		// back. See the non-atomicity note on Responder.Generate.
		return "", "", err
	}

	p.play(ctx, audio, true)
	return transcript, reply, nil
}

func (p *Pipeline) capture(ctx context.Context, duration time.Duration) ([]byte, error) {
	p.transition(ctx, StateRecording)
	start := time.Now()
	clip, err := p.deps.Recorder.Record(ctx, duration)
	p.observe(StateRecording, start)
	if err != nil {
		return nil, err
	}

	if err := p.writeArtifact(CaptureFilename, clip); err != nil {
		return nil, err
	}
	return clip, nil
}

func (p *Pipeline) transcribe(ctx context.Context, clip []byte) (string, error) {
	p.transition(ctx, StateTranscribing)
	start := time.Now()
	text, err := p.deps.Transcriber.Transcribe(ctx, clip)
	p.observe(StateTranscribing, start)
	if err != nil {
		return "", err
	}

	log.WithCtx(ctx).Info("transcription complete", zap.String("text", text))
	return text, nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string) ([]byte, error) {
	p.transition(ctx, StateSynthesizing)
	start := time.Now()
	audio, err := p.deps.Synthesizer.Synthesize(ctx, text, p.deps.Voice)
	p.observe(StateSynthesizing, start)
	if err != nil {
		return nil, err
	}

	if err := p.writeArtifact(SpeechFilename, audio); err != nil {
		return nil, err
	}
	return audio, nil
}

// play hands audio to the playback sink. Playback is fire-and-forget: sink
// failures are logged, never surfaced to the turn.
func (p *Pipeline) play(ctx context.Context, audio []byte, autoplay bool) {
	p.transition(ctx, StatePlaying)
	if err := p.deps.Player.Play(ctx, audio, autoplay); err != nil {
		log.WithCtx(ctx).Warn("playback sink failed", zap.Error(err))
	}
}

// writeArtifact overwrites the fixed-name artifact with the latest bytes.
func (p *Pipeline) writeArtifact(name string, data []byte) error {
	path := filepath.Join(p.deps.ArtifactDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (p *Pipeline) transition(ctx context.Context, to State) {
	log.WithCtx(ctx).Debug("pipeline state change",
		zap.String("from", string(p.state)),
		zap.String("to", string(to)))
	p.state = to
}

func (p *Pipeline) observe(stage State, start time.Time) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) turnStarted() {
	if p.deps.Metrics != nil {
		p.deps.Metrics.TurnsStarted.Inc()
	}
}

func (p *Pipeline) turnCompleted() {
	p.transition(context.Background(), StateIdle)
	if p.deps.Metrics != nil {
		p.deps.Metrics.TurnsCompleted.Inc()
		p.deps.Metrics.HistoryLength.Set(float64(p.deps.Conversation.Len()))
	}
}

func (p *Pipeline) turnFailed(err error) error {
	p.transition(context.Background(), StateIdle)
	if p.deps.Metrics != nil {
		p.deps.Metrics.TurnsFailed.Inc()
	}
	return err
}
