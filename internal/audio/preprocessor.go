// Package audio converts uploaded recordings into the canonical format the
// transcription backend expects: 16 kHz, mono, 16-bit PCM WAV.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrConversionFailed is returned when neither conversion path produced
// a usable file.
var ErrConversionFailed = errors.New("audio conversion failed")

const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetBitDepth   = 16
)

// commandResult captures one external process execution.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Preprocessor normalizes audio files. The in-process decoder handles WAV
// input; everything else goes through the ffmpeg command-line tool.
type Preprocessor struct {
	ffmpegPath string
	runner     commandRunner
	convert    func(src, dst string) error
	stat       func(name string) (os.FileInfo, error)
}

// NewPreprocessor returns a Preprocessor that shells out to ffmpegPath
// when the in-process conversion cannot handle a file.
func NewPreprocessor(ffmpegPath string) *Preprocessor {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Preprocessor{
		ffmpegPath: ffmpegPath,
		runner:     execRunner{},
		convert:    convertWAV,
		stat:       os.Stat,
	}
}

// Normalize writes a canonical copy of inputPath next to it and returns the
// new path, "<stem>_normalized.wav". The input file is left untouched.
func (p *Preprocessor) Normalize(ctx context.Context, inputPath string) (string, error) {
	if _, err := p.stat(inputPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	outPath := NormalizedPath(inputPath)

	libErr := p.convert(inputPath, outPath)
	if libErr == nil {
		return outPath, nil
	}
	slog.Warn("in-process audio conversion failed, falling back to ffmpeg",
		"input", filepath.Base(inputPath),
		"error", libErr,
	)

	ffErr := p.runFFmpeg(ctx, inputPath, outPath)
	if ffErr == nil {
		return outPath, nil
	}

	_ = os.Remove(outPath)
	return "", fmt.Errorf("%w: %w", ErrConversionFailed, errors.Join(libErr, ffErr))
}

func (p *Preprocessor) runFFmpeg(ctx context.Context, inputPath, outPath string) error {
	res, err := p.runner.Run(ctx, p.ffmpegPath, buildFFmpegArgs(inputPath, outPath)...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed (exit %d): %s: %w", res.ExitCode, strings.TrimSpace(res.Stderr), err)
	}
	info, err := p.stat(outPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty file")
	}
	return nil
}

// NormalizedPath derives the output location for inputPath.
func NormalizedPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "audio"
	}
	return filepath.Join(dir, stem+"_normalized.wav")
}

// buildFFmpegArgs builds CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
