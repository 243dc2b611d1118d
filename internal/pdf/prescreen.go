package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ilucas1a/DocAnalyser-beta-sub001/internal/logger"
)

// DefaultPrescreenTimeout bounds the corruption probe. A healthy document
// validates and trial-renders its first page well within this; a document
// that can hang the converter never comes back at all.
const DefaultPrescreenTimeout = 5 * time.Second

// CommandFunc builds the probe command for a document. The context carries
// the wall-clock deadline; the command must be killed when it expires,
// which exec.CommandContext does.
type CommandFunc func(ctx context.Context, path string) *exec.Cmd

// SubprocessScreener runs the corruption probe in a separate process so a
// malformed document that sends the PDF parser into an infinite loop kills
// the probe child, never the application. It implements
// extract.PreScreener.
type SubprocessScreener struct {
	// Timeout is the wall-clock budget for the probe.
	Timeout time.Duration

	// Command overrides the probe command, used in tests. When nil the
	// screener re-executes the current binary with the probe subcommand.
	Command CommandFunc

	log zerolog.Logger
}

// NewSubprocessScreener returns a screener with the given timeout, or the
// default when zero.
func NewSubprocessScreener(timeout time.Duration) *SubprocessScreener {
	if timeout <= 0 {
		timeout = DefaultPrescreenTimeout
	}
	return &SubprocessScreener{
		Timeout: timeout,
		log:     logger.WithComponent("prescreen"),
	}
}

// Screen reports whether the document is safe to hand to the local
// conversion pipeline. Only a probe that exceeds its deadline marks the
// document unsafe: a probe that fails fast proves the converter also fails
// fast, which the main pipeline handles on its own with a better error.
func (s *SubprocessScreener) Screen(ctx context.Context, path string) (bool, string) {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd, err := s.buildCommand(cctx, path)
	if err != nil {
		s.log.Warn().Err(err).Msg("Pre-screen unavailable, proceeding without it")
		return true, "pre-screen skipped: " + err.Error()
	}

	start := time.Now()
	out, runErr := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		s.log.Error().
			Dur("elapsed", elapsed).
			Str("path", path).
			Msg("Probe exceeded deadline, document unsafe")
		return false, fmt.Sprintf("infinite loop detected: probe did not finish within %s", s.Timeout)
	}

	if runErr != nil {
		diag := strings.TrimSpace(string(out))
		s.log.Warn().Err(runErr).Str("output", diag).Msg("Probe failed fast, treating as safe")
		return true, "pre-screen inconclusive: " + firstLine(diag, runErr.Error())
	}

	s.log.Debug().Dur("elapsed", elapsed).Msg("Pre-screen passed")
	return true, ""
}

func (s *SubprocessScreener) buildCommand(ctx context.Context, path string) (*exec.Cmd, error) {
	if s.Command != nil {
		return s.Command(ctx, path), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot locate own executable: %w", err)
	}
	return exec.CommandContext(ctx, exe, "probe", path), nil
}

func firstLine(s, fallback string) string {
	if s == "" {
		return fallback
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
