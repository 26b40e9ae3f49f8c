// Package media drives ffmpeg to assemble narration audio and generated
// title cards into the final episode video.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tubecraft/internal/config"
	"tubecraft/internal/services"
)

const audioCodec = "aac"

// Assembler renders episode videos from narration audio.
type Assembler struct {
	ffmpegPath  string
	ffprobePath string
	width       int
	height      int
	fps         int
	videoCodec  string
	sampleRate  int
	bitrate     string
}

// AssembleRequest describes one video render. ThumbnailPath is optional; when
// set a still frame is extracted from the finished video.
type AssembleRequest struct {
	AudioPath     string
	Title         string
	OutputPath    string
	ThumbnailPath string
}

// AssembleResult describes a finished render.
type AssembleResult struct {
	OutputPath      string
	ThumbnailPath   string
	DurationSeconds float64
	FileSizeMB      float64
}

// NewAssembler constructs an assembler from configuration.
func NewAssembler(cfg *config.Config) *Assembler {
	width, height := parseResolution(cfg.Video.Resolution)
	fps := cfg.Video.FPS
	if fps <= 0 {
		fps = 30
	}
	codec := strings.TrimSpace(cfg.Video.Codec)
	if codec == "" {
		codec = "libx264"
	}
	sampleRate := cfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	bitrate := strings.TrimSpace(cfg.Audio.Bitrate)
	if bitrate == "" {
		bitrate = "192k"
	}
	return &Assembler{
		ffmpegPath:  cfg.FFmpegBinary(),
		ffprobePath: cfg.FFprobeBinary(),
		width:       width,
		height:      height,
		fps:         fps,
		videoCodec:  codec,
		sampleRate:  sampleRate,
		bitrate:     bitrate,
	}
}

func parseResolution(res string) (int, int) {
	parts := strings.Split(res, "x")
	if len(parts) != 2 {
		return 1920, 1080
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 1920, 1080
	}
	return w, h
}

// Assemble renders a solid-background video carrying the narration track and
// a drawtext title, sized to the audio duration.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) (*AssembleResult, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "", "media assemble", "audio path required", nil)
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "", "media assemble", "audio file missing", err)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "", "media assemble", "output path required", nil)
	}

	duration, err := a.AudioDuration(ctx, req.AudioPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("media assemble: ensure output dir: %w", err)
	}

	args := a.buildFFmpegArgs(req, duration)
	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, classifyToolError("media assemble", err, string(output))
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil || info.Size() == 0 {
		return nil, services.Wrap(services.ErrTransient, "", "media assemble", "ffmpeg produced no output", err)
	}

	result := &AssembleResult{
		OutputPath:      req.OutputPath,
		DurationSeconds: duration,
		FileSizeMB:      float64(info.Size()) / (1024 * 1024),
	}
	if strings.TrimSpace(req.ThumbnailPath) != "" {
		if err := a.extractThumbnail(ctx, req.OutputPath, req.ThumbnailPath); err != nil {
			return nil, err
		}
		result.ThumbnailPath = req.ThumbnailPath
	}
	return result, nil
}

func (a *Assembler) extractThumbnail(ctx context.Context, videoPath, thumbnailPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-ss", "1",
		"-vframes", "1",
		thumbnailPath,
	}
	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return classifyToolError("media thumbnail", err, string(output))
	}
	return nil
}

func (a *Assembler) buildFFmpegArgs(req AssembleRequest, duration float64) []string {
	background := fmt.Sprintf("color=c=0x1a1a2e:s=%dx%d:r=%d:d=%.2f", a.width, a.height, a.fps, duration)

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", background,
		"-i", req.AudioPath,
	}

	if title := sanitizeDrawtext(req.Title); title != "" {
		fontSize := a.height / 12
		drawtext := fmt.Sprintf(
			"drawtext=text='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2",
			title, fontSize,
		)
		args = append(args, "-vf", drawtext)
	}

	args = append(args,
		"-c:v", a.videoCodec,
		"-c:a", audioCodec,
		"-b:a", a.bitrate,
		"-ar", strconv.Itoa(a.sampleRate),
		"-pix_fmt", "yuv420p",
		"-shortest",
		req.OutputPath,
	)
	return args
}

// AudioDuration probes the duration of an audio file in seconds.
func (a *Assembler) AudioDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := exec.CommandContext(ctx, a.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, classifyToolError("media probe", err, string(output))
	}

	var dur float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &dur); err != nil {
		return 0, services.Wrap(services.ErrTransient, "", "media probe", "parse duration", err)
	}
	if dur <= 0 {
		return 0, services.Wrap(services.ErrInvalidInput, "", "media probe", "audio has no duration", nil)
	}
	return dur, nil
}

// HealthCheck verifies the ffmpeg and ffprobe binaries resolve on PATH.
func (a *Assembler) HealthCheck(ctx context.Context) error {
	for _, binary := range []string{a.ffmpegPath, a.ffprobePath} {
		if _, err := exec.LookPath(binary); err != nil {
			return services.Wrap(services.ErrConfiguration, "", "media health",
				fmt.Sprintf("%s not found on PATH", binary), err)
		}
	}
	return ctx.Err()
}

func sanitizeDrawtext(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		`\`, `\\`,
		"'", `\'`,
		":", `\:`,
		"%", `\%`,
	)
	return replacer.Replace(text)
}

func classifyToolError(op string, err error, output string) error {
	detail := strings.TrimSpace(output)
	if len(detail) > 400 {
		detail = detail[len(detail)-400:]
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "", op, "tool timed out", err)
	case errors.Is(err, context.Canceled):
		return services.Wrap(services.ErrCancelled, "", op, "tool cancelled", err)
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(services.ErrConfiguration, "", op, "tool not installed", err)
	}
	lowered := strings.ToLower(detail)
	switch {
	case strings.Contains(lowered, "no space left"), strings.Contains(lowered, "cannot allocate memory"):
		return services.Wrap(services.ErrResourceExhausted, "", op, detail, err)
	case strings.Contains(lowered, "invalid argument"), strings.Contains(lowered, "invalid data"):
		return services.Wrap(services.ErrInvalidInput, "", op, detail, err)
	default:
		return services.Wrap(services.ErrTransient, "", op, detail, err)
	}
}
