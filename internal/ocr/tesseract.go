package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner lets tests stub the external tesseract command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// TesseractConfig configures the command-line tesseract adapter.
type TesseractConfig struct {
	Binary      string // default "tesseract"
	Language    string // default "eng"
	TessdataDir string // optional --tessdata-dir
	PSM         int    // page segmentation mode, 0 = tesseract default
}

// Tesseract recognizes text by shelling out to the tesseract binary in TSV
// mode, which carries a per-word confidence we aggregate per line.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, logger *slog.Logger) *Tesseract {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg, runner: execRunner{}, logger: logger}
}

// NewTesseractWithRunner is the test constructor.
func NewTesseractWithRunner(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	t := NewTesseract(cfg, logger)
	t.runner = runner
	return t
}

// Recognize writes the image to a temp file and runs tesseract over it.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return Result{}, ErrInvalidImage
	}

	tmp, err := os.CreateTemp("", "expenselens-*.png")
	if err != nil {
		return Result{}, fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("writing temp image: %w", err)
	}
	tmp.Close()

	args := []string{tmp.Name(), "stdout", "-l", t.cfg.Language}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		if strings.Contains(string(errb), "Cannot open input file") ||
			strings.Contains(string(errb), "Error in pixRead") {
			return Result{}, ErrInvalidImage
		}
		return Result{}, fmt.Errorf("tesseract: %w", err)
	}

	res := parseTSV(string(out))
	if len(res.Lines) == 0 {
		return Result{}, ErrNoText
	}

	t.logger.Debug("ocr.recognize.ok",
		"lines", len(res.Lines),
		"avg_confidence", res.AverageConfidence,
	)
	return res, nil
}

// parseTSV folds tesseract's word-level TSV rows into text lines. TSV rows
// are: level page block par line word left top width height conf text, with
// level 5 for words and conf -1 for structural rows.
func parseTSV(tsv string) Result {
	type lineKey struct{ block, par, line string }

	var (
		keys   []lineKey
		words  = make(map[lineKey][]string)
		confs  = make(map[lineKey][]float64)
		header = true
	)

	for _, row := range strings.Split(tsv, "\n") {
		if header {
			header = false
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		key := lineKey{cols[2], cols[3], cols[4]}
		if _, seen := words[key]; !seen {
			keys = append(keys, key)
		}
		words[key] = append(words[key], text)
		confs[key] = append(confs[key], conf)
	}

	var res Result
	var total float64
	for _, key := range keys {
		var sum float64
		for _, c := range confs[key] {
			sum += c
		}
		avg := sum / float64(len(confs[key])) / 100.0
		res.Lines = append(res.Lines, Line{
			Text:       strings.Join(words[key], " "),
			Confidence: avg,
		})
		total += avg
	}
	if len(res.Lines) > 0 {
		res.AverageConfidence = total / float64(len(res.Lines))
	}
	return res
}
