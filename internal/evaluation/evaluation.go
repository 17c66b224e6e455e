package evaluation

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"argmatch/internal/domain"
	"argmatch/internal/logging"
	"argmatch/internal/similarity"
)

// ReportFile is the name of the per-pair predictions file.
const ReportFile = "predictions.csv"

// Prediction is the scored outcome of one labeled pair.
type Prediction struct {
	Example   domain.InputExample
	Score     float64
	Predicted int
	// Degenerate is set when one side embedded to a zero vector and the score
	// was set to 0.
	Degenerate bool
}

// Metrics summarizes predictions against their labels.
type Metrics struct {
	Total          int
	Degenerate     int
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
}

// Evaluator scores labeled pairs with an embedder and a match threshold.
type Evaluator struct {
	embedder  domain.Embedder
	threshold float64
	logger    *zap.Logger
}

// NewEvaluator creates an evaluator predicting a match when the cosine
// similarity reaches threshold.
func NewEvaluator(embedder domain.Embedder, threshold float64, logger *zap.Logger) *Evaluator {
	return &Evaluator{embedder: embedder, threshold: threshold, logger: logging.OrNop(logger)}
}

// Score embeds both texts of every example and scores them.
func (e *Evaluator) Score(ctx context.Context, examples []domain.InputExample) ([]Prediction, error) {
	out := make([]Prediction, len(examples))
	for i, ex := range examples {
		a, err := e.embedder.Embed(ctx, ex.Texts[0])
		if err != nil {
			return nil, fmt.Errorf("embed key point of example %d: %w", i, err)
		}
		b, err := e.embedder.Embed(ctx, ex.Texts[1])
		if err != nil {
			return nil, fmt.Errorf("embed argument of example %d: %w", i, err)
		}
		p := Prediction{Example: ex}
		p.Score, err = similarity.Cosine(a, b)
		if errors.Is(err, domain.ErrZeroVector) {
			p.Score, p.Degenerate = 0, true
			e.logger.Debug("zero-norm embedding scored as 0", zap.Int("example", i))
		} else if err != nil {
			return nil, fmt.Errorf("score example %d: %w", i, err)
		}
		if p.Score >= e.threshold {
			p.Predicted = 1
		}
		out[i] = p
	}
	return out, nil
}

// Summarize computes confusion counts and derived metrics. Any non-zero label
// counts as a match.
func Summarize(preds []Prediction) Metrics {
	var m Metrics
	for _, p := range preds {
		m.Total++
		if p.Degenerate {
			m.Degenerate++
		}
		actual := p.Example.Label != 0
		predicted := p.Predicted != 0
		switch {
		case actual && predicted:
			m.TruePositives++
		case !actual && predicted:
			m.FalsePositives++
		case !actual && !predicted:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}
	}
	m.Accuracy = ratio(m.TruePositives+m.TrueNegatives, m.Total)
	m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	m.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// WriteReport writes one CSV row per prediction to dir/predictions.csv.
func WriteReport(dir string, preds []Prediction) (path string, err error) {
	path = filepath.Join(dir, ReportFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create report: %v", domain.ErrFilesystem, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close report: %v", domain.ErrFilesystem, cerr)
		}
	}()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"topic_key_point", "argument", "label", "score", "predicted"}); err != nil {
		return "", err
	}
	for _, p := range preds {
		row := []string{
			p.Example.Texts[0],
			p.Example.Texts[1],
			strconv.Itoa(p.Example.Label),
			strconv.FormatFloat(p.Score, 'f', 6, 64),
			strconv.Itoa(p.Predicted),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
