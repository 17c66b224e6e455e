package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"argmatch/internal/dataset"
	"argmatch/internal/domain"
	"argmatch/internal/embedding"
	"argmatch/internal/evaluation"
	"argmatch/internal/logging"
	"argmatch/internal/model"
	"argmatch/internal/workspace"
)

// Options holds the collaborators of a MatchService.
type Options struct {
	Layout *workspace.Layout
	Loader *dataset.Loader
	Handle *model.Handle[embedding.Model]
	// Embedder defaults to the handle's model; set it to wrap the model, e.g. with a cache.
	Embedder  domain.Embedder
	Index     domain.KeyPointIndex
	Threshold float64
	Logger    *zap.Logger
}

// MatchService prepares an embedding model, ranks key points for arguments
// and evaluates labeled pairs.
type MatchService struct {
	layout    *workspace.Layout
	loader    *dataset.Loader
	handle    *model.Handle[embedding.Model]
	embedder  domain.Embedder
	index     domain.KeyPointIndex
	threshold float64
	logger    *zap.Logger
	keyPoints []string
}

// EvaluationResult is the outcome of Evaluate.
type EvaluationResult struct {
	Metrics     evaluation.Metrics
	Predictions []evaluation.Prediction
	ReportPath  string
}

func NewMatchService(opts Options) *MatchService {
	emb := opts.Embedder
	if emb == nil {
		emb = opts.Handle.Model()
	}
	return &MatchService{
		layout:    opts.Layout,
		loader:    opts.Loader,
		handle:    opts.Handle,
		embedder:  emb,
		index:     opts.Index,
		threshold: opts.Threshold,
		logger:    logging.OrNop(opts.Logger),
	}
}

// PrepareModel points the model handle at the folder of the named model. A
// saved model is loaded from there; otherwise the model is fitted on the texts
// of trainFile and saved into a freshly emptied folder. It reports whether the
// model was loaded.
func (s *MatchService) PrepareModel(name, trainFile string) (bool, error) {
	path := s.layout.ModelPath(name)
	s.handle.SetFolderPath(path)
	if s.layout.IsModelPresent(name) {
		if err := s.handle.Model().Load(path); err != nil {
			return false, fmt.Errorf("load model %s: %w", name, err)
		}
		s.logger.Info("model loaded", zap.String("model", name), zap.String("path", path))
		return true, nil
	}
	set, err := s.loader.CreateSamples(trainFile, dataset.ModeExample, dataset.NoLimit)
	if err != nil {
		return false, err
	}
	corpus := set.Texts()
	if err := s.embedder.Prepare(corpus); err != nil {
		return false, fmt.Errorf("fit model %s: %w", name, err)
	}
	if err := workspace.EmptyFolder(path); err != nil {
		return false, err
	}
	if err := s.handle.Model().Save(s.handle.FolderPath()); err != nil {
		return false, fmt.Errorf("save model %s: %w", name, err)
	}
	s.logger.Info("model fitted and saved",
		zap.String("model", name),
		zap.String("path", path),
		zap.Int("corpus", len(corpus)),
		zap.Int("dimension", s.embedder.Dimension()))
	return false, nil
}

// IndexKeyPoints embeds the distinct key points of file and replaces the index contents.
func (s *MatchService) IndexKeyPoints(ctx context.Context, file string) (int, error) {
	set, err := s.loader.CreateSamples(file, dataset.ModeRecord, dataset.NoLimit)
	if err != nil {
		return 0, err
	}
	keyPoints := set.KeyPoints()
	if len(keyPoints) == 0 {
		return 0, fmt.Errorf("no key points in %s", file)
	}
	vectors := make([][]float64, len(keyPoints))
	for i, kp := range keyPoints {
		vec, err := s.embedder.Embed(ctx, kp)
		if err != nil {
			return 0, err
		}
		vectors[i] = vec
	}
	if err := s.index.Init(len(vectors[0])); err != nil {
		return 0, err
	}
	if err := s.index.Upsert(keyPoints, vectors); err != nil {
		return 0, err
	}
	s.keyPoints = keyPoints
	s.logger.Debug("key points indexed", zap.String("file", file), zap.Int("count", len(keyPoints)))
	return len(keyPoints), nil
}

// Match ranks the indexed key points against an argument. Arguments that share
// no vocabulary with the model fall back to token overlap ranking.
func (s *MatchService) Match(ctx context.Context, argument string, topK int) ([]domain.KeyPointMatch, error) {
	vec, err := s.embedder.Embed(ctx, argument)
	if err != nil {
		return nil, err
	}
	res, err := s.index.Search(vec, topK)
	if errors.Is(err, domain.ErrZeroVector) {
		return s.lexicalSearch(argument, topK), nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Evaluate scores every pair of file, writes the predictions into a fresh
// evaluation folder named run and returns the metrics.
func (s *MatchService) Evaluate(ctx context.Context, file, run string) (*EvaluationResult, error) {
	examples, err := s.loader.LoadExamples(file, dataset.NoLimit)
	if err != nil {
		return nil, err
	}
	preds, err := evaluation.NewEvaluator(s.embedder, s.threshold, s.logger).Score(ctx, examples)
	if err != nil {
		return nil, err
	}
	metrics := evaluation.Summarize(preds)
	dir, err := s.layout.FreshEvalDir(run)
	if err != nil {
		return nil, err
	}
	path, err := evaluation.WriteReport(dir, preds)
	if err != nil {
		return nil, err
	}
	s.logger.Info("evaluation finished",
		zap.String("file", file),
		zap.Int("pairs", metrics.Total),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("f1", metrics.F1),
		zap.String("report", path))
	return &EvaluationResult{Metrics: metrics, Predictions: preds, ReportPath: path}, nil
}

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func (s *MatchService) lexicalSearch(query string, topK int) []domain.KeyPointMatch {
	qset := toTokenSet(query)
	scores := make([]domain.KeyPointMatch, len(s.keyPoints))
	for i, kp := range s.keyPoints {
		scores[i] = domain.KeyPointMatch{KeyPoint: kp, Score: overlapOchiai(qset, kp)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(scores) {
		topK = len(scores)
	}
	return scores[:topK]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai returns |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	tset := toTokenSet(text)
	if len(qset) == 0 || len(tset) == 0 {
		return 0
	}
	inter := 0
	for t := range tset {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(tset)))
}
