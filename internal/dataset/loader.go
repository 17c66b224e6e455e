package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"argmatch/internal/config"
	"argmatch/internal/domain"
	"argmatch/internal/logging"
)

// Mode selects the element shape produced by CreateSamples.
type Mode int

const (
	// ModeExample produces text-pair training examples.
	ModeExample Mode = iota
	// ModeRecord produces field-keyed records.
	ModeRecord
)

// NoLimit keeps every row of the file.
const NoLimit = -1

func (m Mode) String() string {
	switch m {
	case ModeExample:
		return "example"
	case ModeRecord:
		return "record"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// SampleSet is an ordered sequence of samples in a single shape.
type SampleSet struct {
	Mode     Mode
	Examples []domain.InputExample
	Records  []domain.Record
}

// Len returns the number of samples in the set.
func (s *SampleSet) Len() int {
	if s.Mode == ModeRecord {
		return len(s.Records)
	}
	return len(s.Examples)
}

// Loader reads labeled pairs from CSV files under a data root.
type Loader struct {
	dataDir string
	schema  config.SchemaConfig
	logger  *zap.Logger
}

// NewLoader creates a loader reading files under dataDir with the given column names.
func NewLoader(dataDir string, schema config.SchemaConfig, logger *zap.Logger) *Loader {
	return &Loader{dataDir: dataDir, schema: schema, logger: logging.OrNop(logger)}
}

// CreateSamples reads file (relative to the data root) and returns its rows in
// the requested shape. A negative limit keeps all rows, otherwise at most limit
// rows are kept in file order.
func (l *Loader) CreateSamples(file string, mode Mode, limit int) (*SampleSet, error) {
	pairs, err := l.LoadPairs(file, limit)
	if err != nil {
		return nil, err
	}
	set := &SampleSet{Mode: mode}
	switch mode {
	case ModeExample:
		set.Examples = make([]domain.InputExample, len(pairs))
		for i, p := range pairs {
			set.Examples[i] = p.Example()
		}
	case ModeRecord:
		set.Records = make([]domain.Record, len(pairs))
		for i, p := range pairs {
			set.Records[i] = p.Record()
		}
	default:
		return nil, fmt.Errorf("unknown sample mode %s", mode)
	}
	return set, nil
}

// LoadExamples returns the rows of file as training examples.
func (l *Loader) LoadExamples(file string, limit int) ([]domain.InputExample, error) {
	set, err := l.CreateSamples(file, ModeExample, limit)
	if err != nil {
		return nil, err
	}
	return set.Examples, nil
}

// LoadRecords returns the rows of file as field-keyed records.
func (l *Loader) LoadRecords(file string, limit int) ([]domain.Record, error) {
	set, err := l.CreateSamples(file, ModeRecord, limit)
	if err != nil {
		return nil, err
	}
	return set.Records, nil
}

// LoadPairs returns the rows of file with every column the schema knows about.
func (l *Loader) LoadPairs(file string, limit int) ([]domain.LabeledPair, error) {
	path := filepath.Join(l.dataDir, file)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	pairs, err := ReadPairs(f, l.schema, limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	l.logger.Debug("samples loaded",
		zap.String("file", file),
		zap.Int("rows", len(pairs)),
		zap.Int("limit", limit))
	return pairs, nil
}

// ReadPairs parses CSV data with a header row. The topic_key_point, argument
// and label columns are required; topic, key_point, stance and score are read
// when present. Every row is validated, including rows past limit.
func ReadPairs(r io.Reader, schema config.SchemaConfig, limit int) ([]domain.LabeledPair, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", domain.ErrDataFormat)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDataFormat, err)
	}
	cols, err := resolveColumns(header, schema)
	if err != nil {
		return nil, err
	}
	var pairs []domain.LabeledPair
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDataFormat, err)
		}
		line, _ := reader.FieldPos(0)
		pair, err := cols.parse(row, line)
		if err != nil {
			return nil, err
		}
		if limit < 0 || len(pairs) < limit {
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

type columns struct {
	schema        config.SchemaConfig
	topicKeyPoint int
	argument      int
	label         int
	topic         int
	keyPoint      int
	stance        int
	score         int
}

func resolveColumns(header []string, schema config.SchemaConfig) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	lookup := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return -1
	}
	cols := columns{
		schema:        schema,
		topicKeyPoint: lookup(schema.TopicKeyPoint),
		argument:      lookup(schema.Argument),
		label:         lookup(schema.Label),
		topic:         lookup(schema.Topic),
		keyPoint:      lookup(schema.KeyPoint),
		stance:        lookup(schema.Stance),
		score:         lookup(schema.Score),
	}
	var missing []string
	if cols.topicKeyPoint < 0 {
		missing = append(missing, schema.TopicKeyPoint)
	}
	if cols.argument < 0 {
		missing = append(missing, schema.Argument)
	}
	if cols.label < 0 {
		missing = append(missing, schema.Label)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: missing column(s) %s", domain.ErrDataFormat, strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c columns) parse(row []string, line int) (domain.LabeledPair, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}
	rawLabel := strings.TrimSpace(cell(c.label))
	label, err := strconv.Atoi(rawLabel)
	if err != nil {
		return domain.LabeledPair{}, fmt.Errorf("%w: line %d: %s %q is not an integer", domain.ErrDataFormat, line, c.schema.Label, rawLabel)
	}
	pair := domain.LabeledPair{
		Topic:         cell(c.topic),
		KeyPoint:      cell(c.keyPoint),
		TopicKeyPoint: cell(c.topicKeyPoint),
		Argument:      cell(c.argument),
		Label:         label,
		Stance:        cell(c.stance),
	}
	if c.score >= 0 {
		rawScore := strings.TrimSpace(cell(c.score))
		if rawScore != "" {
			score, err := strconv.ParseFloat(rawScore, 64)
			if err != nil {
				return domain.LabeledPair{}, fmt.Errorf("%w: line %d: %s %q is not a number", domain.ErrDataFormat, line, c.schema.Score, rawScore)
			}
			pair.Score = score
			pair.HasScore = true
		}
	}
	return pair, nil
}
