package tfidf

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// StateFile is the name of the file holding a saved vocabulary.
const StateFile = "tfidf.yaml"

// Embedder implements a simple TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes IDF values.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	maxTokens    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	fingerprint  string
}

type state struct {
	MaxTokens int       `yaml:"max_tokens"`
	Terms     []string  `yaml:"terms"`
	IDF       []float64 `yaml:"idf"`
}

// NewEmbedder creates an unprepared TF-IDF embedder. Texts are cut to their
// first maxTokens tokens; zero or less keeps every token.
func NewEmbedder(maxTokens int) *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		maxTokens:    maxTokens,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		// Smoothed IDF
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.setState(terms, idf)
	return nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Fingerprint identifies the fitted vocabulary. It is empty before Prepare or Load.
func (e *Embedder) Fingerprint() string { return e.fingerprint }

// Embed computes the L2-normalized TF-IDF embedding for the given text. Text
// without known terms yields a zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = tfv * e.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// Save writes the vocabulary and IDF values to dir.
func (e *Embedder) Save(dir string) error {
	if !e.prepared {
		return errors.New("tfidf embedder not prepared")
	}
	terms := make([]string, len(e.vocabulary))
	for term, idx := range e.vocabulary {
		terms[idx] = term
	}
	data, err := yaml.Marshal(state{MaxTokens: e.maxTokens, Terms: terms, IDF: e.idf})
	if err != nil {
		return fmt.Errorf("encode tfidf state: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, StateFile), data, 0o644)
}

// Load replaces the vocabulary with the one saved in dir.
func (e *Embedder) Load(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		return fmt.Errorf("read tfidf state: %w", err)
	}
	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode tfidf state: %w", err)
	}
	if len(st.Terms) == 0 || len(st.Terms) != len(st.IDF) {
		return fmt.Errorf("invalid tfidf state: %d terms, %d idf values", len(st.Terms), len(st.IDF))
	}
	e.maxTokens = st.MaxTokens
	e.setState(st.Terms, st.IDF)
	return nil
}

func (e *Embedder) setState(terms []string, idf []float64) {
	e.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		e.vocabulary[term] = i
	}
	e.idf = idf
	e.dimension = len(terms)
	e.prepared = true

	h := sha1.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(e.maxTokens))
	h.Write(buf[:])
	for i, term := range terms {
		h.Write([]byte(term))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(idf[i]))
		h.Write(buf[:])
	}
	e.fingerprint = hex.EncodeToString(h.Sum(nil))
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	if e.maxTokens > 0 && len(raw) > e.maxTokens {
		raw = raw[:e.maxTokens]
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
