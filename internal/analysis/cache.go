package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/rs/zerolog/log"
)

// ResultStore persists analysis results by input hash. Get returns nil, nil
// on a miss.
type ResultStore interface {
	GetAnalysis(hash string) (*llm.ExpertAnalysisResult, error)
	SetAnalysis(hash string, result *llm.ExpertAnalysisResult) error
}

// CachedAnalyzer wraps an Analyzer with a persistent result cache.
type CachedAnalyzer struct {
	inner Analyzer
	store ResultStore
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner Analyzer, store ResultStore) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

// hashInput creates a SHA256 hash from image data and OCR text.
// Includes length prefix for each image to prevent boundary collisions.
// auto marks inputs whose text comes from the OCR provider. Every image is
// hashed, including those past the inference cap, since OCR reads them all.
func hashInput(images [][]byte, ocrText string, auto bool) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(images)))
	for _, img := range images {
		// Write length to prevent boundary collisions (e.g. [A,B] vs [AB])
		binary.Write(h, binary.LittleEndian, int64(len(img)))
		h.Write(img)
	}
	if auto {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
		h.Write([]byte(ocrText))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze implements Analyzer with caching.
func (c *CachedAnalyzer) Analyze(ctx context.Context, images [][]byte, ocrText string) (*llm.ExpertAnalysisResult, error) {
	return c.cached(hashInput(images, ocrText, false), len(images), func() (*llm.ExpertAnalysisResult, error) {
		return c.inner.Analyze(ctx, images, ocrText)
	})
}

// AnalyzeImages implements Analyzer with caching. A hit skips OCR too.
func (c *CachedAnalyzer) AnalyzeImages(ctx context.Context, images [][]byte) (*llm.ExpertAnalysisResult, error) {
	return c.cached(hashInput(images, "", true), len(images), func() (*llm.ExpertAnalysisResult, error) {
		return c.inner.AnalyzeImages(ctx, images)
	})
}

func (c *CachedAnalyzer) cached(hash string, imageCount int, analyze func() (*llm.ExpertAnalysisResult, error)) (*llm.ExpertAnalysisResult, error) {
	// Empty input goes to the inner analyzer for its error
	if c.store != nil && imageCount > 0 {
		cached, err := c.store.GetAnalysis(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
			cached.Usage = llm.Usage{} // Zero usage for cached result
			return cached, nil
		}
	}

	result, err := analyze()
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.SetAnalysis(hash, result); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached analysis result")
		}
	}

	return result, nil
}
