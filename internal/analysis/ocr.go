package analysis

import (
	"context"
	"strings"

	"github.com/raine/resale-appraiser/internal/llm"
	"golang.org/x/sync/errgroup"
)

// Provider recognizes text in a single image. It returns "" when the image
// has no readable text.
type Provider interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// AnalyzeImages recognizes text in every image concurrently, then analyzes
// with the joined text. Per-image OCR failures are logged and contribute no
// text. Without a provider the analysis runs with empty OCR text.
func (o *Orchestrator) AnalyzeImages(ctx context.Context, images [][]byte) (*llm.ExpertAnalysisResult, error) {
	if err := o.checkInput(images); err != nil {
		o.metrics.ObserveAnalysis("rejected", 0)
		return nil, err
	}

	r := o.newRun()
	r.enter(PhaseIdle, "", 0)
	r.enter(PhaseExtractingText, "", 0)

	text, err := r.extractText(ctx, images)
	if err != nil {
		return nil, err
	}
	return r.analyze(ctx, images, text)
}

func (r *run) extractText(ctx context.Context, images [][]byte) (string, error) {
	if r.o.ocr == nil {
		return "", nil
	}

	texts := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			text, err := r.o.ocr.Recognize(gctx, img)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.o.metrics.ObserveOCR("error")
				r.logger.Warn().Err(err).Int("image", i).Msg("text recognition failed, skipping image")
				return nil
			}
			r.o.metrics.ObserveOCR("success")
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	return JoinText(texts), nil
}

// JoinText newline-joins the non-empty texts in order.
func JoinText(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
