package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// fakeEngine scripts the local backend for scorer and orchestrator tests.
type fakeEngine struct {
	words     []Word
	wordsErr  error
	plain     string
	plainErr  error
	recognize int
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte, _ string, _ Quality) ([]Word, error) {
	f.recognize++
	return f.words, f.wordsErr
}

func (f *fakeEngine) PlainText(_ context.Context, _ []byte, _ string, _ Quality) (string, error) {
	return f.plain, f.plainErr
}

func testScorer(engine LocalEngine) *Scorer {
	return NewScorer(engine, zerolog.Nop())
}

func TestScoreAveragesWordConfidences(t *testing.T) {
	engine := &fakeEngine{
		words: []Word{
			{Text: "Invoice", Confidence: 90},
			{Text: "total", Confidence: 70},
			{Text: "amount", Confidence: 80},
		},
	}

	_, confidence, err := testScorer(engine).Score(context.Background(), []byte("png"), "eng", QualityBalanced)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if confidence != 80 {
		t.Errorf("confidence = %g, want 80", confidence)
	}
}

func TestScoreExcludesNonTextSentinel(t *testing.T) {
	engine := &fakeEngine{
		words: []Word{
			{Text: "real", Confidence: 88},
			{Text: "▪", Confidence: -1}, // non-text element
			{Text: "words", Confidence: 92},
		},
	}

	text, confidence, err := testScorer(engine).Score(context.Background(), []byte("png"), "eng", QualityBalanced)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if confidence != 90 {
		t.Errorf("confidence = %g, want 90 (sentinel excluded from average, not counted as zero)", confidence)
	}
	if text == "" {
		t.Error("sentinel exclusion must not drop the recognized text")
	}
}

func TestScoreNeutralWhenNoConfidenceData(t *testing.T) {
	// All words carry the sentinel: text exists but no confidence data.
	engine := &fakeEngine{
		words: []Word{
			{Text: "shape", Confidence: -1},
			{Text: "shape", Confidence: -1},
		},
	}

	_, confidence, err := testScorer(engine).Score(context.Background(), []byte("png"), "eng", QualityBalanced)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if confidence != NeutralConfidence {
		t.Errorf("confidence = %g, want neutral %g", confidence, NeutralConfidence)
	}
}

func TestScoreFallsBackToPlainText(t *testing.T) {
	engine := &fakeEngine{
		wordsErr: errors.New("word boxes unavailable"),
		plain:    "fallback page text",
	}

	text, confidence, err := testScorer(engine).Score(context.Background(), []byte("png"), "eng", QualityBalanced)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if text != "fallback page text" {
		t.Errorf("text = %q, want plain text fallback", text)
	}
	if confidence != NeutralConfidence {
		t.Errorf("confidence = %g, want neutral %g for fallback", confidence, NeutralConfidence)
	}
}

func TestScoreErrorsOnlyWhenNothingWorks(t *testing.T) {
	engine := &fakeEngine{
		wordsErr: errors.New("word boxes unavailable"),
		plainErr: errors.New("recognition failed"),
	}

	_, _, err := testScorer(engine).Score(context.Background(), []byte("png"), "eng", QualityBalanced)
	if err == nil {
		t.Fatal("expected error when both recognition paths fail")
	}
}

func TestScorePrefersFullPageLayout(t *testing.T) {
	engine := &fakeEngine{
		words: []Word{
			{Text: "First", Confidence: 95},
			{Text: "paragraph.", Confidence: 95},
			{Text: "Second", Confidence: 95},
			{Text: "paragraph.", Confidence: 95},
		},
		plain: "First paragraph.\n\nSecond paragraph.",
	}

	text, _, err := testScorer(engine).Score(context.Background(), []byte("png"), "eng", QualityBalanced)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if text != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("text = %q, want layout from full-page recognition", text)
	}
}
