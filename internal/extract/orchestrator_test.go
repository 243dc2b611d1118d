package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test document"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type fakeRenderer struct {
	pages     [][]byte
	calls     []int // DPI of each call
	failDPI   map[int]error
	failAll   error
}

func (f *fakeRenderer) RenderPages(_ context.Context, _ string, dpi int) ([][]byte, error) {
	f.calls = append(f.calls, dpi)
	if f.failAll != nil {
		return nil, f.failAll
	}
	if err, ok := f.failDPI[dpi]; ok {
		return nil, err
	}
	return f.pages, nil
}

type fakeScreener struct {
	safe  bool
	diag  string
	calls int
}

func (f *fakeScreener) Screen(_ context.Context, _ string) (bool, string) {
	f.calls++
	return f.safe, f.diag
}

type fakeCache struct {
	entries []PageEntry
	hit     bool
	saves   int
	deletes int
}

func (f *fakeCache) Load(_ Job) ([]PageEntry, bool) { return f.entries, f.hit }
func (f *fakeCache) Save(_ Job, entries []PageEntry) error {
	f.saves++
	f.entries = append([]PageEntry(nil), entries...)
	return nil
}
func (f *fakeCache) Delete(_ Job) error {
	f.deletes++
	f.entries = nil
	f.hit = false
	return nil
}

type fakeBackend struct {
	name      string
	documents bool
	imageText string
	imageErr  error
	docText   string
	docErr    error
	imageN    int
	docN      int
}

func (f *fakeBackend) Name() string            { return f.name }
func (f *fakeBackend) Model() string           { return "test-model" }
func (f *fakeBackend) SupportsDocuments() bool { return f.documents }

func (f *fakeBackend) TranscribeImage(_ context.Context, _ []byte, _ TextType) (string, error) {
	f.imageN++
	return f.imageText, f.imageErr
}

func (f *fakeBackend) TranscribeDocument(_ context.Context, _ []byte) (string, error) {
	f.docN++
	return f.docText, f.docErr
}

func goodEngine(confidence float64) *fakeEngine {
	return &fakeEngine{
		words: []Word{
			{Text: "recognized", Confidence: confidence},
			{Text: "text", Confidence: confidence},
		},
	}
}

func testJob(t *testing.T) Job {
	t.Helper()
	return Job{
		Path:     writeTempPDF(t),
		TextType: TextPrinted,
		Quality:  QualityBalanced,
		Language: "eng",
	}
}

func testOrchestrator(engine LocalEngine, renderer PageRenderer, screener PreScreener, cache ResultCache, cloud []CloudBackend) *Orchestrator {
	opts := DefaultOptions()
	return New(engine, renderer, screener, cache, cloud, opts)
}

func TestRunLocalSuccess(t *testing.T) {
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1"), []byte("p2")}}
	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil)

	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Method != MethodLocal {
		t.Errorf("Method = %v, want local", result.Method)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.Entries))
	}
	for i, e := range result.Entries {
		wantLoc := fmt.Sprintf("Page %d", i+1)
		if e.Location != wantLoc {
			t.Errorf("entry %d Location = %q, want %q", i, e.Location, wantLoc)
		}
		if e.Start != i+1 {
			t.Errorf("entry %d Start = %d, want %d", i, e.Start, i+1)
		}
		if e.Confidence == nil || *e.Confidence != 95 {
			t.Errorf("entry %d missing local confidence", i)
		}
	}
}

func TestRunUnsafePrescreenSkipsConversion(t *testing.T) {
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}
	screener := &fakeScreener{safe: false, diag: "infinite loop detected: probe did not finish within 5s"}
	backend := &fakeBackend{name: "cloudy", documents: true, docErr: errors.New("offline")}

	var messages []string
	hooks := Hooks{Progress: func(msg string) { messages = append(messages, msg) }}

	orch := testOrchestrator(goodEngine(95), renderer, screener, nil, []CloudBackend{backend})
	result, err := orch.Run(context.Background(), testJob(t), hooks)

	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("err = %v, want ErrCorrupted", err)
	}
	if result.Method != MethodFailed {
		t.Errorf("Method = %v, want failed", result.Method)
	}
	if len(renderer.calls) != 0 {
		t.Error("renderer called after failed pre-screen")
	}

	// The pre-screen verdict must be reported before any cloud-stage message.
	prescreenIdx, cloudIdx := -1, -1
	for i, m := range messages {
		if prescreenIdx < 0 && strings.Contains(m, "Pre-screen failed") {
			prescreenIdx = i
		}
		if cloudIdx < 0 && strings.Contains(m, "cloudy") {
			cloudIdx = i
		}
	}
	if prescreenIdx < 0 {
		t.Fatal("no pre-screen failure message reported")
	}
	if cloudIdx >= 0 && cloudIdx < prescreenIdx {
		t.Errorf("cloud message at %d precedes pre-screen failure at %d", cloudIdx, prescreenIdx)
	}
}

func TestRunRetriesAtLowerDPIOnImageSizeError(t *testing.T) {
	renderer := &fakeRenderer{
		pages:   [][]byte{[]byte("p1")},
		failDPI: map[int]error{300: fmt.Errorf("%w: 12000x15000", ErrImageTooLarge)},
	}
	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil)

	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Method != MethodLocal {
		t.Errorf("Method = %v, want local after DPI retry", result.Method)
	}
	if len(renderer.calls) != 2 || renderer.calls[0] != 300 || renderer.calls[1] != 150 {
		t.Errorf("render calls = %v, want [300 150]", renderer.calls)
	}
}

func TestRunRetriesOnlyOnImageSizeErrors(t *testing.T) {
	renderer := &fakeRenderer{failAll: fmt.Errorf("%w: xref damaged", ErrConversionFailed)}
	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil)

	_, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err == nil {
		t.Fatal("expected error for unrecoverable conversion failure")
	}
	if len(renderer.calls) != 1 {
		t.Errorf("render calls = %v, want a single attempt for non-size errors", renderer.calls)
	}
}

func TestRunSingleRetryEvenWhenStillTooLarge(t *testing.T) {
	renderer := &fakeRenderer{failAll: fmt.Errorf("%w: giant page", ErrImageTooLarge)}
	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil)

	_, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err = %v, want ErrImageTooLarge", err)
	}
	if len(renderer.calls) != 2 {
		t.Errorf("render calls = %v, want exactly one retry", renderer.calls)
	}
}

func TestRunPerPageErrorsSkipPage(t *testing.T) {
	engine := &fakeEngine{
		wordsErr: errors.New("engine crashed"),
		plainErr: errors.New("engine crashed"),
	}
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1"), []byte("p2")}}
	orch := testOrchestrator(engine, renderer, &fakeScreener{safe: true}, nil, nil)

	_, err := orch.Run(context.Background(), testJob(t), Hooks{})
	// Every page failed, so the local stage reports no text; with no cloud
	// configured the chain ends in failure, not a panic.
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("err = %v, want ErrNoText", err)
	}
	if engine.recognize != 2 {
		t.Errorf("recognize calls = %d, want 2 (page errors must not abort the loop)", engine.recognize)
	}
}

// flakyEngine fails both recognition paths on one specific page.
type flakyEngine struct {
	words      []Word
	failOnCall int
	calls      int
}

func (f *flakyEngine) Recognize(_ context.Context, _ []byte, _ string, _ Quality) ([]Word, error) {
	f.calls++
	if f.calls == f.failOnCall {
		return nil, errors.New("engine crashed")
	}
	return f.words, nil
}

func (f *flakyEngine) PlainText(_ context.Context, _ []byte, _ string, _ Quality) (string, error) {
	if f.calls == f.failOnCall {
		return "", errors.New("engine crashed")
	}
	return "plain text", nil
}

func TestRunSkipsFailingPageAndSucceeds(t *testing.T) {
	engine := &flakyEngine{
		words: []Word{
			{Text: "recognized", Confidence: 95},
			{Text: "text", Confidence: 95},
		},
		failOnCall: 3,
	}
	renderer := &fakeRenderer{pages: [][]byte{
		[]byte("p1"), []byte("p2"), []byte("p3"), []byte("p4"), []byte("p5"),
	}}

	orch := testOrchestrator(engine, renderer, &fakeScreener{safe: true}, nil, nil)
	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Method != MethodLocal {
		t.Errorf("Method = %v, want local despite one bad page", result.Method)
	}
	if len(result.Entries) != 4 {
		t.Fatalf("got %d entries, want 4 (one page skipped)", len(result.Entries))
	}
	wantPages := []int{1, 2, 4, 5}
	for i, e := range result.Entries {
		if e.Start != wantPages[i] {
			t.Errorf("entry %d Start = %d, want %d", i, e.Start, wantPages[i])
		}
		if e.Confidence == nil {
			t.Errorf("entry %d lost its local confidence", i)
		}
	}
	if engine.calls != 5 {
		t.Errorf("recognize calls = %d, want 5 (loop continues past the bad page)", engine.calls)
	}
}

func TestRunFallsBackToCloudDocument(t *testing.T) {
	renderer := &fakeRenderer{failAll: fmt.Errorf("%w: broken xref", ErrConversionFailed)}
	imageOnly := &fakeBackend{name: "openai", documents: false}
	failing := &fakeBackend{name: "vision", documents: true, docErr: errors.New("quota exceeded")}
	working := &fakeBackend{name: "gemini", documents: true, docText: "First paragraph.\n\nSecond paragraph."}

	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil,
		[]CloudBackend{imageOnly, failing, working})

	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Method != MethodCloudDirect {
		t.Errorf("Method = %v, want cloud_direct", result.Method)
	}
	if imageOnly.docN != 0 {
		t.Error("image-only provider received a document upload")
	}
	if failing.docN != 1 || working.docN != 1 {
		t.Errorf("provider calls: failing=%d working=%d, want 1 and 1 (in order)", failing.docN, working.docN)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2 paragraphs", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.Location != "Cloud AI (gemini)" {
			t.Errorf("Location = %q, want Cloud AI (gemini)", e.Location)
		}
		if e.Confidence != nil {
			t.Error("cloud transcription must not carry a confidence score")
		}
		if e.Start != 1 {
			t.Errorf("Start = %d, want 1 for whole-document result", e.Start)
		}
	}
}

func TestRunAllStagesFailReturnsLocalCause(t *testing.T) {
	renderer := &fakeRenderer{failAll: fmt.Errorf("%w: broken xref", ErrConversionFailed)}
	backend := &fakeBackend{name: "gemini", documents: true, docErr: errors.New("offline")}

	var messages []string
	hooks := Hooks{Progress: func(msg string) { messages = append(messages, msg) }}

	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, []CloudBackend{backend})
	result, err := orch.Run(context.Background(), testJob(t), hooks)

	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("err = %v, want the local stage error as cause", err)
	}
	if result.Method != MethodFailed {
		t.Errorf("Method = %v, want failed", result.Method)
	}

	repairSeen := false
	for _, m := range messages {
		if strings.Contains(m, "repair") {
			repairSeen = true
			break
		}
	}
	if !repairSeen {
		t.Error("no repair guidance reported after all stages failed")
	}
}

func TestRunEscalationDeclinedKeepsLocalResult(t *testing.T) {
	backend := &fakeBackend{name: "gemini", documents: true, imageText: "cloud version"}
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}

	asked := 0
	hooks := Hooks{AskEscalate: func(confidence float64, provider, model string) bool {
		asked++
		if provider != "gemini" {
			t.Errorf("provider = %q, want gemini", provider)
		}
		return false
	}}

	orch := testOrchestrator(goodEngine(30), renderer, &fakeScreener{safe: true}, nil, []CloudBackend{backend})
	result, err := orch.Run(context.Background(), testJob(t), hooks)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if asked != 1 {
		t.Errorf("asked %d times, want 1", asked)
	}
	if backend.imageN != 0 {
		t.Error("declined escalation still called the cloud backend")
	}
	if result.Entries[0].Confidence == nil {
		t.Error("kept local result lost its confidence")
	}
}

func TestRunEscalationAcceptedUsesCloudText(t *testing.T) {
	backend := &fakeBackend{name: "gemini", documents: true, imageText: "cloud version of the page"}
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}
	hooks := Hooks{AskEscalate: func(float64, string, string) bool { return true }}

	orch := testOrchestrator(goodEngine(30), renderer, &fakeScreener{safe: true}, nil, []CloudBackend{backend})
	result, err := orch.Run(context.Background(), testJob(t), hooks)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if backend.imageN != 1 {
		t.Fatalf("cloud image calls = %d, want 1", backend.imageN)
	}
	if result.Method != MethodLocal {
		t.Errorf("Method = %v, want local (escalation is within the local stage)", result.Method)
	}
	if result.Entries[0].Text != "cloud version of the page" {
		t.Errorf("Text = %q, want cloud transcription", result.Entries[0].Text)
	}
	if result.Entries[0].Confidence != nil {
		t.Error("escalated page must not carry the discarded local confidence")
	}
}

func TestRunEscalationNeverAsksWhenConfident(t *testing.T) {
	backend := &fakeBackend{name: "gemini", documents: true}
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1"), []byte("p2"), []byte("p3")}}

	asked := 0
	hooks := Hooks{AskEscalate: func(float64, string, string) bool {
		asked++
		return true
	}}

	orch := testOrchestrator(goodEngine(60), renderer, &fakeScreener{safe: true}, nil, []CloudBackend{backend})
	if _, err := orch.Run(context.Background(), testJob(t), hooks); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if asked != 0 {
		t.Errorf("asked %d times at threshold confidence, want 0", asked)
	}
	if backend.imageN != 0 {
		t.Errorf("cloud image calls = %d, want 0", backend.imageN)
	}
}

func TestRunCacheHitShortCircuits(t *testing.T) {
	conf := 91.0
	cached := []PageEntry{{Start: 1, Text: "cached text", Location: "Page 1", Confidence: &conf}}
	cache := &fakeCache{entries: cached, hit: true}
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}

	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, cache, nil)
	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(renderer.calls) != 0 {
		t.Error("cache hit still rendered the document")
	}
	if len(result.Entries) != 1 || result.Entries[0].Text != "cached text" {
		t.Errorf("entries = %+v, want the cached entry", result.Entries)
	}
}

func TestRunForceReprocessDeletesCache(t *testing.T) {
	conf := 91.0
	cache := &fakeCache{entries: []PageEntry{{Start: 1, Text: "stale", Confidence: &conf}}, hit: true}
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}

	opts := DefaultOptions()
	opts.ForceReprocess = true
	orch := New(goodEngine(95), renderer, &fakeScreener{safe: true}, cache, nil, opts)

	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if cache.deletes != 1 {
		t.Errorf("cache deletes = %d, want 1", cache.deletes)
	}
	if len(renderer.calls) == 0 {
		t.Error("force reprocess did not rerun the pipeline")
	}
	if result.Entries[0].Text == "stale" {
		t.Error("stale cached entry returned despite force reprocess")
	}
}

func TestRunFlushesCacheIncrementally(t *testing.T) {
	pages := make([][]byte, 25)
	for i := range pages {
		pages[i] = []byte("p")
	}
	cache := &fakeCache{}
	renderer := &fakeRenderer{pages: pages}

	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, cache, nil)
	if _, err := orch.Run(context.Background(), testJob(t), Hooks{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// Flushes at pages 10 and 20, plus the final save.
	if cache.saves != 3 {
		t.Errorf("cache saves = %d, want 3", cache.saves)
	}
}

func TestRunHonorsCancelCheck(t *testing.T) {
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1"), []byte("p2"), []byte("p3")}}
	engine := goodEngine(95)

	processed := 0
	hooks := Hooks{Canceled: func() bool {
		processed++
		return processed > 1 // cancel before the second page
	}}

	orch := testOrchestrator(engine, renderer, &fakeScreener{safe: true}, nil, nil)
	_, err := orch.Run(context.Background(), testJob(t), hooks)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if engine.recognize != 1 {
		t.Errorf("recognized %d pages after cancel, want 1", engine.recognize)
	}
}

func TestRunForceCloudSkipsLocal(t *testing.T) {
	renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}
	backend := &fakeBackend{name: "gemini", documents: true, docText: "direct text"}

	opts := DefaultOptions()
	opts.ForceCloud = true
	orch := New(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, []CloudBackend{backend}, opts)

	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Method != MethodCloudDirect {
		t.Errorf("Method = %v, want cloud_direct", result.Method)
	}
	if len(renderer.calls) != 0 {
		t.Error("force cloud still ran local rendering")
	}
}

func TestSuggestTextTypeSampleDPI(t *testing.T) {
	t.Run("uses retry DPI when enabled", func(t *testing.T) {
		renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}
		orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil)

		if _, _, err := orch.SuggestTextType(context.Background(), testJob(t)); err != nil {
			t.Fatalf("SuggestTextType returned error: %v", err)
		}
		if len(renderer.calls) != 1 || renderer.calls[0] != DefaultOptions().RetryDPI {
			t.Errorf("render calls = %v, want one call at %d", renderer.calls, DefaultOptions().RetryDPI)
		}
	})

	t.Run("falls back to render DPI when retries are disabled", func(t *testing.T) {
		renderer := &fakeRenderer{pages: [][]byte{[]byte("p1")}}
		opts := DefaultOptions()
		opts.RetryDPI = 0
		orch := New(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil, opts)

		if _, _, err := orch.SuggestTextType(context.Background(), testJob(t)); err != nil {
			t.Fatalf("SuggestTextType returned error: %v", err)
		}
		if len(renderer.calls) != 1 || renderer.calls[0] != opts.RenderDPI {
			t.Errorf("render calls = %v, want one call at %d", renderer.calls, opts.RenderDPI)
		}
	})
}

func TestRunNoCloudConfiguredFailsCleanly(t *testing.T) {
	renderer := &fakeRenderer{failAll: fmt.Errorf("%w: damaged", ErrConversionFailed)}
	orch := testOrchestrator(goodEngine(95), renderer, &fakeScreener{safe: true}, nil, nil)

	result, err := orch.Run(context.Background(), testJob(t), Hooks{})
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("err = %v, want the local failure", err)
	}
	if result.Method != MethodFailed {
		t.Errorf("Method = %v, want failed", result.Method)
	}
}
