package finder

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/completion"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// fakeEmbedder records inputs and returns a fixed 3-d vector per text.
type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeSearcher returns a canned match list and records its arguments.
type fakeSearcher struct {
	matches       []rag.Match
	err           error
	calls         int
	gotThreshold  float32
	gotLimit      int
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, threshold float32, limit int) ([]rag.Match, error) {
	f.calls++
	f.gotThreshold, f.gotLimit = threshold, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

// fakeCompleter is a scripted completion.Completer.
type fakeCompleter struct {
	validateErr error
	err         error
	fragments   []string
	reply       string

	completeCalls int
	streamCalls   int
	lastReq       completion.Request
}

func (f *fakeCompleter) Validate() error { return f.validateErr }
func (f *fakeCompleter) Name() string    { return "fake/model" }

func (f *fakeCompleter) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	f.completeCalls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &completion.Response{ID: "cmpl-1", Choices: []completion.Choice{{Index: 0, Text: f.reply, FinishReason: "stop"}}}, nil
}

func (f *fakeCompleter) Stream(_ context.Context, req completion.Request, w io.Writer) error {
	f.streamCalls++
	f.lastReq = req
	for _, fr := range f.fragments {
		if _, err := io.WriteString(w, fr); err != nil {
			return err
		}
	}
	return f.err
}

var testMatches = []rag.Match{
	{ShowID: "s1", Title: "Dark", Description: "A family saga with a supernatural twist.", Similarity: 0.91},
	{ShowID: "s2", Title: "Ozark", Description: "A financial adviser drags his family to the Missouri Ozarks.", Similarity: 0.85},
	{ShowID: "s3", Title: "Below", Description: "Too far away.", Similarity: 0.5},
}

type harness struct {
	emb  *fakeEmbedder
	srch *fakeSearcher
	comp *fakeCompleter
	p    *Pipeline
}

func newHarness(t *testing.T, comp *fakeCompleter) *harness {
	t.Helper()
	h := &harness{
		emb:  &fakeEmbedder{},
		srch: &fakeSearcher{matches: testMatches},
		comp: comp,
	}
	r, err := rag.NewRetriever(h.emb, h.srch, rag.DefaultThreshold, 0)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	h.p, err = New(Config{Retriever: r, Completer: comp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestAsk_Buffered(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{reply: "<ul><li class=\"font-semibold\">Dark</li></ul>"})

	ans, err := h.p.Ask(context.Background(), Query{Text: "family problems", Mode: ModeBuffered}, nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	// Single-item embed call with the raw query.
	if len(h.emb.calls) != 1 || len(h.emb.calls[0]) != 1 || h.emb.calls[0][0] != "family problems" {
		t.Errorf("unexpected embed calls: %v", h.emb.calls)
	}
	if h.srch.gotThreshold != rag.DefaultThreshold || h.srch.gotLimit != rag.DefaultLimit {
		t.Errorf("search params = (%v, %d)", h.srch.gotThreshold, h.srch.gotLimit)
	}
	// The below-threshold match is filtered out client-side.
	if len(ans.Matches) != 2 {
		t.Fatalf("want 2 matches, got %d", len(ans.Matches))
	}
	wantCtx := `Show Title: "Dark" Show Description: "A family saga with a supernatural twist.", ` +
		`Show Title: "Ozark" Show Description: "A financial adviser drags his family to the Missouri Ozarks."`
	if ans.Context != wantCtx {
		t.Errorf("context:\n got %q\nwant %q", ans.Context, wantCtx)
	}
	if ans.ID != "cmpl-1" || ans.Text != h.comp.reply || len(ans.Choices) != 1 {
		t.Errorf("unexpected answer: %+v", ans)
	}

	req := h.comp.lastReq
	if req.MaxTokens != 2000 || req.Temperature != 0.5 {
		t.Errorf("completion params = (%d, %v)", req.MaxTokens, req.Temperature)
	}
	if req.Prompt != BuildPrompt(DefaultPersona, wantCtx, "family problems") {
		t.Errorf("unexpected prompt:\n%s", req.Prompt)
	}
	if h.comp.streamCalls != 0 {
		t.Error("buffered mode must not stream")
	}
}

func TestAsk_Streaming(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{fragments: []string{"Hi! I'm ", "Netflix man", "."}})

	var out strings.Builder
	ans, err := h.p.Ask(context.Background(), Query{Text: "heist", Mode: ModeStreaming}, &out)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out.String() != "Hi! I'm Netflix man." {
		t.Errorf("streamed %q", out.String())
	}
	if ans.Text != out.String() {
		t.Errorf("Answer.Text = %q, want the concatenated fragments", ans.Text)
	}
	if h.comp.completeCalls != 0 {
		t.Error("streaming mode must not call Complete")
	}
}

func TestAsk_StreamingRequiresWriter(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{})

	if _, err := h.p.Ask(context.Background(), Query{Text: "heist", Mode: ModeStreaming}, nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestAsk_ConfigErrorMakesNoCalls(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{validateErr: apperr.Missing("OPENAI_API_KEY")})

	_, err := h.p.Ask(context.Background(), Query{Text: "family problems"}, nil)
	if !apperr.IsConfig(err) {
		t.Fatalf("want ConfigError, got %v", err)
	}
	if len(h.emb.calls) != 0 || h.srch.calls != 0 || h.comp.completeCalls != 0 {
		t.Errorf("calls made despite config error: embed=%d search=%d complete=%d",
			len(h.emb.calls), h.srch.calls, h.comp.completeCalls)
	}
}

func TestAsk_RetrievalFailureSkipsCompletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"embed fails", func(h *harness) { h.emb.err = apperr.Upstream("openai embeddings", 500, "boom") }},
		{"search fails", func(h *harness) { h.srch.err = apperr.Upstream("postgres", 0, "conn refused") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, &fakeCompleter{reply: "x"})
			tc.setup(h)

			_, err := h.p.Ask(context.Background(), Query{Text: "family problems"}, nil)
			if !apperr.IsUpstream(err) {
				t.Fatalf("want UpstreamError, got %v", err)
			}
			if h.comp.completeCalls != 0 || h.comp.streamCalls != 0 {
				t.Error("completion endpoint called after retrieval failure")
			}
		})
	}
}

func TestAsk_SuppliedContextSkipsRetrieval(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{reply: "ok"})

	ctxBlock := `Show Title: "Narcos" Show Description: "Cartels."`
	ans, err := h.p.Ask(context.Background(), Query{Text: "drugs", Context: ctxBlock}, nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(h.emb.calls) != 0 || h.srch.calls != 0 {
		t.Error("retrieval ran although context was supplied")
	}
	if ans.Context != ctxBlock || ans.Matches != nil {
		t.Errorf("unexpected answer: %+v", ans)
	}
	if !strings.Contains(h.comp.lastReq.Prompt, ctxBlock) {
		t.Error("supplied context missing from prompt")
	}
}

func TestAsk_EmptyQuery(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{})

	if _, err := h.p.Ask(context.Background(), Query{Text: "  \n"}, nil); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("want ErrEmptyQuery, got %v", err)
	}
}

func TestAsk_NoMatchesStillCompletes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{reply: "Sorry unable to help"})
	h.srch.matches = nil

	ans, err := h.p.Ask(context.Background(), Query{Text: "underwater chess"}, nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Context != "" || len(ans.Matches) != 0 {
		t.Errorf("want empty context, got %+v", ans)
	}
	if h.comp.completeCalls != 1 {
		t.Errorf("want 1 completion call, got %d", h.comp.completeCalls)
	}
}

func TestAsk_CompletionErrorPropagates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{
		fragments: []string{"partial"},
		err:       &apperr.StreamParseError{Err: errors.New("unexpected end of JSON input")},
	})

	var out strings.Builder
	_, err := h.p.Ask(context.Background(), Query{Text: "heist", Mode: ModeStreaming}, &out)
	if !apperr.IsStreamParse(err) {
		t.Fatalf("want StreamParseError, got %v", err)
	}
	if out.String() != "partial" {
		t.Errorf("fragments before the failure should reach the writer, got %q", out.String())
	}
}

func TestNew_Overrides(t *testing.T) {
	t.Parallel()

	comp := &fakeCompleter{reply: "x"}
	r, err := rag.NewRetriever(&fakeEmbedder{}, &fakeSearcher{}, rag.DefaultThreshold, 0)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	temp := float32(0)
	p, err := New(Config{Retriever: r, Completer: comp, Persona: "Be brief.", MaxTokens: 256, Temperature: &temp})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Ask(context.Background(), Query{Text: "q", Context: "c"}, nil); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if comp.lastReq.MaxTokens != 256 || comp.lastReq.Temperature != 0 {
		t.Errorf("overrides not applied: %+v", comp.lastReq)
	}
	if !strings.HasPrefix(comp.lastReq.Prompt, "Be brief.\n\n") {
		t.Errorf("persona override not applied: %q", comp.lastReq.Prompt)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Completer: &fakeCompleter{}}); err == nil {
		t.Error("expected error for nil Retriever")
	}
	r, _ := rag.NewRetriever(&fakeEmbedder{}, &fakeSearcher{}, rag.DefaultThreshold, 0)
	if _, err := New(Config{Retriever: r}); err == nil {
		t.Error("expected error for nil Completer")
	}
}

func TestRetrieve(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeCompleter{})

	matches, block, err := h.p.Retrieve(context.Background(), "family problems")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(matches) != 2 || block != BuildContext(matches) {
		t.Errorf("unexpected result: %d matches, %q", len(matches), block)
	}
	if h.comp.completeCalls != 0 {
		t.Error("Retrieve must not call the completer")
	}
}
