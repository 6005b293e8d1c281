package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/snappy-loop/wordtales/internal/llm"
)

type slotResult struct {
	url, err *string
}

func collect(results map[int]slotResult) func(int, *string, *string) {
	return func(i int, url, errMsg *string) {
		results[i] = slotResult{url: url, err: errMsg}
	}
}

func TestMedia_ImagesCanceledMidLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := &eventLog{}
	p := &fakeProvider{
		events: events,
		image: func(ctx context.Context, prompt string) (string, error) {
			if prompt == "p1" {
				cancel()
			}
			return "data:image/png;base64," + prompt, nil
		},
	}
	m := NewMedia(llm.DefaultRetryPolicy(), 500*time.Millisecond, events.sleep)

	results := map[int]slotResult{}
	m.Images(ctx, p, []string{"p0", "p1", "p2", "p3"}, collect(results))

	if len(results) != 4 {
		t.Fatalf("results = %d, want every slot resolved", len(results))
	}
	for _, i := range []int{0, 1} {
		if results[i].url == nil {
			t.Errorf("slot %d should have succeeded", i)
		}
	}
	for _, i := range []int{2, 3} {
		if results[i].url != nil || results[i].err == nil || *results[i].err != llm.MsgMediaFailed {
			t.Errorf("slot %d = %+v, want abandoned", i, results[i])
		}
	}
	want := []string{"start p0", "end p0", "sleep 500ms", "start p1", "end p1", "sleep 500ms"}
	if got := events.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMedia_ImageOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		result  string
		err     error
		wantURL bool
		wantErr string
	}{
		{"success", "cat", "data:image/png;base64,AA==", nil, true, ""},
		{"capability gap", "cat", "", nil, false, llm.MsgImageUnsupported},
		{"rate limited", "cat", "", errors.New("Error 429"), false, llm.MsgRateLimited},
		{"empty prompt", "", "data:image/png;base64,AA==", nil, false, llm.MsgMediaFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{
				events: &eventLog{},
				image: func(ctx context.Context, prompt string) (string, error) {
					return tt.result, tt.err
				},
			}
			policy := llm.DefaultRetryPolicy()
			policy.Sleep = (&eventLog{}).sleep
			m := NewMedia(policy, 0, nil)

			url, errMsg := m.Image(context.Background(), p, tt.prompt)
			if (url != nil) != tt.wantURL {
				t.Errorf("url = %v, want present=%v", url, tt.wantURL)
			}
			if url != nil && errMsg != nil {
				t.Error("url and error both set")
			}
			if tt.wantErr != "" && (errMsg == nil || *errMsg != tt.wantErr) {
				t.Errorf("error = %v, want %q", errMsg, tt.wantErr)
			}
		})
	}
}

func TestAnalyzer_RetriesParseFailures(t *testing.T) {
	calls := 0
	p := &fakeProvider{
		analyze: func(ctx context.Context, prompt string) (string, error) {
			calls++
			if calls == 1 {
				return `{"word": "echo"}`, nil
			}
			return "```json\n" + analysisJSON(wordOf(prompt), 3) + "\n```", nil
		},
	}
	policy := llm.DefaultRetryPolicy()
	policy.Sleep = (&eventLog{}).sleep
	a := NewAnalyzer(policy)

	got, err := a.AnalyzeWord(context.Background(), p, " echo ")
	if err != nil {
		t.Fatalf("AnalyzeWord: %v", err)
	}
	if got.Word != "echo" || got.SceneCount() != 3 || got.VisualPrompt != "echo-0" {
		t.Errorf("analysis = %+v", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestAnalyzer_WrapsFailures(t *testing.T) {
	providerErr := errors.New("API returned unexpected status code: 401: invalid api key")
	p := &fakeProvider{
		analyze: func(ctx context.Context, prompt string) (string, error) { return "", providerErr },
	}
	policy := llm.DefaultRetryPolicy()
	policy.MaxRetries = 0
	a := NewAnalyzer(policy)

	_, err := a.AnalyzeWord(context.Background(), p, "echo")
	var ae *llm.AnalysisError
	if !errors.As(err, &ae) || ae.Word != "echo" || !errors.Is(err, providerErr) {
		t.Errorf("err = %v, want AnalysisError wrapping the provider error", err)
	}

	if _, err := a.AnalyzeWord(context.Background(), p, ""); !errors.Is(err, llm.ErrEmptyWord) {
		t.Errorf("empty word err = %v", err)
	}
}
