package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

func TestCharLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"営業会議の内容を100文字以内で教えて", 100, true},
		{"５０字以内で要約して", 50, true},
		{"30文字以下でお願いします", 30, true},
		{"Summarize within 80 characters", 80, true},
		{"Answer in 40 characters or less.", 40, true},
		{"no more than 25 chars please", 25, true},
		{"within 100 characters, or within 60 characters", 60, true},
		{"1,500文字以内で要約して", 1500, true},
		{"１，２００字以内で", 1200, true},
		{"Summarise within 1,200 characters", 1200, true},
		{"at most 2,000 chars", 2000, true},
		{"1500文字以内", 1500, true},
		{"What did the sales discussion cover?", 0, false},
		{"Sprint 5 planning", 0, false},
	}
	for _, tt := range tests {
		got, ok := CharLimit(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CharLimit(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestApplyCharLimit(t *testing.T) {
	answer := "- The Q1 review covered lead generation.\n- It also covered pricing.\n\nOverall a productive meeting."
	tests := []struct {
		n    int
		want string
	}{
		{100, "The Q1 review covered lead generation."},
		{20, "The Q1 review covere"},
	}
	for _, tt := range tests {
		if got := ApplyCharLimit(answer, tt.n); got != tt.want {
			t.Errorf("ApplyCharLimit(n=%d) = %q, want %q", tt.n, got, tt.want)
		}
	}

	ja := "・第1四半期のレビューではリード獲得について議論した。\n・価格改定も話題になった。"
	if got := ApplyCharLimit(ja, 100); got != "第1四半期のレビューではリード獲得について議論した。" {
		t.Errorf("Japanese = %q", got)
	}
	if got := ApplyCharLimit("version 3.5 was released today", 100); got != "version 3.5 was released today" {
		t.Errorf("decimal point treated as sentence end: %q", got)
	}
}

func TestCharLimitCompliance(t *testing.T) {
	long := strings.Repeat("The quarterly review spent most of its time on lead generation and pipeline health. ", 10)
	bulleted := "1. " + strings.Repeat("営業", 80) + "\n2. " + strings.Repeat("開発", 80)

	for _, body := range []string{long, bulleted} {
		for _, n := range []int{10, 15, 20, 50, 100, 200} {
			prov := newScriptedProvider()
			prov.answer = func(llm.CompletionRequest) (string, error) { return body, nil }
			s := NewSynthesizer(prov, ModelSettings{}, "English", nil)

			var streamed []string
			got, err := s.Synthesize(context.Background(), Input{
				Chunks:    []vectordb.SearchResult{{Chunk: corpus.Chunk{Topic: "Sales", Text: "context"}}},
				Utterance: fmt.Sprintf("What was discussed? Answer within %d characters.", n),
			}, func(d string) error {
				streamed = append(streamed, d)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if c := utf8.RuneCountInString(got); c > n {
				t.Errorf("n=%d: answer has %d runes: %q", n, c, got)
			}
			if strings.Contains(got, "\n") {
				t.Errorf("n=%d: answer spans lines", n)
			}
			if len(streamed) != 1 || streamed[0] != got {
				t.Errorf("n=%d: limited answer should be emitted once, got %v", n, streamed)
			}
		}
	}
}
