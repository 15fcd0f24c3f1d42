package rag

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/minutes/internal/vectordb"
)

// DefaultLanguage is the answer language when none is configured.
const DefaultLanguage = "Japanese"

// IsJapanese reports whether lang selects Japanese output. Empty means
// the default, which is Japanese.
func IsJapanese(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "japanese", "ja", "ja-jp", "日本語":
		return true
	}
	return false
}

const rewritePromptJA = `これまでの会話と最新の入力を読み、会話を知らない人にも意味が通じる独立した検索クエリを一つだけ作成してください。
代名詞や省略は会話の内容で補ってください。文字数などの出力条件が含まれていればそのまま残してください。
クエリ本文のみを出力し、説明や前置きは書かないでください。`

const rewritePromptEN = `Read the conversation so far and the latest input. Write one standalone search query that makes sense without the conversation.
Resolve pronouns and ellipsis from the conversation. Keep any output constraints such as character limits.
Output only the query text, with no explanation.`

// rewritePrompt returns the system instruction for the rewriter.
func rewritePrompt(lang string) string {
	if IsJapanese(lang) {
		return rewritePromptJA
	}
	return rewritePromptEN
}

// cannotAnswer is returned without a model call when retrieval found nothing.
func cannotAnswer(lang string) string {
	if IsJapanese(lang) {
		return "議事録の中に、この質問に答えられる情報が見つかりませんでした。"
	}
	return "I could not find information in the meeting notes to answer this question."
}

const answerPromptJA = `あなたは会議議事録についての質問に答えるアシスタントです。
以下の「コンテキスト」に書かれている内容だけを根拠に回答してください。
コンテキストから答えが分からない場合は、推測せずに分からないと答えてください。

# コンテキスト
%s

# 出力要件
- 日本語で回答する。
- ユーザーが「N文字以内」「N字以内」などと指定した場合は、必ずその文字数以下にする。
- 文字数の指定がある場合は一文で答え、箇条書きや同じ内容の言い換えを含めない。`

const answerPromptEN = `You answer questions about meeting notes.
Base your answer only on the context below.
If the context does not contain the answer, say that you don't know instead of guessing.

# Context
%s

# Output requirements
- Answer in %s.
- If the user asks for a limit such as "within N characters", the answer must not exceed N characters.
- When a limit is given, answer in a single sentence with no bullet points and no restatement.`

// answerPrompt renders the synthesizer system instruction with the
// retrieved chunks as context.
func answerPrompt(lang string, chunks []vectordb.SearchResult) string {
	ctx := formatContext(chunks)
	if IsJapanese(lang) {
		return fmt.Sprintf(answerPromptJA, ctx)
	}
	return fmt.Sprintf(answerPromptEN, ctx, lang)
}

func formatContext(chunks []vectordb.SearchResult) string {
	var sb strings.Builder
	for i, r := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s/%s\n%s", i+1, r.Chunk.Topic, r.Chunk.SourcePath, r.Chunk.Text)
	}
	return sb.String()
}

// questionMessage is the final user message. The raw utterance is always
// included verbatim so formatting constraints survive a paraphrasing
// rewrite.
func questionMessage(utterance, standalone string) string {
	if standalone == "" || standalone == utterance {
		return utterance
	}
	return utterance + "\n\n(検索クエリ / search query: " + standalone + ")"
}
