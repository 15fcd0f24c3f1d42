package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ziadkadry99/minutes/internal/rag"
)

// stopSequence ends a generation before the model invents an observation.
const stopSequence = "\nObservation:"

var (
	actionRe  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	finalRe   = regexp.MustCompile(`(?s)Final Answer\s*:[\s]*(.*)`)
	thoughtRe = regexp.MustCompile(`^\s*(?:Thought\s*:)?\s*`)
)

type decision struct {
	thought string
	action  string
	input   string
	final   string
}

// parse reads one model output. When both an action and a final answer
// are present, whichever comes first wins.
func parse(out string) decision {
	var d decision
	am := actionRe.FindStringSubmatchIndex(out)
	fm := finalRe.FindStringSubmatchIndex(out)

	cut := len(out)
	switch {
	case am != nil && (fm == nil || am[0] < fm[0]):
		d.action = strings.TrimSpace(out[am[2]:am[3]])
		input := out[am[4]:am[5]]
		if fm != nil && fm[0] > am[0] {
			input = out[am[4]:fm[0]]
		}
		d.input = strings.Trim(strings.TrimSpace(input), "\"'`")
		cut = am[0]
	case fm != nil:
		d.final = strings.TrimSpace(out[fm[2]:fm[3]])
		cut = fm[0]
	}
	d.thought = strings.TrimSpace(thoughtRe.ReplaceAllString(out[:cut], ""))
	return d
}

func cutAtObservation(s string) string {
	if i := strings.Index(s, stopSequence); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " \n")
}

func toolDescription(lang, topic string) string {
	if rag.IsJapanese(lang) {
		return fmt.Sprintf("%sに関する質問に回答します。%sテーマの議事録のみを参照します。", topic, topic)
	}
	return fmt.Sprintf("Answers questions about %s. Only searches the %s meeting notes.", topic, topic)
}

const systemPromptJA = `次の質問にできる限り正確に答えてください。使えるツールは以下のとおりです。

%s

必ず次の形式で出力してください。

Question: 答えるべき質問
Thought: 何をすべきかを考える
Action: 実行するツール。[%s] のいずれか
Action Input: ツールに渡す質問
Observation: ツールの結果
...(Thought/Action/Action Input/Observation は繰り返してよい)
Thought: 最終的な答えが分かった
Final Answer: 元の質問への最終的な答え

最終的な答えは日本語で書いてください。`

const systemPromptEN = `Answer the following question as best you can. You have access to the following tools:

%s

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Write the final answer in %s.`

func systemPrompt(lang string, tools []Tool) string {
	var desc strings.Builder
	names := make([]string, len(tools))
	for i, t := range tools {
		if i > 0 {
			desc.WriteByte('\n')
		}
		fmt.Fprintf(&desc, "%s: %s", t.Name, t.Description)
		names[i] = t.Name
	}
	if rag.IsJapanese(lang) {
		return fmt.Sprintf(systemPromptJA, desc.String(), strings.Join(names, ", "))
	}
	return fmt.Sprintf(systemPromptEN, desc.String(), strings.Join(names, ", "), lang)
}

func userPrompt(query, scratch string) string {
	return "Question: " + query + "\nThought:" + scratch
}

func finishNow(lang string) string {
	if rag.IsJapanese(lang) {
		return "ツールの利用は終わりです。今すぐ Final Answer を出力してください。"
	}
	return "Your tool calls are complete. You must respond with a Final Answer now."
}

func unknownTool(lang, name string, names []string) string {
	if rag.IsJapanese(lang) {
		return fmt.Sprintf("%s は有効なツールではありません。[%s] のいずれかを使ってください。", name, strings.Join(names, ", "))
	}
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(names, ", "))
}

func formatHint(lang string) string {
	if rag.IsJapanese(lang) {
		return "形式が正しくありません。Action と Action Input を出力するか、Final Answer を出力してください。"
	}
	return "Invalid format. Output an Action and Action Input, or a Final Answer."
}
