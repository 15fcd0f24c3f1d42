package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listTopicsTool defines the list_topics MCP tool.
var listTopicsTool = mcp.NewTool("list_topics",
	mcp.WithDescription("List the meeting-note topics that have a search index, with document and chunk counts."),
)

// askTool defines the ask MCP tool.
var askTool = mcp.NewTool("ask",
	mcp.WithDescription("Ask a question answered from all meeting notes. Follow-up questions may refer to earlier answers."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The question, in natural language. A limit such as \"within 100 characters\" or \"100文字以内\" is honoured."),
	),
)

// askTopicTool defines the ask_topic MCP tool. The topic parameter is
// restricted to the indexed topics when they are known.
func askTopicTool(topics []string) mcp.Tool {
	topicOpts := []mcp.PropertyOption{
		mcp.Required(),
		mcp.Description("Topic folder to answer from"),
	}
	if len(topics) > 0 {
		topicOpts = append(topicOpts, mcp.Enum(topics...))
	}
	return mcp.NewTool("ask_topic",
		mcp.WithDescription("Ask a question answered only from the meeting notes of one topic."),
		mcp.WithString("topic", topicOpts...),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question, in natural language"),
		),
	)
}

// searchNotesTool defines the search_notes MCP tool.
var searchNotesTool = mcp.NewTool("search_notes",
	mcp.WithDescription("Search the meeting notes semantically without generating an answer. Returns the most similar passages."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithString("topic",
		mcp.Description("Restrict the search to one topic folder"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)

// resetHistoryTool defines the reset_history MCP tool.
var resetHistoryTool = mcp.NewTool("reset_history",
	mcp.WithDescription("Forget the conversation so far. Later questions are answered without earlier context."),
)
