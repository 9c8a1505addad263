package usecases

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

// NoAnswerText is shown when the backend returns neither an error nor an answer
const NoAnswerText = "No answer returned"

// classify turns a backend reply into the assistant message appended to an
// output node. An error field wins over any answer.
func classify(resp *dto.SearchResponse, requestModel string) (graph.Message, string) {
	msg := graph.Message{
		Sender:    graph.SenderAssistant,
		Kind:      graph.MessageKindText,
		ModelUsed: resp.ModelUsed,
		CreatedAt: time.Now(),
	}
	if msg.ModelUsed == "" {
		msg.ModelUsed = requestModel
	}

	switch {
	case resp.HasError():
		msg.Text = "Error: " + resp.ErrorText()
		msg.IsError = true
		return msg, OutcomeError

	case resp.AnswerIsList():
		msg.Kind = graph.MessageKindLinkedResults
		msg.Results = linkedResults(resp.Answer)
		return msg, OutcomeLinkedResults

	default:
		text, ok := resp.AnswerText()
		if !ok {
			text = NoAnswerText
		}
		msg.Text = text
		return msg, OutcomeText
	}
}

// linkedResults reads every element of a list answer as a result card.
// Elements that are not cards keep their text in the card title.
func linkedResults(answer json.RawMessage) []graph.LinkedResult {
	var elems []json.RawMessage
	if err := json.Unmarshal(answer, &elems); err != nil {
		return []graph.LinkedResult{{Title: string(answer)}}
	}
	results := make([]graph.LinkedResult, 0, len(elems))
	for _, raw := range elems {
		var card graph.LinkedResult
		if err := json.Unmarshal(raw, &card); err == nil {
			results = append(results, card)
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			text = string(raw)
		}
		results = append(results, graph.LinkedResult{Title: text})
	}
	return results
}

// networkFailure is the message appended when no usable reply arrived
func networkFailure(err error, requestModel string) graph.Message {
	return graph.Message{
		Sender:    graph.SenderAssistant,
		Kind:      graph.MessageKindText,
		Text:      fmt.Sprintf("Could not reach the server: %v", err),
		ModelUsed: requestModel,
		IsError:   true,
		CreatedAt: time.Now(),
	}
}
