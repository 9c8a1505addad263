package graph

import (
	"fmt"
	"sort"
)

// Supported model identifiers
const (
	ModelLlama3  = "llama3"
	ModelGemini  = "gemini"
	ModelSerpAPI = "serpapi"

	// DefaultModel is used whenever no model has been chosen
	DefaultModel = ModelLlama3
)

// SupportedModels lists the model identifiers a model-selector may hold
var SupportedModels = []string{ModelLlama3, ModelGemini, ModelSerpAPI}

// IsSupportedModel reports whether model is one of SupportedModels
func IsSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// UploadStatus is the knowledge-base upload state machine
type UploadStatus string

const (
	UploadIdle      UploadStatus = "idle"
	UploadUploading UploadStatus = "uploading"
	UploadUploaded  UploadStatus = "uploaded"
	UploadError     UploadStatus = "error"
)

// Kind is the capability contract of one node variant.
// PRINCIPLES:
// - OCP: a new node variant is a new Kind, not a new switch arm
// - ISP: only what the canvas needs to create, patch and check a node
type Kind interface {
	// Type is the tag stored on the node
	Type() NodeType
	// Label is the human-readable palette name
	Label() string
	// Unique reports whether at most one node of this kind may exist
	Unique() bool
	// DefaultData is the payload of a freshly created node
	DefaultData() map[string]interface{}
	// Owns reports whether the kind's operations may write field
	Owns(field string) bool
	// Validate checks a full data payload
	Validate(data map[string]interface{}) error
}

type baseKind struct {
	nodeType NodeType
	label    string
	unique   bool
	owned    []string
}

func (k baseKind) Type() NodeType { return k.nodeType }
func (k baseKind) Label() string  { return k.label }
func (k baseKind) Unique() bool   { return k.unique }

func (k baseKind) DefaultData() map[string]interface{} {
	return map[string]interface{}{
		FieldLabel: k.label,
		FieldType:  string(k.nodeType),
	}
}

func (k baseKind) Owns(field string) bool {
	for _, f := range k.owned {
		if f == field {
			return true
		}
	}
	return false
}

func (k baseKind) stringField(data map[string]interface{}, field string) (string, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: field %q must be a string, got %T", k.nodeType, field, v)
	}
	return s, nil
}

type queryKind struct{ baseKind }

func (k queryKind) Validate(data map[string]interface{}) error {
	_, err := k.stringField(data, FieldQuery)
	return err
}

type knowledgeBaseKind struct{ baseKind }

func (k knowledgeBaseKind) DefaultData() map[string]interface{} {
	data := k.baseKind.DefaultData()
	data[FieldStatus] = string(UploadIdle)
	return data
}

func (k knowledgeBaseKind) Validate(data map[string]interface{}) error {
	if _, err := k.stringField(data, FieldDocumentName); err != nil {
		return err
	}
	status, err := k.stringField(data, FieldStatus)
	if err != nil {
		return err
	}
	switch UploadStatus(status) {
	case "", UploadIdle, UploadUploading, UploadUploaded, UploadError:
		return nil
	default:
		return fmt.Errorf("%s: unknown upload status %q", k.nodeType, status)
	}
}

type modelSelectorKind struct{ baseKind }

func (k modelSelectorKind) Validate(data map[string]interface{}) error {
	model, err := k.stringField(data, FieldModel)
	if err != nil {
		return err
	}
	if model != "" && !IsSupportedModel(model) {
		return fmt.Errorf("%s: unsupported model %q", k.nodeType, model)
	}
	return nil
}

type outputKind struct{ baseKind }

func (k outputKind) DefaultData() map[string]interface{} {
	data := k.baseKind.DefaultData()
	data[FieldMessages] = []Message{}
	return data
}

func (k outputKind) Validate(data map[string]interface{}) error {
	msgs, err := decodeMessages(data[FieldMessages])
	if err != nil {
		return fmt.Errorf("%s: %w", k.nodeType, err)
	}
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s: message %d: %w", k.nodeType, i, err)
		}
	}
	return nil
}

var kinds = map[NodeType]Kind{
	NodeTypeQuery: queryKind{baseKind{
		nodeType: NodeTypeQuery, label: "User Query", unique: true,
		owned: []string{FieldQuery},
	}},
	NodeTypeKnowledgeBase: knowledgeBaseKind{baseKind{
		nodeType: NodeTypeKnowledgeBase, label: "Knowledge Base", unique: true,
		owned: []string{FieldDocumentName, FieldStatus},
	}},
	NodeTypeModelSelector: modelSelectorKind{baseKind{
		nodeType: NodeTypeModelSelector, label: "LLM Engine", unique: true,
		owned: []string{FieldModel},
	}},
	NodeTypeOutput: outputKind{baseKind{
		nodeType: NodeTypeOutput, label: "Output", unique: false,
		owned: []string{FieldMessages, FieldModel, FieldDocumentName},
	}},
}

// paletteOrder is the order node kinds are offered to users
var paletteOrder = []NodeType{NodeTypeQuery, NodeTypeKnowledgeBase, NodeTypeModelSelector, NodeTypeOutput}

// LookupKind returns the Kind registered for t
func LookupKind(t NodeType) (Kind, bool) {
	k, ok := kinds[t]
	return k, ok
}

// Kinds returns every registered kind in palette order
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, t := range paletteOrder {
		out = append(out, kinds[t])
	}
	return out
}

// NodeTypes returns every registered node type, sorted
func NodeTypes() []string {
	out := make([]string, 0, len(kinds))
	for t := range kinds {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
