package agent

import "encoding/json"

var OutlineSchema = &Schema{
	Name: "chapter_outline",
	Definition: json.RawMessage(`{
  "type": "object",
  "properties": {
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "summary": {"type": "string"}
        },
        "required": ["title", "summary"],
        "additionalProperties": false
      }
    }
  },
  "required": ["chapters"],
  "additionalProperties": false
}`),
}

var OutcomesSchema = &Schema{
	Name: "chapter_outcomes",
	Definition: json.RawMessage(`{
  "type": "object",
  "properties": {
    "outcomes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "summary": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["title", "summary", "description"],
        "additionalProperties": false
      }
    }
  },
  "required": ["outcomes"],
  "additionalProperties": false
}`),
}

var VerdictSchema = &Schema{
	Name: "acceptance_verdict",
	Definition: json.RawMessage(`{
  "type": "object",
  "properties": {
    "passed": {"type": "boolean"},
    "feedback": {"type": "string"}
  },
  "required": ["passed", "feedback"],
  "additionalProperties": false
}`),
}
