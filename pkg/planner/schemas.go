package planner

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Every LLM output is validated against a JSON Schema before it is trusted.
// A response that does not conform is treated the same as a failed call.

var (
	parsedQuerySchema = jsonschema.MustCompileString("parsed_query.json", `{
		"type": "object",
		"required": ["personA", "personB", "isValid"],
		"properties": {
			"personA": {"type": "string"},
			"personB": {"type": "string"},
			"isValid": {"type": "boolean"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 100},
			"reason": {"type": "string"}
		}
	}`)

	researchSchema = jsonschema.MustCompileString("research.json", `{
		"type": "object",
		"required": ["summary"],
		"properties": {
			"summary": {"type": "string"},
			"industries": {"type": "array", "items": {"type": "string"}},
			"eventTypes": {"type": "array", "items": {"type": "string"}},
			"bridgeTypes": {"type": "array", "items": {"type": "string"}},
			"suggestedQueries": {"type": "array", "items": {"type": "string"}},
			"confidence": {"type": "number", "minimum": 0, "maximum": 100},
			"reasoning": {"type": "string"}
		}
	}`)

	suggestionsSchema = jsonschema.MustCompileString("suggestions.json", `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"reasoning": {"type": "string"},
				"connectionToA": {"type": "string"},
				"connectionToB": {"type": "string"},
				"confidence": {"type": "number", "minimum": 0, "maximum": 100}
			}
		}
	}`)

	rankingSchema = jsonschema.MustCompileString("ranking.json", `{
		"type": "object",
		"required": ["rankedCandidates"],
		"properties": {
			"rankedCandidates": {"type": "array", "items": {"type": "string"}},
			"strategy": {"type": "string"},
			"hypothesis": {"type": "string"}
		}
	}`)

	queriesSchema = jsonschema.MustCompileString("queries.json", `{
		"type": "array",
		"items": {"type": "string", "minLength": 1}
	}`)

	selectionSchema = jsonschema.MustCompileString("selection.json", `{
		"type": "object",
		"required": ["nextCandidates"],
		"properties": {
			"nextCandidates": {"type": "array", "items": {"type": "string"}},
			"searchQueries": {"type": "array", "items": {"type": "string"}},
			"narration": {"type": "string"},
			"stop": {"type": "boolean"},
			"reason": {"type": "string"}
		}
	}`)

	imageVerificationSchema = jsonschema.MustCompileString("image_verification.json", `{
		"type": "object",
		"required": ["personAFound", "personBFound", "togetherInScene"],
		"properties": {
			"personAFound": {"type": "boolean"},
			"personAConfidence": {"type": "number", "minimum": 0, "maximum": 100},
			"personBFound": {"type": "boolean"},
			"personBConfidence": {"type": "number", "minimum": 0, "maximum": 100},
			"togetherInScene": {"type": "boolean"},
			"overallConfidence": {"type": "number", "minimum": 0, "maximum": 100},
			"notes": {"type": "string"}
		}
	}`)
)

// decodeValidated extracts the first JSON block from an LLM reply, validates
// it against the schema, and decodes it into out.
func decodeValidated(reply string, schema *jsonschema.Schema, out any) error {
	block := ExtractJSONBlock(reply)
	if block == "" {
		return fmt.Errorf("reply contains no JSON block")
	}

	var generic any
	if err := json.Unmarshal([]byte(block), &generic); err != nil {
		return fmt.Errorf("reply JSON is malformed: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("reply JSON fails schema: %w", err)
	}
	if err := json.Unmarshal([]byte(block), out); err != nil {
		return fmt.Errorf("failed to decode validated JSON: %w", err)
	}
	return nil
}
