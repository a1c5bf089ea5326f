package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// messageSchema is the wire contract for job messages. Unknown upstream
// fields are tolerated; missing or malformed required fields are not.
const messageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["jobId", "tenantId", "userId", "imageKey", "uploadMetadata", "processingOptions"],
  "properties": {
    "jobId": {"type": "string", "minLength": 36, "maxLength": 36},
    "tenantId": {"type": "string", "minLength": 36, "maxLength": 36},
    "userId": {"type": "string", "minLength": 36, "maxLength": 36},
    "imageKey": {"type": "string", "minLength": 1},
    "uploadMetadata": {
      "type": "object",
      "required": ["fileName", "fileSize", "contentType"],
      "properties": {
        "fileName": {"type": "string", "minLength": 1},
        "fileSize": {"type": "integer", "minimum": 1},
        "contentType": {"type": "string", "minLength": 1},
        "checksum": {"type": "string"}
      }
    },
    "processingOptions": {
      "type": "object",
      "properties": {
        "ocrModel": {"type": "string"},
        "parsingStrategy": {"type": "string", "enum": ["AGGRESSIVE", "CONSERVATIVE", "ADAPTIVE"]},
        "productMatchingThreshold": {"type": "number", "minimum": 0, "maximum": 1},
        "requireManualReview": {"type": "boolean"}
      }
    },
    "retryCount": {"type": "integer", "minimum": 0}
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("job-message.json", strings.NewReader(messageSchema)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("job-message.json")
	})
	return compiledSchema, compileErr
}

// DecodeMessage validates a raw payload against the message schema and
// decodes it. Validation runs first so decode errors can't mask contract
// violations.
func DecodeMessage(payload []byte) (JobMessage, error) {
	s, err := schema()
	if err != nil {
		return JobMessage{}, err
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return JobMessage{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return JobMessage{}, fmt.Errorf("message does not match schema: %w", err)
	}

	var msg JobMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return JobMessage{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
