package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// correctionPrompt is appended as a user pseudo-turn after a reply that did
// not match the requested schema.
const correctionPrompt = "Your previous reply could not be parsed. Reply again with only a single JSON object that matches the required format, with no prose or code fences."

// Text sends req and returns the trimmed reply text.
func Text(ctx context.Context, p Provider, req Request) (string, error) {
	req.Schema = nil
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Object sends req, which must carry a Schema, and decodes the reply into
// out. A malformed reply earns exactly one corrective re-prompt; if that
// also fails the *ErrInvalidResponse from the second attempt is returned.
func Object(ctx context.Context, p Provider, req Request, out any) error {
	if req.Schema == nil {
		return fmt.Errorf("llm.Object: request has no schema")
	}

	resp, err := p.Generate(ctx, req)
	if IsInvalid(err) {
		retry := req
		retry.Messages = append(append([]Message(nil), req.Messages...),
			Message{Role: RoleAssistant, Content: RawContent(err)},
			UserMessage(correctionPrompt),
		)
		resp, err = p.Generate(ctx, retry)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Content, out); err != nil {
		return &ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("decode %s: %w", req.Schema.Name, err)}
	}
	return nil
}
