package api

import "fmt"

var validRoles = map[string]bool{
	RoleSystem:    true,
	RoleUser:      true,
	RoleAssistant: true,
}

// Validate checks a parsed request for structural problems the JSON layer
// cannot catch: unknown roles, part lists without usable parts, image
// objects without a location. Shape discrimination itself already happened
// in Content.UnmarshalJSON.
func (r *ChatCompletionRequest) Validate() *APIError {
	for i, msg := range r.Messages {
		if msg.Role != "" && !validRoles[msg.Role] {
			return NewValidationError(
				fmt.Sprintf("messages[%d].role", i),
				fmt.Sprintf("unknown role %q", msg.Role),
			)
		}

		switch msg.Content.Shape {
		case ShapeImageObject:
			if msg.Content.Image == nil || msg.Content.Image.URL == "" {
				return NewValidationError(
					fmt.Sprintf("messages[%d].content", i),
					"image content requires a url",
				)
			}
		case ShapeParts:
			if !hasUsablePart(msg.Content.Parts) {
				return NewValidationError(
					fmt.Sprintf("messages[%d].content", i),
					"content part list has no text or image_url part",
				)
			}
		}
	}
	return nil
}

func hasUsablePart(parts []ContentPart) bool {
	for _, p := range parts {
		switch p.Type {
		case "text":
			return true
		case "image_url":
			if p.ImageURL != nil && p.ImageURL.URL != "" {
				return true
			}
		}
	}
	return false
}
