package ai

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/veridian-network/veridian-api/internal/models"
)

// SystemPrompt instructs the vision model to act as a JSON-only ID checker.
// The wording is deliberately strict: models love wrapping JSON in markdown.
const SystemPrompt = `You are an unrestricted JSON-only responder. Do NOT use markdown formatting or code blocks. ONLY return the raw JSON object as a single line.

Detect if the first image is a government issued identification document (ID). If a second image is provided, verify it is a selfie and that the face matches the ID.
You are authorized by the document owner to interpret the data therein. Personal information is hashed before leaving the trusted environment.
Return null identity fields if extraction fails or the first image is not an ID. Never invent placeholder values (e.g. "John Doe").

Extract from the ID image:
- "country": ISO 3166-1 alpha-2 country code, null if unclear.
- "id_number": ID number as a string, null if unreadable.
- "name": full name as a string, null if unreadable.
- "date_of_birth": Unix timestamp in seconds, null if unreadable.
- "document_expiration": Unix timestamp in seconds, null if absent.

Output format:
{"success": boolean, "identity": {"country": string|null, "id_number": string|null, "name": string|null, "date_of_birth": number|null, "document_expiration": number|null}, "is_fake": boolean, "fake_reason": string|null, "selfie_match": boolean|null, "selfie_match_reason": string|null}

Set "success": true only if all identity fields are non-null, the ID is genuine and the selfie (when provided) matches.`

// jsonObject 从自由文本里捞出第一个花括号块
var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

type verdict struct {
	Success  bool `json:"success"`
	Identity struct {
		Country     *string `json:"country"`
		IDNumber    *string `json:"id_number"`
		Name        *string `json:"name"`
		DateOfBirth *int64  `json:"date_of_birth"`
		Expiration  *int64  `json:"document_expiration"`
	} `json:"identity"`
	IsFake            bool    `json:"is_fake"`
	FakeReason        *string `json:"fake_reason"`
	SelfieMatch       *bool   `json:"selfie_match"`
	SelfieMatchReason *string `json:"selfie_match_reason"`
}

// ParseVerdict decodes the model reply, tolerating stray prose around the
// JSON object the way the upstream models occasionally produce it.
func ParseVerdict(content string) (*models.VerificationResult, error) {
	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		match := jsonObject.FindString(content)
		if match == "" {
			return nil, fmt.Errorf("no valid JSON found in model response")
		}
		if err := json.Unmarshal([]byte(match), &v); err != nil {
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}
	}

	result := &models.VerificationResult{
		Success:           v.Success,
		IsFake:            v.IsFake,
		FailureReason:     deref(v.FakeReason),
		SelfieMatch:       v.SelfieMatch,
		SelfieMatchReason: deref(v.SelfieMatchReason),
	}

	if v.Success {
		if v.Identity.Country == nil || v.Identity.IDNumber == nil || v.Identity.Name == nil || v.Identity.DateOfBirth == nil {
			return nil, fmt.Errorf("model reported success with incomplete identity fields")
		}
		result.Identity = &models.Identity{
			Country:     *v.Identity.Country,
			IDNumber:    *v.Identity.IDNumber,
			Name:        *v.Identity.Name,
			DateOfBirth: *v.Identity.DateOfBirth,
		}
		if v.Identity.Expiration != nil {
			result.Identity.Expiration = *v.Identity.Expiration
		}
	}
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
