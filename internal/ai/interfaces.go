package ai

import (
	"context"

	"github.com/veridian-network/veridian-api/internal/models"
)

// Verifier defines the opaque AI identity check. Implementations send the
// document image (and optional selfie) to a vision model and return its
// structured verdict; model behavior itself is outside this codebase.
type Verifier interface {
	// VerifyIdentity 入参为去掉 data-URL 前缀的 base64 图片，selfieImage 可为空
	VerifyIdentity(ctx context.Context, idImage, selfieImage string) (*models.VerificationResult, error)
}
