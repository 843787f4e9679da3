package genai

import (
	"fmt"

	sdk "google.golang.org/genai"

	"mockupstudio/internal/domain"
)

// Purpose selects the wording of user-facing failure messages. Classification
// itself is identical for every purpose.
type Purpose string

const (
	PurposeMockup Purpose = "mockup"
	PurposeRepair Purpose = "repair"
)

const (
	finishSafety     = "SAFETY"
	finishImageOther = "IMAGE_OTHER"
	finishOther      = "OTHER"
)

type failureMessages struct {
	promptBlocked func(reason string) string
	safetyFinish  func(reason string) string
	noImage       func(reason string) string
	unexpected    func(reason string) string
	fallback      string
}

var mockupMessages = failureMessages{
	promptBlocked: func(reason string) string {
		return fmt.Sprintf("Request blocked by the API's safety filter (Reason: %s). This can be triggered by certain content, such as realistic depictions of people. Please try a different image.", reason)
	},
	safetyFinish: func(reason string) string {
		return fmt.Sprintf("Image generation was blocked for safety reasons (finish reason: %s). This can be triggered by certain content, such as realistic depictions of people. Please try a different image.", reason)
	},
	noImage: func(reason string) string {
		return fmt.Sprintf("The AI couldn't create a mockup for this combination (finish reason: %s). Please try a different style or a different image.", reason)
	},
	unexpected: func(reason string) string {
		return fmt.Sprintf("Image generation failed with an unexpected reason: %s.", reason)
	},
	fallback: "No image data found in API response. The AI may have failed to generate an image.",
}

var repairMessages = failureMessages{
	promptBlocked: func(reason string) string {
		return fmt.Sprintf("The AI's safety filter also blocked the attempt to edit the image (Reason: %s). Please try a different original image.", reason)
	},
	safetyFinish: func(reason string) string {
		return fmt.Sprintf("The AI's safety filter also blocked the attempt to edit the image (finish reason: %s). Please try a different original image.", reason)
	},
	noImage: func(reason string) string {
		return fmt.Sprintf("The AI failed to edit the image (finish reason: %s). Please try again.", reason)
	},
	unexpected: func(reason string) string {
		return fmt.Sprintf("The AI failed to edit the image (finish reason: %s). Please try again.", reason)
	},
	fallback: "The AI failed to edit the image. Please try again.",
}

func messagesFor(p Purpose) failureMessages {
	if p == PurposeRepair {
		return repairMessages
	}
	return mockupMessages
}

// Classify turns a model response into either an image or a *domain.Failure.
// Checks run in a fixed order: inline image, prompt block reason, first
// candidate finish reason, then the no-image fallback. A nil response falls
// through to the fallback.
func Classify(resp *sdk.GenerateContentResponse, purpose Purpose) (domain.Image, error) {
	if img, ok := firstInlineImage(resp); ok {
		return img, nil
	}

	msgs := messagesFor(purpose)

	if reason := blockReason(resp); reason != "" {
		return domain.Image{}, &domain.Failure{
			Kind:    domain.FailureSafetyBlocked,
			Reason:  reason,
			Message: msgs.promptBlocked(reason),
		}
	}

	if reason := firstFinishReason(resp); reason != "" {
		switch reason {
		case finishSafety:
			return domain.Image{}, &domain.Failure{
				Kind:    domain.FailureSafetyBlocked,
				Reason:  reason,
				Message: msgs.safetyFinish(reason),
			}
		case finishImageOther, finishOther:
			return domain.Image{}, &domain.Failure{
				Kind:    domain.FailureNoImageProduced,
				Reason:  reason,
				Message: msgs.noImage(reason),
			}
		default:
			return domain.Image{}, &domain.Failure{
				Kind:    domain.FailureUnexpectedFinish,
				Reason:  reason,
				Message: msgs.unexpected(reason),
			}
		}
	}

	return domain.Image{}, &domain.Failure{
		Kind:    domain.FailureUnknown,
		Message: msgs.fallback,
	}
}

// firstInlineImage scans every candidate in order and returns the first part
// carrying non-empty inline data.
func firstInlineImage(resp *sdk.GenerateContentResponse) (domain.Image, bool) {
	if resp == nil {
		return domain.Image{}, false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return domain.Image{
				Data:     part.InlineData.Data,
				MIMEType: part.InlineData.MIMEType,
			}, true
		}
	}
	return domain.Image{}, false
}

func blockReason(resp *sdk.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	return string(resp.PromptFeedback.BlockReason)
}

func firstFinishReason(resp *sdk.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

func transportFailure(purpose Purpose, err error) *domain.Failure {
	msg := err.Error()
	if purpose == PurposeRepair {
		msg = "An error occurred while trying to repair the image: " + msg
	}
	return &domain.Failure{
		Kind:    domain.FailureUnknown,
		Message: msg,
		Err:     err,
	}
}
