package image

import (
	"fmt"
	"strings"

	"mockupstudio/internal/domain"
)

// BuildMockupPrompt produces the instruction sent alongside the user's design.
// The design's colors, text and geometry must survive untouched; only the
// surrounding scene follows the chosen style.
func BuildMockupPrompt(design domain.DesignType, layout domain.LayoutType, style domain.MockupStyle) string {
	subject := string(design) + " " + string(layout)

	lines := []string{
		"Task: Create a photorealistic mockup.",
		fmt.Sprintf("Input: The user has provided an image of a %s.", subject),
		fmt.Sprintf("Style: Generate the mockup in a %s aesthetic.", style.Descriptor()),
		"",
		"CRITICAL INSTRUCTIONS:",
		"1. **Color Accuracy**: This is the most important rule. The colors of the user's original design must be preserved with 100% accuracy. Do NOT apply any color grading, filters, or tints from the background lighting to the user's design. The colors in the mockup must be an exact match to the colors in the provided image.",
		"2. **Fidelity**: The original design, including all text, logos, and graphics, must be rendered perfectly without any distortion, alteration, or change in aspect ratio.",
		"3. **Realism**: The mockup must look like a real photograph. Perspective, lighting, and shadows may be applied to the product so it sits naturally in the scene, but they must NOT affect the base colors of the user's design itself.",
		fmt.Sprintf("4. **Composition**: Place the %s at a natural, slightly angled view on a clean, uncluttered background that matches the %s style.", subject, style.Descriptor()),
	}
	if layout == domain.LayoutSpread {
		lines = append(lines, fmt.Sprintf("The image is an open two-page %s; show it opened flat so both pages are visible and the spine falls at the center.", design))
	}

	return strings.Join(lines, "\n")
}

// BuildRepairPrompt instructs the model to remove every person from the image
// while leaving the rest of the design intact.
func BuildRepairPrompt() string {
	return strings.Join([]string{
		"You are an expert photo editor.",
		"Your task is to completely remove any and all people from the user-provided image.",
		"Intelligently fill in the background where the people were, ensuring the result looks natural and seamless.",
		"Preserve all other elements of the image, such as text, logos, and background graphics, with perfect fidelity.",
		"Do not alter the aspect ratio or overall composition.",
	}, " ")
}
