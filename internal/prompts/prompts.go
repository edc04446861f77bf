package prompts

// ============================================================================
// Input Prompts
// ============================================================================

// ImageUserPrompt is sent with an image when the step config has no USER_PROMPT.
const ImageUserPrompt = "Describe this image in detail."

// PDFUserPrompt is sent with a PDF file part when the step config has no USER_PROMPT.
const PDFUserPrompt = "Extract all text from this document, preserving its reading order."

// ============================================================================
// Review Prompts
// ============================================================================

// MismatchPlaceholder marks where the review prompt receives the JSON list
// of entities the two NER runs disagreed on.
const MismatchPlaceholder = "{{MISMATCHED_ENTITIES}}"

// MismatchAppendixHeader precedes the mismatch JSON when a review prompt
// has no placeholder.
const MismatchAppendixHeader = "Entities reported by only one of the two extraction runs:"
