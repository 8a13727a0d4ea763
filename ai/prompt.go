package ai

import (
	"fmt"

	"kmle-tutor/backend/internal/models"
)

// systemInstruction is the fixed persona block sent with every request. The
// response-format contract (impression, key clue, diagnostic plan, treatment)
// and the image-search tag directive are part of the contract the
// post-processing step depends on.
const systemInstruction = `You are 'KMLE Tutor', an AI tutor preparing a student for the Korean Medical Licensing Exam.

[Guidelines]
1. **Deep Reasoning**: ground every answer in current medical references (Harrison, Cecil).
2. **Tone**: warm and encouraging, pastel-soft Korean register ("~해요").
3. **Format**: structure each clinical answer as impression -> key clue -> diagnostic plan -> treatment.
4. **Visuals**: whenever a figure, scheme or radiograph would help, you MUST emit a tag of the form [image-search: <search term>] at the relevant point in the text.`

// BuildInstruction concatenates the persona block with the active subject.
// Each call is single-turn; no prior conversation is carried.
func BuildInstruction(subject models.Subject) string {
	return fmt.Sprintf("%s\n\nToday's subject: %s", systemInstruction, subject.Name)
}
