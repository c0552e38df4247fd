package assistant

// Task names accepted by AnalyzeDocument.
const (
	TaskSummarize  = "summarize"
	TaskFlashcards = "flashcards"
	TaskQuiz       = "quiz"
	TaskExplain    = "explain"
	TaskOCR        = "ocr"
)

const chatSystemPrompt = "You are StudyFlow Assistant, a professional AI tutor. " +
	"Use Markdown for all formatting. Be concise, organized, and helpful. " +
	"If a user asks for flashcards, format them as a JSON block wrapped in ```json tags."

// taskPrompts maps a document task to the instruction sent alongside the
// document content. The flashcards instruction mandates the exact payload
// shape; consumers parse the returned JSON array of front/back pairs.
var taskPrompts = map[string]string{
	TaskSummarize: "Summarize this document with bold headers and bullet points using Markdown. " +
		"Make it readable for a student.",
	TaskFlashcards: "Extract key concepts and return them ONLY as a JSON array of objects. " +
		"Each object MUST have 'front' and 'back' properties. " +
		"Wrap the array in a markdown code block labeled as json: " +
		"```json [ { \"front\": \"...\", \"back\": \"...\" } ] ```. " +
		"Do not add any other text.",
	TaskQuiz: "Create a 5-question multiple choice quiz using Markdown. " +
		"Label questions with numbers and options with a, b, c, d. " +
		"Put the answer key at the bottom.",
	TaskExplain: "Explain the main concepts of this document simply using analogies and Markdown formatting.",
	TaskOCR:     "Perform high-accuracy OCR. Output only the extracted plain text.",
}
