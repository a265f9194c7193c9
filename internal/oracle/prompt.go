package oracle

import (
	"fmt"
	"strings"

	"github.com/abhisek/socratic/internal/assessment"
)

var levelNames = [...]string{
	1: "Recognition: yes/no questions, recognizing terms",
	2: "Reproduction: explaining in their own words",
	3: "Application: applying to a new situation",
	4: "Analysis: critically evaluating, comparing",
	5: "Synthesis: creatively combining concepts",
}

const systemPreamble = `You are a friendly, curious teacher holding a Socratic assessment conversation with a student.

Goals:
- Assess the student's understanding of the study material below.
- Adapt the level of your questions to the student's answers.
- Keep the conversation interactive: make the student think.
- Collect evidence of understanding per concept.`

const conversationRules = `Rules:
- Ask one question at a time.
- ALWAYS end your message with a clear question or a specific task for the student.
- Keep the initiative; do not wait for the student to ask for the next question.
- Ask your next question at the current level.
- When engagement is dropping, offer support or a hint.
- Never give the answer away.
- Reply in the language of the study material.`

const structuredOutput = `Output:
Put your message to the student in "reply". In "assessment", judge the student's LAST answer:
the level of the question it answered, its quality, the concept ids it demonstrated or struggled
with, the student's engagement, the level you would ask next, and the conversation phase.
Use only concept ids from the knowledge base.`

const fencedOutput = "Output:\n" +
	"Every response has two parts:\n" +
	"1. Your reply to the student, in plain text.\n" +
	"2. A JSON block with the assessment of the student's last answer, in a ```json code block:\n" +
	"```json\n" +
	"{\n" +
	`  "questionLevel": 1-5,` + "\n" +
	`  "answerQuality": "correct|partial|incorrect|unclear",` + "\n" +
	`  "conceptsDemonstrated": ["concept ids"],` + "\n" +
	`  "conceptsStruggling": ["concept ids"],` + "\n" +
	`  "engagementSignal": "high|medium|low|declining",` + "\n" +
	`  "suggestedNextLevel": 1-5,` + "\n" +
	`  "phase": "calibration|exploration|integration|closing"` + "\n" +
	"}\n" +
	"```"

func buildSystemPrompt(title string, catalog assessment.Catalog, level int, engagement assessment.Engagement, structured bool) string {
	var b strings.Builder

	b.WriteString(systemPreamble)
	b.WriteString("\n\nLevels:\n")
	for n := assessment.MinLevel; n <= assessment.MaxLevel; n++ {
		fmt.Fprintf(&b, "%d. %s\n", n, levelNames[n])
	}

	fmt.Fprintf(&b, "\nCurrent level: %d\n", level)
	if engagement != "" {
		fmt.Fprintf(&b, "Engagement: %s\n", engagement)
	}
	if title != "" {
		fmt.Fprintf(&b, "Topic: %s\n", title)
	}

	b.WriteString("\nKnowledge base:\n")
	for _, c := range catalog {
		fmt.Fprintf(&b, "- [%s] %s", c.ID, c.Name)
		if c.Complexity > 0 {
			fmt.Fprintf(&b, " (complexity %d)", c.Complexity)
		}
		if c.Definition != "" {
			fmt.Fprintf(&b, ": %s", c.Definition)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(conversationRules)
	b.WriteString("\n\n")
	if structured {
		b.WriteString(structuredOutput)
	} else {
		b.WriteString(fencedOutput)
	}
	return b.String()
}

func buildOpeningMessage(level int) string {
	return fmt.Sprintf("Start the assessment with a short welcome and the first question at level %d.", level)
}
