package ollama

import "fmt"

// The assistant answers in French over internal company documents. The
// prompt wording, the refusal sentence and the user-facing failure
// messages are kept verbatim from the deployed assistant: answers must
// stay comparable across reimplementations.
const (
	// TimeoutMessage is returned when generation exceeds its timeout.
	TimeoutMessage = "Délai d'attente dépassé. Veuillez réessayer."

	// EmptyResponseMessage is returned when the backend answers without a
	// completion.
	EmptyResponseMessage = "Erreur lors de la génération"

	// RefusalSentence is what the model is instructed to answer when the
	// context does not contain the information.
	RefusalSentence = "Je ne trouve pas cette information dans les documents internes disponibles."
)

// generationErrorMessage converts a non-timeout failure into the
// user-facing message embedding the cause.
func generationErrorMessage(err error) string {
	return fmt.Sprintf("Erreur: %v", err)
}

const groundedPromptFormat = `Tu es un assistant IA interne d'entreprise. Réponds en français en utilisant uniquement les informations des documents fournis.

DOCUMENTS INTERNES:
%s

QUESTION: %s

INSTRUCTIONS:
- Réponds uniquement en français
- Utilise uniquement les informations des documents ci-dessus
- Donne une réponse complète et détaillée
- Si l'information n'est pas dans les documents, réponds: "%s"
- Sois précis et cite les sources quand c'est possible
- Réponds de manière professionnelle et utile
- Ne mentionne JAMAIS les noms des personnes trouvés dans les documents dans ta réponse%s

RÉPONSE:`

const plainPromptFormat = `Tu es un assistant IA interne d'entreprise. Réponds en français.%s

QUESTION: %s

RÉPONSE:`

// BuildPrompt assembles the prompt sent to the model. With grounding
// present the prompt constrains the answer to the supplied documents and
// carries the refusal instruction; without it only the role statement and
// question remain. A non-empty asker identity is spelled out so the model
// does not confuse the person asking with names found in the documents.
func BuildPrompt(question, grounding, asker string) string {
	if grounding != "" {
		askerNote := ""
		if asker != "" {
			askerNote = fmt.Sprintf("\n- L'utilisateur qui pose la question est: %s. Ne confonds PAS ce nom avec les noms mentionnés dans les documents.", asker)
		}
		return fmt.Sprintf(groundedPromptFormat, grounding, question, RefusalSentence, askerNote)
	}

	askerNote := ""
	if asker != "" {
		askerNote = fmt.Sprintf("\n\nL'utilisateur qui pose la question est: %s.", asker)
	}
	return fmt.Sprintf(plainPromptFormat, askerNote, question)
}
