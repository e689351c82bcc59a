package consultation

import (
	"encoding/json"
	"fmt"
	"strings"
)

const specialistGuide = `1. Ophthalmologist - General eye doctor for medical treatment and diagnosis
2. Optometrist - Vision correction and primary eye care
3. Optician - Eyewear fitting and dispensing
4. Ocular Surgeon - Surgical procedures for serious eye conditions`

func formatTurns(history []Turn) string {
	var b strings.Builder
	for i, t := range history {
		if t.Answer == "" {
			continue
		}
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", i+1, t.Question, i+1, t.Answer)
	}
	return b.String()
}

func formatDistribution(c ConfidenceScore) string {
	var b strings.Builder
	for _, s := range Specialists {
		fmt.Fprintf(&b, "  - %s: %.2f\n", s, c.PerSpecialist[s])
	}
	return b.String()
}

// transcriptText is the flat text the keyword pass and the knowledge search run over.
func transcriptText(condition string, history []Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Initial condition: %s\n\n", condition)
	if len(history) > 0 {
		b.WriteString("Conversation:\n")
		b.WriteString(formatTurns(history))
	}
	return b.String()
}

func confidencePrompt(condition string, history []Turn) string {
	var b strings.Builder
	b.WriteString("As a medical AI assistant, analyze the following patient information and provide confidence scores for eye specialist recommendations.\n\n")
	fmt.Fprintf(&b, "Initial condition: %s\n\n", condition)
	if len(history) > 0 {
		b.WriteString("Conversation history:\n")
		b.WriteString(formatTurns(history))
	}
	b.WriteString("Provide confidence scores for each specialist type:\n")
	b.WriteString(specialistGuide)
	b.WriteString(`

Consider severity and complexity of symptoms, need for medical vs. corrective
intervention, urgency, and the implications of specific symptoms.

Return ONLY a JSON object in this exact format:
{
  "overall_confidence": 0.75,
  "doctor_confidence": {
    "Ophthalmologist": 0.45,
    "Optometrist": 0.35,
    "Optician": 0.15,
    "Ocular Surgeon": 0.05
  },
  "reasoning": "Brief explanation of the confidence assessment"
}

Overall confidence must be between 0.0 and 1.0 and doctor confidence scores
should sum to approximately 1.0. Do not use markdown.`)
	return b.String()
}

func questionPrompt(condition string, history []Turn, confidence ConfidenceScore, leading Specialist) string {
	var b strings.Builder
	b.WriteString("You are a medical AI assistant helping to gather information for an eye care consultation.\n\n")
	b.WriteString("Generate ONE highly relevant follow-up question that will increase diagnostic confidence, differentiate between eye care specialists, and gather the most important missing information.\n\n")
	fmt.Fprintf(&b, "Initial condition: %s\n\n", condition)
	if answered := formatTurns(history); answered != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(answered)
	}
	fmt.Fprintf(&b, "Current leading doctor recommendation: %s\n", leading)
	fmt.Fprintf(&b, "Current overall confidence: %.2f\n", confidence.Overall)
	b.WriteString("Doctor confidence scores:\n")
	b.WriteString(formatDistribution(confidence))
	b.WriteString(`
The question must be specific, have 3-4 multiple choice options plus "Other",
and must not repeat a question already asked.

Return ONLY a JSON object in this exact format:
{
  "question": "Your specific question here?",
  "options": [
    {"text": "Option 1", "is_other": false},
    {"text": "Option 2", "is_other": false},
    {"text": "Option 3", "is_other": false},
    {"text": "Other", "is_other": true}
  ]
}`)
	return b.String()
}

func questionListPrompt(condition string, n int) string {
	var b strings.Builder
	b.WriteString("You are an ophthalmology assistant preparing a short intake questionnaire.\n\n")
	fmt.Fprintf(&b, "The patient reported: %q\n\n", condition)
	fmt.Fprintf(&b, "Generate EXACTLY %d follow-up questions in simple, layman-friendly language that help decide between these specialists:\n", n)
	b.WriteString(specialistGuide)
	b.WriteString(`

Cover different aspects: duration and onset, severity and impact on daily life,
associated symptoms (pain, discharge, vision changes) and previous eye problems or
treatments. Tailor each question to the reported condition.

Each question has 3 specific options plus one "Other" option. Use plain text only,
no markdown.

Return ONLY a JSON object in this exact format:
{
  "questions": [
    {
      "question": "How long have you been experiencing these symptoms?",
      "options": [
        {"text": "Less than a week", "is_other": false},
        {"text": "1-4 weeks", "is_other": false},
        {"text": "More than a month", "is_other": false},
        {"text": "Other", "is_other": true}
      ]
    }
  ]
}`)
	return b.String()
}

func satisfactionPrompt(s *Session) string {
	var b strings.Builder
	b.WriteString("You are a medical AI assistant evaluating whether sufficient information has been gathered to make a confident eye care specialist recommendation.\n\n")
	fmt.Fprintf(&b, "Initial Condition: %s\n\n", s.InitialCondition)
	fmt.Fprintf(&b, "Overall Confidence: %.2f\nLeading Doctor: %s\nDoctor Confidence Distribution:\n", s.Confidence.Overall, s.Leading)
	b.WriteString(formatDistribution(s.Confidence))
	fmt.Fprintf(&b, "\nConversation History (%d exchanges):\n", len(s.History))
	b.WriteString(formatTurns(s.History))
	b.WriteString(`
Evaluate information completeness (symptoms, severity, timeline, impact,
history), diagnostic clarity (can specialists be distinguished, is urgency
understood), and whether further questions would reach diminishing returns.
Do not over-question the patient.

Return ONLY a JSON object in this format:
{
  "is_satisfied": true,
  "satisfaction_score": 0.85,
  "reasoning": "Explanation of the assessment",
  "information_gaps": ["Any significant information still missing"]
}`)
	return b.String()
}

func summaryPrompt(s *Session, passages []Passage) string {
	var b strings.Builder
	b.WriteString("Generate a concise but comprehensive medical summary for an eye care specialist based on this patient consultation.\n\n")
	fmt.Fprintf(&b, "Initial Condition: %s\n\nPatient Responses:\n", s.InitialCondition)
	b.WriteString(formatTurns(s.History))
	fmt.Fprintf(&b, "Overall Confidence: %.2f\nRecommended Specialist: %s\n", s.Confidence.Overall, s.Leading)
	if len(passages) > 0 {
		b.WriteString("\nRelevant Medical Context:\n")
		for _, p := range passages {
			b.WriteString(p.Content)
			b.WriteString("\n\n")
		}
	}
	b.WriteString(`
Include the chief complaint, key clinical details, timeline and progression,
severity and impact, relevant negatives, and the reasoning for the specialist
recommendation. Format it as a professional referral note of at most three
paragraphs in plain text.`)
	return b.String()
}

func recommendationPrompt(s *Session) string {
	dist, _ := json.MarshalIndent(s.Confidence.PerSpecialist, "", "  ")
	var b strings.Builder
	b.WriteString("Based on this complete medical consultation session, provide a final specialist recommendation.\n\n")
	fmt.Fprintf(&b, "Initial Condition: %s\n\nConversation:\n", s.InitialCondition)
	b.WriteString(formatTurns(s.History))
	fmt.Fprintf(&b, "Final Confidence Scores:\n%s\nOverall Confidence: %.2f\nCurrent Leading Recommendation: %s\n\n", dist, s.Confidence.Overall, s.Leading)
	b.WriteString("You MUST choose EXACTLY ONE of these specialists:\n")
	b.WriteString(specialistGuide)
	b.WriteString(`

Return ONLY a JSON object:
{
  "doctor_type": "Exact specialist name from the list",
  "reasoning": "Why this specialist fits the patient's situation, including urgency"
}`)
	return b.String()
}
