// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"bytes"
	"fmt"
	"text/template"
)

// plannerSystem instructs the model to produce the next round's search
// queries as JSON.
const plannerSystem = `You are the query planner of a web research system. Given the research objective and everything learned so far, produce the next round of web search queries.

Respond with a JSON object only: {"queries": [{"text": "...", "rationale": "..."}]}
- 2 to 4 queries, each targeting an open aspect of the objective.
- Do not repeat queries from earlier rounds.
- Do not include any text outside the JSON object.`

var plannerUserTmpl = template.Must(template.New("planner").Parse(`{{.State}}

{{if .Feedback}}Guidance from the previous round: {{.Feedback}}

{{end}}Produce the search queries for round {{.Round}}.`))

// extractionSystem instructs the model to grade a source and quote it
// verbatim.
const extractionSystem = `You are the citation extractor of a web research system. Given a research objective and the text of one web page, grade the page and copy out supporting quotes.

Respond with a JSON object only: {"quality": "high|medium|low|rejected", "quality_note": "...", "quotes": ["..."]}
- quality grades how well this page supports the objective; quality_note is a one-sentence rationale and is mandatory.
- Each quote must be copied verbatim from the page text: exact words, exact numbers, no paraphrase, no added or removed words.
- Select at most 5 quotes. Use "rejected" with an empty quotes array when the page is irrelevant.
- Do not include any text outside the JSON object.`

var extractionUserTmpl = template.Must(template.New("extraction").Parse(`Research objective: {{.Objective}}

{{if .PriorQuotes}}Quotes already extracted from this page (do not repeat them):
{{range .PriorQuotes}}- {{.}}
{{end}}
{{end}}Page text:
{{.PageText}}`))

// correctionSystem drives the bounded re-quote protocol for quotes that
// failed verbatim verification.
const correctionSystem = `Some quotes you extracted could not be found verbatim in the page text. Typical causes: altered numbers or data, structural changes (merged or reordered sentences), or hallucinated text.

Re-copy each failed quote exactly as it appears in the page text, character for character. Drop a quote entirely if the page does not support it.

Respond with a JSON object only: {"quotes": ["..."]}. Do not include any text outside the JSON object.`

var correctionUserTmpl = template.Must(template.New("correction").Parse(`Research objective: {{.Objective}}

Quotes that failed verification:
{{range .Rejected}}- {{.}}
{{end}}
Page text:
{{.PageText}}`))

// refinerSystem asks for a continue/exit judgment on the session.
const refinerSystem = `You are the refiner of a web research system. Given the session record and the round budget, decide whether another research round is worthwhile.

Respond with a JSON object only: {"decision": "continue|exit", "reason": "...", "feedback": "..."}
- Choose "exit" when the collected citations already answer the objective, or further rounds are unlikely to add evidence.
- When continuing, feedback must tell the query planner what to pursue next.
- Do not include any text outside the JSON object.`

var refinerUserTmpl = template.Must(template.New("refiner").Parse(`{{.State}}

Rounds used: {{.Round}} of {{.MaxRounds}}. Decide whether to continue.`))

// synthesisSystem produces the final cited answer body.
const synthesisSystem = `You are the answer synthesizer of a web research system. Write the final answer to the research objective using only the numbered citations provided.

- Write in markdown. Cite evidence inline with [N] markers matching citation IDs.
- Only the provided citation IDs may appear in markers; never invent citations.
- Do not write a references section; it is generated separately.`

var synthesisUserTmpl = template.Must(template.New("synthesis").Parse(`Research objective: {{.Objective}}

Citations:
{{.Citations}}

Write the final answer.`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
