package prompts

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "scores": {"science": 0.0, "video": 0.0, "article": 0.0, "generic": 0.0},
  "title": "<title>",
  "rationale": "<explanation>"
}

Field constraints:
- scores: A number between 0 and 1 for each of the four labels.
- title: The title of the work or page, or an empty string if none is evident.
- rationale: One or two sentences naming the evidence behind the highest score.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Base scores only on the provided excerpt and metadata`

const linksSpec = `Respond with a JSON object matching this exact structure:

{
  "pdfs": ["<url>"],
  "rationale": "<explanation>"
}

Field constraints:
- pdfs: Absolute URLs copied exactly from the candidate list, most likely first. Empty array when no candidate qualifies.
- rationale: Brief explanation of why the chosen links were selected.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never invent URLs that are not in the candidate list`

var specs = map[Stage]string{
	StageClassify: classifySpec,
	StageLinks:    linksSpec,
}

// Spec returns the response specification for a stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
