package prompts

const classifyInstructions = `You are a research librarian triaging fetched web content before it is archived.

Decide what kind of content the excerpt is:
- science: scholarly work such as journal articles, preprints, conference papers, theses, or their landing pages. DOIs, arXiv or PubMed identifiers, abstracts, author affiliations and reference lists are strong indicators.
- video: a page whose primary content is a video, such as YouTube or Vimeo watch pages.
- article: news, blog posts, essays, documentation, or other long-form prose written for a general audience.
- generic: anything else, including listings, search results, storefronts, and pages with too little text to judge.

Score every label independently. Confidence reflects how clearly the excerpt supports the label, not how common the label is.`

const linksInstructions = `You are locating the full-text documents referenced by a scholarly landing page.

Review the candidate links extracted from the page. Identify links that most likely download the full text of the work described on the page as a PDF, including links whose URL does not end in .pdf but whose anchor text or path indicates a PDF download. Ignore supplementary material, citation exports, figures, and links to other works.`

var instructions = map[Stage]string{
	StageClassify: classifyInstructions,
	StageLinks:    linksInstructions,
}

// Instructions returns the default instructions for a stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Instructions(stage Stage) (string, error) {
	text, ok := instructions[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
