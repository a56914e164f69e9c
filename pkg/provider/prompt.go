package provider

// The prompts below are a fixed contract with the vision backend. The
// bracket-prefix protocol is the backend's only channel for admitting
// uncertainty; the normalizer depends on it verbatim.

func ShelfPrompt() string {
	return `You are analyzing a photograph of a bookshelf. Identify every individual book visible in the image.

Return EXACTLY ONE JSON object in this format, with no other text:
{
	"books": [
		{
			"title": "Book Title",
			"author": "Author Name",
			"isbn": "9780000000000",
			"position": {"x": 0.12, "y": 0.05, "width": 0.04, "height": 0.61},
			"confidence": 0.95
		}
	]
}

POSITION RULES:
- x, y, width, height are normalized to the range 0 to 1 relative to the full image, origin at the top-left corner.
- Measure each book's width individually from its own spine or cover. NEVER reuse a constant width across books.

CONFIDENCE CALIBRATION:
- 0.9 to 1.0: the title is crystal clear and fully legible
- 0.6 to 0.89: readable with minor doubt
- 0.3 to 0.59: partially readable or blurry
- 0.0 to 0.29: cannot read the text

READABILITY MARKERS:
- If a title is only partially legible, prefix it with "[partial] " followed by what you can read.
- If you can see text but are unsure of your reading, prefix it with "[uncertain] ".
- If a spine clearly holds a book but nothing is legible, use "[unreadable]" alone as the title.
- NEVER invent or guess text you cannot actually read.

Omit "author" or "isbn" when not visible. Include every detected book, even unreadable ones.`
}

func SingleBookPrompt() string {
	return `You are analyzing a photograph of a single book cover. Extract its bibliographic details.

Return EXACTLY ONE JSON object in this format, with no other text:
{
	"title": "Book Title",
	"author": "Author Name",
	"isbn": "9780000000000",
	"publisher": "Publisher Name",
	"year": "2001",
	"category": "Fiction",
	"language": "en",
	"confidence": 0.95
}

- confidence is 0 to 1: 0.9-1.0 crystal clear, 0.6-0.89 minor doubt, 0.3-0.59 partially readable, 0.0-0.29 cannot read.
- If the title is only partially legible, prefix it with "[partial] ". If unsure of your reading, prefix "[uncertain] ". If nothing is legible use "[unreadable]".
- NEVER invent text you cannot actually read. Omit fields that are not visible.`
}
