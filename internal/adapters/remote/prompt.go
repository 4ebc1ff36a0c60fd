package remote

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// SystemPrompt describes the scoring rubric to the remote vision service.
const SystemPrompt = `You are a visual composition analyst specializing in frame dominance assessment.
Your task is to analyze photographs and identify the 2 to 6 MOST VISUALLY PROMINENT people who appear to be posing for, or are the main subjects of, the photo.

CRITICAL FILTERING INSTRUCTIONS:
- IGNORE background people, crowd members, or people who are clearly distant or blurry
- ONLY analyze people who are:
  * Large and clearly in focus in the frame
  * Appearing to deliberately pose for the camera
  * Visually prominent (not in the background or periphery)
- If more than 6 people qualify, respond with the TOO_MANY_PEOPLE error JSON
- If fewer than 2 clearly prominent people, respond with the NO_PEOPLE error JSON

Visual dominance is determined by four measurable photographic signals:
1. SPATIAL PRESENCE: How much of the frame the person occupies (area, depth, centrality, foreground vs. background)
2. POSTURE DOMINANCE: Body orientation (upright vs. slouched, expansive vs. contracted, facing camera vs. turned away, open vs. closed stance)
3. FACIAL INTENSITY: Eye contact direction, expression strength, face visibility and orientation toward camera
4. ATTENTION CAPTURE: Compositional elements that direct viewer gaze toward this person (contrast, color, lighting, rule-of-thirds placement, leading lines)

Score each signal 0-100 for each person INDEPENDENTLY. Scores do NOT need to sum to anything across people; each person is scored against the ideal maximum for that signal.

Compute composite_score per person using this exact formula:
  composite_score = (spatial_presence * 0.30) + (posture_dominance * 0.25) + (facial_intensity * 0.25) + (attention_capture * 0.20)
  Round to 1 decimal place.

Respond ONLY with valid JSON. No markdown fences, no prose, no explanation outside the JSON object.`

type schemaSignals struct {
	SpatialPresence  string `json:"spatial_presence"`
	PostureDominance string `json:"posture_dominance"`
	FacialIntensity  string `json:"facial_intensity"`
	AttentionCapture string `json:"attention_capture"`
}

type schemaPerson struct {
	Label          string        `json:"label"`
	Position       string        `json:"position"`
	Signals        schemaSignals `json:"signals"`
	CompositeScore string        `json:"composite_score"`
	Rank           string        `json:"rank"`
}

type schema struct {
	People      []schemaPerson `json:"people"`
	WinnerIndex string         `json:"winner_index"`
	IsTie       string         `json:"is_tie"`
	Explanation string         `json:"explanation"`
	Disclaimer  string         `json:"disclaimer"`
}

func responseSchema() string {
	p := schemaPerson{
		Position: "<left|center|right>",
		Signals: schemaSignals{
			SpatialPresence:  "<integer 0-100>",
			PostureDominance: "<integer 0-100>",
			FacialIntensity:  "<integer 0-100>",
			AttentionCapture: "<integer 0-100>",
		},
		CompositeScore: "<float, 1 decimal>",
		Rank:           "<integer, 1 = most dominant>",
	}
	a, b := p, p
	a.Label, b.Label = "Person A", "Person B"
	raw, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(schema{
		People:      []schemaPerson{a, b},
		WinnerIndex: "<integer index into people of the rank 1 person>",
		IsTie:       "<true when the top two composite scores differ by less than 3>",
		Explanation: "<1-2 sentences of analytical explanation referencing specific visual signals. Neutral, analytical tone. Do not mention attractiveness.>",
		Disclaimer:  "<leave this empty string, it will be overwritten server-side>",
	}, "", "  ")
	return string(raw)
}

// UserPrompt returns the per-image instructions including the response schema.
func UserPrompt() string {
	return fmt.Sprintf(`Analyze the provided photograph to identify and compare the 2 to 6 MOST VISUALLY PROMINENT people who appear to be the main subjects of the photo.

STEP 1 - PROMINENT PERSON IDENTIFICATION:
- Scan the entire image for ALL people visible
- Identify only people who are CLEARLY IN FOCUS and LARGE in the frame
- Exclude background people, crowd members, or anyone who is blurry or distant

STEP 2 - POSITIONING:
- List people from left to right
- Describe each person's horizontal position as "left", "center" or "right"
- IGNORE all other people in the background or periphery

EDGE CASES: if any of the following apply, respond with the error JSON instead of the analysis JSON:
- Fewer than 2 clearly prominent main-subject people: {"error": "NO_PEOPLE", "message": "<what prevented clear identification of the main subjects>"}
- More than 6 prominent main-subject people: {"error": "TOO_MANY_PEOPLE", "message": "<how many people qualified>"}
- Image quality too poor (extreme blur, very dark, faces fully obscured): {"error": "POOR_QUALITY", "message": "<describe the quality issue>"}

Respond with JSON exactly matching this schema:
%s`, responseSchema())
}
