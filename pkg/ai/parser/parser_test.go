package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportShape = Shape{
	Name:     "diagnosis",
	Required: []string{"category", "diagnosis", "evidence", "intervention", "confidence"},
}

var exerciseListShape = Shape{
	Name:     "exercises",
	Required: []string{"title", "description", "difficulty", "test_cases"},
	Optional: []string{"concept_tags"},
	ListKey:  "exercises",
}

func TestParse_StrictStripsFencesAndProse(t *testing.T) {
	raw := "Sure! Here is the analysis:\n```json\n" +
		`{"category": "syntax", "diagnosis": "Indentation is inconsistent.", "evidence": ["IndentationError at line 3"], "intervention": "Review blocks", "confidence": 0.82}` +
		"\n```\nLet me know if you need more."

	res := Parse(raw, reportShape)

	assert.Equal(t, TierStrict, res.Tier)
	assert.True(t, res.Complete())
	assert.Equal(t, "syntax", res.Value.String("category"))
	conf, ok := res.Value.Float("confidence")
	require.True(t, ok)
	assert.InDelta(t, 0.82, conf, 1e-9)
	assert.Equal(t, []string{"IndentationError at line 3"}, res.Value.Strings("evidence"))
}

func TestParse_SanitizedRepairsTrailingCommaAndRawNewline(t *testing.T) {
	raw := "{\n  \"category\": \"logic\",\n  \"diagnosis\": \"The loop never ends.\nThe counter is not updated.\",\n  \"evidence\": [\"while True\", \"no break\",],\n  \"intervention\": \"Trace the loop by hand\",\n  \"confidence\": 0.6,\n}"

	res := Parse(raw, reportShape)

	assert.Equal(t, TierSanitized, res.Tier)
	assert.True(t, res.Complete())
	assert.Equal(t, "The loop never ends.\nThe counter is not updated.", res.Value.String("diagnosis"))
	assert.Equal(t, []string{"while True", "no break"}, res.Value.Strings("evidence"))
}

func TestParse_SanitizedSmartQuotes(t *testing.T) {
	raw := `{“reply”: “What do you expect x to hold after line 2?”}`

	res := Parse(raw, Shape{Required: []string{"reply"}})

	assert.Equal(t, TierSanitized, res.Tier)
	assert.Equal(t, "What do you expect x to hold after line 2?", res.Value.String("reply"))
}

func TestParse_SanitizedClosesTruncatedOutput(t *testing.T) {
	raw := `{"exercises": [{"title": "Swap", "description": "Swap two variables", "difficulty": "easy", "test_cases": [{"input": "1 2", "expected_output": "2 1"}]}, {"title": "Sum", "descri`

	res := Parse(raw, exerciseListShape)

	assert.Equal(t, TierSanitized, res.Tier)
	require.Len(t, res.Items, 2)
	assert.Empty(t, res.ItemMissing(0))
	assert.Contains(t, res.ItemMissing(1), "difficulty")
}

func TestParse_RegexRecoversUnquotedValues(t *testing.T) {
	raw := "category: syntax\ndiagnosis: The student keeps mixing tabs and spaces\nconfidence: 0.9\n"

	res := Parse(raw, reportShape)

	assert.Equal(t, TierRegex, res.Tier)
	assert.Equal(t, "syntax", res.Value.String("category"))
	assert.Equal(t, "The student keeps mixing tabs and spaces", res.Value.String("diagnosis"))
	assert.ElementsMatch(t, []string{"evidence", "intervention"}, res.Missing)
	assert.True(t, res.Partial())
}

func TestParse_RegexNeverFailsAndKeepsLiteralText(t *testing.T) {
	raw := "I think the student is confused about loops, honestly."

	res := Parse(raw, reportShape)

	assert.Equal(t, TierRegex, res.Tier)
	assert.NotNil(t, res.Value)
	assert.Len(t, res.Missing, len(reportShape.Required))
	assert.True(t, strings.Contains(res.Raw, "confused about loops"))
}

func TestParse_RegexListZipsFieldsByPosition(t *testing.T) {
	raw := `Exercise one: "title": "Counter", "description": "Count to ten", "difficulty": "easy", "test_cases": [{"input": "", "expected_output": "1..10"}]
Exercise two: "title": "Greeter", "description": "Say hello", "difficulty": "easy", "test_cases": [{"input": "Ana", "expected_output": "Hello Ana"}]
oops {`

	res := Parse(raw, exerciseListShape)

	require.Len(t, res.Items, 2)
	assert.Equal(t, "Counter", res.Items[0].String("title"))
	assert.Equal(t, "Greeter", res.Items[1].String("title"))
	assert.Len(t, res.Items[1].Objects("test_cases"), 1)
}

func TestParse_ListAcceptsBareArrayAndWrappedObject(t *testing.T) {
	item := `{"title": "A", "description": "B", "difficulty": "easy", "test_cases": [{"input": "1", "expected_output": "1"}]}`

	for _, raw := range []string{"[" + item + "]", `{"exercises": [` + item + `]}`, item} {
		res := Parse(raw, exerciseListShape)
		assert.Equal(t, TierStrict, res.Tier, raw)
		assert.Len(t, res.Items, 1, raw)
		assert.True(t, res.Complete(), raw)
	}
}

func TestParse_EmptyListIsMissingListKey(t *testing.T) {
	res := Parse(`{"exercises": []}`, exerciseListShape)
	assert.Equal(t, []string{"exercises"}, res.Missing)
}

func TestParse_PrefersCandidateWithExpectedFields(t *testing.T) {
	raw := `Note [1]: see below. {"reply": "Which line prints first?"}`

	res := Parse(raw, Shape{Required: []string{"reply"}})

	assert.Equal(t, TierStrict, res.Tier)
	assert.Equal(t, "Which line prints first?", res.Value.String("reply"))
}

func TestParse_StripsThinkTags(t *testing.T) {
	raw := `<think>{"reply": "draft"}</think>{"reply": "What happens when i is 3?"}`

	res := Parse(raw, Shape{Required: []string{"reply"}})

	assert.Equal(t, "What happens when i is 3?", res.Value.String("reply"))
}

func TestFields_Accessors(t *testing.T) {
	f := Fields{
		"pct":   "85%",
		"num":   0.4,
		"flag":  "true",
		"lines": "- first\n- second",
		"semi":  "a; b",
	}

	pct, ok := f.Float("pct")
	assert.True(t, ok)
	assert.InDelta(t, 0.85, pct, 1e-9)

	num, ok := f.Float("num")
	assert.True(t, ok)
	assert.Equal(t, 0.4, num)

	b, ok := f.Bool("flag")
	assert.True(t, ok && b)

	assert.Equal(t, []string{"first", "second"}, f.Strings("lines"))
	assert.Equal(t, []string{"a", "b"}, f.Strings("semi"))
	assert.False(t, f.Has("absent"))
}
