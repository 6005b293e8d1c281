package llm

import (
	"fmt"

	"google.golang.org/genai"
)

// ImageStyle is appended to every scene prompt the analysis model writes.
const ImageStyle = "2D anime style, flat colors, clean lines, cute, healing style, The Legend of Luo Xiaohei style"

// jsonOnlySuffix is added for providers without a declared response schema.
const jsonOnlySuffix = "\nReturn ONLY valid JSON, no markdown."

// BuildAnalysisPrompt returns the curriculum-contextualized analysis prompt for word.
func BuildAnalysisPrompt(word string) string {
	return fmt.Sprintf(`Role: You are an expert English teacher for a Chinese middle school student.
Task: Analyze the English word "%[1]s" for this student.

Provide the following details as a JSON object designed for a Chinese learner:
1. definition: The Chinese translation and part of speech (e.g. "n. 苹果").
2. difficulty: Word difficulty for a middle school student. Exactly one of "Beginner", "Intermediate", "Advanced".
3. phonetic: The IPA phonetic symbol.
4. etymology: The word's origin and evolution, in simple and engaging Chinese.
5. pronunciationTips: In Chinese. Point out the stressed syllable, then warn about sounds Chinese speakers often get wrong.
6. roots: Root words, prefixes and suffixes, each with its Chinese meaning and example words.
7. synonyms: 3-5 English synonyms.
8. antonyms: 3-5 English antonyms.
9. textbookInfo: If the word appears in the People's Education Press (PEP) junior high English textbooks, give the grade (e.g. "八年级下册"), the approximate unit, and 2-3 examPoints often tested in the high school entrance exam. If the word is outside the syllabus return null.
10. story: A short story (60-80 words) in simple English featuring characters from "The Legend of Luo Xiaohei" (Xiaohei, Wuxian, Fengxi). The story must make the meaning of "%[1]s" clear. Keep the tone healing and cute.
11. scenes: Split the story into 3 to 5 chronological picture-book scenes. Each scene has a narrative (the English text of that part) and a visualPrompt (a detailed English image prompt for that scene, style: "%[2]s").
12. mnemonicChant: A rhyming English chant of 2-4 lines that helps remember the meaning.
13. visualPrompt: The visual prompt of the first scene.
Also return "word" with the analyzed word.`, word, ImageStyle)
}

// analysisSchema is the declared output schema of the analysis call.
func analysisSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	strList := &genai.Schema{Type: genai.TypeArray, Items: str}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"word":              str,
			"definition":        str,
			"difficulty":        {Type: genai.TypeString, Enum: []string{"Beginner", "Intermediate", "Advanced"}},
			"phonetic":          str,
			"etymology":         str,
			"pronunciationTips": str,
			"roots": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"root":     str,
						"meaning":  str,
						"examples": strList,
					},
				},
			},
			"synonyms": strList,
			"antonyms": strList,
			"textbookInfo": {
				Type:     genai.TypeObject,
				Nullable: genai.Ptr(true),
				Properties: map[string]*genai.Schema{
					"grade":      str,
					"unit":       str,
					"examPoints": strList,
				},
			},
			"story": str,
			"scenes": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"narrative":    str,
						"visualPrompt": str,
					},
				},
			},
			"mnemonicChant": str,
			"visualPrompt":  str,
		},
		Required: RequiredFields,
	}
}

// AudioPrompt returns the TTS prompt for a word and its chant.
func AudioPrompt(word, chant string) string {
	return fmt.Sprintf("The word is %s. Listen to this rhythm: %s", word, chant)
}
