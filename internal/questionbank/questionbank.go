// internal/questionbank/questionbank.go
package questionbank

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var embeddedBank []byte

var ErrUnknownQuestion = errors.New("unknown question")

// Question is a theory exam question including its answer key.
type Question struct {
	ID       string   `yaml:"id"`
	Category string   `yaml:"category"`
	Text     string   `yaml:"text"`
	Options  []string `yaml:"options"`
	Answer   int      `yaml:"answer"`
}

// PublicQuestion is what a candidate sees while taking an exam.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
}

// Criterion is one line of the practical exam rubric.
type Criterion struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	MaxPoints int    `yaml:"max_points" json:"max_points"`
}

// Answer is a submitted choice for one question.
type Answer struct {
	QuestionID  string `json:"question_id" validate:"required"`
	AnswerIndex int    `json:"answer_index" validate:"min=0"`
}

type bankFile struct {
	DefaultLanguage string                `yaml:"default_language"`
	Rubric          []Criterion           `yaml:"rubric"`
	Languages       map[string][]Question `yaml:"languages"`
}

// Bank holds questions per language. Question ids are shared across
// languages, so answer keys do not depend on the language shown.
type Bank struct {
	defaultLang string
	rubric      []Criterion
	questions   map[string][]Question
	byID        map[string]map[string]Question
	keys        map[string]int
}

// Default returns the bank compiled into the binary.
func Default() (*Bank, error) {
	return Parse(embeddedBank)
}

// LoadFile reads a bank from a YAML file, or the embedded bank when path is empty.
func LoadFile(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if f.DefaultLanguage == "" {
		f.DefaultLanguage = "en"
	}
	if len(f.Languages[f.DefaultLanguage]) == 0 {
		return nil, fmt.Errorf("question bank has no questions for default language %q", f.DefaultLanguage)
	}

	b := &Bank{
		defaultLang: f.DefaultLanguage,
		rubric:      f.Rubric,
		questions:   f.Languages,
		byID:        make(map[string]map[string]Question),
		keys:        make(map[string]int),
	}

	for lang, qs := range f.Languages {
		b.byID[lang] = make(map[string]Question, len(qs))
		for _, q := range qs {
			if _, dup := b.byID[lang][q.ID]; dup {
				return nil, fmt.Errorf("question %s (%s) is defined twice", q.ID, lang)
			}
			b.byID[lang][q.ID] = q
			if q.Answer < 0 || q.Answer >= len(q.Options) {
				return nil, fmt.Errorf("question %s (%s): answer index %d out of range", q.ID, lang, q.Answer)
			}
			if prev, ok := b.keys[q.ID]; ok && prev != q.Answer {
				return nil, fmt.Errorf("question %s has different answers across languages", q.ID)
			}
			b.keys[q.ID] = q.Answer
		}
	}
	return b, nil
}

// Language returns lang if the bank has questions for it, else the default language.
func (b *Bank) Language(lang string) string {
	if len(b.questions[lang]) > 0 {
		return lang
	}
	return b.defaultLang
}

// Size returns how many questions a sitting of up to n questions gets.
func (b *Bank) Size(n int) int {
	available := len(b.questions[b.defaultLang])
	if n > available {
		return available
	}
	return n
}

// SampleIDs picks the ids of n distinct random questions of the default
// language. Ids are shared across languages.
func (b *Bank) SampleIDs(n int, rng *rand.Rand) []string {
	qs := b.questions[b.defaultLang]
	n = b.Size(n)

	ids := make([]string, 0, n)
	for _, i := range rng.Perm(len(qs))[:n] {
		ids = append(ids, qs[i].ID)
	}
	return ids
}

// Questions returns the questions with the given ids, without their answers,
// in lang where translated and in the default language otherwise. Unknown
// ids are skipped.
func (b *Bank) Questions(lang string, ids []string) []PublicQuestion {
	out := make([]PublicQuestion, 0, len(ids))
	for _, id := range ids {
		q, ok := b.byID[lang][id]
		if !ok {
			if q, ok = b.byID[b.defaultLang][id]; !ok {
				continue
			}
		}
		out = append(out, PublicQuestion{
			ID:       q.ID,
			Category: q.Category,
			Text:     q.Text,
			Options:  append([]string(nil), q.Options...),
		})
	}
	return out
}

// Sample picks n distinct random questions in lang without their answers.
func (b *Bank) Sample(lang string, n int, rng *rand.Rand) []PublicQuestion {
	return b.Questions(lang, b.SampleIDs(n, rng))
}

// Correct counts the correct answers. Each question counts once.
func (b *Bank) Correct(answers []Answer) (int, error) {
	seen := make(map[string]struct{}, len(answers))
	correct := 0
	for _, a := range answers {
		key, ok := b.keys[a.QuestionID]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownQuestion, a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return 0, fmt.Errorf("question %s answered more than once", a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
		if a.AnswerIndex == key {
			correct++
		}
	}
	return correct, nil
}

// Rubric returns the practical exam criteria.
func (b *Bank) Rubric() []Criterion {
	return append([]Criterion(nil), b.rubric...)
}
