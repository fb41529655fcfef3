package mentor

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lessons.yaml
var lessonsYAML []byte

// Lesson is a canned answer matched by keyword
type Lesson struct {
	ID       string   `yaml:"id" json:"id"`
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Question string   `yaml:"question" json:"question"`
	Answer   string   `yaml:"answer" json:"answer"`
	Source   string   `yaml:"source" json:"source"`
}

type lessonFile struct {
	Lessons []Lesson `yaml:"lessons"`
}

// ParseLessons reads a lessons catalogue
func ParseLessons(data []byte) ([]Lesson, error) {
	var f lessonFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing lessons: %w", err)
	}
	for i, l := range f.Lessons {
		if l.ID == "" || len(l.Keywords) == 0 {
			return nil, fmt.Errorf("lesson %d: id and keywords are required", i)
		}
	}
	return f.Lessons, nil
}

// DefaultLessons is the built-in catalogue
func DefaultLessons() ([]Lesson, error) {
	return ParseLessons(lessonsYAML)
}

// MatchLesson returns the first lesson with a keyword contained in the question
func MatchLesson(lessons []Lesson, question string) (Lesson, bool) {
	q := strings.ToLower(question)
	for _, l := range lessons {
		for _, kw := range l.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				return l, true
			}
		}
	}
	return Lesson{}, false
}
