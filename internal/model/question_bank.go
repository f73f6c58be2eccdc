package model

import "sort"

// QuestionBank is a read-only, indexed view over a survey's sections and questions.
type QuestionBank struct {
	Survey    *Survey
	byID      map[uint]*Question
	sectionOf map[uint]*Section
	position  map[uint]int
}

// NewQuestionBank indexes a survey loaded with Sections.Questions.Options.
// Sections and questions are ordered by their Order field, then id.
func NewQuestionBank(s *Survey) *QuestionBank {
	b := &QuestionBank{
		Survey:    s,
		byID:      make(map[uint]*Question),
		sectionOf: make(map[uint]*Section),
		position:  make(map[uint]int),
	}
	sort.SliceStable(s.Sections, func(i, j int) bool {
		if s.Sections[i].Order != s.Sections[j].Order {
			return s.Sections[i].Order < s.Sections[j].Order
		}
		return s.Sections[i].ID < s.Sections[j].ID
	})
	pos := 0
	for i := range s.Sections {
		sec := &s.Sections[i]
		sort.SliceStable(sec.Questions, func(a, c int) bool {
			if sec.Questions[a].Order != sec.Questions[c].Order {
				return sec.Questions[a].Order < sec.Questions[c].Order
			}
			return sec.Questions[a].ID < sec.Questions[c].ID
		})
		for j := range sec.Questions {
			q := &sec.Questions[j]
			b.byID[q.ID] = q
			b.sectionOf[q.ID] = sec
			b.position[q.ID] = pos
			pos++
		}
	}
	return b
}

func (b *QuestionBank) Question(id uint) (*Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}

func (b *QuestionBank) SectionOf(questionID uint) (*Section, bool) {
	s, ok := b.sectionOf[questionID]
	return s, ok
}

// Position is the zero-based index of the question in survey order.
func (b *QuestionBank) Position(questionID uint) (int, bool) {
	p, ok := b.position[questionID]
	return p, ok
}

func (b *QuestionBank) Len() int {
	return len(b.byID)
}
