package service

import (
	"tuteck_exam_backend/internal/model"

	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	gradeAMark = decimal.NewFromInt(90)
	gradeBMark = decimal.NewFromInt(75)
	gradeCMark = decimal.NewFromInt(60)
)

// IsCorrect applies the exact-match rule: the selected set must equal the
// correct set. There is no partial credit and an empty selection never scores.
func IsCorrect(q *model.Question, selected model.OptionIDs) bool {
	if len(selected) == 0 {
		return false
	}
	return selected.SameSet(q.CorrectOptionIDs())
}

// Percentage is earned/possible*100 rounded half-up to two decimals; 0 when nothing is possible.
func Percentage(earned, possible int) decimal.Decimal {
	if possible <= 0 {
		return decimal.Zero
	}
	// Round is half away from zero, which is half-up for non-negative values.
	return decimal.NewFromInt(int64(earned)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(possible))).
		Round(2)
}

// Grade maps a score onto the fixed letter thresholds. When passingScore is
// above 60 the D band is empty; that is intentional.
func Grade(score, passingScore decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(gradeAMark):
		return model.GradeA
	case score.GreaterThanOrEqual(gradeBMark):
		return model.GradeB
	case score.GreaterThanOrEqual(gradeCMark):
		return model.GradeC
	case score.GreaterThanOrEqual(passingScore):
		return model.GradeD
	default:
		return model.GradeF
	}
}

// Score derives the result of a terminal session. It is pure: the same
// session, answers and bank always produce the same result. Answers whose
// question is no longer in the bank are left out of both totals and reported
// in ExcludedQuestionIDs.
func Score(session *model.TestSession, answers []model.Answer, bank *model.QuestionBank) *model.TestResult {
	byQuestion := make(map[uint]*model.Answer, len(answers))
	var excluded []uint
	for i := range answers {
		a := &answers[i]
		if _, ok := bank.Question(a.QuestionID); !ok {
			excluded = append(excluded, a.QuestionID)
			continue
		}
		byQuestion[a.QuestionID] = a
	}

	survey := bank.Survey
	result := &model.TestResult{
		SessionID:           session.ID,
		UserID:              session.UserID,
		SurveyID:            session.SurveyID,
		AttemptNumber:       session.AttemptNumber,
		ExcludedQuestionIDs: excluded,
	}
	if session.EndTime != nil {
		result.CompletedAt = *session.EndTime
	}

	spent := survey.Duration*60 - session.TimeRemaining
	if spent < 0 {
		spent = 0
	}
	result.TimeSpent = spent

	var earned, possible int
	for _, sec := range survey.Sections {
		ss := model.SectionScore{
			SectionID:    sec.ID,
			SectionTitle: sec.Title,
		}
		for qi := range sec.Questions {
			q := &sec.Questions[qi]
			ss.TotalQuestions++
			ss.PointsPossible += q.Points

			a, answered := byQuestion[q.ID]
			if answered && a.IsAnswered && IsCorrect(q, a.SelectedOptionIDs) {
				ss.CorrectAnswers++
				ss.PointsEarned += q.Points
			}
		}
		ss.Score = Percentage(ss.PointsEarned, ss.PointsPossible)

		earned += ss.PointsEarned
		possible += ss.PointsPossible
		result.TotalQuestions += ss.TotalQuestions
		result.CorrectAnswers += ss.CorrectAnswers
		result.SectionScores = append(result.SectionScores, ss)
	}

	result.Score = Percentage(earned, possible)
	result.IsPassed = result.Score.GreaterThanOrEqual(survey.PassingScore)
	result.Grade = Grade(result.Score, survey.PassingScore)
	return result
}

// MarkCorrectness sets IsCorrect on every answer from the bank in place.
func MarkCorrectness(answers []model.Answer, bank *model.QuestionBank) {
	for i := range answers {
		q, ok := bank.Question(answers[i].QuestionID)
		answers[i].IsCorrect = ok && answers[i].IsAnswered && IsCorrect(q, answers[i].SelectedOptionIDs)
	}
}
