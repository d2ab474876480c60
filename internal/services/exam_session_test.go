package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/dlms-backend/internal/apperror"
	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/questionbank"
	"github.com/javajoker/dlms-backend/internal/testutil"
)

const sessionBank = `
default_language: en
rubric:
  - {id: mirrors, name: Mirrors, max_points: 50}
  - {id: parking, name: Parking, max_points: 50}
languages:
  en:
    - {id: a, category: signs, text: A?, options: [x, y], answer: 0}
    - {id: b, category: signs, text: B?, options: [x, y], answer: 1}
    - {id: c, category: rules, text: C?, options: [x, y, z], answer: 2}
    - {id: d, category: rules, text: D?, options: [x, y], answer: 0}
  am:
    - {id: a, category: signs, text: ሀ?, options: [x, y], answer: 0}
`

type ExamSessionTestSuite struct {
	suite.Suite
	env       *testEnv
	ctx       context.Context
	now       time.Time
	service   *ExamSessionService
	candidate *models.User
}

func (suite *ExamSessionTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.ctx = context.Background()
	suite.now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	bank, err := questionbank.Parse([]byte(sessionBank))
	suite.Require().NoError(err)

	window := NewAvailabilityWindow(suite.env.cfg.Exam, fixedClock(suite.now))
	suite.service = NewExamSessionService(suite.env.db, bank, window, suite.env.dispatcher, suite.env.metrics, suite.env.cfg.Exam.TheoryQuestionCount)
	suite.candidate = testutil.CreateCandidate(suite.T(), suite.env.db)
}

func (suite *ExamSessionTestSuite) theory(status models.ExamStatus) *models.ExamSchedule {
	return testutil.CreateSchedule(suite.T(), suite.env.db, suite.candidate.ID, models.ExamTypeTheory, status, suite.now.Add(24*time.Hour))
}

// take hands out the sitting's questions, as the candidate's client does
// before answering.
func (suite *ExamSessionTestSuite) take(service *ExamSessionService, schedule *models.ExamSchedule) []string {
	sitting, err := service.GetExamForTaking(suite.ctx, schedule.ID, suite.candidate.ID, "en")
	suite.Require().NoError(err)
	ids := make([]string, len(sitting.Questions))
	for i, q := range sitting.Questions {
		ids[i] = q.ID
	}
	return ids
}

func (suite *ExamSessionTestSuite) TestTheorySittingHidesAnswers() {
	schedule := suite.theory(models.ExamStatusApproved)

	sitting, err := suite.service.GetExamForTaking(suite.ctx, schedule.ID, suite.candidate.ID, "fr")
	suite.Require().NoError(err)
	suite.Equal("en", sitting.Language)
	suite.Len(sitting.Questions, 4)
	suite.Empty(sitting.Rubric)

	seen := map[string]bool{}
	for _, q := range sitting.Questions {
		suite.False(seen[q.ID])
		seen[q.ID] = true
	}
}

func (suite *ExamSessionTestSuite) TestSittingForAnotherCandidateIsNotFound() {
	schedule := suite.theory(models.ExamStatusApproved)
	other := testutil.CreateCandidate(suite.T(), suite.env.db)

	_, err := suite.service.GetExamForTaking(suite.ctx, schedule.ID, other.ID, "en")
	suite.True(apperror.Is(err, apperror.KindNotFound))
}

func (suite *ExamSessionTestSuite) TestUnapprovedTheoryIsUnavailable() {
	schedule := suite.theory(models.ExamStatusScheduled)

	_, err := suite.service.GetExamForTaking(suite.ctx, schedule.ID, suite.candidate.ID, "en")
	suite.True(apperror.Is(err, apperror.KindUnavailable))
	suite.Contains(err.Error(), "status: scheduled")
}

func (suite *ExamSessionTestSuite) TestPracticalSittingFollowsWindow() {
	early := testutil.CreateSchedule(suite.T(), suite.env.db, suite.candidate.ID, models.ExamTypePractical, models.ExamStatusApproved, suite.now.Add(3*time.Hour))

	_, err := suite.service.GetExamForTaking(suite.ctx, early.ID, suite.candidate.ID, "en")
	suite.Require().Error(err)
	suite.True(apperror.Is(err, apperror.KindUnavailable))
	suite.Contains(err.Error(), "180 minutes remain")

	suite.Require().NoError(suite.env.db.Model(early).Update("scheduled_at", suite.now.Add(time.Hour)).Error)
	sitting, err := suite.service.GetExamForTaking(suite.ctx, early.ID, suite.candidate.ID, "en")
	suite.Require().NoError(err)
	suite.Len(sitting.Rubric, 2)
	suite.Empty(sitting.Questions)
}

func (suite *ExamSessionTestSuite) TestSubmitScoresAndCompletes() {
	schedule := suite.theory(models.ExamStatusApproved)
	suite.take(suite.service, schedule)

	res, err := suite.service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{
			{QuestionID: "a", AnswerIndex: 0},
			{QuestionID: "b", AnswerIndex: 1},
			{QuestionID: "c", AnswerIndex: 2},
			{QuestionID: "d", AnswerIndex: 1},
		},
		TimeSpentSeconds: 600,
	})
	suite.Require().NoError(err)
	suite.Equal(75.0, res.Result.Score)
	suite.True(res.Result.Passed)
	suite.Equal(3, res.Result.CorrectAnswers)
	suite.Equal(4, res.Result.TotalQuestions)
	suite.Equal(models.ExamStatusCompleted, res.Schedule.Status)
	suite.Equal(models.ExamOutcomePass, res.Schedule.Result)

	var stored models.ExamSchedule
	suite.Require().NoError(suite.env.db.First(&stored, "id = ?", schedule.ID).Error)
	suite.Equal(models.ExamStatusCompleted, stored.Status)
	suite.Equal(75.0, *stored.Evaluation.Score)

	eligibility, err := ResolveEligibility(suite.ctx, suite.env.db, suite.candidate.ID)
	suite.Require().NoError(err)
	suite.Equal(EligibilityNeedPracticalExam, eligibility.Status)

	_, err = suite.service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{{QuestionID: "a", AnswerIndex: 0}},
	})
	suite.True(apperror.Is(err, apperror.KindUnavailable))

	suite.env.dispatcher.Wait()
	suite.Contains(suite.env.emitter.titles(), "Theory Exam Passed")
}

func (suite *ExamSessionTestSuite) TestUnansweredQuestionsCountAsWrong() {
	schedule := suite.theory(models.ExamStatusApproved)
	suite.take(suite.service, schedule)

	res, err := suite.service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{{QuestionID: "a", AnswerIndex: 0}, {QuestionID: "b", AnswerIndex: 1}},
	})
	suite.Require().NoError(err)
	suite.Equal(50.0, res.Result.Score)
	suite.False(res.Result.Passed)
	suite.Equal(models.ExamOutcomeFail, res.Schedule.Result)
}

func (suite *ExamSessionTestSuite) TestSubmitRejectsBadAnswers() {
	schedule := suite.theory(models.ExamStatusApproved)

	_, err := suite.service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{{QuestionID: "a", AnswerIndex: 0}},
	})
	suite.True(apperror.Is(err, apperror.KindValidation), "answers before the questions were handed out")

	suite.take(suite.service, schedule)
	cases := []*SubmitResultRequest{
		{},
		{Answers: []questionbank.Answer{{QuestionID: "zzz", AnswerIndex: 0}}},
		{Answers: []questionbank.Answer{{QuestionID: "a", AnswerIndex: 0}, {QuestionID: "a", AnswerIndex: 1}}},
	}
	for _, req := range cases {
		_, err := suite.service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, req)
		suite.True(apperror.Is(err, apperror.KindValidation), "answers %v", req.Answers)
	}
}

func (suite *ExamSessionTestSuite) TestSittingIsFixedOnFirstTake() {
	window := NewAvailabilityWindow(suite.env.cfg.Exam, fixedClock(suite.now))
	bank, err := questionbank.Parse([]byte(sessionBank))
	suite.Require().NoError(err)
	service := NewExamSessionService(suite.env.db, bank, window, suite.env.dispatcher, suite.env.metrics, 2)
	schedule := suite.theory(models.ExamStatusApproved)

	served := suite.take(service, schedule)
	suite.Require().Len(served, 2)
	for i := 0; i < 5; i++ {
		suite.Equal(served, suite.take(service, schedule))
	}

	var notServed string
	for _, id := range []string{"a", "b", "c", "d"} {
		if id != served[0] && id != served[1] {
			notServed = id
			break
		}
	}
	_, err = service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{{QuestionID: notServed, AnswerIndex: 0}},
	})
	suite.True(apperror.Is(err, apperror.KindValidation))

	// Only one served question answered, correctly: half marks.
	key := map[string]int{"a": 0, "b": 1, "c": 2, "d": 0}
	res, err := service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{{QuestionID: served[0], AnswerIndex: key[served[0]]}},
	})
	suite.Require().NoError(err)
	suite.Equal(2, res.Result.TotalQuestions)
	suite.Equal(50.0, res.Result.Score)
}

func (suite *ExamSessionTestSuite) TestPracticalCannotBeSubmitted() {
	schedule := testutil.CreateSchedule(suite.T(), suite.env.db, suite.candidate.ID, models.ExamTypePractical, models.ExamStatusApproved, suite.now)

	_, err := suite.service.SubmitResult(suite.ctx, schedule.ID, suite.candidate.ID, &SubmitResultRequest{
		Answers: []questionbank.Answer{{QuestionID: "a", AnswerIndex: 0}},
	})
	suite.True(apperror.Is(err, apperror.KindValidation))
}

func (suite *ExamSessionTestSuite) TestListAvailableExams() {
	suite.theory(models.ExamStatusApproved)
	testutil.CreateSchedule(suite.T(), suite.env.db, suite.candidate.ID, models.ExamTypePractical, models.ExamStatusApproved, suite.now.Add(5*time.Hour))
	testutil.CreateSchedule(suite.T(), suite.env.db, suite.candidate.ID, models.ExamTypePractical, models.ExamStatusRejected, suite.now)

	exams, err := suite.service.ListAvailableExams(suite.ctx, suite.candidate.ID)
	suite.Require().NoError(err)
	suite.Require().Len(exams, 2)

	byType := map[models.ExamType]Availability{}
	for _, e := range exams {
		byType[e.Exam.ExamType] = e.Availability
	}
	suite.True(byType[models.ExamTypeTheory].Available)
	suite.False(byType[models.ExamTypePractical].Available)
}

func TestExamSessionSuite(t *testing.T) {
	suite.Run(t, new(ExamSessionTestSuite))
}
